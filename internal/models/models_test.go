package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	r, err := ParseRole(" Teacher ")
	require.NoError(t, err)
	assert.Equal(t, RoleTeacher, r)
	assert.True(t, r.CanPublishAvailability())
	assert.False(t, r.CanBook())
	assert.Equal(t, RoleStudent, r.Counterpart())

	_, err = ParseRole("admin")
	assert.Error(t, err)
}

func TestConversationKeyHas(t *testing.T) {
	k := ConversationKey{TeacherID: "t", StudentID: "s"}
	assert.True(t, k.Has("t"))
	assert.True(t, k.Has("s"))
	assert.False(t, k.Has("x"))
	assert.False(t, k.Has(""))
	assert.Equal(t, "t:s", k.String())
}

func TestBookingStatusActive(t *testing.T) {
	assert.True(t, BookingPending.Active())
	assert.True(t, BookingCompleted.Active())
	assert.False(t, BookingCancelled.Active())
}

func TestProfileDisplayName(t *testing.T) {
	assert.Equal(t, "Anna Ivanova", Profile{FirstName: "Anna", LastName: "Ivanova"}.DisplayName())
	assert.Equal(t, "id-1", Profile{ID: "id-1"}.DisplayName())
}
