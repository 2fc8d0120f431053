package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	cfg := fromViper(v)

	require.Equal(t, DefaultTimeSlots, cfg.Booking.TimeSlots)
	assert.Equal(t, "Europe/Moscow", cfg.Booking.Timezone)
	assert.Equal(t, 7*time.Second, cfg.Messaging.FallbackInterval)
	assert.Equal(t, int64(20*1024*1024), cfg.Storage.MaxFileSizeBytes)
	assert.Equal(t, 1, cfg.Mail.Workers)
	assert.True(t, cfg.Database.AutoMigrate)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, "@every 15m", cfg.Booking.SweepSchedule)
}

func TestOverrides(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("BOOKING_TIME_SLOTS", " 10:00 , 11:00,,")
	v.Set("MESSAGING_FALLBACK_INTERVAL", "not-a-duration")
	v.Set("MAIL_WORKERS", 0)
	cfg := fromViper(v)

	assert.Equal(t, []string{"10:00", "11:00"}, cfg.Booking.TimeSlots)
	assert.Equal(t, 7*time.Second, cfg.Messaging.FallbackInterval)
	assert.Equal(t, 1, cfg.Mail.Workers)
}

func TestSplitAndTrim(t *testing.T) {
	assert.Nil(t, splitAndTrim(""))
	assert.Equal(t, []string{"a", "b"}, splitAndTrim("a, b ,"))
}
