package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutor-api/internal/models"
)

func TestReplaceDay(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAvailabilityRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT time_slot FROM teacher_availability WHERE teacher_id = $1 AND date = $2::date FOR UPDATE")).
		WithArgs("t1", "2026-10-20").
		WillReturnRows(sqlmock.NewRows([]string{"time_slot"}).AddRow("09:00").AddRow("12:00"))
	mock.ExpectQuery(regexp.QuoteMeta("FROM bookings")).
		WithArgs("t1", "2026-10-20", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"time_slot"}))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM teacher_availability WHERE teacher_id = $1 AND date = $2::date AND NOT (time_slot = ANY($3))")).
		WithArgs("t1", "2026-10-20", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO teacher_availability .* ON CONFLICT").WithArgs("t1", "2026-10-20", "09:00").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO teacher_availability").WithArgs("t1", "2026-10-20", "10:30").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.ReplaceDay(context.Background(), "t1", "2026-10-20", []string{"09:00", "10:30"}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceDayRejectsWithdrawingBookedSlot(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAvailabilityRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").WillReturnRows(sqlmock.NewRows([]string{"time_slot"}).AddRow("09:00").AddRow("12:00"))
	mock.ExpectQuery(regexp.QuoteMeta("status IN ('pending', 'confirmed')")).
		WithArgs("t1", "2026-10-20", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"time_slot"}).AddRow("12:00"))
	mock.ExpectRollback()

	err := repo.ReplaceDay(context.Background(), "t1", "2026-10-20", []string{"09:00"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSlotBooked)
	assert.Contains(t, err.Error(), "12:00")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceDayRollsBackOnInsertFailure(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAvailabilityRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").WillReturnRows(sqlmock.NewRows([]string{"time_slot"}))
	mock.ExpectQuery("FROM bookings").WillReturnRows(sqlmock.NewRows([]string{"time_slot"}))
	mock.ExpectExec("DELETE FROM teacher_availability").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO teacher_availability").WillReturnError(errors.New("boom"))
	mock.ExpectRollback()

	require.Error(t, repo.ReplaceDay(context.Background(), "t1", "2026-10-20", []string{"09:00"}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListAvailabilityFilters(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAvailabilityRepository(db)

	rows := sqlmock.NewRows([]string{"teacher_id", "date", "time_slot"}).
		AddRow("t1", "2026-10-20", "09:00").
		AddRow("t1", "2026-10-20", "12:00")
	mock.ExpectQuery(regexp.QuoteMeta("FROM teacher_availability WHERE teacher_id = $1 AND date >= $2::date AND date <= $3::date ORDER BY date, time_slot, teacher_id")).
		WithArgs("t1", "2026-10-20", "2026-10-27").
		WillReturnRows(rows)

	slots, err := repo.List(context.Background(), models.AvailabilityFilter{TeacherID: "t1", From: "2026-10-20", To: "2026-10-27"})
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.Equal(t, "12:00", slots[1].TimeSlot)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAvailabilityExists(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAvailabilityRepository(db)

	mock.ExpectQuery("SELECT EXISTS").WithArgs("t1", "2026-10-20", "09:00").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := repo.Exists(context.Background(), "t1", "2026-10-20", "09:00")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}
