package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/tutor-api/internal/models"
)

// AvailabilityRepository stores teacher_availability rows.
type AvailabilityRepository struct {
	db *sqlx.DB
}

// NewAvailabilityRepository constructs the repository.
func NewAvailabilityRepository(db *sqlx.DB) *AvailabilityRepository {
	return &AvailabilityRepository{db: db}
}

// ErrSlotBooked is returned by ReplaceDay when a withdrawn slot still carries
// a pending or confirmed booking.
var ErrSlotBooked = errors.New("slot has an active booking")

// ReplaceDay swaps a teacher's slots for date with slots inside one
// transaction. The day's rows are locked first; BookingRepository.Create takes
// a share lock on the slot row, so a booking either commits before the check
// below or waits for this transaction. Kept slots are left untouched.
func (r *AvailabilityRepository) ReplaceDay(ctx context.Context, teacherID, date string, slots []string) error {
	return withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		var locked []string
		const lock = `SELECT time_slot FROM teacher_availability WHERE teacher_id = $1 AND date = $2::date FOR UPDATE`
		if err := tx.SelectContext(ctx, &locked, lock, teacherID, date); err != nil {
			return fmt.Errorf("lock availability: %w", err)
		}

		var booked []string
		const active = `SELECT time_slot FROM bookings
WHERE teacher_id = $1 AND date = $2::date AND status IN ('pending', 'confirmed') AND NOT (time_slot = ANY($3))`
		if err := tx.SelectContext(ctx, &booked, active, teacherID, date, pq.Array(slots)); err != nil {
			return fmt.Errorf("check booked slots: %w", err)
		}
		if len(booked) > 0 {
			return fmt.Errorf("%w: %s", ErrSlotBooked, booked[0])
		}

		const clear = `DELETE FROM teacher_availability WHERE teacher_id = $1 AND date = $2::date AND NOT (time_slot = ANY($3))`
		if _, err := tx.ExecContext(ctx, clear, teacherID, date, pq.Array(slots)); err != nil {
			return fmt.Errorf("clear availability: %w", err)
		}
		const insert = `INSERT INTO teacher_availability (teacher_id, date, time_slot) VALUES ($1, $2::date, $3)
ON CONFLICT (teacher_id, date, time_slot) DO NOTHING`
		for _, slot := range slots {
			if _, err := tx.ExecContext(ctx, insert, teacherID, date, slot); err != nil {
				return fmt.Errorf("insert availability %s %s: %w", date, slot, err)
			}
		}
		return nil
	})
}

// List returns declared slots ordered by date and time.
func (r *AvailabilityRepository) List(ctx context.Context, filter models.AvailabilityFilter) ([]models.AvailabilitySlot, error) {
	var conditions []string
	var args []interface{}
	if filter.TeacherID != "" {
		args = append(args, filter.TeacherID)
		conditions = append(conditions, fmt.Sprintf("teacher_id = $%d", len(args)))
	}
	conditions, args = dateRange("date", filter.From, filter.To, conditions, args)

	query := `SELECT teacher_id, to_char(date, 'YYYY-MM-DD') AS date, time_slot FROM teacher_availability`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY date, time_slot, teacher_id"

	var slots []models.AvailabilitySlot
	if err := r.db.SelectContext(ctx, &slots, query, args...); err != nil {
		return nil, fmt.Errorf("list availability: %w", err)
	}
	return slots, nil
}

// Exists reports whether the teacher published the slot.
func (r *AvailabilityRepository) Exists(ctx context.Context, teacherID, date, slot string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM teacher_availability WHERE teacher_id = $1 AND date = $2::date AND time_slot = $3)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, teacherID, date, slot); err != nil {
		return false, fmt.Errorf("check availability: %w", err)
	}
	return exists, nil
}
