package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/tutor-api/internal/models"
)

const bookingColumns = `id, teacher_id, student_id, to_char(date, 'YYYY-MM-DD') AS date, time_slot, subject, contact_info, status, cancelled_by, cancelled_at, created_at, updated_at`

// BookingRepository persists bookings. Slot uniqueness among live bookings is
// enforced by the bookings_active_slot_uniq partial index.
type BookingRepository struct {
	db *sqlx.DB
}

// NewBookingRepository constructs the repository.
func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// Create inserts a booking and fills server-side timestamps. The insert only
// happens while the slot is published and holds a share lock on its row until
// commit. sql.ErrNoRows means the slot is not (or no longer) published.
func (r *BookingRepository) Create(ctx context.Context, b *models.Booking) error {
	const query = `INSERT INTO bookings (id, teacher_id, student_id, date, time_slot, subject, contact_info, status)
SELECT $1::uuid, a.teacher_id, $3::uuid, a.date, a.time_slot, $6::text, $7::text, $8::text
FROM teacher_availability a
WHERE a.teacher_id = $2::uuid AND a.date = $4::date AND a.time_slot = $5
FOR SHARE OF a
RETURNING created_at, updated_at`
	row := r.db.QueryRowxContext(ctx, query, b.ID, b.TeacherID, b.StudentID, b.Date, b.TimeSlot, b.Subject, b.ContactInfo, b.Status)
	if err := row.Scan(&b.CreatedAt, &b.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return err
		}
		return fmt.Errorf("create booking: %w", err)
	}
	return nil
}

// FindByID returns one booking.
func (r *BookingRepository) FindByID(ctx context.Context, id string) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`
	var b models.Booking
	if err := r.db.GetContext(ctx, &b, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find booking: %w", err)
	}
	return &b, nil
}

// ListByStudent returns the student's bookings newest date first.
func (r *BookingRepository) ListByStudent(ctx context.Context, studentID string) ([]models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE student_id = $1 ORDER BY date DESC, time_slot DESC`
	var out []models.Booking
	if err := r.db.SelectContext(ctx, &out, query, studentID); err != nil {
		return nil, fmt.Errorf("list student bookings: %w", err)
	}
	return out, nil
}

// ListByTeacher returns the teacher's bookings in an optional date window, oldest first.
func (r *BookingRepository) ListByTeacher(ctx context.Context, teacherID, from, to string) ([]models.Booking, error) {
	conditions := []string{"teacher_id = $1"}
	args := []interface{}{teacherID}
	conditions, args = dateRange("date", from, to, conditions, args)

	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE ` + strings.Join(conditions, " AND ") + ` ORDER BY date, time_slot`
	var out []models.Booking
	if err := r.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("list teacher bookings: %w", err)
	}
	return out, nil
}

// ListOccupied returns the slots held by non-cancelled bookings.
func (r *BookingRepository) ListOccupied(ctx context.Context, filter models.AvailabilityFilter) ([]models.AvailabilitySlot, error) {
	conditions := []string{"status <> 'cancelled'"}
	var args []interface{}
	if filter.TeacherID != "" {
		args = append(args, filter.TeacherID)
		conditions = append(conditions, fmt.Sprintf("teacher_id = $%d", len(args)))
	}
	conditions, args = dateRange("date", filter.From, filter.To, conditions, args)

	query := `SELECT teacher_id, to_char(date, 'YYYY-MM-DD') AS date, time_slot FROM bookings WHERE ` + strings.Join(conditions, " AND ")
	var out []models.AvailabilitySlot
	if err := r.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("list occupied slots: %w", err)
	}
	return out, nil
}

// Cancel flips a live booking to cancelled and returns the updated row.
// sql.ErrNoRows means the booking is missing or no longer pending/confirmed.
func (r *BookingRepository) Cancel(ctx context.Context, id, by string, at time.Time) (*models.Booking, error) {
	query := `UPDATE bookings SET status = 'cancelled', cancelled_by = $2, cancelled_at = $3, updated_at = $3
WHERE id = $1 AND status IN ('pending', 'confirmed')
RETURNING ` + bookingColumns
	var b models.Booking
	if err := r.db.GetContext(ctx, &b, query, id, by, at); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("cancel booking: %w", err)
	}
	return &b, nil
}

// Confirm moves a pending booking to confirmed.
func (r *BookingRepository) Confirm(ctx context.Context, id string, at time.Time) (*models.Booking, error) {
	query := `UPDATE bookings SET status = 'confirmed', updated_at = $2
WHERE id = $1 AND status = 'pending'
RETURNING ` + bookingColumns
	var b models.Booking
	if err := r.db.GetContext(ctx, &b, query, id, at); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("confirm booking: %w", err)
	}
	return &b, nil
}

// CompleteBefore marks confirmed bookings dated before date as completed.
func (r *BookingRepository) CompleteBefore(ctx context.Context, date string, at time.Time) (int64, error) {
	const query = `UPDATE bookings SET status = 'completed', updated_at = $2 WHERE status = 'confirmed' AND date < $1::date`
	res, err := r.db.ExecContext(ctx, query, date, at)
	if err != nil {
		return 0, fmt.Errorf("complete past bookings: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
