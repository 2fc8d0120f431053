package models

import "time"

// BookingStatus tracks a booking through its lifecycle.
type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
	BookingCompleted BookingStatus = "completed"
)

// Active reports whether the booking still occupies its slot.
func (s BookingStatus) Active() bool {
	return s != BookingCancelled
}

// Booking is a student's reservation of a teacher's slot.
type Booking struct {
	ID          string        `db:"id" json:"id"`
	TeacherID   string        `db:"teacher_id" json:"teacher_id"`
	StudentID   string        `db:"student_id" json:"student_id"`
	Date        string        `db:"date" json:"date"`
	TimeSlot    string        `db:"time_slot" json:"time_slot"`
	Subject     string        `db:"subject" json:"subject"`
	ContactInfo string        `db:"contact_info" json:"contact_info"`
	Status      BookingStatus `db:"status" json:"status"`
	CancelledBy *string       `db:"cancelled_by" json:"cancelled_by,omitempty"`
	CancelledAt *time.Time    `db:"cancelled_at" json:"cancelled_at,omitempty"`
	CreatedAt   time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time     `db:"updated_at" json:"updated_at"`
}

// BookingOverview splits a user's bookings for display.
type BookingOverview struct {
	Upcoming []Booking `json:"upcoming"`
	Past     []Booking `json:"past"`
}

// Key returns the slot the booking occupies.
func (b Booking) Key() SlotKey {
	return SlotKey{TeacherID: b.TeacherID, Date: b.Date, TimeSlot: b.TimeSlot}
}
