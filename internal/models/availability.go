package models

// DateLayout is the wire and storage format of calendar dates.
const DateLayout = "2006-01-02"

// AvailabilitySlot is a (teacher, date, time) tuple the teacher declared bookable.
type AvailabilitySlot struct {
	TeacherID string `db:"teacher_id" json:"teacher_id"`
	Date      string `db:"date" json:"date"`
	TimeSlot  string `db:"time_slot" json:"time_slot"`
}

// SlotKey identifies a slot independent of its row.
type SlotKey struct {
	TeacherID string
	Date      string
	TimeSlot  string
}

// Key returns the identity of s.
func (s AvailabilitySlot) Key() SlotKey {
	return SlotKey{TeacherID: s.TeacherID, Date: s.Date, TimeSlot: s.TimeSlot}
}

// AvailabilityFilter narrows slot queries. An empty TeacherID means all teachers.
type AvailabilityFilter struct {
	TeacherID string
	From      string
	To        string
}
