package dto

// ReplaceAvailabilityRequest replaces the teacher's slots for one date.
type ReplaceAvailabilityRequest struct {
	Date      string   `json:"date" validate:"required,datetime=2006-01-02"`
	TimeSlots []string `json:"time_slots" validate:"dive,required"`
}

// AvailabilityQuery is the date window of a slot listing.
type AvailabilityQuery struct {
	TeacherID string `form:"teacher_id" validate:"omitempty,uuid"`
	From      string `form:"from" validate:"omitempty,datetime=2006-01-02"`
	To        string `form:"to" validate:"omitempty,datetime=2006-01-02"`
}

// CreateBookingRequest reserves a published slot.
type CreateBookingRequest struct {
	TeacherID   string `json:"teacher_id" validate:"required,uuid"`
	Date        string `json:"date" validate:"required,datetime=2006-01-02"`
	TimeSlot    string `json:"time_slot" validate:"required"`
	Subject     string `json:"subject" validate:"required,max=200"`
	ContactInfo string `json:"contact_info" validate:"omitempty,max=500"`
}

// ScheduleExportQuery selects the window and format of a teacher export.
type ScheduleExportQuery struct {
	From   string `form:"from" validate:"omitempty,datetime=2006-01-02"`
	To     string `form:"to" validate:"omitempty,datetime=2006-01-02"`
	Format string `form:"format" validate:"omitempty,oneof=csv pdf"`
}

// LessonRequestSubjects are the subjects offered on the public form.
var LessonRequestSubjects = map[string]string{
	"school":     "School curriculum",
	"oge":        "OGE preparation",
	"ege":        "EGE preparation",
	"olympiad":   "Olympiad preparation",
	"university": "University course",
}

// LessonRequest is the anonymous "request a lesson" form.
type LessonRequest struct {
	Name    string `json:"name" validate:"required,max=100"`
	Phone   string `json:"phone" validate:"required,phone"`
	Email   string `json:"email" validate:"omitempty,email"`
	Subject string `json:"subject" validate:"required,oneof=school oge ege olympiad university"`
	Message string `json:"message" validate:"omitempty,max=2000"`
}
