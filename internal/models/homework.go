package models

import (
	"time"

	"github.com/lib/pq"
)

// HomeworkStatus tracks a student's progress on an assignment.
type HomeworkStatus string

const (
	HomeworkNotStarted HomeworkStatus = "not_started"
	HomeworkSubmitted  HomeworkStatus = "submitted"
)

// EGEAnswerCount is the number of short answers on an EGE answer form.
const EGEAnswerCount = 12

// Homework is an assignment file authored by a teacher.
type Homework struct {
	ID          string         `db:"id" json:"id"`
	TeacherID   string         `db:"teacher_id" json:"teacher_id"`
	Title       string         `db:"title" json:"title"`
	Description string         `db:"description" json:"description"`
	FilePath    string         `db:"file_path" json:"file_path"`
	AnswerKey   pq.StringArray `db:"answer_key" json:"-"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
}

// HasAnswerKey reports whether submissions can be scored automatically.
func (h Homework) HasAnswerKey() bool {
	return len(h.AnswerKey) > 0
}

// StudentHomework is one assignment of a homework to a student.
type StudentHomework struct {
	ID           string         `db:"id" json:"id"`
	HomeworkID   string         `db:"homework_id" json:"homework_id"`
	StudentID    string         `db:"student_id" json:"student_id"`
	Status       HomeworkStatus `db:"status" json:"status"`
	SolutionPath *string        `db:"solution_path" json:"solution_path,omitempty"`
	Answers      pq.StringArray `db:"answers" json:"answers,omitempty"`
	Score        *int           `db:"score" json:"score,omitempty"`
	SubmittedAt  *time.Time     `db:"submitted_at" json:"submitted_at,omitempty"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
}

// AssignedHomework joins an assignment with its homework for the student view.
type AssignedHomework struct {
	StudentHomework
	Title       string `db:"title" json:"title"`
	Description string `db:"description" json:"description"`
	TeacherID   string `db:"teacher_id" json:"teacher_id"`
	HasKey      bool   `db:"has_key" json:"has_answer_key"`
}
