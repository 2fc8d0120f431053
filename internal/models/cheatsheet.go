package models

import "time"

// CheatSheetTopic groups reference sheets a teacher prepares.
type CheatSheetTopic struct {
	ID          string    `db:"id" json:"id"`
	TeacherID   string    `db:"teacher_id" json:"teacher_id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// CheatSheet is a file attached to a topic for one student.
type CheatSheet struct {
	ID          string    `db:"id" json:"id"`
	TeacherID   string    `db:"teacher_id" json:"teacher_id"`
	StudentID   string    `db:"student_id" json:"student_id"`
	TopicID     string    `db:"topic_id" json:"topic_id"`
	Title       string    `db:"title" json:"title"`
	Description string    `db:"description" json:"description"`
	FilePath    string    `db:"file_path" json:"-"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
