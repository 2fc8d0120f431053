package models

import "time"

// ConversationKey identifies the one conversation between a teacher and a student.
type ConversationKey struct {
	TeacherID string `json:"teacher_id"`
	StudentID string `json:"student_id"`
}

// String renders the key for channel names and logs.
func (k ConversationKey) String() string {
	return k.TeacherID + ":" + k.StudentID
}

// Has reports whether userID is a participant.
func (k ConversationKey) Has(userID string) bool {
	return userID != "" && (k.TeacherID == userID || k.StudentID == userID)
}

// Message is a single chat entry. ID and CreatedAt are assigned by the store.
type Message struct {
	ID        int64     `db:"id" json:"id"`
	TeacherID string    `db:"teacher_id" json:"teacher_id"`
	StudentID string    `db:"student_id" json:"student_id"`
	SenderID  string    `db:"sender_id" json:"sender_id"`
	Content   string    `db:"content" json:"content"`
	IsRead    bool      `db:"is_read" json:"is_read"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Key returns the conversation the message belongs to.
func (m Message) Key() ConversationKey {
	return ConversationKey{TeacherID: m.TeacherID, StudentID: m.StudentID}
}

// ConversationSummary is one row of the chat list.
type ConversationSummary struct {
	Counterpart Profile `json:"counterpart"`
	LastMessage Message `json:"last_message"`
	Unread      int     `json:"unread"`
}
