package dto

// CreateTopicRequest adds a cheat-sheet topic.
type CreateTopicRequest struct {
	Name        string `json:"name" validate:"required,max=200"`
	Description string `json:"description" validate:"omitempty,max=2000"`
}

// AttachCheatSheetRequest accompanies an uploaded cheat sheet.
type AttachCheatSheetRequest struct {
	StudentID   string `form:"student_id" json:"student_id" validate:"required,uuid"`
	TopicID     string `form:"topic_id" json:"topic_id" validate:"required,uuid"`
	Title       string `form:"title" json:"title" validate:"required,max=200"`
	Description string `form:"description" json:"description" validate:"omitempty,max=2000"`
}
