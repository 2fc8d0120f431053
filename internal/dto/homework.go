package dto

import "github.com/noah-isme/tutor-api/internal/models"

// CreateHomeworkRequest accompanies the uploaded assignment file.
type CreateHomeworkRequest struct {
	Title       string   `form:"title" json:"title" validate:"required,max=200"`
	Description string   `form:"description" json:"description" validate:"omitempty,max=4000"`
	StudentIDs  []string `form:"student_ids" json:"student_ids" validate:"dive,uuid"`
	AnswerKey   []string `form:"answer_key" json:"answer_key" validate:"omitempty,len=12"`
}

// AssignHomeworkRequest adds students to an existing homework.
type AssignHomeworkRequest struct {
	StudentIDs []string `json:"student_ids" validate:"required,min=1,dive,uuid"`
}

// SubmitHomeworkRequest accompanies a student's solution upload.
type SubmitHomeworkRequest struct {
	Answers []string `form:"answers" json:"answers" validate:"omitempty,len=12"`
}

// HomeworkDetail is a teacher's view of a homework with its assignments.
type HomeworkDetail struct {
	models.Homework
	HasAnswerKey bool                     `json:"has_answer_key"`
	Assignments  []models.StudentHomework `json:"assignments"`
}
