package dto

// SendMessageRequest posts a chat message to the counterpart.
type SendMessageRequest struct {
	Content string `json:"content" validate:"required,max=4000"`
}
