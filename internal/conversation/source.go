package conversation

import (
	"context"

	"github.com/noah-isme/tutor-api/internal/models"
)

// Source is the server side of a conversation as seen by the client.
type Source interface {
	History(ctx context.Context, counterpartID string) ([]models.Message, error)
	Send(ctx context.Context, counterpartID, content string) (*models.Message, error)
	MarkRead(ctx context.Context, counterpartID string) error
	Subscribe(ctx context.Context, counterpartID string) (Stream, error)
}

// Stream delivers pushed messages until closed. Messages is closed when the
// underlying transport ends.
type Stream interface {
	Messages() <-chan models.Message
	Close() error
}
