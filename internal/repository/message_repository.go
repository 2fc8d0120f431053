package repository

import (
	"context"
	"fmt"
	"sort"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/tutor-api/internal/models"
)

// MessageRepository stores chat messages. Ordering is by created_at then the
// BIGSERIAL id, both assigned by Postgres.
type MessageRepository struct {
	db *sqlx.DB
}

// NewMessageRepository constructs the repository.
func NewMessageRepository(db *sqlx.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Insert stores m and fills the server-assigned id, created_at and is_read.
func (r *MessageRepository) Insert(ctx context.Context, m *models.Message) error {
	const query = `INSERT INTO messages (teacher_id, student_id, sender_id, content)
VALUES ($1, $2, $3, $4)
RETURNING id, is_read, created_at`
	row := r.db.QueryRowxContext(ctx, query, m.TeacherID, m.StudentID, m.SenderID, m.Content)
	if err := row.Scan(&m.ID, &m.IsRead, &m.CreatedAt); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// History returns the conversation in display order.
func (r *MessageRepository) History(ctx context.Context, key models.ConversationKey) ([]models.Message, error) {
	const query = `SELECT id, teacher_id, student_id, sender_id, content, is_read, created_at
FROM messages WHERE teacher_id = $1 AND student_id = $2
ORDER BY created_at ASC, id ASC`
	out := []models.Message{}
	if err := r.db.SelectContext(ctx, &out, query, key.TeacherID, key.StudentID); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return out, nil
}

// MarkRead flags every message in the conversation not sent by readerID as read.
func (r *MessageRepository) MarkRead(ctx context.Context, key models.ConversationKey, readerID string) (int64, error) {
	const query = `UPDATE messages SET is_read = true
WHERE teacher_id = $1 AND student_id = $2 AND sender_id <> $3 AND is_read = false`
	res, err := r.db.ExecContext(ctx, query, key.TeacherID, key.StudentID, readerID)
	if err != nil {
		return 0, fmt.Errorf("mark messages read: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// ConversationRow is the latest message of one conversation plus unread count.
type ConversationRow struct {
	CounterpartID string `db:"counterpart_id"`
	Unread        int    `db:"unread"`
	models.Message
}

// LatestPerConversation returns one row per counterpart of userID, most recent first.
func (r *MessageRepository) LatestPerConversation(ctx context.Context, userID string) ([]ConversationRow, error) {
	const query = `WITH conv AS (
    SELECT m.id, m.teacher_id, m.student_id, m.sender_id, m.content, m.is_read, m.created_at,
           CASE WHEN m.teacher_id = $1 THEN m.student_id ELSE m.teacher_id END AS counterpart_id
    FROM messages m
    WHERE m.teacher_id = $1 OR m.student_id = $1
)
SELECT DISTINCT ON (counterpart_id)
       counterpart_id, id, teacher_id, student_id, sender_id, content, is_read, created_at,
       (SELECT count(*) FROM conv u WHERE u.counterpart_id = conv.counterpart_id AND u.sender_id <> $1 AND NOT u.is_read) AS unread
FROM conv
ORDER BY counterpart_id, created_at DESC, id DESC`
	var rows []ConversationRow
	if err := r.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].CreatedAt.Equal(rows[j].CreatedAt) {
			return rows[i].ID > rows[j].ID
		}
		return rows[i].CreatedAt.After(rows[j].CreatedAt)
	})
	return rows, nil
}
