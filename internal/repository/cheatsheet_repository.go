package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/tutor-api/internal/models"
)

// CheatSheetRepository stores topics and per-student sheets.
type CheatSheetRepository struct {
	db *sqlx.DB
}

// NewCheatSheetRepository constructs the repository.
func NewCheatSheetRepository(db *sqlx.DB) *CheatSheetRepository {
	return &CheatSheetRepository{db: db}
}

// CreateTopic inserts a topic.
func (r *CheatSheetRepository) CreateTopic(ctx context.Context, t *models.CheatSheetTopic) error {
	const query = `INSERT INTO cheat_sheet_topics (id, teacher_id, name, description, created_at) VALUES (:id, :teacher_id, :name, :description, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, t); err != nil {
		return fmt.Errorf("create topic: %w", err)
	}
	return nil
}

// FindTopic returns one topic.
func (r *CheatSheetRepository) FindTopic(ctx context.Context, id string) (*models.CheatSheetTopic, error) {
	const query = `SELECT id, teacher_id, name, description, created_at FROM cheat_sheet_topics WHERE id = $1`
	var t models.CheatSheetTopic
	if err := r.db.GetContext(ctx, &t, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find topic: %w", err)
	}
	return &t, nil
}

// ListTopicsByTeacher returns the teacher's topics by name.
func (r *CheatSheetRepository) ListTopicsByTeacher(ctx context.Context, teacherID string) ([]models.CheatSheetTopic, error) {
	const query = `SELECT id, teacher_id, name, description, created_at FROM cheat_sheet_topics WHERE teacher_id = $1 ORDER BY name`
	out := []models.CheatSheetTopic{}
	if err := r.db.SelectContext(ctx, &out, query, teacherID); err != nil {
		return nil, fmt.Errorf("list topics: %w", err)
	}
	return out, nil
}

// ListTopicsForStudent returns topics that hold at least one sheet for the student.
func (r *CheatSheetRepository) ListTopicsForStudent(ctx context.Context, studentID string) ([]models.CheatSheetTopic, error) {
	const query = `SELECT t.id, t.teacher_id, t.name, t.description, t.created_at
FROM cheat_sheet_topics t
WHERE EXISTS (SELECT 1 FROM student_cheatsheets s WHERE s.topic_id = t.id AND s.student_id = $1)
ORDER BY t.name`
	out := []models.CheatSheetTopic{}
	if err := r.db.SelectContext(ctx, &out, query, studentID); err != nil {
		return nil, fmt.Errorf("list student topics: %w", err)
	}
	return out, nil
}

// DeleteTopic removes a topic and, by cascade, its sheets. It returns the file
// paths of the removed sheets so the caller can clean storage.
func (r *CheatSheetRepository) DeleteTopic(ctx context.Context, id string) ([]string, error) {
	var paths []string
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := tx.SelectContext(ctx, &paths, `SELECT file_path FROM student_cheatsheets WHERE topic_id = $1`, id); err != nil {
			return fmt.Errorf("collect sheet files: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM cheat_sheet_topics WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete topic: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return sql.ErrNoRows
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return paths, nil
}

// CreateSheet inserts a cheat sheet.
func (r *CheatSheetRepository) CreateSheet(ctx context.Context, s *models.CheatSheet) error {
	const query = `INSERT INTO student_cheatsheets (id, teacher_id, student_id, topic_id, title, description, file_path, created_at)
VALUES (:id, :teacher_id, :student_id, :topic_id, :title, :description, :file_path, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, s); err != nil {
		return fmt.Errorf("create cheat sheet: %w", err)
	}
	return nil
}

// FindSheet returns one sheet.
func (r *CheatSheetRepository) FindSheet(ctx context.Context, id string) (*models.CheatSheet, error) {
	const query = `SELECT id, teacher_id, student_id, topic_id, title, description, file_path, created_at FROM student_cheatsheets WHERE id = $1`
	var s models.CheatSheet
	if err := r.db.GetContext(ctx, &s, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find cheat sheet: %w", err)
	}
	return &s, nil
}

// ListSheets returns sheets for a student, optionally within one topic.
func (r *CheatSheetRepository) ListSheets(ctx context.Context, studentID, topicID string) ([]models.CheatSheet, error) {
	query := `SELECT id, teacher_id, student_id, topic_id, title, description, file_path, created_at FROM student_cheatsheets WHERE student_id = $1`
	args := []interface{}{studentID}
	if topicID != "" {
		query += ` AND topic_id = $2`
		args = append(args, topicID)
	}
	query += ` ORDER BY created_at DESC`
	out := []models.CheatSheet{}
	if err := r.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("list cheat sheets: %w", err)
	}
	return out, nil
}

// DeleteSheet removes a sheet row.
func (r *CheatSheetRepository) DeleteSheet(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM student_cheatsheets WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete cheat sheet: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
