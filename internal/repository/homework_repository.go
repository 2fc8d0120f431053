package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/tutor-api/internal/models"
)

// HomeworkRepository stores homeworks and their per-student assignments.
type HomeworkRepository struct {
	db *sqlx.DB
}

// NewHomeworkRepository constructs the repository.
func NewHomeworkRepository(db *sqlx.DB) *HomeworkRepository {
	return &HomeworkRepository{db: db}
}

// CreateWithAssignments inserts the homework and a not_started row per student.
func (r *HomeworkRepository) CreateWithAssignments(ctx context.Context, hw *models.Homework, studentIDs []string) error {
	return withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		const query = `INSERT INTO homeworks (id, teacher_id, title, description, file_path, answer_key, created_at)
VALUES (:id, :teacher_id, :title, :description, :file_path, :answer_key, :created_at)`
		if _, err := tx.NamedExecContext(ctx, query, hw); err != nil {
			return fmt.Errorf("insert homework: %w", err)
		}
		return assign(ctx, tx, hw.ID, studentIDs, hw.CreatedAt)
	})
}

// Assign adds students to a homework; existing assignments are left untouched.
func (r *HomeworkRepository) Assign(ctx context.Context, homeworkID string, studentIDs []string) error {
	return withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		return assign(ctx, tx, homeworkID, studentIDs, time.Now().UTC())
	})
}

func assign(ctx context.Context, tx *sqlx.Tx, homeworkID string, studentIDs []string, at time.Time) error {
	const query = `INSERT INTO student_homeworks (id, homework_id, student_id, status, created_at)
VALUES ($1, $2, $3, 'not_started', $4)
ON CONFLICT (homework_id, student_id) DO NOTHING`
	for _, sid := range studentIDs {
		if _, err := tx.ExecContext(ctx, query, uuid.NewString(), homeworkID, sid, at); err != nil {
			return fmt.Errorf("assign homework to %s: %w", sid, err)
		}
	}
	return nil
}

// FindByID returns one homework.
func (r *HomeworkRepository) FindByID(ctx context.Context, id string) (*models.Homework, error) {
	const query = `SELECT id, teacher_id, title, description, file_path, answer_key, created_at FROM homeworks WHERE id = $1`
	var hw models.Homework
	if err := r.db.GetContext(ctx, &hw, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find homework: %w", err)
	}
	return &hw, nil
}

// ListByTeacher returns the teacher's homeworks newest first.
func (r *HomeworkRepository) ListByTeacher(ctx context.Context, teacherID string) ([]models.Homework, error) {
	const query = `SELECT id, teacher_id, title, description, file_path, answer_key, created_at FROM homeworks WHERE teacher_id = $1 ORDER BY created_at DESC`
	out := []models.Homework{}
	if err := r.db.SelectContext(ctx, &out, query, teacherID); err != nil {
		return nil, fmt.Errorf("list homeworks: %w", err)
	}
	return out, nil
}

// Delete removes the homework; assignments cascade.
func (r *HomeworkRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM homeworks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete homework: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

const assignmentColumns = `sh.id, sh.homework_id, sh.student_id, sh.status, sh.solution_path, sh.answers, sh.score, sh.submitted_at, sh.created_at`

// ListAssignments returns every student row of a homework.
func (r *HomeworkRepository) ListAssignments(ctx context.Context, homeworkID string) ([]models.StudentHomework, error) {
	query := `SELECT ` + assignmentColumns + ` FROM student_homeworks sh WHERE sh.homework_id = $1 ORDER BY sh.created_at, sh.student_id`
	out := []models.StudentHomework{}
	if err := r.db.SelectContext(ctx, &out, query, homeworkID); err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	return out, nil
}

// ListAssigned returns a student's homeworks newest first.
func (r *HomeworkRepository) ListAssigned(ctx context.Context, studentID string) ([]models.AssignedHomework, error) {
	query := `SELECT ` + assignmentColumns + `, h.title, h.description, h.teacher_id, (h.answer_key IS NOT NULL) AS has_key
FROM student_homeworks sh JOIN homeworks h ON h.id = sh.homework_id
WHERE sh.student_id = $1
ORDER BY h.created_at DESC`
	out := []models.AssignedHomework{}
	if err := r.db.SelectContext(ctx, &out, query, studentID); err != nil {
		return nil, fmt.Errorf("list assigned homeworks: %w", err)
	}
	return out, nil
}

// FindAssignment returns the student's row for a homework.
func (r *HomeworkRepository) FindAssignment(ctx context.Context, homeworkID, studentID string) (*models.StudentHomework, error) {
	query := `SELECT ` + assignmentColumns + ` FROM student_homeworks sh WHERE sh.homework_id = $1 AND sh.student_id = $2`
	var sh models.StudentHomework
	if err := r.db.GetContext(ctx, &sh, query, homeworkID, studentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find assignment: %w", err)
	}
	return &sh, nil
}

// Submit records a student's solution.
func (r *HomeworkRepository) Submit(ctx context.Context, sh *models.StudentHomework) error {
	const query = `UPDATE student_homeworks
SET status = :status, solution_path = :solution_path, answers = :answers, score = :score, submitted_at = :submitted_at
WHERE homework_id = :homework_id AND student_id = :student_id`
	res, err := r.db.NamedExecContext(ctx, query, sh)
	if err != nil {
		return fmt.Errorf("submit homework: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
