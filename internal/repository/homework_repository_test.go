package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutor-api/internal/models"
)

func TestCreateWithAssignments(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewHomeworkRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO homeworks").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO student_homeworks").WithArgs(sqlmock.AnyArg(), "h1", "s1", sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO student_homeworks").WithArgs(sqlmock.AnyArg(), "h1", "s2", sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	hw := &models.Homework{ID: "h1", TeacherID: "t1", Title: "Quadratics", FilePath: "homeworks/t1/x.pdf", AnswerKey: pq.StringArray{"1"}, CreatedAt: time.Now()}
	require.NoError(t, repo.CreateWithAssignments(context.Background(), hw, []string{"s1", "s2"}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmitMissingAssignment(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewHomeworkRepository(db)

	mock.ExpectExec("UPDATE student_homeworks").WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Submit(context.Background(), &models.StudentHomework{HomeworkID: "h1", StudentID: "s9", Status: models.HomeworkSubmitted})
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteHomeworkNotFound(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewHomeworkRepository(db)

	mock.ExpectExec("DELETE FROM homeworks").WithArgs("h1").WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, repo.Delete(context.Background(), "h1"), sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
