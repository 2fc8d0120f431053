package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/tutor-api/internal/dto"
	"github.com/noah-isme/tutor-api/internal/models"
	appErrors "github.com/noah-isme/tutor-api/pkg/errors"
	"github.com/noah-isme/tutor-api/pkg/storage"
)

type homeworkRepository interface {
	CreateWithAssignments(ctx context.Context, hw *models.Homework, studentIDs []string) error
	Assign(ctx context.Context, homeworkID string, studentIDs []string) error
	FindByID(ctx context.Context, id string) (*models.Homework, error)
	ListByTeacher(ctx context.Context, teacherID string) ([]models.Homework, error)
	Delete(ctx context.Context, id string) error
	ListAssignments(ctx context.Context, homeworkID string) ([]models.StudentHomework, error)
	ListAssigned(ctx context.Context, studentID string) ([]models.AssignedHomework, error)
	FindAssignment(ctx context.Context, homeworkID, studentID string) (*models.StudentHomework, error)
	Submit(ctx context.Context, sh *models.StudentHomework) error
}

type fileKeeper interface {
	Put(ctx context.Context, bucket storage.Bucket, prefix, stem string, u storage.Upload) (string, error)
	Remove(bucket storage.Bucket, key string)
	Link(bucket storage.Bucket, key string) (*models.DownloadLink, error)
}

type roleChecker interface {
	RequireRole(ctx context.Context, id string, role models.Role) (*models.Profile, error)
}

// HomeworkService lets teachers hand out assignment files and students
// return solutions, with automatic scoring of EGE short answers.
type HomeworkService struct {
	repo      homeworkRepository
	files     fileKeeper
	profiles  roleChecker
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewHomeworkService constructs a HomeworkService.
func NewHomeworkService(repo homeworkRepository, files fileKeeper, profiles roleChecker, validate *validator.Validate, logger *zap.Logger) *HomeworkService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HomeworkService{repo: repo, files: files, profiles: profiles, validator: validate, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// Create uploads the assignment file and assigns it to the listed students.
func (s *HomeworkService) Create(ctx context.Context, teacher Actor, req dto.CreateHomeworkRequest, file storage.Upload) (*dto.HomeworkDetail, error) {
	if !teacher.Role.CanAssignWork() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only teachers can create homework")
	}
	req.Title = strings.TrimSpace(req.Title)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid homework payload")
	}
	studentIDs := dedupe(req.StudentIDs)
	if err := s.requireStudents(ctx, studentIDs); err != nil {
		return nil, err
	}

	key, err := s.files.Put(ctx, storage.BucketHomeworkFiles, "homeworks/"+teacher.ID, req.Title, file)
	if err != nil {
		return nil, err
	}

	hw := &models.Homework{
		ID:          uuid.NewString(),
		TeacherID:   teacher.ID,
		Title:       req.Title,
		Description: strings.TrimSpace(req.Description),
		FilePath:    key,
		AnswerKey:   normalizeKey(req.AnswerKey),
		CreatedAt:   s.now(),
	}
	if err := s.repo.CreateWithAssignments(ctx, hw, studentIDs); err != nil {
		s.files.Remove(storage.BucketHomeworkFiles, key)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create homework")
	}
	s.logger.Info("homework created", zap.String("homework_id", hw.ID), zap.Int("students", len(studentIDs)))
	return s.detail(ctx, hw)
}

// List returns the teacher's homeworks newest first.
func (s *HomeworkService) List(ctx context.Context, teacherID string) ([]models.Homework, error) {
	list, err := s.repo.ListByTeacher(ctx, teacherID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list homeworks")
	}
	return list, nil
}

// Detail returns one of the teacher's homeworks with every submission.
func (s *HomeworkService) Detail(ctx context.Context, teacherID, homeworkID string) (*dto.HomeworkDetail, error) {
	hw, err := s.owned(ctx, teacherID, homeworkID)
	if err != nil {
		return nil, err
	}
	return s.detail(ctx, hw)
}

// Assign adds students to an existing homework. Existing assignments are kept.
func (s *HomeworkService) Assign(ctx context.Context, teacherID, homeworkID string, req dto.AssignHomeworkRequest) (*dto.HomeworkDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}
	hw, err := s.owned(ctx, teacherID, homeworkID)
	if err != nil {
		return nil, err
	}
	studentIDs := dedupe(req.StudentIDs)
	if err := s.requireStudents(ctx, studentIDs); err != nil {
		return nil, err
	}
	if err := s.repo.Assign(ctx, hw.ID, studentIDs); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign homework")
	}
	return s.detail(ctx, hw)
}

// Delete removes a homework, its assignments and every stored file.
func (s *HomeworkService) Delete(ctx context.Context, teacherID, homeworkID string) error {
	hw, err := s.owned(ctx, teacherID, homeworkID)
	if err != nil {
		return err
	}
	assignments, err := s.repo.ListAssignments(ctx, hw.ID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignments")
	}
	if err := s.repo.Delete(ctx, hw.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "homework not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete homework")
	}
	s.files.Remove(storage.BucketHomeworkFiles, hw.FilePath)
	for _, a := range assignments {
		if a.SolutionPath != nil {
			s.files.Remove(storage.BucketHomeworkSolutions, *a.SolutionPath)
		}
	}
	return nil
}

// ListAssigned returns the student's homeworks.
func (s *HomeworkService) ListAssigned(ctx context.Context, studentID string) ([]models.AssignedHomework, error) {
	list, err := s.repo.ListAssigned(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list homeworks")
	}
	return list, nil
}

// DownloadLink signs the assignment file for its teacher or an assigned student.
func (s *HomeworkService) DownloadLink(ctx context.Context, actor Actor, homeworkID string) (*models.DownloadLink, error) {
	hw, err := s.find(ctx, homeworkID)
	if err != nil {
		return nil, err
	}
	if hw.TeacherID != actor.ID {
		if _, err := s.assignment(ctx, homeworkID, actor.ID); err != nil {
			return nil, err
		}
	}
	return s.files.Link(storage.BucketHomeworkFiles, hw.FilePath)
}

// SolutionLink signs a student's uploaded solution for the student or the homework's teacher.
func (s *HomeworkService) SolutionLink(ctx context.Context, actor Actor, homeworkID, studentID string) (*models.DownloadLink, error) {
	hw, err := s.find(ctx, homeworkID)
	if err != nil {
		return nil, err
	}
	if actor.ID != studentID && actor.ID != hw.TeacherID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not allowed to view this solution")
	}
	a, err := s.assignment(ctx, homeworkID, studentID)
	if err != nil {
		return nil, err
	}
	if a.SolutionPath == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no solution uploaded")
	}
	return s.files.Link(storage.BucketHomeworkSolutions, *a.SolutionPath)
}

// Submit records the student's solution file and EGE answers. At least one of
// them is required; a new file replaces the previous one.
func (s *HomeworkService) Submit(ctx context.Context, studentID, homeworkID string, req dto.SubmitHomeworkRequest, file *storage.Upload) (*models.StudentHomework, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid submission")
	}
	if file == nil && len(req.Answers) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "solution file or answers required")
	}
	hw, err := s.find(ctx, homeworkID)
	if err != nil {
		return nil, err
	}
	a, err := s.assignment(ctx, homeworkID, studentID)
	if err != nil {
		return nil, err
	}

	previous := a.SolutionPath
	if file != nil {
		key, err := s.files.Put(ctx, storage.BucketHomeworkSolutions, "solutions/"+homeworkID, studentID, *file)
		if err != nil {
			return nil, err
		}
		a.SolutionPath = &key
	}
	if len(req.Answers) > 0 {
		a.Answers = trimAll(req.Answers)
		a.Score = nil
		if hw.HasAnswerKey() {
			score := ScoreAnswers(hw.AnswerKey, a.Answers)
			a.Score = &score
		}
	}
	now := s.now()
	a.Status = models.HomeworkSubmitted
	a.SubmittedAt = &now

	if err := s.repo.Submit(ctx, a); err != nil {
		if file != nil {
			s.files.Remove(storage.BucketHomeworkSolutions, *a.SolutionPath)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to submit homework")
	}
	if file != nil && previous != nil && *previous != *a.SolutionPath {
		s.files.Remove(storage.BucketHomeworkSolutions, *previous)
	}
	return a, nil
}

// ScoreAnswers counts answers equal to the key after trimming and case folding.
// Blank key entries never score.
func ScoreAnswers(key, answers []string) int {
	score := 0
	for i, k := range key {
		if i >= len(answers) {
			break
		}
		want := strings.ToLower(strings.TrimSpace(k))
		if want == "" {
			continue
		}
		if strings.ToLower(strings.TrimSpace(answers[i])) == want {
			score++
		}
	}
	return score
}

func (s *HomeworkService) detail(ctx context.Context, hw *models.Homework) (*dto.HomeworkDetail, error) {
	assignments, err := s.repo.ListAssignments(ctx, hw.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignments")
	}
	return &dto.HomeworkDetail{Homework: *hw, HasAnswerKey: hw.HasAnswerKey(), Assignments: assignments}, nil
}

func (s *HomeworkService) find(ctx context.Context, id string) (*models.Homework, error) {
	hw, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "homework not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load homework")
	}
	return hw, nil
}

func (s *HomeworkService) owned(ctx context.Context, teacherID, id string) (*models.Homework, error) {
	hw, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if hw.TeacherID != teacherID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "homework belongs to another teacher")
	}
	return hw, nil
}

func (s *HomeworkService) assignment(ctx context.Context, homeworkID, studentID string) (*models.StudentHomework, error) {
	a, err := s.repo.FindAssignment(ctx, homeworkID, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "homework not assigned")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}
	return a, nil
}

func (s *HomeworkService) requireStudents(ctx context.Context, ids []string) error {
	for _, id := range ids {
		if _, err := s.profiles.RequireRole(ctx, id, models.RoleStudent); err != nil {
			return err
		}
	}
	return nil
}

func normalizeKey(key []string) []string {
	if len(key) == 0 {
		return nil
	}
	return trimAll(key)
}

func trimAll(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.TrimSpace(v)
	}
	return out
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
