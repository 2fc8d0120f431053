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
	"github.com/noah-isme/tutor-api/internal/repository"
	appErrors "github.com/noah-isme/tutor-api/pkg/errors"
	"github.com/noah-isme/tutor-api/pkg/storage"
)

type cheatSheetRepository interface {
	CreateTopic(ctx context.Context, t *models.CheatSheetTopic) error
	FindTopic(ctx context.Context, id string) (*models.CheatSheetTopic, error)
	ListTopicsByTeacher(ctx context.Context, teacherID string) ([]models.CheatSheetTopic, error)
	ListTopicsForStudent(ctx context.Context, studentID string) ([]models.CheatSheetTopic, error)
	DeleteTopic(ctx context.Context, id string) ([]string, error)
	CreateSheet(ctx context.Context, s *models.CheatSheet) error
	FindSheet(ctx context.Context, id string) (*models.CheatSheet, error)
	ListSheets(ctx context.Context, studentID, topicID string) ([]models.CheatSheet, error)
	DeleteSheet(ctx context.Context, id string) error
}

// CheatSheetService manages reference sheets teachers attach for students.
type CheatSheetService struct {
	repo      cheatSheetRepository
	files     fileKeeper
	profiles  roleChecker
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCheatSheetService constructs a CheatSheetService.
func NewCheatSheetService(repo cheatSheetRepository, files fileKeeper, profiles roleChecker, validate *validator.Validate, logger *zap.Logger) *CheatSheetService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CheatSheetService{repo: repo, files: files, profiles: profiles, validator: validate, logger: logger}
}

// CreateTopic adds a topic owned by the teacher. Names are unique per teacher.
func (s *CheatSheetService) CreateTopic(ctx context.Context, teacher Actor, req dto.CreateTopicRequest) (*models.CheatSheetTopic, error) {
	if !teacher.Role.CanAssignWork() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only teachers can create topics")
	}
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid topic payload")
	}
	topic := &models.CheatSheetTopic{
		ID:          uuid.NewString(),
		TeacherID:   teacher.ID,
		Name:        req.Name,
		Description: strings.TrimSpace(req.Description),
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.repo.CreateTopic(ctx, topic); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "topic already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create topic")
	}
	return topic, nil
}

// ListTopics returns the teacher's own topics, or for a student the topics
// holding at least one sheet for them.
func (s *CheatSheetService) ListTopics(ctx context.Context, actor Actor) ([]models.CheatSheetTopic, error) {
	var (
		topics []models.CheatSheetTopic
		err    error
	)
	if actor.Role == models.RoleTeacher {
		topics, err = s.repo.ListTopicsByTeacher(ctx, actor.ID)
	} else {
		topics, err = s.repo.ListTopicsForStudent(ctx, actor.ID)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list topics")
	}
	return topics, nil
}

// DeleteTopic removes the topic, its sheets and their files.
func (s *CheatSheetService) DeleteTopic(ctx context.Context, teacherID, topicID string) error {
	if _, err := s.ownedTopic(ctx, teacherID, topicID); err != nil {
		return err
	}
	paths, err := s.repo.DeleteTopic(ctx, topicID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "topic not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete topic")
	}
	for _, p := range paths {
		s.files.Remove(storage.BucketLearningResources, p)
	}
	return nil
}

// Attach uploads a sheet for one student under one of the teacher's topics.
func (s *CheatSheetService) Attach(ctx context.Context, teacher Actor, req dto.AttachCheatSheetRequest, file storage.Upload) (*models.CheatSheet, error) {
	if !teacher.Role.CanAssignWork() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only teachers can attach cheat sheets")
	}
	req.Title = strings.TrimSpace(req.Title)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid cheat sheet payload")
	}
	if _, err := s.ownedTopic(ctx, teacher.ID, req.TopicID); err != nil {
		return nil, err
	}
	if _, err := s.profiles.RequireRole(ctx, req.StudentID, models.RoleStudent); err != nil {
		return nil, err
	}

	key, err := s.files.Put(ctx, storage.BucketLearningResources, "cheatsheets/"+teacher.ID+"/"+req.StudentID, req.Title, file)
	if err != nil {
		return nil, err
	}
	sheet := &models.CheatSheet{
		ID:          uuid.NewString(),
		TeacherID:   teacher.ID,
		StudentID:   req.StudentID,
		TopicID:     req.TopicID,
		Title:       req.Title,
		Description: strings.TrimSpace(req.Description),
		FilePath:    key,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.repo.CreateSheet(ctx, sheet); err != nil {
		s.files.Remove(storage.BucketLearningResources, key)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save cheat sheet")
	}
	return sheet, nil
}

// ListForStudent returns sheets the teacher attached for a student.
func (s *CheatSheetService) ListForStudent(ctx context.Context, teacherID, studentID string) ([]models.CheatSheet, error) {
	sheets, err := s.repo.ListSheets(ctx, studentID, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list cheat sheets")
	}
	out := sheets[:0]
	for _, sh := range sheets {
		if sh.TeacherID == teacherID {
			out = append(out, sh)
		}
	}
	return out, nil
}

// ListMine returns the student's sheets, optionally within one topic.
func (s *CheatSheetService) ListMine(ctx context.Context, studentID, topicID string) ([]models.CheatSheet, error) {
	sheets, err := s.repo.ListSheets(ctx, studentID, topicID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list cheat sheets")
	}
	return sheets, nil
}

// DownloadLink signs a sheet for its teacher or student.
func (s *CheatSheetService) DownloadLink(ctx context.Context, actor Actor, sheetID string) (*models.DownloadLink, error) {
	sheet, err := s.findSheet(ctx, sheetID)
	if err != nil {
		return nil, err
	}
	if sheet.TeacherID != actor.ID && sheet.StudentID != actor.ID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not allowed to view this cheat sheet")
	}
	return s.files.Link(storage.BucketLearningResources, sheet.FilePath)
}

// Delete removes a sheet and its file.
func (s *CheatSheetService) Delete(ctx context.Context, teacherID, sheetID string) error {
	sheet, err := s.findSheet(ctx, sheetID)
	if err != nil {
		return err
	}
	if sheet.TeacherID != teacherID {
		return appErrors.Clone(appErrors.ErrForbidden, "cheat sheet belongs to another teacher")
	}
	if err := s.repo.DeleteSheet(ctx, sheetID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "cheat sheet not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete cheat sheet")
	}
	s.files.Remove(storage.BucketLearningResources, sheet.FilePath)
	return nil
}

func (s *CheatSheetService) ownedTopic(ctx context.Context, teacherID, topicID string) (*models.CheatSheetTopic, error) {
	topic, err := s.repo.FindTopic(ctx, topicID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "topic not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load topic")
	}
	if topic.TeacherID != teacherID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "topic belongs to another teacher")
	}
	return topic, nil
}

func (s *CheatSheetService) findSheet(ctx context.Context, id string) (*models.CheatSheet, error) {
	sheet, err := s.repo.FindSheet(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "cheat sheet not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load cheat sheet")
	}
	return sheet, nil
}
