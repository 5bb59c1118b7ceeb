package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"alcyxob/fitness-assessment/internal/analysis"
	"alcyxob/fitness-assessment/internal/domain"
	"alcyxob/fitness-assessment/internal/logger"
	"alcyxob/fitness-assessment/internal/repository"
	"alcyxob/fitness-assessment/internal/storage"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AnalysisEngine is the external service that analyses exercise videos.
type AnalysisEngine interface {
	Analyze(ctx context.Context, req analysis.Request) (*analysis.Result, error)
	FinalResult(ctx context.Context, userID string) (json.RawMessage, error)
	Health(ctx context.Context) (json.RawMessage, error)
}

// File is one uploaded file held in memory.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// PerformOneInput is one exercise submission.
type PerformOneInput struct {
	UserID          primitive.ObjectID
	ExerciseType    string
	Video           File
	ReferenceImages []File
}

// PerformResult is what a successful submission created.
type PerformResult struct {
	Assessment *domain.Assessment `json:"assessment"`
	Media      *domain.Media      `json:"media"`
}

// Options shared by the media-writing services.
type Options struct {
	Folder       string        // storage key prefix
	URLExpiry    time.Duration // lifetime of signed download URLs
	MaxFileBytes int64         // per-file upload limit, 0 for none
}

type AssessmentService interface {
	PerformOne(ctx context.Context, in PerformOneInput) (*PerformResult, error)
	GetFinalResult(ctx context.Context, userID primitive.ObjectID) (json.RawMessage, error)
	GetMyAssessments(ctx context.Context, userID primitive.ObjectID) ([]domain.Assessment, error)
	EngineHealth(ctx context.Context) (json.RawMessage, error)
}

type assessmentService struct {
	userRepo       repository.UserRepository
	mediaRepo      repository.MediaRepository
	assessmentRepo repository.AssessmentRepository
	fileStorage    storage.FileStorage
	engine         AnalysisEngine
	opts           Options
	log            *logger.Logger
}

func NewAssessmentService(
	userRepo repository.UserRepository,
	mediaRepo repository.MediaRepository,
	assessmentRepo repository.AssessmentRepository,
	fileStorage storage.FileStorage,
	engine AnalysisEngine,
	opts Options,
	log *logger.Logger,
) AssessmentService {
	if opts.URLExpiry <= 0 {
		opts.URLExpiry = storage.DefaultPresignedURLExpiry
	}
	return &assessmentService{
		userRepo:       userRepo,
		mediaRepo:      mediaRepo,
		assessmentRepo: assessmentRepo,
		fileStorage:    fileStorage,
		engine:         engine,
		opts:           opts,
		log:            log.With("service", "AssessmentService"),
	}
}

// PerformOne analyses one exercise video and persists the outcome. The steps
// run strictly in order and nothing is written unless the engine succeeded.
// Calling it twice with the same video creates two records.
func (s *assessmentService) PerformOne(ctx context.Context, in PerformOneInput) (*PerformResult, error) {
	// 1. Validate input
	exercise, err := domain.ParseExerciseType(in.ExerciseType)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedExercise, in.ExerciseType)
	}
	if in.UserID == primitive.NilObjectID {
		return nil, fmt.Errorf("%w: user id required", ErrValidationFailed)
	}
	if len(in.Video.Data) == 0 {
		return nil, fmt.Errorf("%w: video file is required", ErrValidationFailed)
	}

	// 2. Resolve biometric context
	user, err := s.userRepo.GetByID(ctx, in.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	// 3. Analyse
	req := analysis.Request{
		UserID:       user.ID.Hex(),
		ExerciseType: exercise,
		HeightCM:     user.HeightCM,
		Video:        analysis.File(in.Video),
	}
	for _, img := range in.ReferenceImages {
		req.ReferenceImages = append(req.ReferenceImages, analysis.File(img))
	}
	started := time.Now()
	result, err := s.engine.Analyze(ctx, req)
	if err != nil {
		s.log.Error("analysis failed", "user_id", user.ID.Hex(), "exercise", exercise, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrAnalysisEngine, err)
	}
	s.log.Info("analysis finished", "user_id", user.ID.Hex(), "exercise", exercise,
		"rep_count", result.RepCount, "took", time.Since(started).String())

	// 4. Store the annotated video. A failure here loses the computed metrics.
	key := storage.NewObjectKey(s.opts.Folder, string(exercise)+".mp4")
	if err := s.fileStorage.PutObject(ctx, key, "video/mp4", result.AnnotatedVideo); err != nil {
		s.log.Error("annotated video upload failed, metrics discarded", "user_id", user.ID.Hex(),
			"exercise", exercise, "rep_count", result.RepCount, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrStorageUpload, err)
	}
	url, err := s.fileStorage.GeneratePresignedDownloadURL(ctx, key, s.opts.URLExpiry)
	if err != nil {
		s.log.Warn("could not sign annotated video URL", "key", key, "error", err)
	}

	// 5. Media first, so an assessment never references missing media.
	media := &domain.Media{
		UserID: user.ID,
		Items: []domain.MediaItem{{
			Title:      string(exercise),
			Type:       domain.MediaTypeVideo,
			StorageKey: key,
			URL:        url,
		}},
	}
	if _, err := s.mediaRepo.Create(ctx, media); err != nil {
		s.log.Error("media write failed", "user_id", user.ID.Hex(), "key", key, "error", err)
		s.deleteBlobs(ctx, key)
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	// 6. Assessment
	assessment := &domain.Assessment{
		UserID:          user.ID,
		ExerciseName:    exercise,
		Verification:    domain.VerificationVerified,
		MediaID:         media.ID,
		RepetitionCount: result.RepCount,
		CreatedAt:       time.Now().UTC(),
	}
	if _, err := s.assessmentRepo.Create(ctx, assessment); err != nil {
		s.log.Error("assessment write failed", "user_id", user.ID.Hex(), "media_id", media.ID.Hex(), "error", err)
		s.deleteMedia(ctx, media.ID)
		s.deleteBlobs(ctx, key)
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	s.log.Info("assessment recorded", "assessment_id", assessment.ID.Hex(), "media_id", media.ID.Hex(),
		"exercise", exercise, "repetitions", assessment.RepetitionCount)
	return &PerformResult{Assessment: assessment, Media: media}, nil
}

// GetFinalResult relays the engine's cross-exercise aggregate unchanged.
func (s *assessmentService) GetFinalResult(ctx context.Context, userID primitive.ObjectID) (json.RawMessage, error) {
	if userID == primitive.NilObjectID {
		return nil, fmt.Errorf("%w: user id required", ErrValidationFailed)
	}
	raw, err := s.engine.FinalResult(ctx, userID.Hex())
	if err != nil {
		s.log.Error("final result request failed", "user_id", userID.Hex(), "error", err)
		return nil, fmt.Errorf("%w: %w", ErrAnalysisEngine, err)
	}
	return raw, nil
}

func (s *assessmentService) GetMyAssessments(ctx context.Context, userID primitive.ObjectID) ([]domain.Assessment, error) {
	if userID == primitive.NilObjectID {
		return nil, fmt.Errorf("%w: user id required", ErrValidationFailed)
	}
	return s.assessmentRepo.GetByUserID(ctx, userID)
}

func (s *assessmentService) EngineHealth(ctx context.Context) (json.RawMessage, error) {
	raw, err := s.engine.Health(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAnalysisEngine, err)
	}
	return raw, nil
}

// deleteBlobs is best-effort cleanup after a failed write.
func (s *assessmentService) deleteBlobs(ctx context.Context, keys ...string) {
	cleanupBlobs(ctx, s.fileStorage, s.log, keys...)
}

func (s *assessmentService) deleteMedia(ctx context.Context, id primitive.ObjectID) {
	ctx = context.WithoutCancel(ctx)
	if err := s.mediaRepo.Delete(ctx, id); err != nil {
		s.log.Error("compensation: media delete failed, orphaned media", "media_id", id.Hex(), "error", err)
	}
}

func cleanupBlobs(ctx context.Context, fs storage.FileStorage, log *logger.Logger, keys ...string) {
	ctx = context.WithoutCancel(ctx)
	for _, key := range keys {
		if err := fs.DeleteObject(ctx, key); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
			log.Error("compensation: blob delete failed, orphaned object", "key", key, "error", err)
		}
	}
}
