package api

import (
	"context"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"alcyxob/fitness-assessment/internal/logger"
	"alcyxob/fitness-assessment/internal/service"

	"github.com/gin-gonic/gin"
)

// AssessmentHandler serves the exercise submission and result endpoints.
type AssessmentHandler struct {
	assessmentService service.AssessmentService
	maxFileBytes      int64
	log               *logger.Logger
}

// NewAssessmentHandler creates a new AssessmentHandler.
func NewAssessmentHandler(assessmentService service.AssessmentService, maxFileBytes int64, log *logger.Logger) *AssessmentHandler {
	return &AssessmentHandler{
		assessmentService: assessmentService,
		maxFileBytes:      maxFileBytes,
		log:               log.With("handler", "AssessmentHandler"),
	}
}

// PerformOne godoc
// @Summary Analyse one exercise
// @Description Uploads one exercise video (plus optional reference images), runs it through the analysis engine and records the result.
// @Tags Assessment
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param exercise_type formData string true "pushups, squats, long_jump, vertical_jump or situps"
// @Param file formData file true "Exercise video and optional reference images"
// @Success 201 {object} service.PerformResult "Assessment recorded"
// @Failure 400 {object} errorResponse "Invalid input"
// @Failure 401 {object} errorResponse "Unauthorized"
// @Failure 404 {object} errorResponse "User not found"
// @Failure 502 {object} errorResponse "Analysis engine failed"
// @Failure 500 {object} errorResponse "Internal Server Error"
// @Router /assessment/perform_one [post]
func (h *AssessmentHandler) PerformOne(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid multipart form: "+err.Error())
		return
	}
	files, err := readFormFiles(form.File["file"], h.maxFileBytes)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}

	in := service.PerformOneInput{
		UserID:       userID,
		ExerciseType: c.PostForm("exercise_type"),
	}
	for _, f := range files {
		switch {
		case strings.HasPrefix(f.ContentType, "video/"):
			if in.Video.Data != nil {
				abortWithError(c, http.StatusBadRequest, "Only one video file is allowed")
				return
			}
			in.Video = f
		case strings.HasPrefix(f.ContentType, "image/"):
			in.ReferenceImages = append(in.ReferenceImages, f)
		default:
			abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Unsupported file type %q", f.ContentType))
			return
		}
	}
	if in.Video.Data == nil {
		abortWithError(c, http.StatusBadRequest, "Exercise video is required")
		return
	}

	// The chain runs to completion even if the client goes away.
	ctx := context.WithoutCancel(c.Request.Context())
	result, err := h.assessmentService.PerformOne(ctx, in)
	if err != nil {
		respondWithServiceError(c, h.log, "perform_one", err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

// GetFinalResult godoc
// @Summary Get the comprehensive result
// @Description Relays the analysis engine's cross-exercise result for the caller unchanged.
// @Tags Assessment
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object "Engine result"
// @Failure 401 {object} errorResponse "Unauthorized"
// @Failure 502 {object} errorResponse "Analysis engine failed"
// @Router /assessment/get_final_result [post]
func (h *AssessmentHandler) GetFinalResult(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	raw, err := h.assessmentService.GetFinalResult(context.WithoutCancel(c.Request.Context()), userID)
	if err != nil {
		respondWithServiceError(c, h.log, "get_final_result", err)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", raw)
}

// GetMyAssessments godoc
// @Summary List my assessments
// @Description Returns the caller's assessment records, newest first.
// @Tags Assessment
// @Produce json
// @Security BearerAuth
// @Success 200 {array} domain.Assessment "Assessment records"
// @Failure 401 {object} errorResponse "Unauthorized"
// @Failure 500 {object} errorResponse "Internal Server Error"
// @Router /assessment/records [get]
func (h *AssessmentHandler) GetMyAssessments(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	records, err := h.assessmentService.GetMyAssessments(c.Request.Context(), userID)
	if err != nil {
		respondWithServiceError(c, h.log, "records", err)
		return
	}
	c.JSON(http.StatusOK, records)
}

// EngineHealth godoc
// @Summary Analysis engine health
// @Tags Assessment
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object "Engine health"
// @Failure 502 {object} errorResponse "Analysis engine unreachable"
// @Router /assessment/engine/health [get]
func (h *AssessmentHandler) EngineHealth(c *gin.Context) {
	raw, err := h.assessmentService.EngineHealth(c.Request.Context())
	if err != nil {
		respondWithServiceError(c, h.log, "engine_health", err)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", raw)
}

// readFormFiles loads uploaded parts into memory, rejecting any part larger
// than maxBytes (0 means no limit).
func readFormFiles(headers []*multipart.FileHeader, maxBytes int64) ([]service.File, error) {
	files := make([]service.File, 0, len(headers))
	for _, fh := range headers {
		if maxBytes > 0 && fh.Size > maxBytes {
			return nil, fmt.Errorf("file %q exceeds the %d MB limit", fh.Filename, maxBytes>>20)
		}
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("could not open %q: %w", fh.Filename, err)
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("could not read %q: %w", fh.Filename, err)
		}
		files = append(files, service.File{
			Name:        fh.Filename,
			ContentType: partContentType(fh),
			Data:        data,
		})
	}
	return files, nil
}

// mime's builtin table has no video types.
var videoExtTypes = map[string]string{
	".mp4": "video/mp4",
	".mov": "video/quicktime",
	".mkv": "video/x-matroska",
	".avi": "video/avi",
}

// partContentType falls back to the file extension when the client sent no
// useful part type.
func partContentType(fh *multipart.FileHeader) string {
	ct := fh.Header.Get("Content-Type")
	if ct != "" && ct != "application/octet-stream" {
		return ct
	}
	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if byExt, ok := videoExtTypes[ext]; ok {
		return byExt
	}
	if byExt := mime.TypeByExtension(ext); byExt != "" {
		return byExt
	}
	return ct
}
