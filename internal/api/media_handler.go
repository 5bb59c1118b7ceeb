package api

import (
	"net/http"

	"alcyxob/fitness-assessment/internal/domain"
	"alcyxob/fitness-assessment/internal/logger"
	"alcyxob/fitness-assessment/internal/service"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MediaHandler serves the caller's stored media.
type MediaHandler struct {
	mediaService service.MediaService
	maxFileBytes int64
	log          *logger.Logger
}

// NewMediaHandler creates a new MediaHandler.
func NewMediaHandler(mediaService service.MediaService, maxFileBytes int64, log *logger.Logger) *MediaHandler {
	return &MediaHandler{
		mediaService: mediaService,
		maxFileBytes: maxFileBytes,
		log:          log.With("handler", "MediaHandler"),
	}
}

// MediaResponse wraps media lists and single uploads.
type MediaResponse struct {
	Message string `json:"message"`
	Media   any    `json:"media"`
}

// DeleteMediaRequest names one item inside one media document.
type DeleteMediaRequest struct {
	ParentID string `json:"parentId" binding:"required"`
	MediaID  string `json:"mediaId" binding:"required"`
}

// UploadMedia godoc
// @Summary Upload media
// @Description Stores images and videos for the caller, optionally linked to an assessment.
// @Tags Media
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param media formData file true "Image or video files"
// @Param assessmentId formData string false "Related assessment ID"
// @Success 201 {object} MediaResponse "Media uploaded"
// @Failure 400 {object} errorResponse "Invalid input"
// @Failure 401 {object} errorResponse "Unauthorized"
// @Failure 500 {object} errorResponse "Internal Server Error"
// @Router /media/upload [post]
func (h *MediaHandler) UploadMedia(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	form, err := c.MultipartForm()
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid multipart form: "+err.Error())
		return
	}
	files, err := readFormFiles(form.File["media"], h.maxFileBytes)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}

	var assessmentID *primitive.ObjectID
	if raw := c.PostForm("assessmentId"); raw != "" {
		id, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			abortWithError(c, http.StatusBadRequest, "Invalid assessmentId format")
			return
		}
		assessmentID = &id
	}

	media, err := h.mediaService.UploadMedia(c.Request.Context(), userID, files, assessmentID)
	if err != nil {
		respondWithServiceError(c, h.log, "upload_media", err)
		return
	}
	c.JSON(http.StatusCreated, MediaResponse{Message: "Media uploaded successfully", Media: media})
}

// GetMedia godoc
// @Summary Get my media
// @Description Lists the caller's media with freshly signed download URLs.
// @Tags Media
// @Produce json
// @Security BearerAuth
// @Success 200 {object} MediaResponse "Media list"
// @Failure 401 {object} errorResponse "Unauthorized"
// @Failure 404 {object} errorResponse "User not found"
// @Failure 500 {object} errorResponse "Internal Server Error"
// @Router /media/getmedia [get]
func (h *MediaHandler) GetMedia(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	media, err := h.mediaService.GetMedia(c.Request.Context(), userID)
	if err != nil {
		respondWithServiceError(c, h.log, "get_media", err)
		return
	}
	if media == nil {
		media = []domain.Media{}
	}
	c.JSON(http.StatusOK, MediaResponse{Message: "Media fetched successfully", Media: media})
}

// DeleteMedia godoc
// @Summary Delete a media item
// @Description Removes one item and its stored blob from a media document owned by the caller.
// @Tags Media
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body DeleteMediaRequest true "Parent document and item IDs"
// @Success 200 {object} MediaResponse "Media deleted"
// @Failure 400 {object} errorResponse "Invalid input"
// @Failure 404 {object} errorResponse "Media not found"
// @Failure 500 {object} errorResponse "Internal Server Error"
// @Router /media/deletemedia [delete]
func (h *MediaHandler) DeleteMedia(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	var req DeleteMediaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	parentID, err := primitive.ObjectIDFromHex(req.ParentID)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid parentId format")
		return
	}
	itemID, err := primitive.ObjectIDFromHex(req.MediaID)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid mediaId format")
		return
	}

	if err := h.mediaService.DeleteMedia(c.Request.Context(), userID, parentID, itemID); err != nil {
		respondWithServiceError(c, h.log, "delete_media", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Media deleted successfully"})
}
