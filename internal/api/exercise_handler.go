package api

import (
	"net/http"

	"alcyxob/fitness-assessment/internal/domain"

	"github.com/gin-gonic/gin"
)

// ExerciseHandler serves the fixed exercise battery.
type ExerciseHandler struct {
	battery []domain.ExerciseDefinition
}

// NewExerciseHandler creates a new ExerciseHandler.
func NewExerciseHandler() *ExerciseHandler {
	return &ExerciseHandler{battery: domain.Battery()}
}

// ExerciseResponse is the DTO for one battery entry.
type ExerciseResponse struct {
	ID           string `json:"id"`
	Key          string `json:"key"`
	Title        string `json:"title"`
	Instructions string `json:"instructions"`
	TutorialURL  string `json:"tutorialUrl,omitempty"`
	Position     int    `json:"position"`
}

// MapExercisesToResponse converts the battery to response DTOs, keeping order.
func MapExercisesToResponse(exercises []domain.ExerciseDefinition) []ExerciseResponse {
	responses := make([]ExerciseResponse, len(exercises))
	for i, ex := range exercises {
		responses[i] = ExerciseResponse{
			ID:           ex.ID,
			Key:          string(ex.Key),
			Title:        ex.Title,
			Instructions: ex.Instructions,
			TutorialURL:  ex.TutorialURL,
			Position:     i + 1,
		}
	}
	return responses
}

// ListExercises godoc
// @Summary List the exercise battery
// @Description Returns the fixed, ordered battery every assessment walks through.
// @Tags Exercises
// @Produce json
// @Security BearerAuth
// @Success 200 {array} ExerciseResponse "Exercise battery"
// @Failure 401 {object} errorResponse "Unauthorized"
// @Router /exercises [get]
func (h *ExerciseHandler) ListExercises(c *gin.Context) {
	c.JSON(http.StatusOK, MapExercisesToResponse(h.battery))
}
