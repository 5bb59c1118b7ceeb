// internal/domain/exercise.go
package domain

import (
	"fmt"
	"strings"
)

// ExerciseType is the tag the analysis engine understands for an exercise.
type ExerciseType string

const (
	ExercisePushups      ExerciseType = "pushups"
	ExerciseSquats       ExerciseType = "squats"
	ExerciseLongJump     ExerciseType = "long_jump"
	ExerciseVerticalJump ExerciseType = "vertical_jump"
	ExerciseSitups       ExerciseType = "situps"
)

// ParseExerciseType validates a raw exercise tag. Unknown tags are rejected
// instead of being forwarded to the analysis engine.
func ParseExerciseType(raw string) (ExerciseType, error) {
	t := ExerciseType(strings.ToLower(strings.TrimSpace(raw)))
	switch t {
	case ExercisePushups, ExerciseSquats, ExerciseLongJump, ExerciseVerticalJump, ExerciseSitups:
		return t, nil
	}
	return "", fmt.Errorf("unsupported exercise type %q", raw)
}

// ExerciseDefinition is a static, immutable catalog entry of the battery.
type ExerciseDefinition struct {
	ID           string       `json:"id"`
	Key          ExerciseType `json:"key"`
	Title        string       `json:"title"`
	Instructions string       `json:"instructions"`
	TutorialURL  string       `json:"tutorialUrl,omitempty"`
}

var battery = []ExerciseDefinition{
	{
		ID:           "1",
		Key:          ExercisePushups,
		Title:        "Push-ups",
		Instructions: "Perform as many push-ups as you can in the given time.",
		TutorialURL:  "https://www.youtube.com/watch?v=IODxDxX7oi4",
	},
	{
		ID:           "2",
		Key:          ExerciseSquats,
		Title:        "Squats",
		Instructions: "Perform bodyweight squats while maintaining correct form.",
		TutorialURL:  "https://www.youtube.com/watch?v=aclHkVaku9U",
	},
	{
		ID:           "3",
		Key:          ExerciseLongJump,
		Title:        "Long Jump",
		Instructions: "Test your leg power with a standing long jump.",
		TutorialURL:  "https://www.youtube.com/watch?v=u2xWxhIzdYY",
	},
	{
		ID:           "4",
		Key:          ExerciseVerticalJump,
		Title:        "Vertical Jump",
		Instructions: "Measure your vertical jump height for leg power.",
		TutorialURL:  "https://www.youtube.com/watch?v=2H1zjRUINxU",
	},
	{
		ID:           "5",
		Key:          ExerciseSitups,
		Title:        "Sit-ups",
		Instructions: "Perform sit-ups to measure your core strength and endurance.",
		TutorialURL:  "https://www.youtube.com/watch?v=1fbU_MkV7NE",
	},
}

// Battery returns a copy of the fixed, ordered exercise battery.
func Battery() []ExerciseDefinition {
	out := make([]ExerciseDefinition, len(battery))
	copy(out, battery)
	return out
}

// ExerciseByID looks up a catalog entry by its id.
func ExerciseByID(id string) (ExerciseDefinition, bool) {
	for _, ex := range battery {
		if ex.ID == id {
			return ex, true
		}
	}
	return ExerciseDefinition{}, false
}
