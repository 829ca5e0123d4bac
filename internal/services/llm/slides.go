package llm

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/ternarybob/handoff/internal/models"
)

// ErrInvalidSlides is returned when a slide response is not an array of
// {title, points[]} objects
var ErrInvalidSlides = errors.New("API returned data in an unexpected format.")

var validate = validator.New()

// wireSlide distinguishes a missing title from an empty one
type wireSlide struct {
	Title  *string  `json:"title" validate:"required"`
	Points []string `json:"points" validate:"required"`
}

// ParseSlides decodes and structurally validates a slide deck
func ParseSlides(raw string) ([]models.Slide, error) {
	var wire []wireSlide
	if err := json.Unmarshal([]byte(StripCodeFence(raw)), &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSlides, err)
	}
	if wire == nil {
		return nil, ErrInvalidSlides
	}

	slides := make([]models.Slide, len(wire))
	for i := range wire {
		if err := validate.Struct(&wire[i]); err != nil {
			return nil, fmt.Errorf("%w: slide %d: %v", ErrInvalidSlides, i+1, err)
		}
		slides[i] = models.Slide{Title: *wire[i].Title, Points: wire[i].Points}
	}
	return slides, nil
}
