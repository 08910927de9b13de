package lesson

import (
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core"
)

// Visibility controls which enrolled students see a lesson.
// It is fixed at creation and is not student-specific.
type Visibility string

const (
	// VisibilityAll lessons are visible to every enrolled student.
	VisibilityAll Visibility = "all"
	// VisibilityClassOnly lessons are visible only to students enrolled in the owning class.
	VisibilityClassOnly Visibility = "class_only"
	// VisibilityComplementary lessons are supplemental content shown in their
	// own panel view regardless of completion state.
	VisibilityComplementary Visibility = "complementary"
)

var AllVisibilities = []Visibility{VisibilityAll, VisibilityClassOnly, VisibilityComplementary}

type Lesson struct {
	ID            string      `json:"id"`
	Title         string      `json:"title"`
	Description   string      `json:"description"`
	VideoRef      string      `json:"video_ref"`
	ScheduledDate time.Time   `json:"scheduled_date"`
	ClassID       null.String `json:"class_id"`
	Visibility    Visibility  `json:"visibility"`
	CreatedAt     time.Time   `json:"created_at"` // UTC
	UpdatedAt     time.Time   `json:"updated_at"` // UTC
}

// NewLesson contains information needed to create a new Lesson.
type NewLesson struct {
	Title         string     `json:"title" validate:"required"`
	Description   string     `json:"description"`
	VideoRef      string     `json:"video_ref" validate:"required"`
	ScheduledDate time.Time  `json:"scheduled_date" validate:"required"`
	ClassID       string     `json:"class_id"`
	Visibility    Visibility `json:"visibility" validate:"required,visibility"`
}

func (nl *NewLesson) Validate(validate *validator.Validate) error {
	nl.Title = core.CleanString(nl.Title)
	nl.Description = core.CleanString(nl.Description)
	nl.VideoRef = core.CleanString(nl.VideoRef)
	nl.ClassID = core.CleanString(nl.ClassID)
	return validate.Struct(nl)
}

var (
	visibilityTag  = "visibility"
	visibilityText = "must be one of: all, class_only, complementary"
)

// InitValidators registers this package's custom validators.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(visibilityTag, visibilityValidation)
	core.RegisterCustomTranslation(validate, translator, visibilityTag, visibilityText)
}

func visibilityValidation(fl validator.FieldLevel) bool {
	v := Visibility(fl.Field().String())
	for _, known := range AllVisibilities {
		if v == known {
			return true
		}
	}
	return false
}
