package validation

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/studygenius/studygenius/internal/models"
)

var (
	// Validate is a shared validator instance
	Validate *validator.Validate
)

func init() {
	Validate = validator.New()

	// Register custom validators for enums
	// These should never fail in normal operation, but panic loudly if they do
	if err := Validate.RegisterValidation("app_mode", validateMode); err != nil {
		panic(fmt.Sprintf("failed to register app_mode validator: %v", err))
	}
	if err := Validate.RegisterValidation("summary_length", validateSummaryLength); err != nil {
		panic(fmt.Sprintf("failed to register summary_length validator: %v", err))
	}
	if err := Validate.RegisterValidation("language", validateLanguage); err != nil {
		panic(fmt.Sprintf("failed to register language validator: %v", err))
	}
}

// validateMode validates that a string is a member of the closed Mode set
func validateMode(fl validator.FieldLevel) bool {
	return models.Mode(fl.Field().String()).IsValid()
}

// validateSummaryLength validates that a string is a known summary variant
func validateSummaryLength(fl validator.FieldLevel) bool {
	return models.SummaryLength(fl.Field().String()).IsValid()
}

// validateLanguage validates that a string is a supported output language
func validateLanguage(fl validator.FieldLevel) bool {
	return models.Language(fl.Field().String()).IsValid()
}

// SanitizeText trims whitespace and strips control characters from user input
func SanitizeText(text string) string {
	text = strings.TrimSpace(text)

	var sanitized strings.Builder
	for _, r := range text {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			continue
		}
		sanitized.WriteRune(r)
	}

	return sanitized.String()
}

// ValidateQuizQuestion checks a decoded quiz item beyond struct tags: the
// correct answer index must address one of the options.
func ValidateQuizQuestion(q *models.QuizQuestion) error {
	if err := Validate.Struct(q); err != nil {
		return err
	}
	if q.CorrectAnswerIndex < 0 || q.CorrectAnswerIndex >= len(q.Options) {
		return fmt.Errorf("correctAnswerIndex %d out of range [0, %d)", q.CorrectAnswerIndex, len(q.Options))
	}
	return nil
}
