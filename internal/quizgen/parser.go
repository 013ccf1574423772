package quizgen

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/studyquest/backend/internal/models"
)

// ParseError reports generated content that cannot be served.
type ParseError struct {
	Errors []string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("generated quiz rejected: %s", strings.Join(e.Errors, "; "))
}

type generatedContent struct {
	Questions  []models.QuizQuestion `json:"questions" validate:"required,min=1,dive"`
	Flashcards []models.Flashcard    `json:"flashcards" validate:"dive"`
}

var contentValidator = validator.New()

// ParseResponse decodes and checks a model response.
func ParseResponse(responseBody string, logger *slog.Logger) (*models.GeneratedQuiz, error) {
	cleaned := stripCodeFences(responseBody)

	var content generatedContent
	if err := json.Unmarshal([]byte(cleaned), &content); err != nil {
		return nil, fmt.Errorf("failed to parse JSON response: %w", err)
	}

	if err := validateContent(&content, logger); err != nil {
		return nil, err
	}

	return &models.GeneratedQuiz{Questions: content.Questions, Flashcards: content.Flashcards}, nil
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```json") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimSpace(s)
	} else if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSpace(s)
	}
	if strings.HasSuffix(s, "```") {
		s = strings.TrimSuffix(s, "```")
		s = strings.TrimSpace(s)
	}
	return s
}

func validateContent(content *generatedContent, logger *slog.Logger) error {
	var errs []string

	if err := contentValidator.Struct(content); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return fmt.Errorf("validate generated quiz: %w", err)
		}
		for _, fe := range fieldErrs {
			errs = append(errs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
		}
	}

	correctIndexCounts := make(map[int]int)
	for i, q := range content.Questions {
		if hasDuplicateChoices(q.Choices) {
			errs = append(errs, fmt.Sprintf("question %d: duplicate choices", i+1))
		}
		correctIndexCounts[q.CorrectIndex]++
	}

	if len(errs) > 0 {
		return &ParseError{Errors: errs}
	}

	// Warn (but don't reject) if correct answers are clustered
	for index, count := range correctIndexCounts {
		if len(content.Questions) >= 4 && count > len(content.Questions)/2 {
			logger.Warn("correct answers clustered", "correct_index", index, "count", count, "questions", len(content.Questions))
		}
	}

	checkTopicDiversity(content.Questions, logger)
	return nil
}

func hasDuplicateChoices(choices []string) bool {
	seen := make(map[string]bool, len(choices))
	for _, c := range choices {
		key := strings.ToLower(strings.TrimSpace(c))
		if seen[key] {
			return true
		}
		seen[key] = true
	}
	return false
}

// checkTopicDiversity warns if any two questions share >60% keyword overlap.
func checkTopicDiversity(questions []models.QuizQuestion, logger *slog.Logger) {
	if len(questions) < 2 {
		return
	}

	tokenSets := make([]map[string]bool, len(questions))
	for i, q := range questions {
		tokenSets[i] = tokenize(q.Question)
	}

	for i := 0; i < len(questions); i++ {
		for j := i + 1; j < len(questions); j++ {
			overlap := jaccardSimilarity(tokenSets[i], tokenSets[j])
			if overlap > 0.60 {
				logger.Warn("questions overlap", "first", i+1, "second", j+1, "overlap_pct", int(overlap*100))
			}
		}
	}
}

func tokenize(s string) map[string]bool {
	tokens := make(map[string]bool)
	for _, word := range strings.Fields(strings.ToLower(s)) {
		word = strings.Trim(word, `.,;:!?()[]{}"'`)
		// Skip very short words (articles, prepositions)
		if len(word) > 3 {
			tokens[word] = true
		}
	}
	return tokens
}

func jaccardSimilarity(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}

	intersection := 0
	for k := range a {
		if b[k] {
			intersection++
		}
	}

	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}

	return float64(intersection) / float64(union)
}
