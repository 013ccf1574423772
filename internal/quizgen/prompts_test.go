package quizgen

import (
	"strings"
	"testing"

	"github.com/studyquest/backend/internal/models"
)

func TestBuildUserPrompt(t *testing.T) {
	prompt := BuildUserPrompt(models.GenerateQuizRequest{
		Title:          "  Cell biology ",
		Content:        "Mitochondria produce ATP.",
		QuestionCount:  8,
		FlashcardCount: 3,
	})

	for _, want := range []string{"TITLE: Cell biology\n", "QUESTION COUNT: 8", "FLASHCARD COUNT: 3", materialMarker + "Mitochondria produce ATP."} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestRequestedCounts(t *testing.T) {
	tests := []struct {
		req            models.GenerateQuizRequest
		wantQuestions  int
		wantFlashcards int
	}{
		{models.GenerateQuizRequest{QuestionCount: 8, FlashcardCount: 3}, 8, 3},
		{models.GenerateQuizRequest{}, DefaultQuestionCount, DefaultFlashcardCount},
		{models.GenerateQuizRequest{QuestionCount: 2}, 2, DefaultFlashcardCount},
	}

	for _, tt := range tests {
		q, f := requestedCounts(BuildUserPrompt(tt.req))
		if q != tt.wantQuestions || f != tt.wantFlashcards {
			t.Errorf("requestedCounts(%+v) = %d, %d, want %d, %d", tt.req, q, f, tt.wantQuestions, tt.wantFlashcards)
		}
	}
}

func TestSystemPromptDescribesFormat(t *testing.T) {
	prompt := SystemPrompt()
	for _, want := range []string{`"questions"`, `"flashcards"`, `"correct_index"`, "exactly 4 choices"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("system prompt missing %q", want)
		}
	}
}
