package quizgen

import (
	"fmt"
	"strings"

	"github.com/studyquest/backend/internal/models"
)

const (
	DefaultQuestionCount  = 5
	DefaultFlashcardCount = 5

	materialMarker = "STUDY MATERIAL:\n"
	questionLine   = "QUESTION COUNT: %d"
	flashcardLine  = "FLASHCARD COUNT: %d"
)

func SystemPrompt() string {
	return `You are an expert tutor who writes study quizzes from a learner's own notes.

RULES
- Use ONLY facts stated in the study material. Do not invent facts.
- Every question has exactly 4 choices and exactly one correct choice.
- Wrong choices must be plausible for someone who skimmed the material, but clearly wrong to someone who read it.
- Spread the correct_index values across 0-3. Do not put every correct answer in the same position.
- Each explanation says why the correct choice is right in one or two sentences.
- Flashcards have a short term or question on the front and a concise answer on the back.
- Questions must cover different parts of the material. Do not ask the same thing twice.

OUTPUT
Return ONLY a JSON object, no text outside it:
{
  "questions": [
    {"question": "...", "choices": ["...", "...", "...", "..."], "correct_index": 0, "explanation": "..."}
  ],
  "flashcards": [
    {"front": "...", "back": "..."}
  ]
}`
}

// BuildUserPrompt embeds the requested counts and the material.
func BuildUserPrompt(req models.GenerateQuizRequest) string {
	questions, flashcards := counts(req)

	var b strings.Builder
	fmt.Fprintf(&b, "TITLE: %s\n", strings.TrimSpace(req.Title))
	fmt.Fprintf(&b, questionLine+"\n", questions)
	fmt.Fprintf(&b, flashcardLine+"\n\n", flashcards)
	b.WriteString(materialMarker)
	b.WriteString(strings.TrimSpace(req.Content))
	return b.String()
}

func counts(req models.GenerateQuizRequest) (int, int) {
	questions, flashcards := req.QuestionCount, req.FlashcardCount
	if questions <= 0 {
		questions = DefaultQuestionCount
	}
	if flashcards <= 0 {
		flashcards = DefaultFlashcardCount
	}
	return questions, flashcards
}

// requestedCounts reads the counts back out of a prompt built by BuildUserPrompt.
func requestedCounts(prompt string) (int, int) {
	questions, flashcards := DefaultQuestionCount, DefaultFlashcardCount
	for _, line := range strings.Split(prompt, "\n") {
		var n int
		if _, err := fmt.Sscanf(line, questionLine, &n); err == nil && n > 0 {
			questions = n
		}
		if _, err := fmt.Sscanf(line, flashcardLine, &n); err == nil && n > 0 {
			flashcards = n
		}
	}
	return questions, flashcards
}
