package models

// GenerateQuizRequest asks for a quiz built from uploaded study material.
type GenerateQuizRequest struct {
	Title          string `json:"title" validate:"required,max=200"`
	Content        string `json:"content" validate:"required,min=50,max=20000"`
	QuestionCount  int    `json:"question_count" validate:"omitempty,min=1,max=20"`
	FlashcardCount int    `json:"flashcard_count" validate:"omitempty,min=1,max=30"`
}

type GeneratedQuiz struct {
	Title        string         `json:"title"`
	Questions    []QuizQuestion `json:"questions"`
	Flashcards   []Flashcard    `json:"flashcards"`
	Model        string         `json:"model"`
	PromptTokens int            `json:"prompt_tokens"`
	OutputTokens int            `json:"output_tokens"`
}

type QuizQuestion struct {
	ID           string   `json:"id"`
	Question     string   `json:"question" validate:"required,min=10,max=500"`
	Choices      []string `json:"choices" validate:"len=4,dive,required,max=300"`
	CorrectIndex int      `json:"correct_index" validate:"gte=0,lte=3"`
	Explanation  string   `json:"explanation" validate:"required"`
	Quality      string   `json:"quality,omitempty"`
}

type Flashcard struct {
	ID    string `json:"id"`
	Front string `json:"front" validate:"required,max=300"`
	Back  string `json:"back" validate:"required,max=1000"`
}
