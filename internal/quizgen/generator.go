package quizgen

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/studyquest/backend/internal/config"
	"github.com/studyquest/backend/internal/models"
)

// Generator turns study material into questions and flashcards.
type Generator struct {
	llm    LLMClient
	model  string
	logger *slog.Logger
}

// NewGenerator picks the mock or Anthropic client from configuration.
func NewGenerator(cfg config.GeneratorConfig, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Mock {
		logger.Info("quiz generator using mock data")
		return New(NewMockClient(), "mock", logger)
	}
	logger.Info("quiz generator using Anthropic API", "model", cfg.Model)
	return New(NewAPIClient(cfg.APIKey, cfg.Model, cfg.MaxRetries, logger), cfg.Model, logger)
}

func New(llm LLMClient, model string, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{llm: llm, model: model, logger: logger}
}

func (g *Generator) Generate(ctx context.Context, req models.GenerateQuizRequest) (*models.GeneratedQuiz, error) {
	resp, err := g.llm.Generate(ctx, SystemPrompt(), BuildUserPrompt(req))
	if err != nil {
		return nil, fmt.Errorf("generate quiz: %w", err)
	}

	quiz, err := ParseResponse(resp.Content, g.logger)
	if err != nil {
		return nil, fmt.Errorf("parse quiz response: %w", err)
	}

	wantQuestions, wantFlashcards := counts(req)
	material := tokenize(req.Content)

	kept := make([]models.QuizQuestion, 0, len(quiz.Questions))
	for i, q := range quiz.Questions {
		q.Quality = ClassifyQuality(ComputeQualityScore(ComputeStructuralScore(q, material)))
		if q.Quality == QualityReject {
			g.logger.WarnContext(ctx, "dropping low quality question", "index", i+1)
			continue
		}
		q.ID = uuid.NewString()
		kept = append(kept, q)
		if len(kept) == wantQuestions {
			break
		}
	}
	if len(kept) == 0 {
		return nil, &ParseError{Errors: []string{"all questions failed quality checks"}}
	}

	if len(quiz.Flashcards) > wantFlashcards {
		quiz.Flashcards = quiz.Flashcards[:wantFlashcards]
	}
	if quiz.Flashcards == nil {
		quiz.Flashcards = []models.Flashcard{}
	}
	for i := range quiz.Flashcards {
		quiz.Flashcards[i].ID = uuid.NewString()
	}

	quiz.Title = strings.TrimSpace(req.Title)
	quiz.Questions = kept
	quiz.Model = g.model
	quiz.PromptTokens = resp.PromptTokens
	quiz.OutputTokens = resp.OutputTokens

	g.logger.InfoContext(ctx, "quiz generated",
		"model", g.model,
		"questions", len(quiz.Questions),
		"flashcards", len(quiz.Flashcards),
		"prompt_tokens", resp.PromptTokens,
		"output_tokens", resp.OutputTokens,
	)
	return quiz, nil
}
