package quizgen

import (
	"context"
	"errors"
	"net/http"

	"github.com/studyquest/backend/internal/httputil"
	"github.com/studyquest/backend/internal/logging"
	"github.com/studyquest/backend/internal/models"
)

// QuizGenerator is the part of Generator the handler needs.
type QuizGenerator interface {
	Generate(ctx context.Context, req models.GenerateQuizRequest) (*models.GeneratedQuiz, error)
}

type Handler struct {
	generator QuizGenerator
	validator *httputil.Validator
}

func NewHandler(generator QuizGenerator, validator *httputil.Validator) *Handler {
	return &Handler{generator: generator, validator: validator}
}

func (h *Handler) GenerateQuiz(w http.ResponseWriter, r *http.Request) {
	var req models.GenerateQuizRequest
	if err := h.validator.DecodeAndValidate(w, r, &req); err != nil {
		httputil.WriteRequestError(w, err)
		return
	}

	quiz, err := h.generator.Generate(r.Context(), req)
	if err != nil {
		logging.FromContext(r.Context()).ErrorContext(r.Context(), "quiz generation failed", "error", err)
		var pe *ParseError
		if errors.As(err, &pe) {
			httputil.WriteError(w, http.StatusBadGateway, "Generated quiz failed validation, please retry")
			return
		}
		httputil.WriteError(w, http.StatusBadGateway, "Quiz generation failed")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, quiz)
}
