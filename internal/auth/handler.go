package auth

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	"github.com/studyquest/backend/internal/database"
	"github.com/studyquest/backend/internal/httputil"
	"github.com/studyquest/backend/internal/logging"
	"github.com/studyquest/backend/internal/middleware"
	"github.com/studyquest/backend/internal/models"
)

// ProgressInitializer creates the progression record of a new account.
type ProgressInitializer interface {
	InitializeProgress(ctx context.Context, userID int64) error
}

type Handler struct {
	db        *sqlx.DB
	sb        squirrel.StatementBuilderType
	tokens    *middleware.Tokens
	validator *httputil.Validator
	progress  ProgressInitializer
}

func NewHandler(db *sqlx.DB, tokens *middleware.Tokens, validator *httputil.Validator, progress ProgressInitializer) *Handler {
	return &Handler{
		db:        db,
		sb:        database.Builder(db),
		tokens:    tokens,
		validator: validator,
		progress:  progress,
	}
}

var userColumns = []string{"id", "email", "name", "username", "created_at", "updated_at"}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := h.validator.DecodeAndValidate(w, r, &req); err != nil {
		httputil.WriteRequestError(w, err)
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	req.Name = strings.TrimSpace(req.Name)

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	user, err := h.createUser(r.Context(), req, string(hashedPassword))
	if err != nil {
		if database.IsUniqueViolation(err, "email") {
			httputil.WriteError(w, http.StatusConflict, "An account with this email already exists")
			return
		}
		logging.FromContext(r.Context()).ErrorContext(r.Context(), "create account failed", "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "Failed to create account")
		return
	}

	// The account is already committed; progress is created on first use if this fails.
	if err := h.progress.InitializeProgress(r.Context(), user.ID); err != nil {
		logging.FromContext(r.Context()).WarnContext(r.Context(), "initialize progress failed", "user_id", user.ID, "error", err)
	}

	token, err := h.tokens.Issue(user.ID)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, models.AuthResponse{Token: token, User: user})
}

// createUser inserts the account, regenerating the username on collisions.
func (h *Handler) createUser(ctx context.Context, req models.RegisterRequest, hashedPassword string) (models.User, error) {
	var (
		user models.User
		err  error
	)
	username := database.GenerateUsername(req.Name)
	for attempt := 0; attempt < 5; attempt++ {
		now := time.Now().UTC()
		query, args, buildErr := h.sb.Insert("users").
			Columns("email", "name", "username", "password", "created_at", "updated_at").
			Values(req.Email, req.Name, username, hashedPassword, now, now).
			Suffix("RETURNING " + strings.Join(userColumns, ", ")).
			ToSql()
		if buildErr != nil {
			return user, buildErr
		}

		err = h.db.GetContext(ctx, &user, query, args...)
		if err == nil {
			return user, nil
		}
		if database.IsUniqueViolation(err, "username") {
			username = database.GenerateUsername(req.Name)
			continue
		}
		return user, err
	}
	return user, err
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := h.validator.DecodeAndValidate(w, r, &req); err != nil {
		httputil.WriteRequestError(w, err)
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))

	query, args, err := h.sb.Select(append(userColumns, "password")...).
		From("users").
		Where(squirrel.Eq{"email": req.Email}).
		ToSql()
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	var user models.User
	err = h.db.GetContext(r.Context(), &user, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		httputil.WriteError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	if err != nil {
		logging.FromContext(r.Context()).ErrorContext(r.Context(), "load account failed", "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		httputil.WriteError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	token, err := h.tokens.Issue(user.ID)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, models.AuthResponse{Token: token, User: user})
}

func (h *Handler) GetCurrentUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFrom(r.Context())
	if !ok {
		httputil.WriteError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	query, args, err := h.sb.Select(userColumns...).
		From("users").
		Where(squirrel.Eq{"id": userID}).
		ToSql()
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	var user models.User
	if err := h.db.GetContext(r.Context(), &user, query, args...); err != nil {
		httputil.WriteError(w, http.StatusNotFound, "User not found")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, user)
}
