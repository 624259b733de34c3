package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"live-quiz-service/internal/domain"
)

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errorStatus = []struct {
	err    error
	status int
	code   string
}{
	{domain.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
	{domain.ErrGameEnded, http.StatusGone, "game_ended"},
	{domain.ErrGameNotFound, http.StatusNotFound, "game_not_found"},
	{domain.ErrNotInGame, http.StatusNotFound, "not_in_game"},
	{domain.ErrQuizNotFound, http.StatusNotFound, "quiz_not_found"},
	{domain.ErrQuizEmpty, http.StatusUnprocessableEntity, "quiz_empty"},
	{domain.ErrInvalidTransition, http.StatusConflict, "invalid_transition"},
	{domain.ErrNameTaken, http.StatusConflict, "name_taken"},
	{domain.ErrNoActiveQuestion, http.StatusConflict, "no_active_question"},
	{domain.ErrStaleQuestion, http.StatusConflict, "stale_question"},
	{domain.ErrAlreadyAnswered, http.StatusConflict, "already_answered"},
	{domain.ErrInvalidQuiz, http.StatusBadRequest, "invalid_quiz"},
	{domain.ErrInvalidPlayer, http.StatusBadRequest, "invalid_player"},
	{domain.ErrInvalidAnswer, http.StatusBadRequest, "invalid_answer"},
	{domain.ErrStorage, http.StatusServiceUnavailable, "storage_unavailable"},
	{domain.ErrVersionConflict, http.StatusServiceUnavailable, "busy"},
	{domain.ErrCodeTaken, http.StatusServiceUnavailable, "busy"},
}

// statusFor maps service errors to HTTP statuses. Unknown errors are 500.
func statusFor(err error) (int, string) {
	for _, e := range errorStatus {
		if errors.Is(err, e.err) {
			return e.status, e.code
		}
	}
	return http.StatusInternalServerError, "internal"
}

func respondError(c *gin.Context, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.JSON(status, errorBody{Error: err.Error(), Code: code})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, errorBody{Error: err.Error(), Code: "bad_request"})
}
