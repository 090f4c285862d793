package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/HendryAvila/divine-quiz/internal/analytics"
	"github.com/HendryAvila/divine-quiz/internal/funnel"
	"github.com/HendryAvila/divine-quiz/internal/questions"
	"github.com/HendryAvila/divine-quiz/internal/session"
	"github.com/HendryAvila/divine-quiz/internal/settings"
)

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrSessionNotFound),
		errors.Is(err, questions.ErrQuestionNotFound),
		errors.Is(err, analytics.ErrLeadNotFound):
		return http.StatusNotFound
	case errors.Is(err, funnel.ErrInvalidInput),
		errors.Is(err, funnel.ErrUnknownQuestion),
		errors.Is(err, funnel.ErrUnknownOption),
		errors.Is(err, questions.ErrInvalidOrder),
		errors.Is(err, settings.ErrInvalidPixelID),
		errors.Is(err, settings.ErrInvalidTransition),
		errors.Is(err, settings.ErrUnknownTransition):
		return http.StatusUnprocessableEntity
	case errors.Is(err, funnel.ErrMissingInput),
		errors.Is(err, funnel.ErrProfileLocked),
		errors.Is(err, funnel.ErrTerminalStep),
		errors.Is(err, funnel.ErrBlockTransitionPending),
		errors.Is(err, funnel.ErrNotInQuiz),
		errors.Is(err, funnel.ErrNotInBlockTransition),
		errors.Is(err, funnel.ErrQuizInProgress),
		errors.Is(err, funnel.ErrNoNextQuestion),
		errors.Is(err, funnel.ErrAnswerOutOfTurn),
		errors.Is(err, session.ErrNotAtOffer):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// fail writes {"error": msg}. Internal errors are logged and not echoed.
func (h *handler) fail(c *gin.Context, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.deps.Logger.Error("request failed", "path", route(c), "error", err)
		msg = "internal error"
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

// invalid writes 422 with the validation list.
func invalid(c *gin.Context, errs []questions.ValidationError) {
	c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"errors": errs})
}
