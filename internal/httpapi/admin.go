package httpapi

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/HendryAvila/divine-quiz/internal/auth"
	"github.com/HendryAvila/divine-quiz/internal/questions"
	"github.com/HendryAvila/divine-quiz/internal/settings"
)

// maxImportBytes caps an uploaded question bank.
const maxImportBytes = 1 << 20

func (h *handler) login(c *gin.Context) {
	var body struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}
	if h.deps.Auth == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": auth.ErrDisabled.Error()})
		return
	}
	token, exp, err := h.deps.Auth.Login(body.Username, body.Password)
	switch {
	case errors.Is(err, auth.ErrDisabled):
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	case err != nil:
		h.deps.Logger.Warn("admin login rejected", "ip", c.ClientIP())
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "expiresAt": exp.UTC()})
}

// ─── Questions ───────────────────────────────────────────────────────────────

func (h *handler) listQuestions(c *gin.Context) {
	c.JSON(http.StatusOK, h.deps.Questions.Questions(c.Request.Context()))
}

func (h *handler) getQuestion(c *gin.Context) {
	q, err := h.deps.Questions.Get(c.Request.Context(), c.Param("qid"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, q)
}

func (h *handler) saveQuestions(c *gin.Context) {
	var list []questions.Question
	if err := c.ShouldBindJSON(&list); err != nil {
		badRequest(c, err)
		return
	}
	verrs, err := h.deps.Questions.Save(c.Request.Context(), list)
	if h.mutationFailed(c, verrs, err) {
		return
	}
	c.JSON(http.StatusOK, h.deps.Questions.Questions(c.Request.Context()))
}

func (h *handler) addQuestion(c *gin.Context) {
	var q questions.Question
	if err := c.ShouldBindJSON(&q); err != nil {
		badRequest(c, err)
		return
	}
	added, verrs, err := h.deps.Questions.Add(c.Request.Context(), q)
	if h.mutationFailed(c, verrs, err) {
		return
	}
	c.JSON(http.StatusCreated, added)
}

func (h *handler) updateQuestion(c *gin.Context) {
	var p questions.Patch
	if err := c.ShouldBindJSON(&p); err != nil {
		badRequest(c, err)
		return
	}
	q, verrs, err := h.deps.Questions.Update(c.Request.Context(), c.Param("qid"), p)
	if h.mutationFailed(c, verrs, err) {
		return
	}
	c.JSON(http.StatusOK, q)
}

func (h *handler) deleteQuestion(c *gin.Context) {
	verrs, err := h.deps.Questions.Delete(c.Request.Context(), c.Param("qid"))
	if h.mutationFailed(c, verrs, err) {
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) toggleQuestion(c *gin.Context) {
	q, verrs, err := h.deps.Questions.ToggleActive(c.Request.Context(), c.Param("qid"))
	if h.mutationFailed(c, verrs, err) {
		return
	}
	c.JSON(http.StatusOK, q)
}

func (h *handler) duplicateQuestion(c *gin.Context) {
	q, verrs, err := h.deps.Questions.Duplicate(c.Request.Context(), c.Param("qid"))
	if h.mutationFailed(c, verrs, err) {
		return
	}
	c.JSON(http.StatusCreated, q)
}

func (h *handler) reorderQuestions(c *gin.Context) {
	var body struct {
		IDs []string `json:"ids" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}
	verrs, err := h.deps.Questions.Reorder(c.Request.Context(), body.IDs)
	if h.mutationFailed(c, verrs, err) {
		return
	}
	c.JSON(http.StatusOK, h.deps.Questions.Questions(c.Request.Context()))
}

func (h *handler) questionStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.deps.Questions.Stats(c.Request.Context()))
}

func (h *handler) validateQuestions(c *gin.Context) {
	verrs := h.deps.Questions.Validate(c.Request.Context())
	if verrs == nil {
		verrs = []questions.ValidationError{}
	}
	c.JSON(http.StatusOK, gin.H{"valid": len(verrs) == 0, "errors": verrs})
}

func (h *handler) exportQuestions(c *gin.Context) {
	data, err := h.deps.Questions.Export(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	name := "divine-quiz-questions-" + time.Now().UTC().Format("2006-01-02") + ".json"
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Data(http.StatusOK, "application/json", data)
}

func (h *handler) importQuestions(c *gin.Context) {
	data, err := io.ReadAll(io.LimitReader(c.Request.Body, maxImportBytes+1))
	if err != nil {
		badRequest(c, err)
		return
	}
	if len(data) > maxImportBytes {
		c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "import too large"})
		return
	}
	ok, verrs, err := h.deps.Questions.Import(c.Request.Context(), data)
	if err != nil {
		h.fail(c, err)
		return
	}
	if len(verrs) > 0 {
		invalid(c, verrs)
		return
	}
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid file format"})
		return
	}
	c.JSON(http.StatusOK, h.deps.Questions.Questions(c.Request.Context()))
}

func (h *handler) restoreQuestions(c *gin.Context) {
	ok, err := h.deps.Questions.Restore(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	if !ok {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "no backup available"})
		return
	}
	c.JSON(http.StatusOK, h.deps.Questions.Questions(c.Request.Context()))
}

// mutationFailed writes the error response for a repository mutation and
// reports whether it did.
func (h *handler) mutationFailed(c *gin.Context, verrs []questions.ValidationError, err error) bool {
	if err != nil {
		h.fail(c, err)
		return true
	}
	if len(verrs) > 0 {
		invalid(c, verrs)
		return true
	}
	return false
}

// ─── Settings ────────────────────────────────────────────────────────────────

func (h *handler) getPixel(c *gin.Context) {
	p, err := h.deps.Settings.Pixel(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *handler) savePixel(c *gin.Context) {
	var p settings.PixelSettings
	if err := c.ShouldBindJSON(&p); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.deps.Settings.SavePixel(c.Request.Context(), p); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *handler) getTransitions(c *gin.Context) {
	all, err := h.deps.Settings.Transitions(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, all)
}

func (h *handler) saveTransitions(c *gin.Context) {
	var in map[string]settings.TransitionSettings
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.deps.Settings.SaveTransitions(c.Request.Context(), in); err != nil {
		h.fail(c, err)
		return
	}
	h.getTransitions(c)
}

func (h *handler) resetTransitions(c *gin.Context) {
	if err := h.deps.Settings.ResetTransitions(c.Request.Context()); err != nil {
		h.fail(c, err)
		return
	}
	h.getTransitions(c)
}

// ─── Analytics ───────────────────────────────────────────────────────────────

func (h *handler) analyticsEnabled(c *gin.Context) bool {
	if h.deps.Analytics == nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "analytics disabled"})
		return false
	}
	return true
}

func (h *handler) analyticsSummary(c *gin.Context) {
	if !h.analyticsEnabled(c) {
		return
	}
	s, err := h.deps.Analytics.Summary(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *handler) analyticsLeads(c *gin.Context) {
	if !h.analyticsEnabled(c) {
		return
	}
	leads, err := h.deps.Analytics.Leads(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, leads)
}

func (h *handler) analyticsExport(c *gin.Context) {
	if !h.analyticsEnabled(c) {
		return
	}
	data, err := h.deps.Analytics.Export(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	name := "divine-quiz-analytics-" + time.Now().UTC().Format("2006-01-02") + ".json"
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Data(http.StatusOK, "application/json", data)
}

func (h *handler) analyticsClear(c *gin.Context) {
	if !h.analyticsEnabled(c) {
		return
	}
	if err := h.deps.Analytics.Clear(c.Request.Context()); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
