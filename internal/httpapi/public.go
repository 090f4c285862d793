package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/HendryAvila/divine-quiz/internal/analytics"
	"github.com/HendryAvila/divine-quiz/internal/divinecode"
	"github.com/HendryAvila/divine-quiz/internal/session"
)

type handler struct {
	deps Deps
}

func (h *handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": h.deps.Sessions.Len()})
}

// ─── Code ────────────────────────────────────────────────────────────────────

type codeResponse struct {
	Code    string `json:"code"`
	Meaning string `json:"meaning"`
	Rarity  int    `json:"rarity"`
	Digits  [3]int `json:"digits"`
}

// computeCode derives a code without a session, for previews and tools.
func (h *handler) computeCode(c *gin.Context) {
	var b divinecode.BirthDate
	var fav int
	params := []struct {
		name string
		dst  *int
	}{
		{"day", &b.Day}, {"month", &b.Month}, {"year", &b.Year}, {"favoriteNumber", &fav},
	}
	for _, p := range params {
		n, err := strconv.Atoi(c.Query(p.name))
		if err != nil {
			badRequest(c, fmt.Errorf("%s must be an integer", p.name))
			return
		}
		*p.dst = n
	}
	color, err := divinecode.ParseColor(c.Query("color"))
	if err == nil {
		err = divinecode.ValidateInputs(b, color, fav, time.Now())
	}
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	code := divinecode.ComputeCode(b, color, fav)
	digits, _ := divinecode.Digits(code)
	c.JSON(http.StatusOK, codeResponse{
		Code:    code,
		Meaning: divinecode.CodeMeaning(code),
		Rarity:  divinecode.Rarity(code),
		Digits:  digits,
	})
}

// ─── Public settings ─────────────────────────────────────────────────────────

func (h *handler) publicPixel(c *gin.Context) {
	p, err := h.deps.Settings.Pixel(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"isActive":        p.IsActive,
		"facebookPixelId": p.FacebookPixelID,
		"headSnippet":     p.HeadSnippet(),
	})
}

func (h *handler) publicTransitions(c *gin.Context) {
	all, err := h.deps.Settings.Transitions(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, all)
}

// ─── Sessions ────────────────────────────────────────────────────────────────

// respond writes the session view. Pixel events are dropped unless the
// pixel is active, so the client can forward whatever it receives.
func (h *handler) respond(c *gin.Context, status int, v session.View, err error) {
	if err != nil {
		h.fail(c, err)
		return
	}
	if len(v.PixelEvents) > 0 {
		p, perr := h.deps.Settings.Pixel(c.Request.Context())
		if perr != nil || !p.IsActive {
			v.PixelEvents = nil
		}
	}
	c.JSON(status, v)
}

func (h *handler) createSession(c *gin.Context) {
	v, err := h.deps.Sessions.Create(c.Request.Context(), analytics.LeadInfo{
		UserAgent: c.Request.UserAgent(),
		IP:        c.ClientIP(),
	})
	h.respond(c, http.StatusCreated, v, err)
}

func (h *handler) getSession(c *gin.Context) {
	v, err := h.deps.Sessions.Get(c.Request.Context(), c.Param("id"))
	h.respond(c, http.StatusOK, v, err)
}

func (h *handler) advance(c *gin.Context) {
	v, err := h.deps.Sessions.Advance(c.Request.Context(), c.Param("id"))
	h.respond(c, http.StatusOK, v, err)
}

func (h *handler) setBirthDate(c *gin.Context) {
	var b divinecode.BirthDate
	if err := c.ShouldBindJSON(&b); err != nil {
		badRequest(c, err)
		return
	}
	v, err := h.deps.Sessions.SetBirthDate(c.Request.Context(), c.Param("id"), b)
	h.respond(c, http.StatusOK, v, err)
}

func (h *handler) setName(c *gin.Context) {
	var body struct {
		Name string `json:"name"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}
	v, err := h.deps.Sessions.SetName(c.Request.Context(), c.Param("id"), body.Name)
	h.respond(c, http.StatusOK, v, err)
}

func (h *handler) setColor(c *gin.Context) {
	var body struct {
		Color string `json:"color"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}
	v, err := h.deps.Sessions.SetColor(c.Request.Context(), c.Param("id"), divinecode.Color(body.Color))
	h.respond(c, http.StatusOK, v, err)
}

func (h *handler) setFavoriteNumber(c *gin.Context) {
	var body struct {
		FavoriteNumber int `json:"favoriteNumber"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}
	v, err := h.deps.Sessions.SetFavoriteNumber(c.Request.Context(), c.Param("id"), body.FavoriteNumber)
	h.respond(c, http.StatusOK, v, err)
}

func (h *handler) answer(c *gin.Context) {
	var body struct {
		QuestionID string `json:"questionId" binding:"required"`
		Value      string `json:"value" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}
	v, err := h.deps.Sessions.Answer(c.Request.Context(), c.Param("id"), body.QuestionID, body.Value)
	h.respond(c, http.StatusOK, v, err)
}

func (h *handler) completeBlockTransition(c *gin.Context) {
	v, err := h.deps.Sessions.CompleteBlockTransition(c.Request.Context(), c.Param("id"))
	h.respond(c, http.StatusOK, v, err)
}

func (h *handler) abandon(c *gin.Context) {
	v, err := h.deps.Sessions.Abandon(c.Request.Context(), c.Param("id"))
	h.respond(c, http.StatusOK, v, err)
}

func (h *handler) convert(c *gin.Context) {
	var body struct {
		Type string         `json:"type" binding:"required"`
		Data map[string]any `json:"data"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}
	v, err := h.deps.Sessions.Convert(c.Request.Context(), c.Param("id"), body.Type, body.Data)
	h.respond(c, http.StatusOK, v, err)
}
