package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/HendryAvila/divine-quiz/internal/analytics"
	"github.com/HendryAvila/divine-quiz/internal/auth"
	"github.com/HendryAvila/divine-quiz/internal/funnel"
	"github.com/HendryAvila/divine-quiz/internal/kvstore"
	"github.com/HendryAvila/divine-quiz/internal/observability"
	"github.com/HendryAvila/divine-quiz/internal/questions"
	"github.com/HendryAvila/divine-quiz/internal/session"
	"github.com/HendryAvila/divine-quiz/internal/settings"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	m.Run()
}

const adminPassword = "correct horse"

type fixture struct {
	router    *gin.Engine
	questions *questions.Repository
	settings  *settings.Service
	analytics *analytics.Recorder
}

func newFixture(t *testing.T, opts Options, authenticator *auth.Authenticator) *fixture {
	t.Helper()
	store := kvstore.NewMemoryStore()
	repo := questions.NewRepository(store)
	svc := settings.NewService(store, nil)

	reg := prometheus.NewRegistry()
	metrics, err := observability.NewMetrics("", reg)
	require.NoError(t, err)
	rec := analytics.NewRecorder(store, analytics.WithMetrics(metrics))

	mgr, err := session.NewManager(repo,
		session.WithConfig(session.Config{MaxSessions: 100, TTL: time.Hour}),
		session.WithTransitions(svc),
		session.WithTracker(rec),
		session.WithMetrics(metrics),
	)
	require.NoError(t, err)
	t.Cleanup(mgr.Stop)

	if authenticator == nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.MinCost)
		require.NoError(t, err)
		authenticator = auth.New("admin", string(hash), "test-secret-0123456789", time.Hour)
	}

	r, err := NewRouter(Deps{
		Sessions:  mgr,
		Questions: repo,
		Settings:  svc,
		Analytics: rec,
		Auth:      authenticator,
		Metrics:   metrics,
		Gatherer:  reg,
	}, opts)
	require.NoError(t, err)
	return &fixture{router: r, questions: repo, settings: svc, analytics: rec}
}

func (f *fixture) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	switch b := body.(type) {
	case nil:
		rd = bytes.NewReader(nil)
	case string:
		rd = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *fixture) login(t *testing.T) string {
	t.Helper()
	w := f.do(t, http.MethodPost, "/admin/login", map[string]string{"username": "admin", "password": adminPassword}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var body struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.NotEmpty(t, body.Token)
	return body.Token
}

func decodeView(t *testing.T, w *httptest.ResponseRecorder) session.View {
	t.Helper()
	var v session.View
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func (f *fixture) createSession(t *testing.T) session.View {
	t.Helper()
	w := f.do(t, http.MethodPost, "/api/sessions", nil, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decodeView(t, w)
}

// --- Public ---

func TestHealth(t *testing.T) {
	f := newFixture(t, Options{}, nil)
	w := f.do(t, http.MethodGet, "/healthz", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestComputeCode(t *testing.T) {
	f := newFixture(t, Options{}, nil)

	w := f.do(t, http.MethodGet, "/api/code?day=15&month=6&year=1990&color=blue&favoriteNumber=7", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var got codeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "8-9-7", got.Code)
	assert.Equal(t, [3]int{8, 9, 7}, got.Digits)
	assert.NotEmpty(t, got.Meaning)

	w = f.do(t, http.MethodGet, "/api/code?day=15&month=6&year=1990&color=black&favoriteNumber=7", nil, "")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = f.do(t, http.MethodGet, "/api/code?day=x", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSession_WalkToCodeReveal(t *testing.T) {
	f := newFixture(t, Options{}, nil)
	v := f.createSession(t)
	assert.Equal(t, funnel.StepLanding, v.Step)
	assert.Empty(t, v.PixelEvents, "pixel inactive, events must be withheld")

	base := "/api/sessions/" + v.ID
	for _, tc := range []struct {
		path string
		body any
	}{
		{"/birthdate", map[string]int{"day": 15, "month": 6, "year": 1990}},
		{"/color", map[string]string{"color": "blue"}},
		{"/name", map[string]string{"name": "Maria"}},
		{"/favorite-number", map[string]int{"favoriteNumber": 7}},
	} {
		w := f.do(t, http.MethodPut, base+tc.path, tc.body, "")
		require.Equal(t, http.StatusOK, w.Code, tc.path+": "+w.Body.String())
	}

	for v.Step != funnel.StepCodeReveal {
		w := f.do(t, http.MethodPost, base+"/advance", nil, "")
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		v = decodeView(t, w)
	}
	assert.Equal(t, "8-9-7", v.Profile.DivineCode)
	assert.Equal(t, 8, v.StepNumber)
}

func TestSession_Errors(t *testing.T) {
	f := newFixture(t, Options{}, nil)
	v := f.createSession(t)
	base := "/api/sessions/" + v.ID

	w := f.do(t, http.MethodGet, "/api/sessions/unknown", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(t, http.MethodPut, base+"/birthdate", map[string]int{"day": 40, "month": 1, "year": 1990}, "")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, base+"/advance", nil, "").Code)
	w = f.do(t, http.MethodPost, base+"/advance", nil, "")
	assert.Equal(t, http.StatusConflict, w.Code, "birth date still missing")

	w = f.do(t, http.MethodPost, base+"/answers", map[string]string{"questionId": "q", "value": "v"}, "")
	assert.Equal(t, http.StatusConflict, w.Code, "not in quiz")

	w = f.do(t, http.MethodPost, base+"/answers", "{", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodPost, base+"/conversion", map[string]string{"type": "checkout"}, "")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestSession_PixelEventsWhenActive(t *testing.T) {
	f := newFixture(t, Options{}, nil)
	require.NoError(t, f.settings.SavePixel(context.Background(), settings.PixelSettings{FacebookPixelID: "123456789", IsActive: true}))

	v := f.createSession(t)
	require.Len(t, v.PixelEvents, 2)
	assert.Equal(t, "Lead", v.PixelEvents[0].Name)

	w := f.do(t, http.MethodGet, "/api/settings/pixel", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "123456789")
	assert.Contains(t, w.Body.String(), "headSnippet")
}

func TestSession_AnswerFirstQuestion(t *testing.T) {
	f := newFixture(t, Options{}, nil)
	v := f.createSession(t)
	base := "/api/sessions/" + v.ID
	f.do(t, http.MethodPut, base+"/birthdate", map[string]int{"day": 1, "month": 1, "year": 2000}, "")
	f.do(t, http.MethodPut, base+"/color", map[string]string{"color": "red"}, "")
	f.do(t, http.MethodPut, base+"/name", map[string]string{"name": "Ana"}, "")
	f.do(t, http.MethodPut, base+"/favorite-number", map[string]int{"favoriteNumber": 1}, "")
	for v.Step != funnel.StepQuiz {
		w := f.do(t, http.MethodPost, base+"/advance", nil, "")
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		v = decodeView(t, w)
	}
	require.NotNil(t, v.CurrentQuestion)
	first := *v.CurrentQuestion

	w := f.do(t, http.MethodPost, base+"/answers", map[string]string{"questionId": "other", "value": first.Options[0].Value}, "")
	assert.Equal(t, http.StatusConflict, w.Code, "answer out of turn")

	w = f.do(t, http.MethodPost, base+"/answers", map[string]string{"questionId": first.ID, "value": "not-an-option"}, "")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = f.do(t, http.MethodPost, base+"/answers", map[string]string{"questionId": first.ID, "value": first.Options[0].Value}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	v = decodeView(t, w)
	assert.Equal(t, first.Options[0].Value, v.Profile.Answers[first.ID])
}

func TestRateLimit(t *testing.T) {
	f := newFixture(t, Options{RateLimit: 0.001, RateBurst: 1}, nil)
	f.createSession(t)
	w := f.do(t, http.MethodPost, "/api/sessions", nil, "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t, Options{}, nil)
	f.do(t, http.MethodGet, "/healthz", nil, "")
	w := f.do(t, http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `divinequiz_http_requests_total{method="GET",route="/healthz",status="200"}`)
}

// --- Admin ---

func TestAdmin_RequiresToken(t *testing.T) {
	f := newFixture(t, Options{}, nil)
	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodGet, "/admin/questions", nil, "").Code)
	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodGet, "/admin/questions", nil, "bogus").Code)

	w := f.do(t, http.MethodPost, "/admin/login", map[string]string{"username": "admin", "password": "nope"}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdmin_DisabledWithoutPassword(t *testing.T) {
	f := newFixture(t, Options{}, auth.New("admin", "", "", time.Hour))
	w := f.do(t, http.MethodPost, "/admin/login", map[string]string{"username": "admin", "password": "x"}, "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, http.StatusServiceUnavailable, f.do(t, http.MethodGet, "/admin/questions", nil, "x").Code)
}

func TestAdmin_Questions(t *testing.T) {
	f := newFixture(t, Options{}, nil)
	token := f.login(t)

	w := f.do(t, http.MethodGet, "/admin/questions", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	var list []questions.Question
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 8)

	w = f.do(t, http.MethodPost, "/admin/questions", map[string]any{"type": "positive", "question": ""}, token)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), `"errors"`)

	id := list[0].ID
	w = f.do(t, http.MethodPost, "/admin/questions/"+id+"/duplicate", nil, token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var dup questions.Question
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &dup))
	assert.True(t, strings.HasSuffix(dup.Question, questions.DuplicateSuffix))

	w = f.do(t, http.MethodPost, "/admin/questions/"+dup.ID+"/toggle", nil, token)
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodDelete, "/admin/questions/"+dup.ID, nil, token)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = f.do(t, http.MethodGet, "/admin/questions/"+dup.ID, nil, token)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(t, http.MethodPut, "/admin/questions/order", map[string][]string{"ids": {id}}, token)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, "partial order")

	w = f.do(t, http.MethodGet, "/admin/questions/stats", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"totalQuestions":8`)

	w = f.do(t, http.MethodGet, "/admin/questions/validate", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"valid":true`)
}

func TestAdmin_SaveQuestionsRejectsInvalidQuestion(t *testing.T) {
	f := newFixture(t, Options{}, nil)
	token := f.login(t)

	w := f.do(t, http.MethodGet, "/admin/questions", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	var list []questions.Question
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	list[0].Options = list[0].Options[:1]

	w = f.do(t, http.MethodPut, "/admin/questions", list, token)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "questions[0].options")

	w = f.do(t, http.MethodGet, "/admin/questions/validate", nil, token)
	assert.Contains(t, w.Body.String(), `"valid":true`)
}

func TestAdmin_ExportImportRestore(t *testing.T) {
	f := newFixture(t, Options{}, nil)
	token := f.login(t)

	w := f.do(t, http.MethodGet, "/admin/questions/export", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "divine-quiz-questions-")
	exported := w.Body.String()

	w = f.do(t, http.MethodPost, "/admin/questions/import", "not json", token)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = f.do(t, http.MethodPost, "/admin/questions/import", exported, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = f.do(t, http.MethodPost, "/admin/questions/restore", nil, token)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestAdmin_Settings(t *testing.T) {
	f := newFixture(t, Options{}, nil)
	token := f.login(t)

	w := f.do(t, http.MethodPut, "/admin/settings/pixel", map[string]any{"facebookPixelId": "abc", "isActive": true}, token)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = f.do(t, http.MethodPut, "/admin/settings/pixel", map[string]any{"facebookPixelId": "1234567", "isActive": true}, token)
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodPut, "/admin/settings/transitions", map[string]any{"sideways": map[string]any{"buttonText": "x"}}, token)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = f.do(t, http.MethodPut, "/admin/settings/transitions", map[string]any{
		settings.KeyPositiveNeutral: map[string]any{"autoRedirect": true, "redirectDelay": 4, "buttonText": "Seguir", "title": "T"},
	}, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "Seguir")

	w = f.do(t, http.MethodDelete, "/admin/settings/transitions", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "Seguir")
}

func TestAdmin_Analytics(t *testing.T) {
	f := newFixture(t, Options{}, nil)
	token := f.login(t)
	f.createSession(t)
	f.createSession(t)

	w := f.do(t, http.MethodGet, "/admin/analytics", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	var s analytics.Summary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &s))
	assert.Equal(t, 2, s.TotalLeads)

	w = f.do(t, http.MethodGet, "/admin/analytics/export", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "leadData")

	w = f.do(t, http.MethodDelete, "/admin/analytics", nil, token)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = f.do(t, http.MethodGet, "/admin/analytics/leads", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())
}
