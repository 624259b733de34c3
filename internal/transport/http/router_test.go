package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/infra/memory"
	"live-quiz-service/internal/metrics"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		ID:    "quiz-1",
		Title: "Basics",
		Questions: []domain.Question{
			{Text: "What is 2 + 2?", Kind: domain.KindMCQ, Options: []string{"3", "4", "5"}, Answer: domain.SingleAnswer("4"), TimerSeconds: 30},
			{Text: "Pick the even numbers", Kind: domain.KindSelectAll, Options: []string{"1", "2", "4"}, Answer: domain.SetAnswer("2", "4"), TimerSeconds: 30},
		},
	}
}

type testServer struct {
	service *app.GameService
	tokens  *HostTokens
	router  *gin.Engine
	metrics *metrics.Metrics
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	loader := memory.NewStaticQuizLoader(map[string]domain.Quiz{"quiz-1": sampleQuiz()})
	m := metrics.New()
	sessions := memory.NewSessionStore()
	service := app.NewGameService(
		sessions,
		memory.NewPlayerStore(),
		memory.NewAnswerLedger(sessions),
		memory.NewQuizCache(loader, time.Minute),
		memory.NewBroker(),
		app.WithMetrics(m),
	)
	tokens := NewHostTokens("test-secret", time.Hour)
	return &testServer{
		service: service,
		tokens:  tokens,
		metrics: m,
		router:  NewRouter(service, tokens, Options{PublicURL: "https://quiz.example.com/", Metrics: m}),
	}
}

func (s *testServer) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func (s *testServer) createGame(t *testing.T) createGameResponse {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/games", gin.H{"quizId": "quiz-1"}, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[createGameResponse](t, rec)
}

func TestGameFlowOverHTTP(t *testing.T) {
	s := newTestServer(t)
	game := s.createGame(t)
	assert.Equal(t, domain.PhaseLobby, game.State.Phase)
	assert.Equal(t, "https://quiz.example.com/join/"+game.Code, game.JoinURL)
	base := "/api/games/" + game.Code

	rec := s.do(t, http.MethodPost, base+"/players", gin.H{"name": "Ann", "avatar": "fox"}, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	ann := decode[domain.Player](t, rec)

	rec = s.do(t, http.MethodPost, base+"/players", gin.H{"name": "Ann", "avatar": "fox"}, "")
	assert.Equal(t, http.StatusOK, rec.Code, "rejoin with the same identity")
	assert.Equal(t, ann.ID, decode[domain.Player](t, rec).ID)

	rec = s.do(t, http.MethodPost, base+"/players", gin.H{"name": "Ann", "avatar": "owl"}, "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "name_taken", decode[errorBody](t, rec).Code)

	rec = s.do(t, http.MethodPost, base+"/start", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodPost, base+"/start", nil, game.HostToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	started := decode[domain.GameSession](t, rec)
	assert.Equal(t, domain.PhaseQuestion, started.Phase)
	assert.Equal(t, 0, started.CurrentQuestionIndex)

	rec = s.do(t, http.MethodPost, base+"/answers", gin.H{"playerId": ann.ID, "answer": "4"}, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	first := decode[answerResponse](t, rec)
	assert.True(t, first.IsCorrect)
	assert.False(t, first.AlreadyAnswered)
	assert.Greater(t, first.PointsAwarded, 150)

	rec = s.do(t, http.MethodPost, base+"/answers", gin.H{"playerId": ann.ID, "answer": "5"}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	dup := decode[answerResponse](t, rec)
	assert.True(t, dup.AlreadyAnswered)
	assert.Equal(t, first.PointsAwarded, dup.PointsAwarded)

	rec = s.do(t, http.MethodPost, base+"/reveal", nil, game.HostToken)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.PhaseReveal, decode[domain.GameSession](t, rec).Phase)

	rec = s.do(t, http.MethodPost, base+"/start", nil, game.HostToken)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "invalid_transition", decode[errorBody](t, rec).Code)

	rec = s.do(t, http.MethodGet, base+"/leaderboard", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	lb := decode[domain.Leaderboard](t, rec)
	require.Len(t, lb.Entries, 1)
	assert.Equal(t, first.PointsAwarded, lb.Entries[0].TotalScore)
	assert.Equal(t, 1, lb.Entries[0].Rank)

	rec = s.do(t, http.MethodPost, base+"/advance", gin.H{"fromIndex": 0}, game.HostToken)
	require.Equal(t, http.StatusOK, rec.Code)
	advanced := decode[domain.GameSession](t, rec)
	assert.Equal(t, 1, advanced.CurrentQuestionIndex)

	rec = s.do(t, http.MethodPost, base+"/advance", gin.H{"fromIndex": 0}, game.HostToken)
	require.Equal(t, http.StatusOK, rec.Code, "retrying an advance from a passed question is a no-op")
	assert.Equal(t, advanced.Version, decode[domain.GameSession](t, rec).Version)

	rec = s.do(t, http.MethodPost, base+"/answers", gin.H{"playerId": ann.ID, "answer": "4"}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code, "a single value for a select-all question")
	assert.Equal(t, "invalid_answer", decode[errorBody](t, rec).Code)

	rec = s.do(t, http.MethodPost, base+"/end", nil, game.HostToken)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.PhaseEnded, decode[domain.GameSession](t, rec).Phase)

	rec = s.do(t, http.MethodPost, base+"/players", gin.H{"name": "Late", "avatar": "cat"}, "")
	assert.Equal(t, http.StatusGone, rec.Code)
}

func TestRepeatedAdvanceWithoutIndex(t *testing.T) {
	s := newTestServer(t)
	game := s.createGame(t)
	base := "/api/games/" + game.Code

	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, base+"/start", nil, game.HostToken).Code)
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, base+"/reveal", nil, game.HostToken).Code)

	rec := s.do(t, http.MethodPost, base+"/advance", nil, game.HostToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	advanced := decode[domain.GameSession](t, rec)
	assert.Equal(t, 1, advanced.CurrentQuestionIndex)

	rec = s.do(t, http.MethodPost, base+"/advance", nil, game.HostToken)
	require.Equal(t, http.StatusConflict, rec.Code)
	body := decode[errorBody](t, rec)
	assert.Equal(t, "invalid_transition", body.Code)
	assert.Contains(t, body.Error, "fromIndex")

	state, err := s.service.GetGameState(context.Background(), game.Code)
	require.NoError(t, err)
	assert.Equal(t, advanced.Version, state.Version)
}

func TestPollState(t *testing.T) {
	s := newTestServer(t)
	game := s.createGame(t)
	base := "/api/games/" + game.Code

	rec := s.do(t, http.MethodGet, base+"/state", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	poll := decode[pollResponse](t, rec)
	assert.True(t, poll.Changed)

	rec = s.do(t, http.MethodGet, base+"/state?since=1", nil, "")
	assert.False(t, decode[pollResponse](t, rec).Changed)

	s.do(t, http.MethodPost, base+"/start", nil, game.HostToken)
	rec = s.do(t, http.MethodGet, base+"/state?since=1", nil, "")
	poll = decode[pollResponse](t, rec)
	assert.True(t, poll.Changed)
	assert.Equal(t, int64(2), poll.State.Version)

	rec = s.do(t, http.MethodGet, base+"/state?since=abc", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/games/ZZZZZ/state", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHostTokenIsScopedToGame(t *testing.T) {
	s := newTestServer(t)
	one := s.createGame(t)
	two := s.createGame(t)

	rec := s.do(t, http.MethodPost, "/api/games/"+two.Code+"/start", nil, one.HostToken)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/games/"+two.Code+"/start", nil, "not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	expired := NewHostTokens("test-secret", time.Hour)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	stale, err := expired.Issue(two.Code)
	require.NoError(t, err)
	rec = s.do(t, http.MethodPost, "/api/games/"+two.Code+"/start", nil, stale)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	other := NewHostTokens("other-secret", time.Hour)
	forged, err := other.Issue(two.Code)
	require.NoError(t, err)
	rec = s.do(t, http.MethodPost, "/api/games/"+two.Code+"/start", nil, forged)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestKickLeaveAndDelete(t *testing.T) {
	s := newTestServer(t)
	game := s.createGame(t)
	base := "/api/games/" + game.Code

	ann := decode[domain.Player](t, s.do(t, http.MethodPost, base+"/players", gin.H{"name": "Ann"}, ""))
	bob := decode[domain.Player](t, s.do(t, http.MethodPost, base+"/players", gin.H{"name": "Bob"}, ""))

	rec := s.do(t, http.MethodDelete, base+"/players/"+ann.ID, nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodDelete, base+"/players/"+ann.ID, nil, game.HostToken)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodGet, base+"/players/"+ann.ID+"/resume", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodGet, base+"/players/"+bob.ID+"/resume", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	snap := decode[app.Snapshot](t, rec)
	require.NotNil(t, snap.Player)
	assert.Equal(t, "Bob", snap.Player.Name)

	rec = s.do(t, http.MethodPost, base+"/players/"+bob.ID+"/leave", nil, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodGet, base+"/players", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"players":[]}`, rec.Body.String())

	rec = s.do(t, http.MethodDelete, base, nil, game.HostToken)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = s.do(t, http.MethodGet, base+"/state", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRejectsBadRequests(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodPost, "/api/games", gin.H{}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/games", gin.H{"quizId": "missing"}, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "quiz_not_found", decode[errorBody](t, rec).Code)

	game := s.createGame(t)
	rec = s.do(t, http.MethodPost, "/api/games/"+game.Code+"/players", gin.H{"avatar": "fox"}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/games/"+game.Code+"/answers", gin.H{"playerId": "p"}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestJoinQRCode(t *testing.T) {
	s := newTestServer(t)
	game := s.createGame(t)

	rec := s.do(t, http.MethodGet, "/api/games/"+game.Code+"/qr.png", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")))

	rec = s.do(t, http.MethodGet, "/api/games/ZZZZZ/qr.png", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/healthz", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	s.createGame(t)
	rec = s.do(t, http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "livequiz_http_requests_total")
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{domain.ErrInvalidTransition, http.StatusConflict},
		{domain.ErrNameTaken, http.StatusConflict},
		{domain.ErrNotInGame, http.StatusNotFound},
		{domain.ErrGameEnded, http.StatusGone},
		{domain.StorageError(io.ErrUnexpectedEOF), http.StatusServiceUnavailable},
		{domain.ErrUnauthorized, http.StatusUnauthorized},
		{domain.ErrInvalidAnswer, http.StatusBadRequest},
		{io.EOF, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		got, _ := statusFor(tc.err)
		assert.Equal(t, tc.want, got, tc.err.Error())
	}
}
