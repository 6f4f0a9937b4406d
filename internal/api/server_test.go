package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gatherspace/realtime-service/internal/auth"
	"github.com/gatherspace/realtime-service/internal/chat"
	"github.com/gatherspace/realtime-service/internal/config"
	"github.com/gatherspace/realtime-service/internal/dispatch"
	"github.com/gatherspace/realtime-service/internal/event"
	"github.com/gatherspace/realtime-service/internal/hub"
	"github.com/gatherspace/realtime-service/internal/models"
	"github.com/gatherspace/realtime-service/internal/poll"
	"github.com/gatherspace/realtime-service/internal/queue"
	"github.com/gatherspace/realtime-service/internal/repository"
	"github.com/gatherspace/realtime-service/internal/ws"
)

const testSecret = "test-secret"

type env struct {
	app   *fiber.App
	store *repository.MemoryStore
}

func newEnv(t *testing.T) *env {
	t.Helper()
	cfg := &config.Config{}
	cfg.WS.RateLimitPerSec = 100
	cfg.WS.MaxMessageSizeBytes = 64 * 1024
	cfg.PingInterval = 25 * time.Second
	cfg.WriteDeadline = 10 * time.Second
	cfg.ReadDeadline = 60 * time.Second
	cfg.PollMaxWait = time.Second

	log := zap.NewNop().Sugar()
	store := repository.NewMemoryStore()
	h := hub.New()
	pending := queue.NewPending(100)
	d := dispatch.New(store, h, pending, log)
	svc := chat.NewService(store, store, store, d, log)
	verifier := auth.NewVerifier(testSecret)
	wsSrv := ws.NewServer(h, svc, verifier, nil, cfg, log)
	pollH := poll.NewHandler(svc, pending, hub.NewRegistry(), cfg, log)

	return &env{
		app:   NewServer(cfg, svc, h, wsSrv, pollH, verifier, nil, log),
		store: store,
	}
}

func (e *env) addMember(t *testing.T, conv, user string) {
	t.Helper()
	require.NoError(t, e.store.AddMember(context.Background(), &models.ConversationMember{
		ConversationID: conv,
		UserID:         user,
	}))
}

func token(t *testing.T, userID string) string {
	t.Helper()
	claims := auth.Claims{
		UserUUID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

func (e *env) do(t *testing.T, method, path, tok string, payload any) *http.Response {
	t.Helper()
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, body)
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := e.app.Test(req, 5000)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

type drainResp struct {
	Events []event.Event `json:"events"`
}

func (e *env) drain(t *testing.T, tok string) []event.Event {
	resp := e.do(t, http.MethodGet, "/v1/poll/events", tok, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return decode[drainResp](t, resp).Events
}

func TestAuth_MissingAndInvalidCredential(t *testing.T) {
	e := newEnv(t)

	resp := e.do(t, http.MethodGet, "/v1/poll/events", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = e.do(t, http.MethodGet, "/v1/poll/events", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// no side effects: a later authorized drain sees nothing
	e.addMember(t, "c1", "alice")
	assert.Empty(t, e.drain(t, token(t, "alice")))
}

func TestSend_NonMemberForbiddenNoTrace(t *testing.T) {
	e := newEnv(t)
	e.addMember(t, "c1", "alice")

	resp := e.do(t, http.MethodPost, "/v1/poll/messages", token(t, "mallory"), map[string]string{
		"conversation_id": "c1",
		"content":         "hi",
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	msgs, err := e.store.ListMessages(context.Background(), "c1", 10, time.Time{})
	require.NoError(t, err)
	assert.Empty(t, msgs)
	assert.Empty(t, e.drain(t, token(t, "alice")))
}

func TestJoin_MembershipGate(t *testing.T) {
	e := newEnv(t)
	e.addMember(t, "c1", "alice")

	resp := e.do(t, http.MethodPost, "/v1/poll/join", token(t, "alice"), map[string]string{"conversation_id": "c1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	joined := decode[event.Event](t, resp)
	assert.Equal(t, event.TypeConversationJoined, joined.Type)

	resp = e.do(t, http.MethodPost, "/v1/poll/join", token(t, "mallory"), map[string]string{"conversation_id": "c1"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestEndToEnd_SendDrainReadReceipt(t *testing.T) {
	e := newEnv(t)
	e.addMember(t, "c1", "alice")
	e.addMember(t, "c1", "bob")
	aliceTok := token(t, "alice")
	bobTok := token(t, "bob")

	// alice sends
	resp := e.do(t, http.MethodPost, "/v1/poll/messages", aliceTok, map[string]string{
		"conversation_id": "c1",
		"content":         "hello",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	sent := decode[models.Message](t, resp)
	require.NotEmpty(t, sent.ID)
	require.NotNil(t, sent.Sender)
	assert.Equal(t, "alice", sent.Sender.ID)

	// bob polls and sees message:new
	evs := e.drain(t, bobTok)
	require.Len(t, evs, 1)
	assert.Equal(t, event.TypeMessageNew, evs[0].Type)
	assert.Equal(t, "c1", evs[0].ConversationID)
	var p event.MessageNewPayload
	require.NoError(t, json.Unmarshal(evs[0].Data, &p))
	assert.Equal(t, "hello", p.Content)
	assert.Equal(t, "alice", p.SenderID)
	require.NotNil(t, p.Sender)
	assert.Equal(t, "alice", p.Sender.ID)

	// bob's receipt is delivered until he reads
	receipts, err := e.store.Receipts(context.Background(), sent.ID)
	require.NoError(t, err)
	for _, rc := range receipts {
		if rc.UserID == "bob" {
			assert.Equal(t, models.StatusDelivered, rc.Status)
		}
	}

	// drain emptied the queue
	assert.Empty(t, e.drain(t, bobTok))

	// bob marks read; alice's next drain carries the read notification
	e.drain(t, aliceTok) // clear alice's own message:new copy
	resp = e.do(t, http.MethodPost, "/v1/poll/read", bobTok, map[string]string{"message_id": sent.ID})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	evs = e.drain(t, aliceTok)
	require.Len(t, evs, 1)
	assert.Equal(t, event.TypeMessageRead, evs[0].Type)
	var rp event.MessageReadPayload
	require.NoError(t, json.Unmarshal(evs[0].Data, &rp))
	assert.Equal(t, sent.ID, rp.MessageID)
	assert.Equal(t, "bob", rp.UserID)
}

func TestHistory_Endpoint(t *testing.T) {
	e := newEnv(t)
	e.addMember(t, "c1", "alice")
	e.addMember(t, "c1", "bob")
	aliceTok := token(t, "alice")

	for _, content := range []string{"one", "two"} {
		resp := e.do(t, http.MethodPost, "/v1/poll/messages", aliceTok, map[string]string{
			"conversation_id": "c1",
			"content":         content,
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	resp := e.do(t, http.MethodGet, "/v1/conversations/c1/messages", token(t, "bob"), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[struct {
		Messages []models.Message `json:"messages"`
	}](t, resp)
	require.Len(t, body.Messages, 2)
	assert.Equal(t, "one", body.Messages[0].Content)
	assert.Equal(t, "two", body.Messages[1].Content)

	resp = e.do(t, http.MethodGet, "/v1/conversations/c1/messages", token(t, "mallory"), nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestMarkRead_UnknownMessageIs404(t *testing.T) {
	e := newEnv(t)
	e.addMember(t, "c1", "alice")

	resp := e.do(t, http.MethodPost, "/v1/poll/read", token(t, "alice"), map[string]string{"message_id": "no-such-message"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPresence_RequiresAuth(t *testing.T) {
	e := newEnv(t)
	resp := e.do(t, http.MethodGet, "/v1/presence/alice", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestPresence_FallsBackToHub(t *testing.T) {
	e := newEnv(t)
	resp := e.do(t, http.MethodGet, "/v1/presence/alice", token(t, "bob"), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[map[string]any](t, resp)
	assert.Equal(t, false, body["online"])
}
