package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"opsvoice/internal/chunker"
	"opsvoice/internal/logger"
	"opsvoice/internal/service"
	"opsvoice/internal/session"
	"opsvoice/internal/vectorstore/memory"
)

// keywordEmbedder gives any text containing "hello world" one unit
// vector and everything else an orthogonal one, which makes the
// similarity outcome of each request deterministic.
type keywordEmbedder struct{}

func (keywordEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if strings.Contains(strings.ToLower(text), "hello world") {
			out[i] = []float32{1, 0, 0}
		} else {
			out[i] = []float32{0, 1, 0}
		}
	}
	return out, nil
}

func newTestServer(t *testing.T, adminToken string) *Server {
	t.Helper()
	log := logger.NewNop()
	store := memory.NewStore()
	emb := keywordEmbedder{}
	return New(Config{
		Mode:       "prod",
		AdminToken: adminToken,
		Ingestor:   service.NewIngestionService(chunker.NewHeadingChunker(1200, 40), emb, store, 50, log),
		Retriever:  service.NewRetrievalService(emb, store, log),
		Store:      store,
		Responder:  session.NewTemplateResponder(),
		Session:    session.Config{Patience: 2 * time.Second},
		Log:        log,
	})
}

const sampleManual = "## Start\nHello world. This is enough text to pass the length gate for ingestion testing purposes."

func postIngest(t *testing.T, s *Server, token string, body map[string]any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/manuals", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("X-Admin-Token", token)
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestIngestEndpoint_Success(t *testing.T) {
	s := newTestServer(t, "")

	w := postIngest(t, s, "", map[string]any{"title": "press manual", "markdown": sampleManual, "setActive": true})
	require.Equal(t, http.StatusCreated, w.Code)

	var res struct {
		DocID   string `json:"docId"`
		Version int    `json:"version"`
		Count   int    `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.NotEmpty(t, res.DocID)
	assert.Equal(t, 1, res.Version)
	assert.Equal(t, 1, res.Count)
}

func TestIngestEndpoint_ShortMarkdownIs400(t *testing.T) {
	s := newTestServer(t, "")

	w := postIngest(t, s, "", map[string]any{"title": "press manual", "markdown": "too short", "setActive": true})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIngestEndpoint_MissingMarkdownIs400(t *testing.T) {
	s := newTestServer(t, "")

	w := postIngest(t, s, "", map[string]any{"title": "press manual"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIngestEndpoint_AdminTokenEnforced(t *testing.T) {
	s := newTestServer(t, "sekret")

	w := postIngest(t, s, "", map[string]any{"title": "press manual", "markdown": sampleManual})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = postIngest(t, s, "sekret", map[string]any{"title": "press manual", "markdown": sampleManual})
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestSearchEndpoint_NoMatchIsOKTrue(t *testing.T) {
	s := newTestServer(t, "")
	postIngest(t, s, "", map[string]any{"title": "press manual", "markdown": sampleManual, "setActive": true})

	req := httptest.NewRequest(http.MethodGet, "/api/search?q=zzzz+qqqq+xxxx&min_sim=0.99", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var res struct {
		OK       bool              `json:"ok"`
		Snippets []json.RawMessage `json:"snippets"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.True(t, res.OK)
	assert.Empty(t, res.Snippets)
}

func TestSearchEndpoint_EmptyQueryIs400(t *testing.T) {
	s := newTestServer(t, "")

	req := httptest.NewRequest(http.MethodGet, "/api/search", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSearchEndpoint_FindsIngestedChunk(t *testing.T) {
	s := newTestServer(t, "")
	postIngest(t, s, "", map[string]any{"title": "press manual", "markdown": sampleManual, "setActive": true})

	// Same text embeds to the same vector, so similarity is 1.
	req := httptest.NewRequest(http.MethodGet,
		"/api/search?q="+strings.ReplaceAll("Start Hello world. This is enough text to pass the length gate for ingestion testing purposes.", " ", "+")+"&min_sim=0.2", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var res struct {
		OK       bool `json:"ok"`
		Snippets []struct {
			Heading    string  `json:"heading"`
			Similarity float64 `json:"similarity"`
		} `json:"snippets"`
		Context string `json:"context"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	require.NotEmpty(t, res.Snippets)
	assert.Equal(t, "Start", res.Snippets[0].Heading)
	assert.Contains(t, res.Context, "[1] Start - press manual")
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t, "")

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestWebsocketSession_EndToEnd(t *testing.T) {
	s := newTestServer(t, "")
	postIngest(t, s, "", map[string]any{"title": "press manual", "markdown": sampleManual, "setActive": true})

	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(session.Event{Type: session.EventTurnStart}))
	require.NoError(t, conn.WriteJSON(session.Event{
		Type:       session.EventTurnFinalized,
		Transcript: "Start Hello world. This is enough text to pass the length gate for ingestion testing purposes.",
		IsVoice:    true,
	}))

	var reply string
	deadline := time.Now().Add(3 * time.Second)
	for {
		require.NoError(t, conn.SetReadDeadline(deadline))
		var ev session.Event
		require.NoError(t, conn.ReadJSON(&ev))
		if ev.Type == session.EventResponseTextDelta {
			reply += ev.Delta
		}
		if ev.Type == session.EventResponseDone {
			break
		}
	}
	assert.Contains(t, reply, "Hello world.")
}
