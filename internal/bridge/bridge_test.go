package bridge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAPI mimics the aiprep HTTP API.
func fakeAPI(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /predict", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("age") == "" || r.URL.Query().Get("income") == "" {
			http.Error(w, `{"error":"age is required"}`, http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"prediction": 0.42}`))
	})
	mux.HandleFunc("GET /ask", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("question") == "boom" {
			http.Error(w, `{"error":"llm unavailable"}`, http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"answer":  "echo: " + r.URL.Query().Get("question"),
			"sources": []map[string]string{{"source": "a.pdf"}},
		})
	})
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestServer(t *testing.T, base string) *Server {
	t.Helper()
	s, err := NewServer(NewClient(base, "", nil), nil)
	require.NoError(t, err)
	return s
}

func TestNewServer_RequiresClient(t *testing.T) {
	_, err := NewServer(nil, nil)
	assert.Error(t, err)
}

func TestHandlePredict(t *testing.T) {
	s := newTestServer(t, fakeAPI(t).URL)

	_, out, err := s.handlePredict(context.Background(), nil, PredictInput{Age: 30, Income: 50000})
	require.NoError(t, err)
	assert.Equal(t, 0.42, out.Prediction)
}

func TestHandleAsk(t *testing.T) {
	s := newTestServer(t, fakeAPI(t).URL)

	t.Run("forwards the question", func(t *testing.T) {
		_, out, err := s.handleAsk(context.Background(), nil, AskInput{Question: "notice period?"})
		require.NoError(t, err)
		assert.Equal(t, "echo: notice period?", out.Answer)
		assert.Equal(t, []SourceOutput{{Source: "a.pdf"}}, out.Sources)
	})

	t.Run("non-2xx is an error", func(t *testing.T) {
		_, _, err := s.handleAsk(context.Background(), nil, AskInput{Question: "boom"})
		require.Error(t, err)
		var se *StatusError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, http.StatusBadGateway, se.Status)
		assert.Equal(t, "/ask", se.Path)
	})

	t.Run("blank question", func(t *testing.T) {
		_, _, err := s.handleAsk(context.Background(), nil, AskInput{Question: " "})
		assert.Error(t, err)
	})
}

func TestHandleHealth(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		s := newTestServer(t, fakeAPI(t).URL)
		_, out, err := s.handleHealth(context.Background(), nil, HealthInput{})
		require.NoError(t, err)
		assert.True(t, out.OK)
		assert.Equal(t, map[string]any{"status": "ok"}, out.Body)
		assert.Empty(t, out.Error)
	})

	t.Run("non-200 reports body text", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "starting up", http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		_, out, err := newTestServer(t, srv.URL).handleHealth(context.Background(), nil, HealthInput{})
		require.NoError(t, err)
		assert.False(t, out.OK)
		assert.Equal(t, "starting up\n", out.Body)
	})

	t.Run("unreachable never errors", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		base := srv.URL
		srv.Close()

		_, out, err := newTestServer(t, base).handleHealth(context.Background(), nil, HealthInput{})
		require.NoError(t, err)
		assert.False(t, out.OK)
		assert.NotEmpty(t, out.Error)
	})
}

func TestClient_SendsBearerToken(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"prediction": 1}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL+"/", "secret", nil).Predict(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.Equal(t, "Bearer secret", got)
}

func TestClient_PredictQuery(t *testing.T) {
	var age, income string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		age, income = r.URL.Query().Get("age"), r.URL.Query().Get("income")
		_, _ = w.Write([]byte(`{"prediction": 1}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "", nil).Predict(context.Background(), 30.5, 50000)
	require.NoError(t, err)
	assert.Equal(t, "30.5", age)
	assert.Equal(t, "50000", income)
}

// TestServer_OverMCP drives the tools through a real MCP session.
func TestServer_OverMCP(t *testing.T) {
	ctx := context.Background()
	s := newTestServer(t, fakeAPI(t).URL)

	serverT, clientT := mcp.NewInMemoryTransports()
	ss, err := s.server.Connect(ctx, serverT, nil)
	require.NoError(t, err)
	defer ss.Close()

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0"}, nil)
	cs, err := client.Connect(ctx, clientT, nil)
	require.NoError(t, err)
	defer cs.Close()

	tools, err := cs.ListTools(ctx, &mcp.ListToolsParams{})
	require.NoError(t, err)
	var names []string
	for _, tl := range tools.Tools {
		names = append(names, tl.Name)
	}
	assert.ElementsMatch(t, s.Tools(), names)

	res, err := cs.CallTool(ctx, &mcp.CallToolParams{
		Name:      "predict",
		Arguments: map[string]any{"age": 30, "income": 50000},
	})
	require.NoError(t, err)
	assert.False(t, res.IsError)

	res, err = cs.CallTool(ctx, &mcp.CallToolParams{
		Name:      "ask",
		Arguments: map[string]any{"question": "boom"},
	})
	require.NoError(t, err)
	assert.True(t, res.IsError, "non-2xx upstream should surface as a tool error")
}
