package browser

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type browserService struct {
	mu       sync.Mutex
	loaded   string
	injected string
	deleted  bool
	served   bool
}

func (b *browserService) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /sessions", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "s1"})
	})
	mux.HandleFunc("POST /sessions/s1/load", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		b.mu.Lock()
		b.loaded = body["url"]
		b.mu.Unlock()
	})
	mux.HandleFunc("POST /sessions/s1/inject", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		b.mu.Lock()
		b.injected = body["script"]
		b.mu.Unlock()
	})
	mux.HandleFunc("GET /sessions/s1/messages", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		first := !b.served
		b.served = true
		b.mu.Unlock()
		if !first {
			<-r.Context().Done()
			return
		}
		_, _ = w.Write([]byte(`[{"type":"READY"},{"type":"BOGUS"},{"type":"TOKEN_EXTRACTED","payload":{"token":"tok"}}]`))
	})
	mux.HandleFunc("DELETE /sessions/s1", func(w http.ResponseWriter, _ *http.Request) {
		b.mu.Lock()
		b.deleted = true
		b.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

func TestRemote_SessionLifecycle(t *testing.T) {
	svc := &browserService{}
	server := httptest.NewServer(svc.handler())
	defer server.Close()

	ctx := context.Background()
	b, err := NewRemote(server.URL+"/").Open(ctx)
	require.NoError(t, err)

	require.NoError(t, b.Load(ctx, "https://portal.example/arrival"))
	require.NoError(t, b.Inject(ctx, "detect()"))

	var got []Message
	timeout := time.After(5 * time.Second)
	for len(got) < 2 {
		select {
		case m := <-b.Messages():
			got = append(got, m)
		case <-timeout:
			t.Fatal("messages not delivered")
		}
	}
	assert.Equal(t, []Message{Ready{}, TokenExtracted{Token: "tok"}}, got, "malformed messages are dropped")

	require.NoError(t, b.Close())
	require.NoError(t, b.Close(), "close is idempotent")

	_, open := <-b.Messages()
	assert.False(t, open)

	svc.mu.Lock()
	defer svc.mu.Unlock()
	assert.Equal(t, "https://portal.example/arrival", svc.loaded)
	assert.Equal(t, "detect()", svc.injected)
	assert.True(t, svc.deleted)
}

func TestRemote_OpenFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "no capacity", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := NewRemote(server.URL).Open(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}
