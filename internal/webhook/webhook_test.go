package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDispatcher struct {
	calls chan [2]string
}

func newFakeDispatcher() *fakeDispatcher {
	return &fakeDispatcher{calls: make(chan [2]string, 4)}
}

func (f *fakeDispatcher) DispatchTask(ctx context.Context, repo, issueNumber string) {
	f.calls <- [2]string{repo, issueNumber}
}

func TestHandleImplement_TriggersDispatch(t *testing.T) {
	dispatcher := newFakeDispatcher()
	srv := NewServer(Config{Dispatcher: dispatcher, Service: "reflexagentd", Architecture: "single-task-loop"})

	body, err := json.Marshal(Payload{
		Repo: "acme/widgets",
		Issue: struct {
			Number string `json:"number"`
		}{Number: "42"},
		Comment: struct {
			Body string `json:"body"`
		}{Body: TriggerPhrase},
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/implement", bytes.NewReader(body))
	w := httptest.NewRecorder()
	srv.Mux().ServeHTTP(w, req)

	assert.Equal(t, http.StatusAccepted, w.Code)

	select {
	case call := <-dispatcher.calls:
		assert.Equal(t, [2]string{"acme/widgets", "42"}, call)
	case <-time.After(time.Second):
		t.Fatal("expected DispatchTask to be called")
	}
}

func TestHandleImplement_IgnoresOtherComments(t *testing.T) {
	dispatcher := newFakeDispatcher()
	srv := NewServer(Config{Dispatcher: dispatcher})

	body, err := json.Marshal(Payload{
		Repo: "acme/widgets",
		Issue: struct {
			Number string `json:"number"`
		}{Number: "42"},
		Comment: struct {
			Body string `json:"body"`
		}{Body: "looks good to me"},
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/implement", bytes.NewReader(body))
	w := httptest.NewRecorder()
	srv.Mux().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	select {
	case <-dispatcher.calls:
		t.Fatal("did not expect DispatchTask to be called")
	default:
	}
}

func TestHandleImplement_RejectsWrongMethod(t *testing.T) {
	srv := NewServer(Config{})
	req := httptest.NewRequest(http.MethodGet, "/implement", nil)
	w := httptest.NewRecorder()
	srv.Mux().ServeHTTP(w, req)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestHandleHealthz(t *testing.T) {
	srv := NewServer(Config{Service: "reflexagentd", Architecture: "single-task-loop"})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	srv.Mux().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decoded))
	assert.Equal(t, "ok", decoded["status"])
	assert.Equal(t, "reflexagentd", decoded["service"])
}
