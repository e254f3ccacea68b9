package es

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/auth_service/internal/events"
)

type fakeCluster struct {
	mu     sync.Mutex
	status int
	paths  []string
	bodies []string
}

func (f *fakeCluster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.paths = append(f.paths, r.Method+" "+r.URL.Path)
	f.bodies = append(f.bodies, string(b))
	status := f.status
	f.mu.Unlock()

	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"result":"created","version":{"number":"9.0.0"}}`))
}

func newIndexer(t *testing.T, f *fakeCluster) *AuditIndexer {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	client, err := NewClient(Config{URL: srv.URL})
	require.NoError(t, err)
	return NewAuditIndexer(client, "auth-audit", nil)
}

func TestAuditIndexer_IndexesByEventID(t *testing.T) {
	f := &fakeCluster{status: http.StatusCreated}
	idx := newIndexer(t, f)

	e := events.New(events.LoginFailed, "", "a@x.io").With("reason", "invalid_credentials")
	require.NoError(t, idx.Publish(context.Background(), e))

	require.Len(t, f.paths, 1)
	assert.Equal(t, "PUT /auth-audit/_doc/"+e.ID, f.paths[0])

	var doc events.Event
	require.NoError(t, json.Unmarshal([]byte(f.bodies[0]), &doc))
	assert.Equal(t, events.LoginFailed, doc.Type)
	assert.Equal(t, "invalid_credentials", doc.Attrs["reason"])
}

func TestAuditIndexer_ErrorStatus(t *testing.T) {
	f := &fakeCluster{status: http.StatusBadRequest}
	idx := newIndexer(t, f)

	err := idx.Publish(context.Background(), events.New(events.LoggedOut, "u", ""))
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "400"))
}

func TestPing(t *testing.T) {
	f := &fakeCluster{}
	srv := httptest.NewServer(f)
	defer srv.Close()

	client, err := NewClient(Config{URL: srv.URL})
	require.NoError(t, err)
	require.NoError(t, Ping(context.Background(), client))
}
