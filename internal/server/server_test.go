package server_test

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapcheck/internal/compile"
	"github.com/leapstack-labs/leapcheck/internal/loader"
	"github.com/leapstack-labs/leapcheck/internal/server"
	"github.com/leapstack-labs/leapcheck/internal/state"
	"github.com/leapstack-labs/leapcheck/internal/testutil"
)

func compileDir(dir string, calls *atomic.Int32) server.CompileFunc {
	return func(ctx context.Context) (*compile.Result, error) {
		if calls != nil {
			calls.Add(1)
		}
		p, err := loader.Load(loader.Dirs{ProjectDir: dir, DefaultSchema: "main"})
		if err != nil {
			return nil, err
		}
		return compile.Compile(ctx, p, compile.Options{})
	}
}

func newShopServer(t *testing.T, store *state.Store) (*server.Server, *httptest.Server) {
	t.Helper()
	dir := testutil.WriteProject(t, testutil.ShopProject())
	s := server.New(server.Config{
		Compile: compileDir(dir, nil),
		Store:   store,
		Logger:  testutil.NewTestLogger(t),
	})
	_, err := s.Recompile(context.Background())
	require.NoError(t, err)

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url) //nolint:gosec,noctx // test server URL
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestServer_Routes(t *testing.T) {
	_, ts := newShopServer(t, nil)

	tests := []struct {
		name         string
		path         string
		wantStatus   int
		wantContains []string
		wantMissing  []string
	}{
		{"health", "/healthz", http.StatusOK, []string{`"ok"`}, nil},
		{"diagnostics", "/api/diagnostics", http.StatusOK, []string{`"A052"`, `"stg_orders"`, `"warning"`}, nil},
		{"diagnostics by severity", "/api/diagnostics?severity=error", http.StatusOK, []string{`"diagnostics": []`}, []string{"A052"}},
		{"diagnostics bad severity", "/api/diagnostics?severity=loud", http.StatusBadRequest, []string{"invalid severity"}, nil},
		{"diagnostics selection", "/api/diagnostics?select=fct_revenue", http.StatusOK, []string{"A052"}, nil},
		{"diagnostics unknown selection", "/api/diagnostics?select=nope", http.StatusNotFound, []string{"unknown node"}, nil},
		{"catalog", "/api/catalog", http.StatusOK, []string{`"stg_orders"`, `"fct_revenue"`, `"dollars"`}, nil},
		{"catalog node", "/api/catalog/STG_ORDERS", http.StatusOK, []string{`"node": "stg_orders"`, `"dollars"`}, []string{"revenue"}},
		{"catalog unknown", "/api/catalog/nope", http.StatusNotFound, []string{"unknown node: nope"}, nil},
		{"order", "/api/order", http.StatusOK, []string{`"stg_orders"`, `"levels"`}, nil},
		{"lineage", "/api/lineage/fct_revenue", http.StatusOK, []string{`"edges"`, `"dollars"`}, nil},
		{"lineage unknown", "/api/lineage/nope", http.StatusNotFound, nil, nil},
		{"qualified", "/api/qualified/fct_revenue", http.StatusOK, []string{"staging.stg_orders"}, nil},
		{"runs without store", "/api/runs", http.StatusNotFound, []string{"state store not configured"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := get(t, ts.URL+tt.path)
			assert.Equal(t, tt.wantStatus, status, body)
			for _, want := range tt.wantContains {
				assert.Contains(t, body, want)
			}
			for _, missing := range tt.wantMissing {
				assert.NotContains(t, body, missing)
			}
		})
	}
}

func TestServer_NoResultYet(t *testing.T) {
	s := server.New(server.Config{Compile: compileDir(t.TempDir(), nil)})
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	status, body := get(t, ts.URL+"/api/catalog")
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Contains(t, body, "no compile result available")
}

func TestServer_PostCompile(t *testing.T) {
	var calls atomic.Int32
	dir := testutil.WriteProject(t, testutil.ShopProject())
	s := server.New(server.Config{Compile: compileDir(dir, &calls)})
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/compile", "application/json", nil) //nolint:noctx // test server URL
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var summary compile.Summary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&summary))
	assert.NotEmpty(t, summary.RunID)
	assert.Equal(t, 3, summary.Nodes)
	assert.Equal(t, 1, summary.Warnings)
	assert.False(t, summary.Fatal)
	assert.Equal(t, int32(1), calls.Load())

	res, err := s.Result()
	require.NoError(t, err)
	assert.Equal(t, summary.RunID, res.RunID)
}

func TestServer_CompileError(t *testing.T) {
	s := server.New(server.Config{
		Compile: func(context.Context) (*compile.Result, error) { return nil, errors.New("models dir vanished") },
	})
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/compile", "application/json", nil) //nolint:noctx // test server URL
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	status, body := get(t, ts.URL+"/api/diagnostics")
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Contains(t, body, "models dir vanished")
}

func TestServer_RunsFromStore(t *testing.T) {
	store, err := state.Open(":memory:", nil)
	require.NoError(t, err)
	require.NoError(t, store.Migrate())
	t.Cleanup(func() { _ = store.Close() })

	s, ts := newShopServer(t, store)
	res, err := s.Result()
	require.NoError(t, err)

	status, body := get(t, ts.URL+"/api/runs")
	require.Equal(t, http.StatusOK, status, body)

	var runs []state.Run
	require.NoError(t, json.Unmarshal([]byte(body), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, res.RunID, runs[0].ID)

	status, _ = get(t, ts.URL+"/api/runs?limit=zero")
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestServer_Events(t *testing.T) {
	s, ts := newShopServer(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	lines := make(chan string, 64)
	go func() {
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			lines <- sc.Text()
		}
		close(lines)
	}()

	waitFor := func(runID string) {
		t.Helper()
		deadline := time.After(3 * time.Second)
		for {
			select {
			case line, ok := <-lines:
				require.True(t, ok, "stream closed")
				if strings.Contains(line, runID) {
					return
				}
			case <-deadline:
				t.Fatalf("no event for run %s", runID)
			}
		}
	}

	first, err := s.Result()
	require.NoError(t, err)
	waitFor(first.RunID)

	second, err := s.Recompile(context.Background())
	require.NoError(t, err)
	waitFor(second.RunID)
}

func TestServer_Serve(t *testing.T) {
	dir := testutil.WriteProject(t, testutil.ShopProject())
	s := server.New(server.Config{
		Addr:      "127.0.0.1:0",
		Compile:   compileDir(dir, nil),
		WatchDirs: []string{dir},
		Logger:    testutil.NewTestLogger(t),
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()

	assert.Eventually(t, func() bool {
		_, err := s.Result()
		return err == nil
	}, 3*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestServer_ServeSurvivesFailedFirstCompile(t *testing.T) {
	var calls atomic.Int32
	s := server.New(server.Config{
		Addr: "127.0.0.1:0",
		Compile: func(context.Context) (*compile.Result, error) {
			calls.Add(1)
			return nil, errors.New("models dir vanished")
		},
		Logger: testutil.NewTestLogger(t),
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()

	require.Eventually(t, func() bool { return calls.Load() == 1 }, 3*time.Second, 10*time.Millisecond)
	select {
	case err := <-done:
		t.Fatalf("Serve returned after a failed compile: %v", err)
	case <-time.After(100 * time.Millisecond):
	}

	_, err := s.Result()
	require.EqualError(t, err, "models dir vanished")

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()
	status, body := get(t, ts.URL+"/api/diagnostics")
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Contains(t, body, "models dir vanished")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
