package executor

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"github.com/tidwall/gjson"

	"github.com/arena2api/arena2api/internal/config"
	"github.com/arena2api/arena2api/internal/profile"
	"github.com/arena2api/arena2api/internal/translator/arena"
)

func newTestExecutor(t *testing.T, upstream *httptest.Server) *Executor {
	t.Helper()
	cfg := config.Default()
	cfg.Upstream.BaseURL = upstream.URL
	exec, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return exec
}

func testCredentials() profile.Credentials {
	return profile.Credentials{
		Cookies:   map[string]string{"b": "2", "a": "1"},
		AuthToken: "tok-123",
	}
}

func collect(t *testing.T, chunks <-chan StreamChunk) []StreamChunk {
	t.Helper()
	out := make([]StreamChunk, 0, 4)
	for chunk := range chunks {
		out = append(out, chunk)
	}
	return out
}

func TestExecuteStreamTranslatesLines(t *testing.T) {
	var gotReq *http.Request
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotReq = r.Clone(context.Background())
		_, _ = w.Write([]byte("a0:\"He\"\na0:\"llo\"\nad:{\"finishReason\":\"stop\"}\na0:\"after terminal\"\n"))
	}))
	defer upstream.Close()

	exec := newTestExecutor(t, upstream)
	st := arena.NewStreamState("eval-1", "test-model", 1700000000)
	chunks, err := exec.ExecuteStream(context.Background(), testCredentials(), []byte(`{}`), st)
	if err != nil {
		t.Fatalf("ExecuteStream() error: %v", err)
	}
	got := collect(t, chunks)
	if len(got) != 3 {
		t.Fatalf("got %d chunks, want 3 (lines after the terminal event must not be read)", len(got))
	}
	if content := gjson.GetBytes(got[0].Payload, "choices.0.delta.content").String(); content != "He" {
		t.Fatalf("first chunk content = %q, want He", content)
	}
	if reason := gjson.GetBytes(got[2].Payload, "choices.0.finish_reason").String(); reason != "stop" {
		t.Fatalf("terminal chunk finish_reason = %q, want stop", reason)
	}

	if gotReq.URL.Path != createEvaluationPath {
		t.Fatalf("upstream path = %q, want %q", gotReq.URL.Path, createEvaluationPath)
	}
	if ua := gotReq.Header.Get("User-Agent"); !strings.Contains(ua, "Chrome/131") {
		t.Fatalf("User-Agent = %q, want browser-like", ua)
	}
	if origin := gotReq.Header.Get("Origin"); origin != upstream.URL {
		t.Fatalf("Origin = %q, want %q", origin, upstream.URL)
	}
	if referer := gotReq.Header.Get("Referer"); referer != upstream.URL+refererSuffix {
		t.Fatalf("Referer = %q", referer)
	}
	if cookie := gotReq.Header.Get("Cookie"); cookie != "a=1; b=2" {
		t.Fatalf("Cookie = %q, want sorted a=1; b=2", cookie)
	}
	if auth := gotReq.Header.Get("Authorization"); auth != "Bearer tok-123" {
		t.Fatalf("Authorization = %q", auth)
	}
}

func TestExecuteStreamNoAuthHeaderWithoutToken(t *testing.T) {
	var gotAuth string
	var hadAuth bool
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, hadAuth = r.Header["Authorization"]
		_, _ = w.Write([]byte("ad:{}\n"))
	}))
	defer upstream.Close()

	exec := newTestExecutor(t, upstream)
	st := arena.NewStreamState("eval-1", "m", 0)
	chunks, err := exec.ExecuteStream(context.Background(), profile.Credentials{}, []byte(`{}`), st)
	if err != nil {
		t.Fatalf("ExecuteStream() error: %v", err)
	}
	collect(t, chunks)
	if hadAuth {
		t.Fatalf("Authorization header sent without an auth token: %q", gotAuth)
	}
}

func TestExecuteStreamStatusError(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(strings.Repeat("x", 2*errorBodyLimit)))
	}))
	defer upstream.Close()

	exec := newTestExecutor(t, upstream)
	st := arena.NewStreamState("eval-1", "m", 0)
	_, err := exec.ExecuteStream(context.Background(), testCredentials(), []byte(`{}`), st)
	var statusErr StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("error = %v, want StatusError", err)
	}
	if statusErr.Code != http.StatusForbidden {
		t.Fatalf("Code = %d, want 403", statusErr.Code)
	}
	if len(statusErr.Msg) != errorBodyLimit {
		t.Fatalf("Msg length = %d, want truncated to %d", len(statusErr.Msg), errorBodyLimit)
	}
}

func TestExecuteBuffered(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ag:\"thinking\"\na0:\"He\"\na0:\"llo\"\nad:{\"finishReason\":\"stop\",\"usage\":{\"prompt_tokens\":3,\"completion_tokens\":5,\"total_tokens\":8}}\n"))
	}))
	defer upstream.Close()

	exec := newTestExecutor(t, upstream)
	agg, err := exec.Execute(context.Background(), testCredentials(), []byte(`{}`))
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if got := agg.Content(); got != "Hello" {
		t.Fatalf("Content() = %q, want Hello", got)
	}
	if got := agg.Reasoning(); got != "thinking" {
		t.Fatalf("Reasoning() = %q", got)
	}
	if !agg.HasUsage() {
		t.Fatal("usage from the terminal event was lost")
	}
}

func TestExecuteDecodesGzip(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ae := r.Header.Get("Accept-Encoding"); !strings.Contains(ae, "br") || !strings.Contains(ae, "gzip") {
			t.Errorf("Accept-Encoding = %q, want gzip and br", ae)
		}
		w.Header().Set("Content-Encoding", "gzip")
		zw := gzip.NewWriter(w)
		_, _ = zw.Write([]byte("a0:\"compressed\"\nad:{}\n"))
		_ = zw.Close()
	}))
	defer upstream.Close()

	exec := newTestExecutor(t, upstream)
	agg, err := exec.Execute(context.Background(), testCredentials(), []byte(`{}`))
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if got := agg.Content(); got != "compressed" {
		t.Fatalf("Content() = %q, want compressed", got)
	}
}

func TestExecuteDecodesBrotli(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "br")
		bw := brotli.NewWriter(w)
		_, _ = bw.Write([]byte("a0:\"compressed\"\nad:{}\n"))
		_ = bw.Close()
	}))
	defer upstream.Close()

	exec := newTestExecutor(t, upstream)
	agg, err := exec.Execute(context.Background(), testCredentials(), []byte(`{}`))
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if got := agg.Content(); got != "compressed" {
		t.Fatalf("Content() = %q, want compressed", got)
	}
}

func TestNewHTTPClientProxySchemes(t *testing.T) {
	tests := []struct {
		name     string
		proxyURL string
		wantErr  bool
	}{
		{"no proxy", "", false},
		{"http proxy", "http://127.0.0.1:8080", false},
		{"socks5 proxy", "socks5://127.0.0.1:1080", false},
		{"unsupported scheme", "ftp://127.0.0.1:21", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newHTTPClient(tt.proxyURL, 0)
			if (err != nil) != tt.wantErr {
				t.Fatalf("newHTTPClient(%q) error = %v, wantErr %v", tt.proxyURL, err, tt.wantErr)
			}
		})
	}
}
