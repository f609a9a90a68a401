package executor

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	log "github.com/sirupsen/logrus"
	"golang.org/x/net/proxy"

	"github.com/arena2api/arena2api/internal/config"
	"github.com/arena2api/arena2api/internal/profile"
	"github.com/arena2api/arena2api/internal/translator/arena"
)

const (
	errorBodyLimit = 500
	scanBufferSize = 1 << 20
)

// StatusError is a non-2xx upstream reply: the status code plus a truncated
// response body.
type StatusError struct {
	Code int
	Msg  string
}

func (e StatusError) Error() string {
	return fmt.Sprintf("upstream status %d: %s", e.Code, e.Msg)
}

// StreamChunk is one translated chunk of a streamed exchange, or the error
// that ended it.
type StreamChunk struct {
	Payload []byte
	Err     error
}

// Executor posts evaluations to the upstream provider. One generous client
// timeout covers the whole streamed exchange, not individual lines.
type Executor struct {
	provider *ArenaProvider
	client   *http.Client
}

// New builds an executor from config: upstream base URL, timeout, and an
// optional http(s) or socks5 proxy.
func New(cfg *config.Config) (*Executor, error) {
	client, err := newHTTPClient(cfg.ProxyURL, time.Duration(cfg.Upstream.TimeoutSeconds)*time.Second)
	if err != nil {
		return nil, err
	}
	return &Executor{
		provider: &ArenaProvider{BaseURL: cfg.Upstream.BaseURL},
		client:   client,
	}, nil
}

// Identifier returns the provider identifier.
func (e *Executor) Identifier() string {
	return e.provider.Identifier()
}

// ExecuteStream posts one evaluation and feeds every upstream line through
// st, delivering the resulting chunks on the returned channel. Reading
// stops at the first terminal event; a scan failure is delivered as the
// final chunk. A non-2xx status is returned as a StatusError before any
// line is read.
func (e *Executor) ExecuteStream(ctx context.Context, creds profile.Credentials, payload []byte, st *arena.StreamState) (<-chan StreamChunk, error) {
	resp, err := e.do(ctx, creds, payload)
	if err != nil {
		return nil, err
	}
	body, err := decodeBody(resp)
	if err != nil {
		closeBody(resp)
		return nil, err
	}

	out := make(chan StreamChunk)
	go func() {
		defer close(out)
		defer closeBody(resp)

		scanner := bufio.NewScanner(body)
		scanner.Buffer(nil, scanBufferSize)
		for scanner.Scan() {
			for _, chunk := range st.ConvertLine(scanner.Bytes()) {
				select {
				case out <- StreamChunk{Payload: []byte(chunk)}:
				case <-ctx.Done():
					return
				}
			}
			if st.Done() {
				return
			}
		}
		if errScan := scanner.Err(); errScan != nil {
			select {
			case out <- StreamChunk{Err: errScan}:
			case <-ctx.Done():
			}
		}
	}()
	return out, nil
}

// Execute posts one evaluation and aggregates the whole exchange with the
// same per-line classification the streaming path uses. Reading stops at
// the first terminal event.
func (e *Executor) Execute(ctx context.Context, creds profile.Credentials, payload []byte) (*arena.Aggregate, error) {
	resp, err := e.do(ctx, creds, payload)
	if err != nil {
		return nil, err
	}
	defer closeBody(resp)
	body, err := decodeBody(resp)
	if err != nil {
		return nil, err
	}

	agg := arena.NewAggregate()
	scanner := bufio.NewScanner(body)
	scanner.Buffer(nil, scanBufferSize)
	for scanner.Scan() {
		agg.AddLine(scanner.Bytes())
		if agg.Done() {
			break
		}
	}
	if err = scanner.Err(); err != nil {
		return nil, err
	}
	return agg, nil
}

func (e *Executor) do(ctx context.Context, creds profile.Credentials, payload []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.provider.Endpoint(), bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	e.provider.ApplyHeaders(req, creds)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		closeBody(resp)
		log.Debugf("arena executor: upstream status %d: %s", resp.StatusCode, body)
		return nil, StatusError{Code: resp.StatusCode, Msg: string(body)}
	}
	return resp, nil
}

// decodeBody unwraps Content-Encoding the way a browser would. The client
// advertises gzip and br, so both must be handled; br wins when several
// encodings are listed.
func decodeBody(resp *http.Response) (io.Reader, error) {
	var selected string
	for _, enc := range strings.Split(resp.Header.Get("Content-Encoding"), ",") {
		switch strings.TrimSpace(strings.ToLower(enc)) {
		case "br":
			return brotli.NewReader(resp.Body), nil
		case "gzip":
			selected = "gzip"
		}
	}
	if selected == "gzip" {
		return gzip.NewReader(resp.Body)
	}
	return resp.Body, nil
}

func closeBody(resp *http.Response) {
	if err := resp.Body.Close(); err != nil {
		log.Errorf("arena executor: close response body error: %v", err)
	}
}

// newHTTPClient builds the upstream client. Automatic transport compression
// is disabled so the browser-like Accept-Encoding header goes out as
// written and decodeBody stays in charge of unwrapping.
func newHTTPClient(proxyURL string, timeout time.Duration) (*http.Client, error) {
	transport := &http.Transport{DisableCompression: true}
	if proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil {
			return nil, fmt.Errorf("parse proxy-url: %w", err)
		}
		switch strings.ToLower(u.Scheme) {
		case "socks5", "socks5h":
			dialer, dialErr := proxy.FromURL(u, proxy.Direct)
			if dialErr != nil {
				return nil, fmt.Errorf("socks5 proxy: %w", dialErr)
			}
			if ctxDialer, ok := dialer.(proxy.ContextDialer); ok {
				transport.DialContext = ctxDialer.DialContext
			} else {
				transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
					return dialer.Dial(network, addr)
				}
			}
		case "http", "https":
			transport.Proxy = http.ProxyURL(u)
		default:
			return nil, fmt.Errorf("unsupported proxy scheme %q", u.Scheme)
		}
	}
	return &http.Client{Transport: transport, Timeout: timeout}, nil
}
