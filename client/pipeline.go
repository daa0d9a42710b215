package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/taroAuth/directive"
	"github.com/bytedance/sonic"
)

// ErrBadResponse is returned when a response body is not an envelope.
var ErrBadResponse = errors.New("client: response is not an envelope")

// Response is one decoded API response. Its directive is applied at most once.
type Response struct {
	Status    int
	Code      int
	Message   string
	Data      []byte
	Directive *directive.Directive

	processed atomic.Bool
}

// OK reports whether the envelope code is 200.
func (r *Response) OK() bool {
	return r.Code == http.StatusOK
}

// HasData reports whether data is present and not null.
func (r *Response) HasData() bool {
	return len(r.Data) > 0 && string(r.Data) != "null"
}

// Decode unmarshals data into dst. Null data leaves dst untouched.
func (r *Response) Decode(dst any) error {
	if !r.HasData() {
		return nil
	}
	return sonic.Unmarshal(r.Data, dst)
}

// Processed reports whether the directive has been handed to the interpreter.
func (r *Response) Processed() bool {
	return r.processed.Load()
}

// Pipeline issues API calls and routes every response's directive to the
// interpreter before handing the response back to the caller.
type Pipeline struct {
	http    *http.Client
	baseURL string
	interp  *Interpreter
	headers http.Header
	logger  *slog.Logger

	// mu serialises directive application in response arrival order.
	mu       sync.Mutex
	inflight sync.WaitGroup
}

type result struct {
	resp *Response
	err  error
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithHTTPClient replaces the default client. A nil Jar is given a fresh cookie jar.
func WithHTTPClient(c *http.Client) PipelineOption {
	return func(p *Pipeline) {
		if c != nil {
			p.http = c
		}
	}
}

// WithHeader adds a header to every request, e.g. X-Platform.
func WithHeader(key, value string) PipelineOption {
	return func(p *Pipeline) { p.headers.Set(key, value) }
}

// WithPipelineLogger sets the logger; nil keeps slog.Default.
func WithPipelineLogger(l *slog.Logger) PipelineOption {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewPipeline returns a pipeline rooted at baseURL. A nil interp disables
// directive application.
func NewPipeline(baseURL string, interp *Interpreter, opts ...PipelineOption) (*Pipeline, error) {
	p := &Pipeline{
		http:    &http.Client{Timeout: 30 * time.Second},
		baseURL: strings.TrimSuffix(baseURL, "/"),
		interp:  interp,
		headers: http.Header{},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.http.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("cookie jar: %w", err)
		}
		p.http.Jar = jar
	}
	p.logger = p.logger.With("component", "pipeline")
	return p, nil
}

// Do sends a JSON request and returns the decoded envelope. Any directive on
// the response is applied before Do returns. A failing directive never turns
// into an error here: the data is returned regardless.
//
// ctx only bounds how long the caller waits. The request itself runs under
// the client timeout, so a response that arrives after the caller gave up
// still has its directive applied.
func (p *Pipeline) Do(ctx context.Context, method, path string, body any) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var reader io.Reader
	if body != nil {
		raw, err := sonic.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(context.WithoutCancel(ctx), method, p.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	for k, vs := range p.headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	done := make(chan result, 1)
	p.inflight.Add(1)
	go func() {
		defer p.inflight.Done()
		resp, err := p.roundTrip(req)
		if err == nil {
			p.Process(req.Context(), resp)
		}
		done <- result{resp: resp, err: err}
	}()

	select {
	case r := <-done:
		return r.resp, r.err
	case <-ctx.Done():
		p.logger.DebugContext(ctx, "caller stopped waiting", "method", method, "path", path)
		return nil, ctx.Err()
	}
}

func (p *Pipeline) roundTrip(req *http.Request) (*Response, error) {
	httpResp, err := p.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	env, err := directive.ParseEnvelope(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: status %d", ErrBadResponse, httpResp.StatusCode)
	}

	return &Response{
		Status:    httpResp.StatusCode,
		Code:      env.Code,
		Message:   env.Message,
		Data:      env.Data,
		Directive: env.Directive,
	}, nil
}

// Wait blocks until every request issued through the pipeline, including
// ones whose callers stopped waiting, has been processed.
func (p *Pipeline) Wait() {
	p.inflight.Wait()
}

// Get is shorthand for Do with GET and no body.
func (p *Pipeline) Get(ctx context.Context, path string) (*Response, error) {
	return p.Do(ctx, http.MethodGet, path, nil)
}

// Post is shorthand for Do with POST.
func (p *Pipeline) Post(ctx context.Context, path string, body any) (*Response, error) {
	return p.Do(ctx, http.MethodPost, path, body)
}

// Process applies r's directive once. Later calls with the same response,
// from the pipeline or from an explicit caller, are no-ops.
func (p *Pipeline) Process(ctx context.Context, r *Response) {
	if r == nil || !r.processed.CompareAndSwap(false, true) {
		return
	}
	if r.Directive == nil || p.interp == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	_ = p.interp.Apply(ctx, r.Directive)
}

// HTTPReporter posts directive failures to the server's route-command-error
// endpoint in the background.
type HTTPReporter struct {
	http    *http.Client
	url     string
	logger  *slog.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewHTTPReporter posts reports to baseURL's route-command-error endpoint.
// Nil c and logger fall back to defaults.
func NewHTTPReporter(baseURL string, c *http.Client, logger *slog.Logger) *HTTPReporter {
	if c == nil {
		c = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPReporter{
		http:    c,
		url:     strings.TrimSuffix(baseURL, "/") + "/api/metrics/route-command-error",
		logger:  logger.With("component", "reporter"),
		timeout: 5 * time.Second,
	}
}

// Report sends report in the background. Failures are logged and dropped.
func (r *HTTPReporter) Report(ctx context.Context, report directive.ErrorReport) {
	raw, err := sonic.Marshal(report)
	if err != nil {
		return
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
		defer cancel()

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(raw))
		if err != nil {
			return
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := r.http.Do(req)
		if err != nil {
			r.logger.Warn("route command error report failed", "operation", "report", "outcome", "error", "error", err)
			return
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()
}

// Wait blocks until every pending report has been sent or abandoned.
func (r *HTTPReporter) Wait() {
	r.wg.Wait()
}
