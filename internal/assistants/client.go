// Package assistants is a small client for the OpenAI Assistants API (v2).
//
// It covers only the calls a chat turn needs: creating a thread, probing an
// assistant, posting a message, starting and polling a run, and listing the
// thread's messages. Every failure is normalized to *Error.
package assistants

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the base URL of the OpenAI API
	DefaultBaseURL = "https://api.openai.com/v1"

	// DefaultTimeout bounds a single request
	DefaultTimeout = 60 * time.Second

	// BetaHeader selects the Assistants API version
	BetaHeader = "assistants=v2"

	maxResponseSize = 10 * 1024 * 1024
)

// Client talks to the Assistants API with a single credential
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	tracer     trace.Tracer
	duration   metric.Float64Histogram
	limiter    *rate.Limiter
}

// Option configures a Client
type Option func(*Client)

// WithBaseURL points the client at a different API root (tests, proxies)
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithTracer sets the tracer used for per-request spans
func WithTracer(tracer trace.Tracer) Option {
	return func(c *Client) {
		c.tracer = tracer
	}
}

// WithMeter sets the meter used for the request duration histogram
func WithMeter(meter metric.Meter) Option {
	return func(c *Client) {
		c.duration = newDurationHistogram(meter)
	}
}

// WithRateLimit caps outgoing requests at perSecond. Zero or less disables the cap.
func WithRateLimit(perSecond float64) Option {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = nil
			return
		}
		burst := int(perSecond)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// NewClient creates a new Assistants API client for apiKey
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:     apiKey,
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		logger:     slog.Default(),
		tracer:     otel.Tracer("assistants"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.duration == nil {
		c.duration = newDurationHistogram(otel.GetMeterProvider().Meter("assistants"))
	}
	return c
}

func newDurationHistogram(meter metric.Meter) metric.Float64Histogram {
	histogram, err := meter.Float64Histogram(
		"http.client.request.duration",
		metric.WithDescription("HTTP request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		slog.Warn("failed to create request duration histogram", "error", err)
		return nil
	}
	return histogram
}

// CreateThread creates an empty thread
func (c *Client) CreateThread(ctx context.Context) (*Thread, error) {
	var thread Thread
	err := c.do(ctx, call{
		op:           "create_thread",
		method:       http.MethodPost,
		path:         "/threads",
		fallback:     "Failed to create thread",
		remoteDetail: true,
	}, &thread)
	if err != nil {
		return nil, err
	}
	return &thread, nil
}

// GetAssistant fetches an assistant. It doubles as a reachability probe for the credential.
func (c *Client) GetAssistant(ctx context.Context, assistantID string) (*Assistant, error) {
	var assistant Assistant
	err := c.do(ctx, call{
		op:           "get_assistant",
		method:       http.MethodGet,
		path:         "/assistants/" + url.PathEscape(assistantID),
		fallback:     "Failed to fetch assistant",
		remoteDetail: true,
	}, &assistant)
	if err != nil {
		return nil, err
	}
	return &assistant, nil
}

// PostMessage appends a message to a thread
func (c *Client) PostMessage(ctx context.Context, threadID, role, content string) (*ThreadMessage, error) {
	var msg ThreadMessage
	err := c.do(ctx, call{
		op:       "post_message",
		method:   http.MethodPost,
		path:     "/threads/" + url.PathEscape(threadID) + "/messages",
		body:     MessageRequest{Role: role, Content: content},
		fallback: "Failed to send message",
	}, &msg)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// StartRun starts a run of assistantID against the thread
func (c *Client) StartRun(ctx context.Context, threadID, assistantID string) (*Run, error) {
	var run Run
	err := c.do(ctx, call{
		op:           "start_run",
		method:       http.MethodPost,
		path:         "/threads/" + url.PathEscape(threadID) + "/runs",
		body:         RunRequest{AssistantID: assistantID},
		fallback:     "Failed to start run",
		remoteDetail: true,
	}, &run)
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// GetRun fetches the current state of a run
func (c *Client) GetRun(ctx context.Context, threadID, runID string) (*Run, error) {
	var run Run
	err := c.do(ctx, call{
		op:       "get_run",
		method:   http.MethodGet,
		path:     "/threads/" + url.PathEscape(threadID) + "/runs/" + url.PathEscape(runID),
		fallback: "Failed to check run status",
	}, &run)
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// ListMessages lists the messages on a thread, newest first
func (c *Client) ListMessages(ctx context.Context, threadID string) (*MessageList, error) {
	var list MessageList
	err := c.do(ctx, call{
		op:       "list_messages",
		method:   http.MethodGet,
		path:     "/threads/" + url.PathEscape(threadID) + "/messages",
		fallback: "Failed to fetch messages",
	}, &list)
	if err != nil {
		return nil, err
	}
	return &list, nil
}

// call describes one request. When remoteDetail is set, a non-2xx response
// surfaces the API's error message; otherwise the fallback is always used.
type call struct {
	op           string
	method       string
	path         string
	body         any
	fallback     string
	remoteDetail bool
}

func (c *Client) do(ctx context.Context, cl call, out any) (err error) {
	ctx, span := c.tracer.Start(ctx, cl.op, trace.WithSpanKind(trace.SpanKindClient))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return transportError(ctx, cl.op, err)
		}
	}

	start := time.Now()

	var body io.Reader
	if cl.body != nil {
		jsonData, err := json.Marshal(cl.body)
		if err != nil {
			return &Error{Kind: KindTransport, Op: cl.op, Message: fmt.Sprintf("failed to marshal request: %v", err), Err: err}
		}
		body = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, c.baseURL+cl.path, body)
	if err != nil {
		return &Error{Kind: KindTransport, Op: cl.op, Message: fmt.Sprintf("failed to create request: %v", err), Err: err}
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("OpenAI-Beta", BetaHeader)
	if cl.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return transportError(ctx, cl.op, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize+1))
	if err != nil {
		return transportError(ctx, cl.op, fmt.Errorf("failed to read response: %w", err))
	}
	if len(respBody) > maxResponseSize {
		return &Error{Kind: KindTransport, Op: cl.op, Message: "response exceeds size limit"}
	}

	c.recordDuration(ctx, cl.op, resp.StatusCode, start)
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := remoteError(cl, resp.StatusCode, respBody)
		c.logger.Warn("assistants API error",
			"operation", cl.op,
			"status", resp.StatusCode,
			"detail", apiErr.Detail,
		)
		return apiErr
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return &Error{Kind: KindTransport, Op: cl.op, Message: fmt.Sprintf("failed to unmarshal response: %v", err), Err: err}
		}
	}

	c.logger.Debug("assistants API call", "operation", cl.op, "status", resp.StatusCode, "duration_ms", time.Since(start).Milliseconds())
	return nil
}

func (c *Client) recordDuration(ctx context.Context, op string, status int, start time.Time) {
	if c.duration == nil {
		return
	}
	c.duration.Record(ctx, float64(time.Since(start).Milliseconds()),
		metric.WithAttributes(
			attribute.String("operation", op),
			attribute.String("status", strconv.Itoa(status)),
		),
	)
}

func remoteError(cl call, status int, body []byte) *Error {
	apiErr := &Error{Kind: KindRemote, Op: cl.op, Status: status, Message: cl.fallback}

	var envelope errorResponse
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error != nil {
		apiErr.Detail = envelope.Error.Message
	}
	if cl.remoteDetail && apiErr.Detail != "" {
		apiErr.Message = apiErr.Detail
	}
	return apiErr
}

func transportError(ctx context.Context, op string, err error) *Error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return &Error{Kind: KindCanceled, Op: op, Message: "request canceled", Err: ctxErr}
	}
	return &Error{Kind: KindTransport, Op: op, Message: fmt.Sprintf("failed to send request: %v", err), Err: err}
}
