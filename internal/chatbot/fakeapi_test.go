package chatbot

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"AssistantChat/internal/assistants"

	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

const (
	testKey       = "sk-test-0123456789"
	testAssistant = "asst_123"
	testThread    = "thread_abc"
	testRun       = "run_1"
)

// failure is a canned non-2xx response for one operation
type failure struct {
	status int
	body   string
}

// fakeAssistants is an in-process stand-in for the Assistants API
type fakeAssistants struct {
	mu sync.Mutex

	clock     *fakeClock
	statuses  []assistants.RunStatus
	lastError *assistants.RunError
	messages  []assistants.ThreadMessage
	failures  map[string]failure

	// postGate, when set, blocks post_message until it is closed
	postGate chan struct{}

	calls    []string
	pollAt   []time.Duration
	posted   []assistants.MessageRequest
	headers  []http.Header
	polls    int
	runCount int
}

func newFakeAssistants(clock *fakeClock) *fakeAssistants {
	return &fakeAssistants{
		clock:    clock,
		statuses: []assistants.RunStatus{assistants.RunCompleted},
		failures: map[string]failure{},
	}
}

func (f *fakeAssistants) record(op string, r *http.Request) (failure, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, op)
	f.headers = append(f.headers, r.Header.Clone())
	fail, ok := f.failures[op]
	return fail, ok
}

func (f *fakeAssistants) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /threads", func(w http.ResponseWriter, r *http.Request) {
		if fail, ok := f.record("create_thread", r); ok {
			writeFailure(w, fail)
			return
		}
		writeJSON(w, assistants.Thread{ID: testThread, Object: "thread"})
	})

	mux.HandleFunc("GET /assistants/{id}", func(w http.ResponseWriter, r *http.Request) {
		if fail, ok := f.record("get_assistant", r); ok {
			writeFailure(w, fail)
			return
		}
		writeJSON(w, assistants.Assistant{ID: r.PathValue("id"), Name: "Helper", Model: "gpt-4o"})
	})

	mux.HandleFunc("POST /threads/{thread}/messages", func(w http.ResponseWriter, r *http.Request) {
		fail, failing := f.record("post_message", r)
		var req assistants.MessageRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		f.posted = append(f.posted, req)
		gate := f.postGate
		f.mu.Unlock()
		if gate != nil {
			<-gate
		}
		if failing {
			writeFailure(w, fail)
			return
		}
		writeJSON(w, assistants.ThreadMessage{ID: "msg_user", ThreadID: r.PathValue("thread"), Role: req.Role})
	})

	mux.HandleFunc("POST /threads/{thread}/runs", func(w http.ResponseWriter, r *http.Request) {
		if fail, ok := f.record("start_run", r); ok {
			writeFailure(w, fail)
			return
		}
		f.mu.Lock()
		f.runCount++
		f.polls = 0
		f.mu.Unlock()
		writeJSON(w, assistants.Run{ID: testRun, ThreadID: r.PathValue("thread"), Status: assistants.RunQueued})
	})

	mux.HandleFunc("GET /threads/{thread}/runs/{run}", func(w http.ResponseWriter, r *http.Request) {
		if fail, ok := f.record("get_run", r); ok {
			writeFailure(w, fail)
			return
		}
		f.mu.Lock()
		if f.clock != nil {
			f.pollAt = append(f.pollAt, f.clock.Elapsed())
		}
		idx := f.polls
		if idx >= len(f.statuses) {
			idx = len(f.statuses) - 1
		}
		f.polls++
		run := assistants.Run{ID: r.PathValue("run"), Status: f.statuses[idx]}
		if !run.Status.Pending() && !run.Status.Succeeded() {
			run.LastError = f.lastError
		}
		f.mu.Unlock()
		writeJSON(w, run)
	})

	mux.HandleFunc("GET /threads/{thread}/messages", func(w http.ResponseWriter, r *http.Request) {
		if fail, ok := f.record("list_messages", r); ok {
			writeFailure(w, fail)
			return
		}
		f.mu.Lock()
		data := append([]assistants.ThreadMessage(nil), f.messages...)
		f.mu.Unlock()
		writeJSON(w, assistants.MessageList{Object: "list", Data: data})
	})

	return mux
}

func (f *fakeAssistants) fail(op string, fail failure) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[op] = fail
}

func (f *fakeAssistants) setStatuses(statuses ...assistants.RunStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = statuses
}

func (f *fakeAssistants) setLastError(runErr *assistants.RunError) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastError = runErr
}

func (f *fakeAssistants) setMessages(msgs ...assistants.ThreadMessage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = msgs
}

func (f *fakeAssistants) setPostGate(gate chan struct{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.postGate = gate
}

func (f *fakeAssistants) Headers() []http.Header {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]http.Header(nil), f.headers...)
}

func (f *fakeAssistants) Posted() []assistants.MessageRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]assistants.MessageRequest(nil), f.posted...)
}

func (f *fakeAssistants) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeAssistants) PollTimes() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Duration(nil), f.pollAt...)
}

func (f *fakeAssistants) count(op string) int {
	n := 0
	for _, c := range f.Calls() {
		if c == op {
			n++
		}
	}
	return n
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeFailure(w http.ResponseWriter, fail failure) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(fail.status)
	_, _ = io.WriteString(w, fail.body)
}

func apiError(message string) string {
	data, _ := json.Marshal(map[string]any{
		"error": map[string]string{"message": message, "type": "invalid_request_error"},
	})
	return string(data)
}

func textMessage(id, role, text string) assistants.ThreadMessage {
	return assistants.ThreadMessage{
		ID:   id,
		Role: role,
		Content: []assistants.MessageContent{
			{Type: "text", Text: &assistants.TextContent{Value: text}},
		},
	}
}

// fakeClock advances simulated time on every sleep instead of blocking
type fakeClock struct {
	mu      sync.Mutex
	elapsed time.Duration
	sleeps  int
	onSleep func(n int)
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	c.sleeps++
	n := c.sleeps
	hook := c.onSleep
	c.mu.Unlock()
	if hook != nil {
		hook(n)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	c.elapsed += d
	c.mu.Unlock()
	return nil
}

func (c *fakeClock) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.elapsed
}

func (c *fakeClock) Sleeps() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sleeps
}

type testEnv struct {
	api   *fakeAssistants
	clock *fakeClock
	ctrl  *Controller
}

func newTestEnv(t *testing.T, poll PollPolicy) *testEnv {
	t.Helper()
	clock := &fakeClock{}
	api := newFakeAssistants(clock)
	server := httptest.NewServer(api.handler())
	t.Cleanup(server.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctrl := NewController(Options{
		NewAPI: func(credential string) API {
			return assistants.NewClient(credential,
				assistants.WithBaseURL(server.URL),
				assistants.WithHTTPClient(server.Client()),
				assistants.WithLogger(logger),
				assistants.WithTracer(tracenoop.NewTracerProvider().Tracer("test")),
				assistants.WithMeter(metricnoop.NewMeterProvider().Meter("test")),
			)
		},
		Poll:   poll,
		Sleep:  clock.Sleep,
		Logger: logger,
		Tracer: tracenoop.NewTracerProvider().Tracer("test"),
		Meter:  metricnoop.NewMeterProvider().Meter("test"),
	})
	return &testEnv{api: api, clock: clock, ctrl: ctrl}
}

// connected returns an env whose controller has completed Connect
func connected(t *testing.T, poll PollPolicy) *testEnv {
	t.Helper()
	env := newTestEnv(t, poll)
	if _, err := env.ctrl.Connect(context.Background(), testKey, testAssistant, "Test Bot"); err != nil {
		t.Fatalf("connect: %v", err)
	}
	return env
}
