package chatbot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"AssistantChat/internal/assistants"
	"AssistantChat/internal/session"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	msgConnected     = "Connection successful!"
	msgNeedsSettings = "Please go to the Settings page to update the OpenAI API Key and Assistant ID before chatting."
)

// ErrTurnInFlight is returned when SendTurn is called while another turn is unresolved
var ErrTurnInFlight = errors.New("a message is already being processed")

// API is the subset of the Assistants API a conversation needs
type API interface {
	CreateThread(ctx context.Context) (*assistants.Thread, error)
	GetAssistant(ctx context.Context, assistantID string) (*assistants.Assistant, error)
	PostMessage(ctx context.Context, threadID, role, content string) (*assistants.ThreadMessage, error)
	StartRun(ctx context.Context, threadID, assistantID string) (*assistants.Run, error)
	GetRun(ctx context.Context, threadID, runID string) (*assistants.Run, error)
	ListMessages(ctx context.Context, threadID string) (*assistants.MessageList, error)
}

// APIFactory builds an API bound to a credential
type APIFactory func(credential string) API

// Options configures a Controller. Zero values fall back to defaults.
type Options struct {
	NewAPI APIFactory
	Poll   PollPolicy
	Sleep  SleepFunc
	Logger *slog.Logger
	Tracer trace.Tracer
	Meter  metric.Meter
}

// Controller owns the connection state and the conversation log, and
// sequences the remote calls for each user turn.
type Controller struct {
	mu   sync.Mutex
	sess session.Session
	api  API

	log      *session.Log
	inFlight atomic.Bool

	newAPI APIFactory
	poll   PollPolicy
	sleep  SleepFunc
	logger *slog.Logger
	tracer trace.Tracer
	turns  metric.Int64Counter
	polls  metric.Int64Counter
}

// NewController creates a new Controller
func NewController(opts Options) *Controller {
	c := &Controller{
		log:    session.NewLog(),
		newAPI: opts.NewAPI,
		poll:   opts.Poll,
		sleep:  opts.Sleep,
		logger: opts.Logger,
		tracer: opts.Tracer,
	}
	if c.newAPI == nil {
		c.newAPI = func(credential string) API { return assistants.NewClient(credential) }
	}
	if c.poll.Interval <= 0 {
		c.poll = DefaultPollPolicy()
	}
	if c.sleep == nil {
		c.sleep = sleepContext
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.tracer == nil {
		c.tracer = otel.Tracer("chatbot")
	}

	meter := opts.Meter
	if meter == nil {
		meter = otel.GetMeterProvider().Meter("chatbot")
	}
	var err error
	c.turns, err = meter.Int64Counter("assistants.turns", metric.WithDescription("Completed chat turns by outcome"))
	if err != nil {
		c.logger.Warn("failed to create counter", "name", "assistants.turns", "error", err)
	}
	c.polls, err = meter.Int64Counter("assistants.run.polls", metric.WithDescription("Run status checks"))
	if err != nil {
		c.logger.Warn("failed to create counter", "name", "assistants.run.polls", "error", err)
	}
	return c
}

// Session returns a copy of the current session
func (c *Controller) Session() session.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess
}

// Messages returns the conversation log in display order
func (c *Controller) Messages() []session.Message {
	return c.log.Messages()
}

// Loading reports whether a turn is in flight
func (c *Controller) Loading() bool {
	return c.inFlight.Load()
}

// Reset discards the session, e.g. after the credential or assistant changed
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sess = session.Session{}
	c.api = nil
}

// ClearLog empties the conversation log
func (c *Controller) ClearLog() {
	c.log.Clear()
}

// Connect creates a thread and validates the assistant with credential.
// The session is connected only if both calls succeed. Connect errors are
// returned to the caller and never written to the conversation log.
func (c *Controller) Connect(ctx context.Context, credential, assistantID, displayName string) (session.Session, error) {
	credential = strings.TrimSpace(credential)
	assistantID = strings.TrimSpace(assistantID)
	displayName = strings.TrimSpace(displayName)

	if credential == "" || assistantID == "" || displayName == "" {
		return c.Session(), assistants.NewError(assistants.KindConfiguration, "connect", "Please fill in all fields before connecting.")
	}

	ctx, span := c.tracer.Start(ctx, "connect")
	defer span.End()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sess.Credential != "" && !c.sess.SameCredentials(credential, assistantID) {
		c.logger.Info("credentials changed, resetting session", "key_fingerprint", session.Fingerprint(credential))
	}
	api := c.newAPI(credential)
	c.sess = session.Session{
		Credential:  credential,
		AssistantID: assistantID,
		DisplayName: displayName,
	}
	c.api = api

	thread, err := api.CreateThread(ctx)
	if err != nil {
		return c.connectFailed(span, err)
	}
	c.sess.ThreadID = thread.ID

	assistant, err := api.GetAssistant(ctx, assistantID)
	if err != nil {
		return c.connectFailed(span, err)
	}

	c.sess.Connected = true
	c.log.Append(session.SenderSystem, msgConnected)
	c.logger.Info("connected",
		"thread_id", thread.ID,
		"assistant_id", assistantID,
		"assistant_name", assistant.Name,
		"key_fingerprint", c.sess.Fingerprint(),
	)
	span.SetAttributes(attribute.String("thread.id", thread.ID))
	return c.sess, nil
}

func (c *Controller) connectFailed(span trace.Span, err error) (session.Session, error) {
	c.sess.Connected = false
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	c.logger.Error("connect failed",
		"assistant_id", c.sess.AssistantID,
		"thread_id", c.sess.ThreadID,
		"kind", assistants.KindOf(err).String(),
		"error", err,
	)
	return c.sess, err
}

// SendTurn relays userText to the assistant and waits for the reply.
//
// Blank input is a no-op returning (nil, nil). A missing credential or a
// disconnected session appends one system message and returns a configuration
// error without touching the network. Otherwise the user message is echoed to
// the log, and any failure past that point appends a single "Error: <message>"
// system message. A nil message with a nil error means the run finished
// without an assistant reply.
func (c *Controller) SendTurn(ctx context.Context, userText string) (*session.Message, error) {
	if strings.TrimSpace(userText) == "" {
		return nil, nil
	}

	sess := c.Session()
	if !sess.Configured() {
		c.log.Append(session.SenderSystem, msgNeedsSettings)
		return nil, assistants.NewError(assistants.KindConfiguration, "send_turn", msgNeedsSettings)
	}
	if !sess.Connected || sess.ThreadID == "" {
		err := assistants.NewError(assistants.KindConfiguration, "send_turn", "not connected to an assistant, use /connect first")
		c.log.Append(session.SenderSystem, "Error: "+err.Error())
		return nil, err
	}

	if !c.inFlight.CompareAndSwap(false, true) {
		return nil, ErrTurnInFlight
	}
	defer c.inFlight.Store(false)

	c.mu.Lock()
	api := c.api
	c.mu.Unlock()

	turn := session.NewTurn(userText)
	c.log.Append(session.SenderUser, userText)

	ctx, span := c.tracer.Start(ctx, "send_turn", trace.WithAttributes(
		attribute.String("turn.id", turn.ID),
		attribute.String("thread.id", sess.ThreadID),
	))
	defer span.End()

	logger := c.logger.With("turn_id", turn.ID, "thread_id", sess.ThreadID)
	logger.Info("turn started", "length", len(userText))

	reply, err := c.runTurn(ctx, api, sess, turn, logger)
	if err != nil {
		if advErr := turn.Advance(session.TurnFailed); advErr != nil {
			logger.Warn("turn state", "error", advErr)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.log.Append(session.SenderSystem, "Error: "+err.Error())
		logger.Error("turn failed",
			"status", turn.Status,
			"run_id", turn.RunID,
			"kind", assistants.KindOf(err).String(),
			"error", err,
		)
		c.countTurn(ctx, "failed")
		return nil, err
	}

	if reply == nil {
		logger.Info("turn resolved without assistant reply", "run_id", turn.RunID, "polls", turn.Polls)
		c.countTurn(ctx, "empty")
		return nil, nil
	}

	logger.Info("turn resolved", "run_id", turn.RunID, "polls", turn.Polls)
	c.countTurn(ctx, "resolved")
	return reply, nil
}

func (c *Controller) runTurn(ctx context.Context, api API, sess session.Session, turn *session.Turn, logger *slog.Logger) (*session.Message, error) {
	if _, err := api.PostMessage(ctx, sess.ThreadID, assistants.RoleUser, turn.UserText); err != nil {
		return nil, err
	}
	if err := turn.Advance(session.TurnSent); err != nil {
		return nil, err
	}

	run, err := api.StartRun(ctx, sess.ThreadID, sess.AssistantID)
	if err != nil {
		return nil, err
	}
	turn.RunID = run.ID
	if err := turn.Advance(session.TurnRunStarted); err != nil {
		return nil, err
	}
	logger.Debug("run started", "run_id", run.ID, "status", run.Status)

	final, err := c.waitForRun(ctx, api, sess.ThreadID, turn, logger)
	if err != nil {
		return nil, err
	}
	if !final.Status.Succeeded() {
		return nil, runFailedError(final)
	}

	list, err := api.ListMessages(ctx, sess.ThreadID)
	if err != nil {
		return nil, err
	}
	if err := turn.Advance(session.TurnResolved); err != nil {
		return nil, err
	}

	found, ok := list.FirstByRole(assistants.RoleAssistant)
	if !ok {
		return nil, nil
	}
	msg := c.log.Append(session.SenderAssistant, found.Text())
	return &msg, nil
}

func runFailedError(run *assistants.Run) error {
	msg := fmt.Sprintf("run ended with status %s", run.Status)
	if run.LastError != nil && run.LastError.Message != "" {
		msg = run.LastError.Message
	}
	return &assistants.Error{Kind: assistants.KindRunFailed, Op: "get_run", Message: msg}
}

func (c *Controller) countTurn(ctx context.Context, outcome string) {
	if c.turns == nil {
		return
	}
	c.turns.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
