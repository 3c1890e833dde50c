package assistants

// RunStatus is the lifecycle state reported for a run
type RunStatus string

const (
	RunQueued         RunStatus = "queued"
	RunInProgress     RunStatus = "in_progress"
	RunRequiresAction RunStatus = "requires_action"
	RunCancelling     RunStatus = "cancelling"
	RunCompleted      RunStatus = "completed"
	RunFailed         RunStatus = "failed"
	RunCancelled      RunStatus = "cancelled"
	RunExpired        RunStatus = "expired"
	RunIncomplete     RunStatus = "incomplete"
)

// Pending reports whether the run is still being worked on and should be polled again
func (s RunStatus) Pending() bool {
	switch s {
	case RunQueued, RunInProgress, RunRequiresAction, RunCancelling:
		return true
	}
	return false
}

// Succeeded reports whether the run finished normally
func (s RunStatus) Succeeded() bool {
	return s == RunCompleted
}

// Message roles used by the Assistants API
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Thread represents the response body for thread creation
type Thread struct {
	ID        string `json:"id"`
	Object    string `json:"object"`
	CreatedAt int64  `json:"created_at"`
}

// Assistant represents the response body for an assistant lookup
type Assistant struct {
	ID           string `json:"id"`
	Object       string `json:"object"`
	Name         string `json:"name"`
	Model        string `json:"model"`
	Instructions string `json:"instructions"`
}

// MessageRequest represents the request body for appending a message to a thread
type MessageRequest struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ThreadMessage represents a single message stored on a thread
type ThreadMessage struct {
	ID          string           `json:"id"`
	Object      string           `json:"object"`
	CreatedAt   int64            `json:"created_at"`
	ThreadID    string           `json:"thread_id"`
	Role        string           `json:"role"`
	Content     []MessageContent `json:"content"`
	AssistantID string           `json:"assistant_id,omitempty"`
	RunID       string           `json:"run_id,omitempty"`
}

// MessageContent is one content part of a thread message (text, image_file, ...)
type MessageContent struct {
	Type string       `json:"type"`
	Text *TextContent `json:"text,omitempty"`
}

// TextContent holds the value of a text content part
type TextContent struct {
	Value string `json:"value"`
}

// Text returns the value of the first text part, or "" if the message has none
func (m ThreadMessage) Text() string {
	for _, part := range m.Content {
		if part.Type == "text" && part.Text != nil {
			return part.Text.Value
		}
	}
	return ""
}

// MessageList represents the response from the thread messages endpoint.
// Data is ordered newest first.
type MessageList struct {
	Object  string          `json:"object"`
	Data    []ThreadMessage `json:"data"`
	FirstID string          `json:"first_id"`
	LastID  string          `json:"last_id"`
	HasMore bool            `json:"has_more"`
}

// FirstByRole returns the first message in the list authored by role
func (l *MessageList) FirstByRole(role string) (ThreadMessage, bool) {
	if l == nil {
		return ThreadMessage{}, false
	}
	for _, m := range l.Data {
		if m.Role == role {
			return m, true
		}
	}
	return ThreadMessage{}, false
}

// RunRequest represents the request body for starting a run
type RunRequest struct {
	AssistantID string `json:"assistant_id"`
}

// Run represents a run of an assistant against a thread
type Run struct {
	ID          string    `json:"id"`
	Object      string    `json:"object"`
	ThreadID    string    `json:"thread_id"`
	AssistantID string    `json:"assistant_id"`
	Status      RunStatus `json:"status"`
	LastError   *RunError `json:"last_error,omitempty"`
	CreatedAt   int64     `json:"created_at"`
}

// RunError describes why a run ended in the failed state
type RunError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// errorResponse is the envelope the API uses for non-2xx responses
type errorResponse struct {
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}
