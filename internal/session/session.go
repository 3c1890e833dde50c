package session

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"time"
)

// Sender identifies who authored a message in the conversation log
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
	SenderSystem    Sender = "system"
)

// Message represents a single entry in the conversation log
type Message struct {
	Text      string    `json:"text"`
	Sender    Sender    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
}

// Session holds the connection state for one assistant conversation
type Session struct {
	Credential  string `json:"-"`
	AssistantID string `json:"assistant_id"`
	ThreadID    string `json:"thread_id,omitempty"`
	DisplayName string `json:"display_name"`
	Connected   bool   `json:"connected"`
}

// Configured reports whether a credential and an assistant reference are present
func (s Session) Configured() bool {
	return s.Credential != "" && s.AssistantID != ""
}

// SameCredentials reports whether s was created for the same key and assistant
func (s Session) SameCredentials(credential, assistantID string) bool {
	return s.Credential == credential && s.AssistantID == assistantID
}

// Fingerprint returns a short, non-reversible identifier for the credential, safe to log
func (s Session) Fingerprint() string {
	return Fingerprint(s.Credential)
}

// Fingerprint hashes a credential into a short identifier
func Fingerprint(credential string) string {
	if credential == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(credential))
	return fmt.Sprintf("%x", sum[:4])
}

// Log is the ordered, append-only conversation log. It is safe for concurrent use.
type Log struct {
	mu       sync.RWMutex
	messages []Message
	now      func() time.Time
}

// NewLog creates an empty log
func NewLog() *Log {
	return &Log{
		messages: []Message{},
		now:      time.Now,
	}
}

// Append adds a message to the end of the log and returns the stored copy
func (l *Log) Append(sender Sender, text string) Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	msg := Message{
		Text:      text,
		Sender:    sender,
		Timestamp: l.now(),
	}
	l.messages = append(l.messages, msg)
	return msg
}

// Messages returns a copy of the log in insertion order
func (l *Log) Messages() []Message {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Message, len(l.messages))
	copy(out, l.messages)
	return out
}

// Len returns the number of messages in the log
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.messages)
}

// Clear empties the log
func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = []Message{}
}
