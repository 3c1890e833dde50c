package chatbot

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"AssistantChat/internal/config"
	"AssistantChat/internal/session"
)

var setupInstructions = []string{
	"Go to Open AI: https://openai.com/",
	"Create Account",
	"Create Project",
	"Create Assistant",
	"Provide Assistant details like name and instructions",
	"Attach any word or PDF document with question and answers or any document with details that user would like to talk to",
	"Copy the Assistant Key",
	"Create API Key",
	"Use the keys in the AI Chat Assistant with /set key, /set assistant and /connect",
}

// Settings are the values the user edits from the REPL before connecting
type Settings struct {
	APIKey      string
	AssistantID string
	AppName     string
	Theme       string
}

// SettingsFromConfig copies the user-editable fields out of cfg
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		APIKey:      cfg.APIKey,
		AssistantID: cfg.AssistantID,
		AppName:     cfg.AppName,
		Theme:       cfg.Theme,
	}
}

// REPL is the terminal front end for a Controller
type REPL struct {
	ctrl     *Controller
	settings Settings
	in       io.Reader
	out      io.Writer
	theme    Theme
	logger   *slog.Logger
	shown    int
}

// NewREPL creates a REPL reading commands from in and writing to out
func NewREPL(ctrl *Controller, settings Settings, in io.Reader, out io.Writer, logger *slog.Logger) *REPL {
	if logger == nil {
		logger = slog.Default()
	}
	return &REPL{
		ctrl:     ctrl,
		settings: settings,
		in:       in,
		out:      out,
		theme:    NewTheme(settings.Theme, out),
		logger:   logger,
	}
}

// Run starts the chat loop and returns when input ends or /quit is entered
func (r *REPL) Run(ctx context.Context) error {
	fmt.Fprintln(r.out, r.theme.header.Render("=== "+r.settings.AppName+" ==="))
	fmt.Fprintln(r.out, "Type /help for commands, /quit to exit")
	fmt.Fprintln(r.out)

	scanner := bufio.NewScanner(r.in)

	for {
		fmt.Fprint(r.out, r.theme.prompt.Render("> "))
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			shouldQuit, err := r.handleCommand(ctx, input)
			if err != nil {
				fmt.Fprintf(r.out, "Error: %v\n", err)
				r.logger.Error("command error", "command", strings.Fields(input)[0], "error", err)
			}
			r.flush()
			if shouldQuit {
				break
			}
			continue
		}

		r.send(ctx, input)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	fmt.Fprintln(r.out, "Goodbye!")
	return nil
}

// send runs one turn; Ctrl-C cancels the turn without leaving the REPL
func (r *REPL) send(ctx context.Context, input string) {
	turnCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	r.flush()
	if r.ctrl.Session().Connected {
		fmt.Fprintln(r.out, r.theme.system.Render("Loading..."))
	}

	if _, err := r.ctrl.SendTurn(turnCtx, input); errors.Is(err, ErrTurnInFlight) {
		fmt.Fprintf(r.out, "Error: %v\n", err)
	}
	r.flush()
}

// flush writes log entries that have not been displayed yet
func (r *REPL) flush() {
	msgs := r.ctrl.Messages()
	if r.shown > len(msgs) {
		r.shown = 0
	}
	for _, msg := range msgs[r.shown:] {
		r.printMessage(msg)
	}
	r.shown = len(msgs)
}

func (r *REPL) printMessage(msg session.Message) {
	label := r.theme.label(msg.Sender)
	if msg.Sender != session.SenderAssistant {
		fmt.Fprintln(r.out, label, r.theme.body.Render(msg.Text))
		return
	}
	fmt.Fprintln(r.out, label)
	for _, line := range FormatReply(msg.Text) {
		fmt.Fprintln(r.out, "  "+r.theme.body.Render(line))
	}
	fmt.Fprintln(r.out)
}

// handleCommand handles special commands
func (r *REPL) handleCommand(ctx context.Context, cmd string) (bool, error) {
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return false, nil
	}

	switch parts[0] {
	case "/quit", "/exit":
		return true, nil

	case "/connect":
		if len(parts) > 1 {
			r.updateKey(parts[1])
		}
		if len(parts) > 2 {
			r.updateAssistant(parts[2])
		}
		if len(parts) > 3 {
			r.settings.AppName = strings.Join(parts[3:], " ")
		}
		sess, err := r.ctrl.Connect(ctx, r.settings.APIKey, r.settings.AssistantID, r.settings.AppName)
		if err != nil {
			return false, err
		}
		r.logger.Info("session connected", "thread_id", sess.ThreadID)
		return false, nil

	case "/set":
		if len(parts) < 3 {
			return false, fmt.Errorf("usage: /set <key|assistant|name> <value>")
		}
		value := strings.Join(parts[2:], " ")
		switch parts[1] {
		case "key":
			r.updateKey(value)
			fmt.Fprintln(r.out, "API key updated")
		case "assistant":
			r.updateAssistant(value)
			fmt.Fprintln(r.out, "Assistant ID updated")
		case "name":
			r.settings.AppName = value
			fmt.Fprintf(r.out, "Application name set to: %s\n", value)
		default:
			return false, fmt.Errorf("unknown setting: %s", parts[1])
		}
		return false, nil

	case "/settings":
		sess := r.ctrl.Session()
		fmt.Fprintln(r.out, "\nSettings:")
		fmt.Fprintf(r.out, "  Application name: %s\n", r.settings.AppName)
		fmt.Fprintf(r.out, "  API key:          %s\n", maskKey(r.settings.APIKey))
		fmt.Fprintf(r.out, "  Assistant ID:     %s\n", valueOrUnset(r.settings.AssistantID))
		fmt.Fprintf(r.out, "  Theme:            %s\n", r.theme.Name)
		fmt.Fprintf(r.out, "  Connected:        %t\n", sess.Connected)
		if sess.ThreadID != "" {
			fmt.Fprintf(r.out, "  Thread:           %s\n", sess.ThreadID)
		}
		fmt.Fprintln(r.out)
		return false, nil

	case "/theme":
		if len(parts) < 2 {
			return false, fmt.Errorf("usage: /theme <%s>", strings.Join(config.Themes, "|"))
		}
		if !config.ValidTheme(parts[1]) {
			return false, fmt.Errorf("unknown theme: %s", parts[1])
		}
		r.settings.Theme = parts[1]
		r.theme = NewTheme(parts[1], r.out)
		fmt.Fprintf(r.out, "Switched to %s theme\n", parts[1])
		return false, nil

	case "/history":
		r.shown = 0
		return false, nil

	case "/clear":
		r.ctrl.ClearLog()
		r.shown = 0
		fmt.Fprintln(r.out, "Conversation cleared")
		return false, nil

	case "/help":
		fmt.Fprintln(r.out, "Available commands:")
		fmt.Fprintln(r.out, "  /connect [key] [assistant] [name] - Connect to the assistant")
		fmt.Fprintln(r.out, "  /set <key|assistant|name> <value> - Update a setting")
		fmt.Fprintln(r.out, "  /settings                         - Show current settings")
		fmt.Fprintf(r.out, "  /theme <%s>    - Switch color theme\n", strings.Join(config.Themes, "|"))
		fmt.Fprintln(r.out, "  /history                          - Show the whole conversation")
		fmt.Fprintln(r.out, "  /clear                            - Clear the conversation")
		fmt.Fprintln(r.out, "  /quit, /exit                      - Exit")
		fmt.Fprintln(r.out, "\nGetting started:")
		for i, step := range setupInstructions {
			fmt.Fprintf(r.out, "  %d. %s\n", i+1, step)
		}
		fmt.Fprintln(r.out)
		return false, nil

	default:
		return false, fmt.Errorf("unknown command: %s", parts[0])
	}
}

// updateKey stores a new credential, dropping the session if it changed
func (r *REPL) updateKey(key string) {
	if key != r.settings.APIKey {
		r.settings.APIKey = key
		r.ctrl.Reset()
	}
}

// updateAssistant stores a new assistant reference, dropping the session if it changed
func (r *REPL) updateAssistant(id string) {
	if id != r.settings.AssistantID {
		r.settings.AssistantID = id
		r.ctrl.Reset()
	}
}

func valueOrUnset(v string) string {
	if v == "" {
		return "(not set)"
	}
	return v
}
