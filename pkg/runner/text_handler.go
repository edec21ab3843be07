package runner

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/fsmsim/pkg/domain"
)

// LineStyler decorates one action-log line before it is printed.
// This allows for terminal colours without coupling the core package.
type LineStyler func(string) string

// TextHandler implements the line-based REPL.
type TextHandler struct {
	Reader *bufio.Reader
	Writer io.Writer
	Styler LineStyler
	Prompt string

	inputChan chan inputResult
	startOnce sync.Once
}

type inputResult struct {
	text string
	err  error
}

// TextHandlerOption defines configuration for TextHandler.
type TextHandlerOption func(*TextHandler)

// WithTextHandlerStyler configures the log line styler.
func WithTextHandlerStyler(styler LineStyler) TextHandlerOption {
	return func(h *TextHandler) {
		h.Styler = styler
	}
}

// WithPrompt replaces the default "> " prompt. An empty prompt disables it.
func WithPrompt(prompt string) TextHandlerOption {
	return func(h *TextHandler) {
		h.Prompt = prompt
	}
}

// NewTextHandler creates a handler for standard text IO.
func NewTextHandler(r io.Reader, w io.Writer, opts ...TextHandlerOption) *TextHandler {
	if r == nil {
		r = os.Stdin
	}
	if w == nil {
		w = os.Stdout
	}
	h := &TextHandler{
		Reader: bufio.NewReader(r),
		Writer: w,
		Prompt: "> ",
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *TextHandler) initPump() {
	h.startOnce.Do(func() {
		h.inputChan = make(chan inputResult)
		go h.pump()
	})
}

// pump reads lines in the background so Input can honour cancellation while
// the reader blocks.
func (h *TextHandler) pump() {
	for {
		text, err := h.Reader.ReadString('\n')

		// If we got text (even with EOF), send it
		if text != "" {
			h.inputChan <- inputResult{text: text}
		}

		if err != nil {
			if err == io.EOF {
				close(h.inputChan)
				return
			}
			h.inputChan <- inputResult{err: err}
			// Backoff for non-fatal errors to prevent CPU spikes on persistent failure
			time.Sleep(50 * time.Millisecond)
		}
	}
}

// Input reads lines until one parses into a command. ":help" is answered
// here and never reaches the runner.
func (h *TextHandler) Input(ctx context.Context) (domain.Command, error) {
	h.initPump()

	for {
		select {
		case <-ctx.Done():
			return domain.Command{}, ctx.Err()
		default:
			fmt.Fprint(h.Writer, h.Prompt)
		}

		select {
		case <-ctx.Done():
			return domain.Command{}, ctx.Err()
		case res, ok := <-h.inputChan:
			if !ok {
				return domain.Command{}, io.EOF
			}
			if res.err != nil {
				return domain.Command{}, res.err
			}

			clean, err := SanitizeEvent(res.text)
			if err != nil {
				return domain.Command{}, err
			}
			if clean == ":help" || clean == ":h" {
				fmt.Fprintln(h.Writer, helpText)
				continue
			}
			return ParseLine(clean)
		}
	}
}

// Output prints the action log followed by a one-line status.
func (h *TextHandler) Output(ctx context.Context, out Output) error {
	for _, line := range out.Log {
		if h.Styler != nil {
			line = h.Styler(line)
		}
		if _, err := fmt.Fprintln(h.Writer, line); err != nil {
			return err
		}
	}
	if out.Error != "" {
		fmt.Fprintf(h.Writer, "Error: %s\n", out.Error)
	}
	_, err := fmt.Fprintln(h.Writer, statusLine(out.Snapshot))
	return err
}

func (h *TextHandler) SystemOutput(ctx context.Context, msg string) error {
	_, err := fmt.Fprintf(h.Writer, "Error: %s\n", msg)
	return err
}

func statusLine(snap domain.Snapshot) string {
	var b strings.Builder
	state := strings.Join(snap.ActivePath, " / ")
	if state == "" {
		state = snap.CurrentState
	}
	if state == "" {
		state = "(none)"
	}
	fmt.Fprintf(&b, "State: %s | Tick %d", state, snap.Tick)
	if snap.Paused {
		b.WriteString(" | PAUSED")
	}
	if snap.Halted {
		b.WriteString(" | HALTED")
	}
	if len(snap.PossibleEvents) > 0 {
		fmt.Fprintf(&b, " | Events: %s", strings.Join(snap.PossibleEvents, ", "))
	}
	return b.String()
}
