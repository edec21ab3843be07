package runner

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/aretw0/fsmsim/pkg/domain"
)

// JSONHandler implements the IOHandler interface for structured JSON-Lines communication.
//
// Each input line is either a domain.Command object or a JSON string, which
// is delivered as an event. Each output is one JSON object per line.
type JSONHandler struct {
	Reader *bufio.Reader
	Writer io.Writer

	mu      sync.Mutex
	encoder *json.Encoder
}

// systemMessage is the line emitted by SystemOutput.
type systemMessage struct {
	System string `json:"system"`
}

// NewJSONHandler creates a handler for JSON IO.
func NewJSONHandler(r io.Reader, w io.Writer) *JSONHandler {
	if r == nil {
		r = os.Stdin
	}
	if w == nil {
		w = os.Stdout
	}
	return &JSONHandler{
		Reader:  bufio.NewReader(r),
		Writer:  w,
		encoder: json.NewEncoder(w),
	}
}

func (h *JSONHandler) Input(ctx context.Context) (domain.Command, error) {
	if err := ctx.Err(); err != nil {
		return domain.Command{}, err
	}
	for {
		text, err := h.Reader.ReadString('\n')
		if err != nil && (err != io.EOF || text == "") {
			return domain.Command{}, err
		}
		text = string(bytes.TrimSpace([]byte(text)))
		if text == "" {
			if err == io.EOF {
				return domain.Command{}, io.EOF
			}
			continue
		}
		if len(text) > getMaxInputSize() {
			return domain.Command{}, fmt.Errorf("%w: size=%d limit=%d", ErrInputTooLarge, len(text), getMaxInputSize())
		}
		return decodeCommand([]byte(text))
	}
}

func decodeCommand(data []byte) (domain.Command, error) {
	var event string
	if err := json.Unmarshal(data, &event); err == nil {
		clean, err := SanitizeEvent(event)
		if err != nil {
			return domain.Command{}, err
		}
		return domain.Command{Op: domain.OpStep, Event: clean}, nil
	}

	var cmd domain.Command
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&cmd); err != nil {
		return domain.Command{}, fmt.Errorf("%w: %v", ErrInvalidCommand, err)
	}
	if cmd.Op == "" {
		return domain.Command{}, fmt.Errorf("%w: missing op", ErrInvalidCommand)
	}
	clean, err := SanitizeEvent(cmd.Event)
	if err != nil {
		return domain.Command{}, err
	}
	cmd.Event = clean
	cmd.Value = domain.NormalizeValue(cmd.Value)
	return cmd, nil
}

func (h *JSONHandler) Output(ctx context.Context, out Output) error {
	if out.Log == nil {
		out.Log = []string{}
	}
	return h.encode(out)
}

func (h *JSONHandler) SystemOutput(ctx context.Context, msg string) error {
	return h.encode(systemMessage{System: msg})
}

func (h *JSONHandler) encode(v any) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.encoder.Encode(v)
}
