package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Client-side entry points invoked by the bridge. The frontend transport
// resolves these names to functions in the inspector page.
const (
	FnDispatchMessage      = "DevToolsAPI.dispatchMessage"
	FnDispatchMessageChunk = "DevToolsAPI.dispatchMessageChunk"
	FnStreamWrite          = "DevToolsAPI.streamWrite"
	FnMessageAck           = "DevToolsAPI.embedderMessageAck"
	FnAddExtensions        = "DevToolsAPI.addExtensions"
	FnSetDockSide          = "Components.dockController.setDockSide"
)

var (
	// ErrMissingMethod indicates an inbound message without a method name.
	ErrMissingMethod = errors.New("message has no method")
	// ErrTooManyArgs indicates a client call with more than three arguments.
	ErrTooManyArgs = errors.New("client calls take at most three arguments")
)

// Message is one inbound frontend request: an optional numeric id, a
// method name, and an ordered parameter list. Immutable once parsed.
type Message struct {
	ID     int
	HasID  bool
	Method string
	Params []json.RawMessage
}

// wireMessage mirrors the frontend wire format. A pointer id
// distinguishes "absent" from a literal zero.
type wireMessage struct {
	ID     *int              `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

// Parse decodes one inbound frontend message. A missing params array
// yields an empty parameter list, never nil.
func Parse(raw []byte) (Message, error) {
	var wire wireMessage
	if err := json.Unmarshal(raw, &wire); err != nil {
		return Message{}, fmt.Errorf("malformed message: %w", err)
	}
	if wire.Method == "" {
		return Message{}, ErrMissingMethod
	}

	msg := Message{
		Method: wire.Method,
		Params: wire.Params,
	}
	if msg.Params == nil {
		msg.Params = []json.RawMessage{}
	}
	if wire.ID != nil {
		msg.ID = *wire.ID
		msg.HasID = true
	}
	return msg, nil
}

// Param decodes the i-th parameter into out. Out-of-range parameters
// are an error; the caller decides whether that drops the message.
func (m Message) Param(i int, out any) error {
	if i < 0 || i >= len(m.Params) {
		return fmt.Errorf("method %q: missing param %d", m.Method, i)
	}
	if err := json.Unmarshal(m.Params[i], out); err != nil {
		return fmt.Errorf("method %q: param %d: %w", m.Method, i, err)
	}
	return nil
}
