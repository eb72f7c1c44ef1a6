package remote

import (
	"encoding/json"
	"fmt"

	"github.com/vango-dev/ctrlbind/pkg/view"
)

// FrameType identifies a client frame.
type FrameType string

const (
	// FrameLoad loads the session tree.
	FrameLoad FrameType = "load"

	// FrameUnload unloads the session tree.
	FrameUnload FrameType = "unload"

	// FrameRaise raises an event on an element.
	FrameRaise FrameType = "raise"

	// FrameSet sets a string property on an element.
	FrameSet FrameType = "set"

	// FrameSnapshot only requests the current tree.
	FrameSnapshot FrameType = "snapshot"
)

// Frame is a message sent by a client.
type Frame struct {
	Type FrameType `json:"type"`

	// Seq is echoed in the reply.
	Seq int `json:"seq,omitempty"`

	// Element names the target element. Empty means the root.
	Element string `json:"element,omitempty"`

	// Event is the event raised by a raise frame.
	Event string `json:"event,omitempty"`

	// Key is the key of KeyDown and KeyUp events.
	Key string `json:"key,omitempty"`

	// Text is the new text of TextChanged events.
	Text string `json:"text,omitempty"`

	// Prop and Value are the property set by a set frame.
	Prop  string `json:"prop,omitempty"`
	Value string `json:"value,omitempty"`
}

// ReplyType identifies a server reply.
type ReplyType string

const (
	// ReplySnapshot carries the tree after a frame was applied.
	ReplySnapshot ReplyType = "snapshot"

	// ReplyError reports a frame that failed.
	ReplyError ReplyType = "error"
)

// Reply is a message sent to the client after each frame.
type Reply struct {
	Type  ReplyType      `json:"type"`
	Seq   int            `json:"seq,omitempty"`
	Tree  *view.Snapshot `json:"tree,omitempty"`
	Error string         `json:"error,omitempty"`
	Code  string         `json:"code,omitempty"`
}

// DecodeFrame parses a client frame.
func DecodeFrame(data []byte) (*Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("remote: decode frame: %w", err)
	}
	switch f.Type {
	case FrameLoad, FrameUnload, FrameSnapshot:
	case FrameRaise:
		if f.Event == "" {
			return nil, fmt.Errorf("remote: raise frame without event")
		}
	case FrameSet:
		if f.Prop == "" {
			return nil, fmt.Errorf("remote: set frame without prop")
		}
	default:
		return nil, fmt.Errorf("remote: unknown frame type %q", f.Type)
	}
	return &f, nil
}

// args builds the event data of a raise frame.
func (f *Frame) args() view.EventArgs {
	switch f.Event {
	case view.EventKeyDown, view.EventKeyUp:
		return view.NewKeyArgs(f.Event, view.Key(f.Key))
	case view.EventTextChanged:
		return view.NewTextArgs(f.Text)
	}
	return nil
}
