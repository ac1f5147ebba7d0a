// ABOUTME: Frame codec for the SSE chat wire protocol.
// ABOUTME: Encodes events to "data: ..." frames and decodes payload lines back.

package wire

import (
	"encoding/json"
	"fmt"
)

// Sentinel is the literal payload that marks normal stream termination.
const Sentinel = "[DONE]"

// Prefix is the SSE field prefix carried by every frame line.
const Prefix = "data: "

// Frame is one logical unit on the wire. Exactly one of the payload
// fields is set per frame; Done marks the [DONE] sentinel and carries
// no payload at all.
type Frame struct {
	SessionID string   `json:"sessionId,omitempty"`
	Content   string   `json:"content,omitempty"`
	Sources   []string `json:"sources,omitempty"`
	Error     string   `json:"error,omitempty"`
	Details   string   `json:"details,omitempty"`

	Done bool `json:"-"`
}

// SessionFrame announces the upstream session id to the consumer.
func SessionFrame(id string) Frame {
	return Frame{SessionID: id}
}

// ContentFrame carries one incremental content delta.
func ContentFrame(text string) Frame {
	return Frame{Content: text}
}

// SourcesFrame replaces the in-progress message's source list.
func SourcesFrame(sources []string) Frame {
	return Frame{Sources: sources}
}

// ErrorFrame carries a terminal error with an optional detail string.
func ErrorFrame(msg, details string) Frame {
	return Frame{Error: msg, Details: details}
}

// DoneFrame is the terminal sentinel.
func DoneFrame() Frame {
	return Frame{Done: true}
}

// Encode serializes a frame to its exact wire bytes:
// "data: " + JSON + "\n\n" for structured frames, or "data: [DONE]\n\n"
// for the sentinel.
func Encode(f Frame) ([]byte, error) {
	if f.Done {
		return []byte(Prefix + Sentinel + "\n\n"), nil
	}
	payload, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("marshaling frame: %w", err)
	}
	out := make([]byte, 0, len(Prefix)+len(payload)+2)
	out = append(out, Prefix...)
	out = append(out, payload...)
	out = append(out, '\n', '\n')
	return out, nil
}

// Decode parses a payload line with the "data: " prefix already stripped.
// Returns nil for anything that is neither the sentinel nor valid JSON;
// such lines are non-fatal and the caller discards them.
func Decode(payload string) *Frame {
	if payload == Sentinel {
		return &Frame{Done: true}
	}
	var f Frame
	if err := json.Unmarshal([]byte(payload), &f); err != nil {
		return nil
	}
	return &f
}
