package onebot

import (
	"encoding/json"
	"strings"

	"github.com/nyabot/nyabot/errors"
)

// Message is an ordered sequence of segments.
//
// Consecutive text segments are fused on ingest (UnmarshalJSON) so downstream
// command parsing sees one contiguous text run; non-text segments keep their
// relative order.
type Message []Segment

// NewMessage builds a message from segments.
func NewMessage(segs ...Segment) Message { return Message(segs) }

// NewText builds a single-text message.
func NewText(text string) Message { return Message{&Text{Text: text}} }

// Append returns the message with additional segments, fusing a trailing
// text segment with a leading one.
func (m Message) Append(segs ...Segment) Message {
	out := m
	for _, seg := range segs {
		if t, ok := seg.(*Text); ok && len(out) > 0 {
			if last, ok := out[len(out)-1].(*Text); ok {
				last.Text += t.Text
				continue
			}
		}
		out = append(out, seg)
	}
	return out
}

// Text concatenates all text-segment content. This is the "raw text" view
// used by the command trigger engine.
func (m Message) Text() string {
	var b strings.Builder
	for _, seg := range m {
		if t, ok := seg.(*Text); ok {
			b.WriteString(t.Text)
		}
	}
	return b.String()
}

// FirstText returns the content of the first text segment, or "".
func (m Message) FirstText() string {
	for _, seg := range m {
		if t, ok := seg.(*Text); ok {
			return t.Text
		}
	}
	return ""
}

// FilterType returns the segments matching a wire type, in order.
func (m Message) FilterType(segmentType string) Message {
	var out Message
	for _, seg := range m {
		if seg.SegmentType() == segmentType {
			out = append(out, seg)
		}
	}
	return out
}

// HasType reports whether the message contains a segment of the given type.
func (m Message) HasType(segmentType string) bool {
	for _, seg := range m {
		if seg.SegmentType() == segmentType {
			return true
		}
	}
	return false
}

// UnmarshalJSON accepts either a segment array or a bare string (the gateway
// emits both; a bare string becomes one text segment).
func (m *Message) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*m = NewText(s)
		return nil
	}

	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return errors.Wrap(err, "malformed message array")
	}
	out := make(Message, 0, len(raws))
	for _, raw := range raws {
		seg, err := DecodeSegment(raw)
		if err != nil {
			return err
		}
		// Fuse consecutive text runs
		if t, ok := seg.(*Text); ok && len(out) > 0 {
			if last, ok := out[len(out)-1].(*Text); ok {
				last.Text += t.Text
				continue
			}
		}
		out = append(out, seg)
	}
	*m = out
	return nil
}

// MarshalJSON emits the wire segment array.
func (m Message) MarshalJSON() ([]byte, error) {
	raws := make([]json.RawMessage, 0, len(m))
	for _, seg := range m {
		raw, err := EncodeSegment(seg)
		if err != nil {
			return nil, err
		}
		raws = append(raws, raw)
	}
	return json.Marshal(raws)
}
