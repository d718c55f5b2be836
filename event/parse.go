package event

import (
	"encoding/json"

	"github.com/nyabot/nyabot/errors"
)

// Typed is implemented by every parsed event.
type Typed interface {
	EventType() string
}

// Parse decodes an event frame into its typed form. The post_type picks
// the shape; message frames split on message_type, meta frames on
// meta_event_type. Unknown post types are an error so the dispatcher can
// log and drop the frame.
func Parse(postType string, raw json.RawMessage) (Typed, error) {
	switch postType {
	case "message":
		return parseMessage(raw)
	case "message_sent":
		ev := &MessageSent{}
		if err := json.Unmarshal(raw, ev); err != nil {
			return nil, errors.Wrap(err, "decoding message_sent event")
		}
		return ev, nil
	case "notice":
		ev := &Notice{}
		if err := json.Unmarshal(raw, ev); err != nil {
			return nil, errors.Wrap(err, "decoding notice event")
		}
		return ev, nil
	case "request":
		ev := &Request{}
		if err := json.Unmarshal(raw, ev); err != nil {
			return nil, errors.Wrap(err, "decoding request event")
		}
		return ev, nil
	case "meta_event":
		ev := &Meta{}
		if err := json.Unmarshal(raw, ev); err != nil {
			return nil, errors.Wrap(err, "decoding meta event")
		}
		return ev, nil
	default:
		return nil, errors.Newf("unknown post_type %q", postType)
	}
}

func parseMessage(raw json.RawMessage) (Typed, error) {
	var head struct {
		MessageType string `json:"message_type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, errors.Wrap(err, "decoding message head")
	}
	switch head.MessageType {
	case "group":
		ev := &GroupMessage{}
		if err := json.Unmarshal(raw, ev); err != nil {
			return nil, errors.Wrap(err, "decoding group message")
		}
		return ev, nil
	case "private":
		ev := &PrivateMessage{}
		if err := json.Unmarshal(raw, ev); err != nil {
			return nil, errors.Wrap(err, "decoding private message")
		}
		return ev, nil
	default:
		return nil, errors.Newf("unknown message_type %q", head.MessageType)
	}
}
