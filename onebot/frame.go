package onebot

import (
	"encoding/json"
	"strings"

	"github.com/nyabot/nyabot/errors"
)

// Request is an outbound API call frame.
type Request struct {
	Action string          `json:"action"`
	Params json.RawMessage `json:"params"`
	Echo   string          `json:"echo"`
}

// EncodeRequest builds an outbound frame. A leading "/" on the action is
// stripped; params may be any JSON-marshalable value (nil means `{}`).
func EncodeRequest(action string, params interface{}, echo string) ([]byte, error) {
	action = strings.TrimPrefix(action, "/")
	if action == "" {
		return nil, errors.New("empty action")
	}
	var raw json.RawMessage
	if params == nil {
		raw = json.RawMessage(`{}`)
	} else {
		buf, err := json.Marshal(params)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to marshal params for %s", action)
		}
		raw = buf
	}
	return json.Marshal(Request{Action: action, Params: raw, Echo: echo})
}

// Response is an inbound API response frame, correlated by echo.
type Response struct {
	Status  string          `json:"status"`
	Retcode int             `json:"retcode"`
	Message string          `json:"message"`
	Wording string          `json:"wording,omitempty"`
	Data    json.RawMessage `json:"data"`
	Echo    string          `json:"echo"`
}

// OK reports whether the gateway accepted the call.
func (r *Response) OK() bool { return r.Retcode == 0 }

// Frame is one decoded inbound JSON object, classified as either an event
// (post_type present) or a response (echo present, post_type absent).
type Frame struct {
	// PostType is one of message, message_sent, notice, request, meta_event;
	// empty for responses.
	PostType string
	// Raw is the full frame for event decoding.
	Raw json.RawMessage
	// Response is set when the frame is a response.
	Response *Response
}

// IsResponse reports whether this frame answers a pending request.
func (f *Frame) IsResponse() bool { return f.Response != nil }

// DecodeFrame classifies one inbound wire object.
func DecodeFrame(data []byte) (*Frame, error) {
	var head struct {
		PostType string          `json:"post_type"`
		Echo     json.RawMessage `json:"echo"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, errors.Wrap(err, "malformed frame")
	}

	if head.PostType != "" {
		return &Frame{PostType: head.PostType, Raw: json.RawMessage(data)}, nil
	}
	if len(head.Echo) > 0 {
		var resp Response
		if err := json.Unmarshal(data, &resp); err != nil {
			return nil, errors.Wrap(err, "malformed response frame")
		}
		return &Frame{Response: &resp, Raw: json.RawMessage(data)}, nil
	}
	return nil, errors.New("frame has neither post_type nor echo")
}
