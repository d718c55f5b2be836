// Package api exposes outbound calls against the OneBot gateway.
//
// The contract is a single send(action, params) capability plus message
// encoding; individual endpoint schemas are gateway-defined and the few
// helpers here only cover what the framework itself needs (replies and
// request approval).
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nyabot/nyabot/errors"
	"github.com/nyabot/nyabot/onebot"
)

// SendFunc performs one correlated request against the gateway.
type SendFunc func(ctx context.Context, action string, params interface{}, timeout time.Duration) (*onebot.Response, error)

// Error is a gateway-level failure: retcode != 0 on an otherwise healthy
// exchange. The gateway's message and code are preserved.
type Error struct {
	Action  string
	Code    int
	Message string
	Wording string
}

func (e *Error) Error() string {
	return fmt.Sprintf("gateway rejected %s: retcode=%d message=%q", e.Action, e.Code, e.Message)
}

// Caller is the API handle threaded onto message events and handed to
// plugins.
type Caller struct {
	send           SendFunc
	defaultTimeout time.Duration
}

// New wraps a send function. defaultTimeout applies when callers pass no
// per-call timeout.
func New(send SendFunc, defaultTimeout time.Duration) *Caller {
	if defaultTimeout <= 0 {
		defaultTimeout = 30 * time.Second
	}
	return &Caller{send: send, defaultTimeout: defaultTimeout}
}

// Send performs one API call with the default timeout and returns the
// response data. retcode != 0 becomes *Error.
func (c *Caller) Send(ctx context.Context, action string, params interface{}) (json.RawMessage, error) {
	return c.SendWithTimeout(ctx, action, params, c.defaultTimeout)
}

// SendWithTimeout performs one API call bounded by an explicit timeout.
func (c *Caller) SendWithTimeout(ctx context.Context, action string, params interface{}, timeout time.Duration) (json.RawMessage, error) {
	resp, err := c.send(ctx, action, params, timeout)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, &Error{Action: action, Code: resp.Retcode, Message: resp.Message, Wording: resp.Wording}
	}
	return resp.Data, nil
}

// messageIDResult is the data shape of send_*_msg responses.
type messageIDResult struct {
	MessageID onebot.ID `json:"message_id"`
}

// SendGroupMessage sends a message array to a group and returns the new
// message id.
func (c *Caller) SendGroupMessage(ctx context.Context, groupID onebot.ID, message onebot.Message) (onebot.ID, error) {
	data, err := c.Send(ctx, "send_group_msg", map[string]interface{}{
		"group_id": groupID,
		"message":  message,
	})
	if err != nil {
		return "", err
	}
	var result messageIDResult
	if err := json.Unmarshal(data, &result); err != nil {
		return "", errors.Wrap(err, "malformed send_group_msg response")
	}
	return result.MessageID, nil
}

// SendPrivateMessage sends a message array to a user and returns the new
// message id.
func (c *Caller) SendPrivateMessage(ctx context.Context, userID onebot.ID, message onebot.Message) (onebot.ID, error) {
	data, err := c.Send(ctx, "send_private_msg", map[string]interface{}{
		"user_id": userID,
		"message": message,
	})
	if err != nil {
		return "", err
	}
	var result messageIDResult
	if err := json.Unmarshal(data, &result); err != nil {
		return "", errors.Wrap(err, "malformed send_private_msg response")
	}
	return result.MessageID, nil
}

// SendGroupText sends plain text to a group.
func (c *Caller) SendGroupText(ctx context.Context, groupID onebot.ID, text string) (onebot.ID, error) {
	return c.SendGroupMessage(ctx, groupID, onebot.NewText(text))
}

// SendPrivateText sends plain text to a user.
func (c *Caller) SendPrivateText(ctx context.Context, userID onebot.ID, text string) (onebot.ID, error) {
	return c.SendPrivateMessage(ctx, userID, onebot.NewText(text))
}

// DeleteMessage recalls a message by id.
func (c *Caller) DeleteMessage(ctx context.Context, messageID onebot.ID) error {
	_, err := c.Send(ctx, "delete_msg", map[string]interface{}{"message_id": messageID})
	return err
}

// SetFriendAddRequest answers a friend request.
func (c *Caller) SetFriendAddRequest(ctx context.Context, flag string, approve bool, remark string) error {
	params := map[string]interface{}{"flag": flag, "approve": approve}
	if remark != "" {
		params["remark"] = remark
	}
	_, err := c.Send(ctx, "set_friend_add_request", params)
	return err
}

// SetGroupAddRequest answers a group join/invite request.
func (c *Caller) SetGroupAddRequest(ctx context.Context, flag string, approve bool, reason string) error {
	params := map[string]interface{}{"flag": flag, "approve": approve}
	if reason != "" {
		params["reason"] = reason
	}
	_, err := c.Send(ctx, "set_group_add_request", params)
	return err
}
