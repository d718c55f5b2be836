package api

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nyabot/nyabot/onebot"
)

// fakeSend records the last call and returns a canned response.
func fakeSend(resp *onebot.Response, err error) (SendFunc, *struct {
	Action string
	Params interface{}
}) {
	last := &struct {
		Action string
		Params interface{}
	}{}
	return func(ctx context.Context, action string, params interface{}, timeout time.Duration) (*onebot.Response, error) {
		last.Action = action
		last.Params = params
		return resp, err
	}, last
}

func TestSendOK(t *testing.T) {
	send, last := fakeSend(&onebot.Response{Retcode: 0, Data: json.RawMessage(`{"ok":true}`)}, nil)
	c := New(send, time.Second)

	data, err := c.Send(context.Background(), "get_login_info", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(data))
	assert.Equal(t, "get_login_info", last.Action)
}

func TestSendGatewayError(t *testing.T) {
	send, _ := fakeSend(&onebot.Response{Retcode: 1400, Message: "bad request", Status: "failed"}, nil)
	c := New(send, time.Second)

	_, err := c.Send(context.Background(), "send_group_msg", nil)
	require.Error(t, err)

	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 1400, apiErr.Code)
	assert.Equal(t, "bad request", apiErr.Message)
	assert.Contains(t, apiErr.Error(), "send_group_msg")
}

func TestSendGroupMessage(t *testing.T) {
	send, last := fakeSend(&onebot.Response{Retcode: 0, Data: json.RawMessage(`{"message_id":730001}`)}, nil)
	c := New(send, time.Second)

	id, err := c.SendGroupMessage(context.Background(), "12345", onebot.NewText("hi"))
	require.NoError(t, err)
	assert.Equal(t, onebot.ID("730001"), id)

	params := last.Params.(map[string]interface{})
	assert.Equal(t, onebot.ID("12345"), params["group_id"])
}

func TestSendPrivateMessage(t *testing.T) {
	send, _ := fakeSend(&onebot.Response{Retcode: 0, Data: json.RawMessage(`{"message_id":"9"}`)}, nil)
	c := New(send, time.Second)

	id, err := c.SendPrivateMessage(context.Background(), "777", onebot.NewText("yo"))
	require.NoError(t, err)
	assert.Equal(t, onebot.ID("9"), id)
}

func TestRequestApproval(t *testing.T) {
	send, last := fakeSend(&onebot.Response{Retcode: 0}, nil)
	c := New(send, time.Second)

	require.NoError(t, c.SetFriendAddRequest(context.Background(), "flag1", true, "pal"))
	assert.Equal(t, "set_friend_add_request", last.Action)

	require.NoError(t, c.SetGroupAddRequest(context.Background(), "flag2", false, "nope"))
	assert.Equal(t, "set_group_add_request", last.Action)
	params := last.Params.(map[string]interface{})
	assert.Equal(t, false, params["approve"])
	assert.Equal(t, "nope", params["reason"])
}
