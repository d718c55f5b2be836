package event

import (
	"context"

	"github.com/nyabot/nyabot/api"
	"github.com/nyabot/nyabot/errors"
	"github.com/nyabot/nyabot/onebot"
)

// Base carries the fields present on every event frame.
type Base struct {
	SelfID   onebot.ID `json:"self_id"`
	Time     int64     `json:"time"`
	PostType string    `json:"post_type"`
}

// Sender is the sender block of a message event. Role is set for group
// messages: owner, admin or member.
type Sender struct {
	UserID   onebot.ID `json:"user_id"`
	Nickname string    `json:"nickname"`
	Card     string    `json:"card,omitempty"`
	Role     string    `json:"role,omitempty"`
	Title    string    `json:"title,omitempty"`
}

// messageCommon is shared by group, private and message-sent events.
type messageCommon struct {
	Base
	MessageType string         `json:"message_type"`
	SubType     string         `json:"sub_type"`
	MessageID   onebot.ID      `json:"message_id"`
	UserID      onebot.ID      `json:"user_id"`
	Message     onebot.Message `json:"message"`
	RawMessage  string         `json:"raw_message"`
	Sender      Sender         `json:"sender"`

	// api is the borrowed handle bound by the dispatcher, valid for the
	// handler's scope.
	api *api.Caller
}

// BindAPI attaches the API handle; called by the dispatcher before publish.
func (m *messageCommon) BindAPI(caller *api.Caller) { m.api = caller }

// API returns the bound API handle.
func (m *messageCommon) API() *api.Caller { return m.api }

// MessageEvent is the common view the command engine works against.
type MessageEvent interface {
	EventType() string
	GetMessage() onebot.Message
	SenderID() onebot.ID
	SenderInfo() Sender
	IsGroup() bool
	// Group returns the group id, or "" for private messages.
	Group() onebot.ID
	API() *api.Caller
	Reply(ctx context.Context, message onebot.Message) (onebot.ID, error)
}

// GroupMessage is a message received in a group.
type GroupMessage struct {
	messageCommon
	GroupID onebot.ID `json:"group_id"`
	// Anonymous is set for anonymous group messages.
	Anonymous *Anonymous `json:"anonymous,omitempty"`
}

// Anonymous describes an anonymous group sender.
type Anonymous struct {
	ID   onebot.ID `json:"id,omitempty"`
	Name string    `json:"name,omitempty"`
	Flag string    `json:"flag,omitempty"`
}

func (e *GroupMessage) EventType() string          { return TypeGroupMessage }
func (e *GroupMessage) GetMessage() onebot.Message { return e.Message }
func (e *GroupMessage) SenderID() onebot.ID        { return e.UserID }
func (e *GroupMessage) SenderInfo() Sender         { return e.Sender }
func (e *GroupMessage) IsGroup() bool              { return true }
func (e *GroupMessage) Group() onebot.ID           { return e.GroupID }

// Reply sends a message to the group, quoting the original message.
func (e *GroupMessage) Reply(ctx context.Context, message onebot.Message) (onebot.ID, error) {
	if e.api == nil {
		return "", errors.ErrNotConnected
	}
	quoted := onebot.NewMessage(&onebot.Reply{ID: e.MessageID}).Append(message...)
	return e.api.SendGroupMessage(ctx, e.GroupID, quoted)
}

// ReplyText replies with plain text.
func (e *GroupMessage) ReplyText(ctx context.Context, text string) (onebot.ID, error) {
	return e.Reply(ctx, onebot.NewText(text))
}

// PrivateMessage is a direct message.
type PrivateMessage struct {
	messageCommon
}

func (e *PrivateMessage) EventType() string          { return TypePrivateMessage }
func (e *PrivateMessage) GetMessage() onebot.Message { return e.Message }
func (e *PrivateMessage) SenderID() onebot.ID        { return e.UserID }
func (e *PrivateMessage) SenderInfo() Sender         { return e.Sender }
func (e *PrivateMessage) IsGroup() bool              { return false }
func (e *PrivateMessage) Group() onebot.ID           { return "" }

// Reply sends a direct message back to the sender.
func (e *PrivateMessage) Reply(ctx context.Context, message onebot.Message) (onebot.ID, error) {
	if e.api == nil {
		return "", errors.ErrNotConnected
	}
	return e.api.SendPrivateMessage(ctx, e.UserID, message)
}

// ReplyText replies with plain text.
func (e *PrivateMessage) ReplyText(ctx context.Context, text string) (onebot.ID, error) {
	return e.Reply(ctx, onebot.NewText(text))
}

// MessageSent reports a message the bot account itself sent.
type MessageSent struct {
	messageCommon
	GroupID         onebot.ID `json:"group_id,omitempty"`
	TargetID        onebot.ID `json:"target_id,omitempty"`
	MessageSentType string    `json:"message_sent_type,omitempty"`
	RealSeq         onebot.ID `json:"real_seq,omitempty"`
}

func (e *MessageSent) EventType() string { return TypeMessageSent }
