package event

import (
	"context"
	"encoding/json"

	"github.com/nyabot/nyabot/api"
	"github.com/nyabot/nyabot/onebot"
)

// Notice is a gateway notification: uploads, admin changes, member joins
// and leaves, recalls, bans, pokes, emoji reactions.
type Notice struct {
	Base
	NoticeType string    `json:"notice_type"`
	SubType    string    `json:"sub_type,omitempty"`
	UserID     onebot.ID `json:"user_id,omitempty"`
	GroupID    onebot.ID `json:"group_id,omitempty"`
	OperatorID onebot.ID `json:"operator_id,omitempty"`
	TargetID   onebot.ID `json:"target_id,omitempty"`
	MessageID  onebot.ID `json:"message_id,omitempty"`

	// Duration is the ban length in seconds for group_ban notices.
	Duration int64 `json:"duration,omitempty"`
	// File describes the upload for group_upload notices.
	File json.RawMessage `json:"file,omitempty"`
	// RawInfo carries the gateway's unparsed notify payload.
	RawInfo json.RawMessage `json:"raw_info,omitempty"`
	// HonorType is set for notify/honor notices.
	HonorType string `json:"honor_type,omitempty"`
	// Likes is set for group_msg_emoji_like notices.
	Likes json.RawMessage `json:"likes,omitempty"`
}

func (e *Notice) EventType() string { return TypeNotice }

// IsGroupNotice reports whether the notice concerns a group.
func (e *Notice) IsGroupNotice() bool { return e.GroupID != "" }

// Request is a friend or group join request awaiting approval.
type Request struct {
	Base
	RequestType string    `json:"request_type"`
	SubType     string    `json:"sub_type,omitempty"`
	Comment     string    `json:"comment,omitempty"`
	Flag        string    `json:"flag"`
	UserID      onebot.ID `json:"user_id,omitempty"`
	GroupID     onebot.ID `json:"group_id,omitempty"`

	api *api.Caller
}

func (e *Request) EventType() string { return TypeRequest }

// BindAPI attaches the API handle; called by the dispatcher before publish.
func (e *Request) BindAPI(caller *api.Caller) { e.api = caller }

// Approve answers the request. For friend requests comment sets the
// friend remark; for group requests it is the rejection reason.
func (e *Request) Approve(ctx context.Context, accept bool, comment string) error {
	if e.RequestType == "friend" {
		return e.api.SetFriendAddRequest(ctx, e.Flag, accept, comment)
	}
	return e.api.SetGroupAddRequest(ctx, e.Flag, accept, comment)
}

// IsFriendRequest reports whether this is a friend request.
func (e *Request) IsFriendRequest() bool { return e.RequestType == "friend" }

// IsGroupRequest reports whether this is a group join/invite request.
func (e *Request) IsGroupRequest() bool { return e.RequestType == "group" }

// Meta is a lifecycle or heartbeat event from the gateway itself.
type Meta struct {
	Base
	MetaEventType string `json:"meta_event_type"`
	SubType       string `json:"sub_type,omitempty"`
	// Interval is the heartbeat period in milliseconds.
	Interval int64 `json:"interval,omitempty"`
	// Status is the gateway's opaque health blob.
	Status json.RawMessage `json:"status,omitempty"`
}

// EventType splits meta events: lifecycle connect becomes the startup
// event, heartbeats keep their own type.
func (e *Meta) EventType() string {
	if e.MetaEventType == "heartbeat" {
		return TypeHeartbeat
	}
	return TypeStartup
}

// IsHeartbeat reports whether this is a heartbeat.
func (e *Meta) IsHeartbeat() bool { return e.MetaEventType == "heartbeat" }
