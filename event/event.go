// Package event defines the typed domain events parsed from gateway frames.
//
// Message ids, user ids and group ids arrive as integers on the wire but
// are stored as strings throughout; the framework never does arithmetic on
// them.
package event

// Official event-type strings published on the bus. Plugins subscribe to
// these (or regexes over them).
const (
	TypeGroupMessage   = "nyabot.group_message_event"
	TypePrivateMessage = "nyabot.private_message_event"
	TypeMessageSent    = "nyabot.message_sent_event"
	TypeNotice         = "nyabot.notice_event"
	TypeRequest        = "nyabot.request_event"
	TypeStartup        = "nyabot.startup_event"
	TypeShutdown       = "nyabot.shutdown_event"
	TypeHeartbeat      = "nyabot.heartbeat_event"

	// TypeBindFailed carries a command.BindingError so plugins can render
	// usage help; binding failures are events, not handler exceptions.
	TypeBindFailed = "nyabot.param_bind_failed"
)

// AllOfficialTypes lists every event type the dispatcher can publish.
var AllOfficialTypes = []string{
	TypeGroupMessage,
	TypePrivateMessage,
	TypeMessageSent,
	TypeNotice,
	TypeRequest,
	TypeStartup,
	TypeShutdown,
	TypeHeartbeat,
}
