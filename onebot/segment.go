// Package onebot implements the OneBot wire codec: message segments,
// message arrays, and the JSON frames exchanged with the gateway.
package onebot

import (
	"encoding/json"
)

// Segment is one element of a message array. On the wire every segment is
// `{"type": T, "data": {...}}`; decoding dispatches on T to a concrete type
// and unknown data fields are retained verbatim for re-serialization.
type Segment interface {
	SegmentType() string
	// extraFields exposes the retained unknown wire fields.
	extraFields() map[string]json.RawMessage
	setExtraFields(map[string]json.RawMessage)
}

// extra is embedded by every segment type to retain unknown wire fields.
type extra struct {
	Extra map[string]json.RawMessage `json:"-"`
}

func (e *extra) extraFields() map[string]json.RawMessage     { return e.Extra }
func (e *extra) setExtraFields(m map[string]json.RawMessage) { e.Extra = m }

// Text is a plain text run.
type Text struct {
	extra
	Text string `json:"text"`
}

func (*Text) SegmentType() string { return "text" }

// Face is a built-in QQ emoticon referenced by id.
type Face struct {
	extra
	ID ID `json:"id"`
}

func (*Face) SegmentType() string { return "face" }

// At mentions a user. QQ is a numeric id or the literal "all".
type At struct {
	extra
	QQ ID `json:"qq"`
}

func (*At) SegmentType() string { return "at" }

// Reply references the message being replied to.
type Reply struct {
	extra
	ID ID `json:"id"`
}

func (*Reply) SegmentType() string { return "reply" }

// media carries the downloadable-resource fields shared by image, record,
// video and file segments.
type media struct {
	extra
	File     string `json:"file,omitempty"`
	URL      string `json:"url,omitempty"`
	FileID   string `json:"file_id,omitempty"`
	FileSize int64  `json:"file_size,omitempty"`
	FileName string `json:"file_name,omitempty"`
	Base64   string `json:"base64,omitempty"`
}

// Image is a picture attachment.
type Image struct {
	media
	SubType int `json:"sub_type,omitempty"`
}

func (*Image) SegmentType() string { return "image" }

// Record is a voice clip.
type Record struct {
	media
	Magic int `json:"magic,omitempty"`
}

func (*Record) SegmentType() string { return "record" }

// Video is a video attachment.
type Video struct {
	media
}

func (*Video) SegmentType() string { return "video" }

// File is a generic file attachment.
type File struct {
	media
}

func (*File) SegmentType() string { return "file" }

// Node is one entry of a forwarded-message bundle.
type Node struct {
	extra
	UserID   ID      `json:"user_id"`
	Nickname string  `json:"nickname"`
	Content  Message `json:"content"`
}

func (*Node) SegmentType() string { return "node" }

// Forward is a forwarded-message bundle: either a remote id reference or an
// inline list of nodes. Partially elided content received from the gateway
// is preserved opaquely in RawContent and re-emitted on encode.
type Forward struct {
	extra
	ID      string `json:"id,omitempty"`
	Content []Node `json:"-"`
	// RawContent holds content that could not be interpreted as nodes.
	RawContent json.RawMessage `json:"-"`
}

func (*Forward) SegmentType() string { return "forward" }

// Share is a link card.
type Share struct {
	extra
	URL     string `json:"url"`
	Title   string `json:"title"`
	Content string `json:"content,omitempty"`
	Image   string `json:"image,omitempty"`
}

func (*Share) SegmentType() string { return "share" }

// Location is a map point.
type Location struct {
	extra
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Title   string  `json:"title,omitempty"`
	Content string  `json:"content,omitempty"`
}

func (*Location) SegmentType() string { return "location" }

// Music is a music share card. The wire stores the platform under the
// data key "type"; the codec maps it to and from Platform.
type Music struct {
	extra
	Platform string `json:"-"`
	ID       string `json:"id,omitempty"`
	URL      string `json:"url,omitempty"`
	Audio    string `json:"audio,omitempty"`
	Title    string `json:"title,omitempty"`
}

func (*Music) SegmentType() string { return "music" }

// JSON is a raw JSON card payload.
type JSON struct {
	extra
	Data string `json:"data"`
}

func (*JSON) SegmentType() string { return "json" }

// Markdown is a markdown card payload.
type Markdown struct {
	extra
	Content string `json:"content"`
}

func (*Markdown) SegmentType() string { return "markdown" }

// Dice is the dice animation; Result is gateway-assigned on receipt.
type Dice struct {
	extra
	Result ID `json:"result,omitempty"`
}

func (*Dice) SegmentType() string { return "dice" }

// RPS is the rock-paper-scissors animation.
type RPS struct {
	extra
	Result ID `json:"result,omitempty"`
}

func (*RPS) SegmentType() string { return "rps" }

// Poke is a nudge.
type Poke struct {
	extra
	Type ID `json:"type,omitempty"`
	ID   ID `json:"id,omitempty"`
}

func (*Poke) SegmentType() string { return "poke" }

// Anonymous flags an anonymous group message.
type Anonymous struct {
	extra
	Ignore bool `json:"ignore,omitempty"`
}

func (*Anonymous) SegmentType() string { return "anonymous" }

// Contact recommends a friend or group.
type Contact struct {
	extra
	Kind string `json:"type"`
	ID   ID     `json:"id"`
}

func (*Contact) SegmentType() string { return "contact" }

// XML is a legacy XML card payload.
type XML struct {
	extra
	Data string `json:"data"`
}

func (*XML) SegmentType() string { return "xml" }

// segmentFactories is the decode dispatch table over the closed type set.
var segmentFactories = map[string]func() Segment{
	"text":      func() Segment { return &Text{} },
	"face":      func() Segment { return &Face{} },
	"image":     func() Segment { return &Image{} },
	"record":    func() Segment { return &Record{} },
	"video":     func() Segment { return &Video{} },
	"file":      func() Segment { return &File{} },
	"at":        func() Segment { return &At{} },
	"reply":     func() Segment { return &Reply{} },
	"forward":   func() Segment { return &Forward{} },
	"node":      func() Segment { return &Node{} },
	"share":     func() Segment { return &Share{} },
	"location":  func() Segment { return &Location{} },
	"music":     func() Segment { return &Music{} },
	"json":      func() Segment { return &JSON{} },
	"markdown":  func() Segment { return &Markdown{} },
	"dice":      func() Segment { return &Dice{} },
	"rps":       func() Segment { return &RPS{} },
	"poke":      func() Segment { return &Poke{} },
	"anonymous": func() Segment { return &Anonymous{} },
	"contact":   func() Segment { return &Contact{} },
	"xml":       func() Segment { return &XML{} },
}
