package onebot

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageTextFusion(t *testing.T) {
	wire := `[
		{"type":"text","data":{"text":"/backup "}},
		{"type":"text","data":{"text":"now"}},
		{"type":"at","data":{"qq":"123"}},
		{"type":"text","data":{"text":" please"}}
	]`
	var m Message
	require.NoError(t, json.Unmarshal([]byte(wire), &m))

	// Leading text runs fused, order of non-text preserved
	require.Len(t, m, 3)
	assert.Equal(t, "/backup now", m[0].(*Text).Text)
	assert.Equal(t, "at", m[1].SegmentType())
	assert.Equal(t, " please", m[2].(*Text).Text)
}

func TestMessageFromBareString(t *testing.T) {
	var m Message
	require.NoError(t, json.Unmarshal([]byte(`"plain words"`), &m))
	require.Len(t, m, 1)
	assert.Equal(t, "plain words", m.Text())
}

func TestMessageText(t *testing.T) {
	m := NewMessage(&Text{Text: "a"}, &Face{ID: "14"}, &Text{Text: "b"})
	assert.Equal(t, "ab", m.Text())
	assert.Equal(t, "a", m.FirstText())
}

func TestMessageFilterType(t *testing.T) {
	m := NewMessage(&Text{Text: "x"}, &Image{}, &Image{})
	assert.Len(t, m.FilterType("image"), 2)
	assert.True(t, m.HasType("text"))
	assert.False(t, m.HasType("video"))
}

func TestMessageAppendFusesText(t *testing.T) {
	m := NewText("hello ")
	m = m.Append(&Text{Text: "world"}, &Face{ID: "1"})
	require.Len(t, m, 2)
	assert.Equal(t, "hello world", m[0].(*Text).Text)
}

func TestMessageRoundTrip(t *testing.T) {
	m := NewMessage(
		&Text{Text: "look: "},
		&Image{media: media{File: "a.png"}},
		&At{QQ: "all"},
	)
	buf, err := json.Marshal(m)
	require.NoError(t, err)

	var back Message
	require.NoError(t, json.Unmarshal(buf, &back))
	assert.Equal(t, m, back)
}
