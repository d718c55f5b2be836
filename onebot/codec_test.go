package onebot

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeTextSegment(t *testing.T) {
	seg, err := DecodeSegment([]byte(`{"type":"text","data":{"text":"hello"}}`))
	require.NoError(t, err)
	text, ok := seg.(*Text)
	require.True(t, ok)
	assert.Equal(t, "hello", text.Text)
}

func TestDecodeAtSegment(t *testing.T) {
	seg, err := DecodeSegment([]byte(`{"type":"at","data":{"qq":123456}}`))
	require.NoError(t, err)
	at := seg.(*At)
	assert.Equal(t, ID("123456"), at.QQ)

	seg, err = DecodeSegment([]byte(`{"type":"at","data":{"qq":"all"}}`))
	require.NoError(t, err)
	assert.Equal(t, ID("all"), seg.(*At).QQ)
}

func TestDecodeUnknownSegmentType(t *testing.T) {
	_, err := DecodeSegment([]byte(`{"type":"hologram","data":{}}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hologram")
}

func TestUnknownFieldsRoundTrip(t *testing.T) {
	wire := []byte(`{"type":"image","data":{"file":"a.png","summary":"[图片]","sub_type":1}}`)
	seg, err := DecodeSegment(wire)
	require.NoError(t, err)

	img := seg.(*Image)
	assert.Equal(t, "a.png", img.File)
	assert.Equal(t, 1, img.SubType)
	require.Contains(t, img.extraFields(), "summary")

	out, err := EncodeSegment(seg)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(out, &decoded))
	data := decoded["data"].(map[string]interface{})
	assert.Equal(t, "a.png", data["file"])
	assert.Equal(t, "[图片]", data["summary"])
	assert.Equal(t, float64(1), data["sub_type"])
}

func TestAllKnownTypesRoundTrip(t *testing.T) {
	wires := []string{
		`{"type":"text","data":{"text":"hi"}}`,
		`{"type":"face","data":{"id":14}}`,
		`{"type":"image","data":{"file":"x.png","url":"http://e/x.png"}}`,
		`{"type":"record","data":{"file":"v.amr","magic":1}}`,
		`{"type":"video","data":{"file":"v.mp4"}}`,
		`{"type":"file","data":{"file_id":"f1","file_size":1024}}`,
		`{"type":"at","data":{"qq":"all"}}`,
		`{"type":"reply","data":{"id":100123}}`,
		`{"type":"share","data":{"url":"http://e","title":"t"}}`,
		`{"type":"location","data":{"lat":31.2,"lon":121.5}}`,
		`{"type":"music","data":{"type":"163","id":"28949129"}}`,
		`{"type":"json","data":{"data":"{\"k\":1}"}}`,
		`{"type":"markdown","data":{"content":"# hi"}}`,
		`{"type":"dice","data":{}}`,
		`{"type":"rps","data":{}}`,
		`{"type":"poke","data":{"type":1,"id":-1}}`,
		`{"type":"anonymous","data":{}}`,
		`{"type":"contact","data":{"type":"qq","id":12345}}`,
		`{"type":"xml","data":{"data":"<msg/>"}}`,
	}
	for _, wire := range wires {
		seg, err := DecodeSegment([]byte(wire))
		require.NoError(t, err, wire)

		out, err := EncodeSegment(seg)
		require.NoError(t, err, wire)

		again, err := DecodeSegment(out)
		require.NoError(t, err, wire)
		assert.Equal(t, seg, again, wire)
	}
}

func TestMusicPlatformMapping(t *testing.T) {
	seg, err := DecodeSegment([]byte(`{"type":"music","data":{"type":"custom","url":"http://e","audio":"http://a","title":"s"}}`))
	require.NoError(t, err)
	music := seg.(*Music)
	assert.Equal(t, "custom", music.Platform)

	out, err := EncodeSegment(music)
	require.NoError(t, err)
	var decoded struct {
		Data map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(out, &decoded))
	assert.Equal(t, "custom", decoded.Data["type"])
	assert.NotContains(t, decoded.Data, "platform")
}

func TestForwardWithRemoteID(t *testing.T) {
	seg, err := DecodeSegment([]byte(`{"type":"forward","data":{"id":"7355608"}}`))
	require.NoError(t, err)
	fwd := seg.(*Forward)
	assert.Equal(t, "7355608", fwd.ID)
	assert.Nil(t, fwd.Content)
}

func TestForwardWithInlineNodes(t *testing.T) {
	wire := `{"type":"forward","data":{"content":[
		{"user_id":111,"nickname":"alice","content":[{"type":"text","data":{"text":"one"}}]},
		{"user_id":222,"sender":{"nickname":"bob"},"message":[{"type":"text","data":{"text":"two"}}]}
	]}}`
	seg, err := DecodeSegment([]byte(wire))
	require.NoError(t, err)
	fwd := seg.(*Forward)
	require.Len(t, fwd.Content, 2)
	assert.Equal(t, ID("111"), fwd.Content[0].UserID)
	assert.Equal(t, "alice", fwd.Content[0].Nickname)
	assert.Equal(t, "one", fwd.Content[0].Content.Text())
	// Message-event shape resolves nickname from the sender block
	assert.Equal(t, "bob", fwd.Content[1].Nickname)
	assert.Equal(t, "two", fwd.Content[1].Content.Text())
}

func TestForwardElidedContentPreserved(t *testing.T) {
	wire := `{"type":"forward","data":{"id":"x","content":"[...]"}}`
	seg, err := DecodeSegment([]byte(wire))
	require.NoError(t, err)
	fwd := seg.(*Forward)
	assert.Nil(t, fwd.Content)
	require.NotNil(t, fwd.RawContent)

	out, err := EncodeSegment(fwd)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"content":"[...]"`)
}
