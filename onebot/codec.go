package onebot

import (
	"encoding/json"
	"reflect"
	"strings"
	"sync"

	"github.com/nyabot/nyabot/errors"
)

// DecodeSegment parses one `{"type": T, "data": {...}}` wire object.
// Unknown segment types are an error; unknown data fields on known types
// are retained and re-emitted by EncodeSegment.
func DecodeSegment(raw json.RawMessage) (Segment, error) {
	var envelope struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, errors.Wrap(err, "malformed segment envelope")
	}
	factory, ok := segmentFactories[envelope.Type]
	if !ok {
		return nil, errors.Newf("unknown segment type %q", envelope.Type)
	}
	seg := factory()

	dataMap := map[string]json.RawMessage{}
	if len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, &dataMap); err != nil {
			return nil, errors.Wrapf(err, "malformed %s segment data", envelope.Type)
		}
	}

	consumed, err := decodeSpecial(seg, dataMap)
	if err != nil {
		return nil, err
	}

	// Re-marshal the remaining data for the typed unmarshal so struct tags
	// do the field mapping.
	if err := unmarshalKnown(seg, dataMap); err != nil {
		return nil, errors.Wrapf(err, "invalid %s segment", envelope.Type)
	}

	known := knownKeys(reflect.TypeOf(seg).Elem())
	var retained map[string]json.RawMessage
	for k, v := range dataMap {
		if _, ok := known[k]; ok {
			continue
		}
		if _, ok := consumed[k]; ok {
			continue
		}
		if retained == nil {
			retained = map[string]json.RawMessage{}
		}
		retained[k] = v
	}
	seg.setExtraFields(retained)
	return seg, nil
}

// EncodeSegment serializes a segment back to its wire form, merging retained
// unknown fields underneath the typed fields.
func EncodeSegment(seg Segment) (json.RawMessage, error) {
	structJSON, err := json.Marshal(seg)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to marshal %s segment", seg.SegmentType())
	}
	dataMap := map[string]json.RawMessage{}
	if err := json.Unmarshal(structJSON, &dataMap); err != nil {
		return nil, err
	}
	for k, v := range seg.extraFields() {
		if _, ok := dataMap[k]; !ok {
			dataMap[k] = v
		}
	}
	if err := encodeSpecial(seg, dataMap); err != nil {
		return nil, err
	}

	envelope := struct {
		Type string                     `json:"type"`
		Data map[string]json.RawMessage `json:"data"`
	}{Type: seg.SegmentType(), Data: dataMap}
	return json.Marshal(envelope)
}

// decodeSpecial handles the segments whose wire shape does not line up with
// their struct tags. Returns the set of data keys it consumed.
func decodeSpecial(seg Segment, dataMap map[string]json.RawMessage) (map[string]struct{}, error) {
	switch s := seg.(type) {
	case *Music:
		// The wire reuses the data key "type" for the platform.
		if raw, ok := dataMap["type"]; ok {
			if err := json.Unmarshal(raw, &s.Platform); err != nil {
				return nil, errors.Wrap(err, "music platform")
			}
			return map[string]struct{}{"type": {}}, nil
		}
		return nil, nil
	case *Forward:
		raw, ok := dataMap["content"]
		if !ok {
			return nil, nil
		}
		nodes, err := decodeForwardContent(raw)
		if err != nil {
			// Partially elided bundles are preserved opaquely, never dropped.
			s.RawContent = raw
		} else {
			s.Content = nodes
		}
		return map[string]struct{}{"content": {}}, nil
	}
	return nil, nil
}

func encodeSpecial(seg Segment, dataMap map[string]json.RawMessage) error {
	switch s := seg.(type) {
	case *Music:
		if s.Platform != "" {
			raw, err := json.Marshal(s.Platform)
			if err != nil {
				return err
			}
			dataMap["type"] = raw
		}
	case *Forward:
		switch {
		case s.Content != nil:
			raw, err := json.Marshal(s.Content)
			if err != nil {
				return err
			}
			dataMap["content"] = raw
		case s.RawContent != nil:
			dataMap["content"] = s.RawContent
		}
	}
	return nil
}

// decodeForwardContent interprets a forward bundle's inline content. Each
// item is either a node object or a full message-event object (the gateway
// sends both shapes).
func decodeForwardContent(raw json.RawMessage) ([]Node, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, err
	}
	nodes := make([]Node, 0, len(items))
	for _, item := range items {
		var probe struct {
			UserID   ID              `json:"user_id"`
			Nickname string          `json:"nickname"`
			Content  json.RawMessage `json:"content"`
			Message  json.RawMessage `json:"message"`
			Sender   struct {
				Nickname string `json:"nickname"`
			} `json:"sender"`
		}
		if err := json.Unmarshal(item, &probe); err != nil {
			return nil, err
		}
		node := Node{UserID: probe.UserID, Nickname: probe.Nickname}
		content := probe.Content
		if content == nil {
			// Message-event shape: nickname lives under sender
			content = probe.Message
			if node.Nickname == "" {
				node.Nickname = probe.Sender.Nickname
			}
		}
		if content != nil {
			if err := json.Unmarshal(content, &node.Content); err != nil {
				return nil, err
			}
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

func unmarshalKnown(seg Segment, dataMap map[string]json.RawMessage) error {
	filtered := map[string]json.RawMessage{}
	known := knownKeys(reflect.TypeOf(seg).Elem())
	for k, v := range dataMap {
		if _, ok := known[k]; ok {
			filtered[k] = v
		}
	}
	if len(filtered) == 0 {
		return nil
	}
	buf, err := json.Marshal(filtered)
	if err != nil {
		return err
	}
	return json.Unmarshal(buf, seg)
}

var knownKeysCache sync.Map // reflect.Type -> map[string]struct{}

// knownKeys collects the json tag names of a segment struct, walking
// embedded structs.
func knownKeys(t reflect.Type) map[string]struct{} {
	if cached, ok := knownKeysCache.Load(t); ok {
		return cached.(map[string]struct{})
	}
	keys := map[string]struct{}{}
	collectKeys(t, keys)
	knownKeysCache.Store(t, keys)
	return keys
}

func collectKeys(t reflect.Type, keys map[string]struct{}) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Anonymous && f.Type.Kind() == reflect.Struct {
			collectKeys(f.Type, keys)
			continue
		}
		tag := f.Tag.Get("json")
		if tag == "" || tag == "-" {
			continue
		}
		name := strings.SplitN(tag, ",", 2)[0]
		if name != "" {
			keys[name] = struct{}{}
		}
	}
}
