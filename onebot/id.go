package onebot

import (
	"encoding/json"
	"strconv"

	"github.com/nyabot/nyabot/errors"
)

// ID is a gateway identifier. The wire carries user_id, group_id,
// message_id and friends as JSON numbers or strings interchangeably;
// internally they are always strings and compared as strings.
type ID string

// UnmarshalJSON accepts both `123` and `"123"`.
func (id *ID) UnmarshalJSON(data []byte) error {
	if len(data) == 0 {
		return errors.New("empty id value")
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	// Numbers arrive as int64; float parsing would mangle large QQ ids
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

// MarshalJSON always emits the string form.
func (id ID) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(id))
}

func (id ID) String() string { return string(id) }

// Int64 converts the id back to an integer for endpoints that require it.
func (id ID) Int64() (int64, error) {
	v, err := strconv.ParseInt(string(id), 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "id %q is not numeric", string(id))
	}
	return v, nil
}
