package mailbox

import (
	"encoding/json"

	"github.com/tidwall/gjson"
)

// Message is an inbound payload correlated to a request by its message_id
type Message struct {
	ID  int64
	Raw json.RawMessage
}

func (m Message) Decode(v any) error {
	return json.Unmarshal(m.Raw, v)
}

// Get reads a field with gjson path syntax
func (m Message) Get(path string) gjson.Result {
	return gjson.GetBytes(m.Raw, path)
}

func (m Message) Empty() bool {
	return len(m.Raw) == 0
}
