package mailbox

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/amoylab/oscbridge/internal/common/cnst"
)

func encodeOpen(channel string) string {
	return cnst.VerbMailboxOpen + " " + channel
}

// encodeSend renders `mailbox_send <mailbox> <json>`. The JSON keeps a stable
// field order: type, the data keys sorted, then message_id and returnAddress.
func encodeSend(mailbox, msgType string, data map[string]any, id int64, channel string, expectResponse bool) (string, error) {
	payload, err := encodePayload(msgType, data, id, channel, expectResponse)
	if err != nil {
		return "", err
	}
	return cnst.VerbMailboxSend + " " + mailbox + " " + string(payload), nil
}

func encodePayload(msgType string, data map[string]any, id int64, channel string, expectResponse bool) ([]byte, error) {
	fields := make([]field, 0, len(data)+3)

	typeValue := any(msgType)
	if v, ok := data[cnst.FieldType]; ok {
		typeValue = v
	}
	fields = append(fields, field{cnst.FieldType, typeValue})

	keys := make([]string, 0, len(data))
	for k := range data {
		if k == cnst.FieldType {
			continue
		}
		if expectResponse && (k == cnst.FieldMessageID || k == cnst.FieldReturnAddress) {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fields = append(fields, field{k, data[k]})
	}

	if expectResponse {
		fields = append(fields,
			field{cnst.FieldMessageID, id},
			field{cnst.FieldReturnAddress, channel},
		)
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(f.key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(f.value)
		if err != nil {
			return nil, fmt.Errorf("failed to encode field %s: %w", f.key, err)
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

type field struct {
	key   string
	value any
}
