package mailbox

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeOpen(t *testing.T) {
	assert.Equal(t, "mailbox_open osc_control_42", encodeOpen("osc_control_42"))
}

func TestEncodeSend(t *testing.T) {
	tests := []struct {
		name           string
		mailbox        string
		msgType        string
		data           map[string]any
		id             int64
		expectResponse bool
		want           string
	}{
		{
			name:    "type only",
			mailbox: "vrcompositor_mailbox",
			msgType: "mute",
			want:    `mailbox_send vrcompositor_mailbox {"type":"mute"}`,
		},
		{
			name:    "data keys sorted after type",
			mailbox: "vrcompositor_systemlayer",
			msgType: "request_screenshot",
			data:    map[string]any{"screenshot_type": "stereo", "a": 1},
			want:    `mailbox_send vrcompositor_systemlayer {"type":"request_screenshot","a":1,"screenshot_type":"stereo"}`,
		},
		{
			name:    "data overrides type",
			mailbox: "m",
			msgType: "x",
			data:    map[string]any{"type": "y"},
			want:    `mailbox_send m {"type":"y"}`,
		},
		{
			name:           "correlated request",
			mailbox:        "vrcompositor_mailbox",
			msgType:        "get_debug_commands",
			data:           map[string]any{"message_id": 5},
			id:             7,
			expectResponse: true,
			want:           `mailbox_send vrcompositor_mailbox {"type":"get_debug_commands","message_id":7,"returnAddress":"osc_control_1"}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := encodeSend(tt.mailbox, tt.msgType, tt.data, tt.id, "osc_control_1", tt.expectResponse)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEncodeSend_UnencodableData(t *testing.T) {
	_, err := encodeSend("m", "x", map[string]any{"bad": math.Inf(1)}, 0, "", false)
	assert.Error(t, err)
}
