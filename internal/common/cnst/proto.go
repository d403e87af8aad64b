package cnst

// Control verbs of the mailbox wire protocol
const (
	VerbMailboxOpen = "mailbox_open"
	VerbMailboxSend = "mailbox_send"
)

// Well-known fields of mailbox messages
const (
	FieldType          = "type"
	FieldMessageID     = "message_id"
	FieldReturnAddress = "returnAddress"
)

const (
	// DefaultMailboxURL is the local web console endpoint of the VR runtime
	DefaultMailboxURL = "ws://localhost:27062/"
	// DefaultMailboxOrigin is the origin header the endpoint expects
	DefaultMailboxOrigin = "http://localhost:27062"
	// ChannelPrefix prefixes every generated return channel name
	ChannelPrefix = "osc_control_"
)

// Discovery mailboxes queried on every epoch, in order
const (
	MailboxCompositor            = "vrcompositor_mailbox"
	MailboxCompositorSystemLayer = "vrcompositor_systemlayer"
	MessageGetDebugCommands      = "get_debug_commands"
)

// ParameterAddressPrefix is prepended to parameter names imported from mapping files
const ParameterAddressPrefix = "/avatar/parameters/"
