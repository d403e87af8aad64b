package router

import (
	"github.com/amoylab/oscbridge/internal/catalog"
	"github.com/amoylab/oscbridge/internal/common/cnst"
)

// Command is the resolved target of a trigger: a SpecialCommand or a CatalogCommand
type Command interface {
	isCommand()
}

// Request is a literal mailbox request
type Request struct {
	Mailbox string
	Type    string
	Data    map[string]any
}

// SpecialCommand is sent exactly as configured, bypassing the catalog
type SpecialCommand struct {
	Name    string
	Request Request
}

// CatalogCommand is sent to the mailbox the catalog discovered for Name
type CatalogCommand struct {
	Name    string
	Mailbox string
}

func (SpecialCommand) isCommand() {}
func (CatalogCommand) isCommand() {}

// specialCommands are reserved names checked before the catalog.
// The screenshot request has not been verified against a live runtime.
var specialCommands = map[string]Request{
	"screenshot": {
		Mailbox: cnst.MailboxCompositorSystemLayer,
		Type:    "request_screenshot",
		Data:    map[string]any{"screenshot_type": "stereo"},
	},
}

// SpecialNames returns the reserved command names
func SpecialNames() []string {
	names := make([]string, 0, len(specialCommands))
	for name := range specialCommands {
		names = append(names, name)
	}
	return names
}

// Resolve maps a command name to its target
func Resolve(name string, cat *catalog.Catalog) (Command, bool) {
	if req, ok := specialCommands[name]; ok {
		return SpecialCommand{Name: name, Request: req}, true
	}
	if mb, ok := cat.Lookup(name); ok {
		return CatalogCommand{Name: name, Mailbox: mb}, true
	}
	return nil, false
}
