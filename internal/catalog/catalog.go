package catalog

import (
	"context"
	"fmt"
	"sort"

	"github.com/tidwall/gjson"

	"github.com/amoylab/oscbridge/internal/common/cnst"
	"github.com/amoylab/oscbridge/internal/mailbox"
)

// Requester sends a mailbox request. *mailbox.Client satisfies it.
type Requester interface {
	SendRequest(ctx context.Context, mailbox, msgType string, data map[string]any, expectResponse bool) (mailbox.Message, error)
}

// Command is one entry of a get_debug_commands response
type Command struct {
	Command string `json:"command"`
	Mailbox string `json:"mailbox"`
}

// Catalog maps command names to the mailbox that accepts them. It is built
// once per epoch and never modified afterwards.
type Catalog struct {
	commands  []Command
	mailboxes map[string]string
}

// discoveryMailboxes are queried in order; later entries win on collision
var discoveryMailboxes = []string{
	cnst.MailboxCompositor,
	cnst.MailboxCompositorSystemLayer,
}

// Load discovers the commands of every discovery mailbox
func Load(ctx context.Context, r Requester) (*Catalog, error) {
	var all []Command
	for _, mb := range discoveryMailboxes {
		cmds, err := discover(ctx, r, mb)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", cnst.ErrCatalogPopulation, mb, err)
		}
		all = append(all, cmds...)
	}
	return New(all), nil
}

func discover(ctx context.Context, r Requester, mb string) ([]Command, error) {
	msg, err := r.SendRequest(ctx, mb, cnst.MessageGetDebugCommands, nil, true)
	if err != nil {
		return nil, err
	}
	field := msg.Get("commands")
	if !field.Exists() {
		return nil, fmt.Errorf("response has no commands")
	}
	if !field.IsArray() {
		return nil, fmt.Errorf("commands is not an array")
	}

	var cmds []Command
	for i, item := range field.Array() {
		name := item.Get("command")
		box := item.Get("mailbox")
		if name.Type != gjson.String || box.Type != gjson.String {
			return nil, fmt.Errorf("commands[%d] is not a {command, mailbox} object", i)
		}
		cmds = append(cmds, Command{Command: name.String(), Mailbox: box.String()})
	}
	return cmds, nil
}

// New builds a catalog from an ordered command list
func New(commands []Command) *Catalog {
	c := &Catalog{
		commands:  append([]Command(nil), commands...),
		mailboxes: make(map[string]string, len(commands)),
	}
	for _, cmd := range commands {
		c.mailboxes[cmd.Command] = cmd.Mailbox
	}
	return c
}

// Lookup returns the mailbox for a command name
func (c *Catalog) Lookup(name string) (string, bool) {
	if c == nil {
		return "", false
	}
	mb, ok := c.mailboxes[name]
	return mb, ok
}

func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.mailboxes)
}

// Names returns the known command names sorted
func (c *Catalog) Names() []string {
	if c == nil {
		return nil
	}
	names := make([]string, 0, len(c.mailboxes))
	for name := range c.mailboxes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Commands returns every discovered entry in discovery order, duplicates included
func (c *Catalog) Commands() []Command {
	if c == nil {
		return nil
	}
	return append([]Command(nil), c.commands...)
}
