package dialect

import "fmt"

// Catalog is the immutable, shared result of compiling one or more
// dialect documents: messages indexed by id and by name, enum groups
// indexed by name. It is safe for unsynchronized concurrent reads once
// Compile returns; nothing in this package mutates a Catalog afterwards.
type Catalog struct {
	byID   map[uint32]*Message
	byName map[string]*Message
	enums  map[string]*Enum
}

func newCatalog() *Catalog {
	return &Catalog{
		byID:   make(map[uint32]*Message),
		byName: make(map[string]*Message),
		enums:  make(map[string]*Enum),
	}
}

// MessageByID looks up a compiled message by its numeric id.
func (c *Catalog) MessageByID(id uint32) (*Message, bool) {
	m, ok := c.byID[id]
	return m, ok
}

// MessageByName looks up a compiled message by its declared name.
func (c *Catalog) MessageByName(name string) (*Message, bool) {
	m, ok := c.byName[name]
	return m, ok
}

// Enum looks up a compiled enum group by name.
func (c *Catalog) Enum(name string) (*Enum, bool) {
	e, ok := c.enums[name]
	return e, ok
}

// Messages returns every compiled message, in no particular order.
func (c *Catalog) Messages() []*Message {
	out := make([]*Message, 0, len(c.byID))
	for _, m := range c.byID {
		out = append(out, m)
	}
	return out
}

func (c *Catalog) mergeMessage(m *Message) error {
	if existing, ok := c.byID[m.ID]; ok {
		return fmt.Errorf("duplicate message id %d (%q and %q)", m.ID, existing.Name, m.Name)
	}
	c.byID[m.ID] = m
	c.byName[m.Name] = m
	return nil
}

func (c *Catalog) mergeEnum(e *Enum) error {
	existing, ok := c.enums[e.Name]
	if !ok {
		c.enums[e.Name] = e
		return nil
	}
	// Later documents extend earlier enum groups; a value collision
	// (two entries claiming the same numeric value with different
	// names) is fatal, matching the message-id collision rule.
	for v, name := range e.ValueToKey {
		if prevName, clash := existing.ValueToKey[v]; clash && prevName != name {
			return fmt.Errorf("enum %q: value %d redefined (%q and %q)", e.Name, v, prevName, name)
		}
		existing.ValueToKey[v] = name
		existing.KeyToValue[name] = v
	}
	if e.IsBitmask {
		existing.IsBitmask = true
	}
	return nil
}
