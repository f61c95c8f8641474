package dialect

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/avionics-oss/go-mavlink/internal/wire"
)

// xmlDialect mirrors the shape of a MAVLink dialect XML document closely
// enough for encoding/xml to unmarshal it directly; field ordering within
// <message> is preserved because encoding/xml decodes slices in document
// order.
type xmlDialect struct {
	XMLName xml.Name    `xml:"mavlink"`
	Enums   xmlEnums    `xml:"enums"`
	Messages xmlMessages `xml:"messages"`
}

type xmlEnums struct {
	Enum []xmlEnum `xml:"enum"`
}

type xmlEnum struct {
	Name    string      `xml:"name,attr"`
	Bitmask string      `xml:"bitmask,attr"`
	Entry   []xmlEntry  `xml:"entry"`
}

type xmlEntry struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

type xmlMessages struct {
	Message []xmlMessage `xml:"message"`
}

type xmlMessage struct {
	ID      string        `xml:"id,attr"`
	Name    string        `xml:"name,attr"`
	Content []xmlMsgChild `xml:",any"`
}

// xmlMsgChild captures each child element of <message> in document order
// so the extensions marker's position among the fields can be recovered;
// a single []xmlField wouldn't preserve where <extensions/> falls.
type xmlMsgChild struct {
	XMLName xml.Name
	Name    string `xml:"name,attr"`
	Type    string `xml:"type,attr"`
	Enum    string `xml:"enum,attr"`
}

// LoadError reports a fatal dialect-load failure, naming which input
// document (by index in the Compile argument list) caused it.
type LoadError struct {
	DialectIndex int
	Cause        error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("dialect: document %d: %v", e.DialectIndex, e.Cause)
}

func (e *LoadError) Unwrap() error { return e.Cause }

// MessageError reports a single rejected message; the compiler collects
// these and continues loading the remaining messages in the document.
type MessageError struct {
	MessageName string
	Cause       error
}

func (e *MessageError) Error() string {
	return fmt.Sprintf("dialect: message %q: %v", e.MessageName, e.Cause)
}

func (e *MessageError) Unwrap() error { return e.Cause }

// Compile parses one or more XML dialect documents and merges their
// messages and enums into a single Catalog. Later documents extend
// earlier ones; a collision on message id or enum entry value aborts
// loading with a *LoadError. Unknown field types reject only the
// offending message; loading continues and the rejections are returned
// alongside a non-nil Catalog in the Errors list of a *RejectedMessages
// error.
func Compile(docs ...io.Reader) (*Catalog, error) {
	cat := newCatalog()
	var rejected []error

	for i, r := range docs {
		var x xmlDialect
		dec := xml.NewDecoder(r)
		if err := dec.Decode(&x); err != nil {
			return nil, &LoadError{DialectIndex: i, Cause: err}
		}

		for _, e := range x.Enums.Enum {
			if err := cat.mergeEnum(compileEnum(e)); err != nil {
				return nil, &LoadError{DialectIndex: i, Cause: err}
			}
		}

		for _, m := range x.Messages.Message {
			msg, err := compileMessage(m, cat)
			if err != nil {
				rejected = append(rejected, &MessageError{MessageName: m.Name, Cause: err})
				continue
			}
			if err := cat.mergeMessage(msg); err != nil {
				return nil, &LoadError{DialectIndex: i, Cause: err}
			}
		}
	}

	var err error
	if len(rejected) > 0 {
		err = &RejectedMessages{Errors: rejected}
	}
	return cat, err
}

// RejectedMessages is a non-fatal compile result: the catalog is usable
// but one or more messages were dropped because of unknown field types.
type RejectedMessages struct {
	Errors []error
}

func (e *RejectedMessages) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "dialect: %d message(s) rejected:", len(e.Errors))
	for _, sub := range e.Errors {
		fmt.Fprintf(&b, "\n  - %v", sub)
	}
	return b.String()
}

func compileEnum(e xmlEnum) *Enum {
	en := &Enum{
		Name:       e.Name,
		ValueToKey: make(map[uint32]string, len(e.Entry)),
		KeyToValue: make(map[string]uint32, len(e.Entry)),
		IsBitmask:  e.Bitmask == "true" || e.Bitmask == "1",
	}
	for _, ent := range e.Entry {
		v, err := strconv.ParseUint(ent.Value, 0, 32)
		if err != nil {
			continue
		}
		en.ValueToKey[uint32(v)] = ent.Name
		en.KeyToValue[ent.Name] = uint32(v)
	}
	return en
}

// compileMessage builds a Message from its XML representation, splitting
// fields at the <extensions/> marker and computing the wire order and
// CRC_EXTRA. cat is consulted to validate enum-group references.
func compileMessage(m xmlMessage, cat *Catalog) (*Message, error) {
	id, err := strconv.ParseUint(m.ID, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid id %q: %w", m.ID, err)
	}

	var fields []Field
	inExtensions := false
	for _, child := range m.Content {
		switch child.XMLName.Local {
		case "extensions":
			inExtensions = true
		case "field":
			typeName, arrayLen := splitArrayType(child.Type)
			t, err := wire.ParseType(typeName)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", child.Name, err)
			}
			if child.Enum != "" {
				if _, ok := cat.enums[child.Enum]; !ok {
					return nil, fmt.Errorf("field %q: unknown enum group %q", child.Name, child.Enum)
				}
			}
			isBitmask := false
			if en, ok := cat.enums[child.Enum]; ok {
				isBitmask = en.IsBitmask
			}
			fields = append(fields, Field{
				Name:      child.Name,
				Type:      t,
				ArrayLen:  arrayLen,
				EnumGroup: child.Enum,
				IsBitmask: isBitmask,
				Extension: inExtensions,
			})
		}
	}

	msg := &Message{
		ID:            uint32(id),
		Name:          m.Name,
		Fields:        fields,
		HasExtensions: hasExtensionField(fields),
	}
	msg.WireFields = wireOrder(fields)
	msg.CRCExtra = crcExtra(msg)
	return msg, nil
}

func hasExtensionField(fields []Field) bool {
	for _, f := range fields {
		if f.Extension {
			return true
		}
	}
	return false
}

// splitArrayType splits a MAVLink "type[N]" attribute into its bare type
// name and array length (1 if the field is scalar).
func splitArrayType(t string) (string, int) {
	i := strings.IndexByte(t, '[')
	if i < 0 {
		return t, 1
	}
	j := strings.IndexByte(t, ']')
	if j < i {
		return t, 1
	}
	n, err := strconv.Atoi(t[i+1 : j])
	if err != nil || n <= 0 {
		n = 1
	}
	return t[:i], n
}

// wireOrder sorts core fields stably by descending wire width, then
// appends extension fields in declaration order. Extensions are never
// reordered: they are not part of CRC_EXTRA and must preserve the
// application's declared layout.
func wireOrder(fields []Field) []Field {
	core := make([]Field, 0, len(fields))
	ext := make([]Field, 0)
	for _, f := range fields {
		if f.Extension {
			ext = append(ext, f)
		} else {
			core = append(core, f)
		}
	}
	sortByDescendingWidth(core)
	return append(core, ext...)
}

// sortByDescendingWidth performs a stable insertion sort by descending
// Type.Size(); the field counts involved (a few dozen at most) make the
// O(n^2) insertion sort both simpler and fast enough than pulling in
// sort.SliceStable for a property it already gives us by construction.
func sortByDescendingWidth(fields []Field) {
	for i := 1; i < len(fields); i++ {
		for j := i; j > 0 && fields[j].Type.Size() > fields[j-1].Type.Size(); j-- {
			fields[j], fields[j-1] = fields[j-1], fields[j]
		}
	}
}
