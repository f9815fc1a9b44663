package field

import (
	"github.com/ajitpratap0/feaout/pkg/errors"
)

// Catalog is the ordered, immutable set of fields registered for one namespace
type Catalog struct {
	namespace Namespace
	fields    []Descriptor
	index     map[ID]int
	groups    []string
}

// Namespace returns the catalog namespace
func (c *Catalog) Namespace() Namespace {
	return c.namespace
}

// Len returns the number of registered fields
func (c *Catalog) Len() int {
	return len(c.fields)
}

// Fields returns the descriptors in registration order
func (c *Catalog) Fields() []Descriptor {
	out := make([]Descriptor, len(c.fields))
	copy(out, c.fields)
	return out
}

// IDs returns the field IDs in registration order
func (c *Catalog) IDs() []ID {
	ids := make([]ID, len(c.fields))
	for i, d := range c.fields {
		ids[i] = d.ID
	}
	return ids
}

// Lookup returns the descriptor registered under id
func (c *Catalog) Lookup(id ID) (Descriptor, bool) {
	i, ok := c.index[id]
	if !ok {
		return Descriptor{}, false
	}
	return c.fields[i], true
}

// Index returns the column position of id
func (c *Catalog) Index(id ID) (int, bool) {
	i, ok := c.index[id]
	return i, ok
}

// Has reports whether id is registered
func (c *Catalog) Has(id ID) bool {
	_, ok := c.index[id]
	return ok
}

// Groups returns the group tags in the order they were first registered
func (c *Catalog) Groups() []string {
	out := make([]string, len(c.groups))
	copy(out, c.groups)
	return out
}

// Group returns the fields tagged with group, in registration order
func (c *Catalog) Group(group string) []Descriptor {
	var out []Descriptor
	for _, d := range c.fields {
		if d.Group == group {
			out = append(out, d)
		}
	}
	return out
}

// NotRegistered builds the error returned for an ID absent from the catalog
func (c *Catalog) NotRegistered(id ID) error {
	return errors.New(errors.ErrorTypeUnregisteredField, "field not registered").
		WithDetail("field", string(id)).
		WithDetail("namespace", string(c.namespace))
}

// builder accumulates registrations. The first failure sticks and is
// reported by build, so registration code stays a flat list of add calls.
type builder struct {
	cat *Catalog
	err error
}

func newBuilder(ns Namespace, capacity int) *builder {
	return &builder{
		cat: &Catalog{
			namespace: ns,
			fields:    make([]Descriptor, 0, capacity),
			index:     make(map[ID]int, capacity),
		},
	}
}

func (b *builder) add(id ID, label string, format Format, group string, kind Kind) {
	if b.err != nil {
		return
	}
	if _, dup := b.cat.index[id]; dup {
		b.err = errors.New(errors.ErrorTypeInvariant, "field registered twice").
			WithDetail("field", string(id)).
			WithDetail("namespace", string(b.cat.namespace))
		return
	}

	seen := false
	for _, g := range b.cat.groups {
		if g == group {
			seen = true
			break
		}
	}
	if !seen {
		b.cat.groups = append(b.cat.groups, group)
	}

	b.cat.index[id] = len(b.cat.fields)
	b.cat.fields = append(b.cat.fields, Descriptor{
		ID:     id,
		Label:  label,
		Format: format,
		Group:  group,
		Kind:   kind,
	})
}

func (b *builder) value(id ID, label string, format Format, group string) {
	b.add(id, label, format, group, KindValue)
}

func (b *builder) residual(id ID, label string, group string) {
	b.add(id, label, FormatFixed, group, KindResidual)
}

func (b *builder) build() (*Catalog, error) {
	if b.err != nil {
		return nil, b.err
	}
	return b.cat, nil
}
