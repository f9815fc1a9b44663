package field

import (
	"sort"
)

// Select resolves requested names into descriptors. Each name is either a
// field ID or a group tag; a group expands to its fields in catalog order.
// The result keeps the requested order and drops repeats. Unknown names are
// rejected with an unregistered-field error.
func Select(catalog *Catalog, requested []string) ([]Descriptor, error) {
	groups := make(map[string]struct{}, len(catalog.groups))
	for _, g := range catalog.groups {
		groups[g] = struct{}{}
	}

	seen := make(map[ID]struct{}, len(requested))
	var out []Descriptor
	appendOnce := func(d Descriptor) {
		if _, ok := seen[d.ID]; ok {
			return
		}
		seen[d.ID] = struct{}{}
		out = append(out, d)
	}

	for _, name := range requested {
		if d, ok := catalog.Lookup(ID(name)); ok {
			appendOnce(d)
			continue
		}
		if _, ok := groups[name]; ok {
			for _, d := range catalog.Group(name) {
				appendOnce(d)
			}
			continue
		}
		return nil, catalog.NotRegistered(ID(name))
	}
	return out, nil
}

// SelectOrdered is Select with the result re-sorted into catalog column order
func SelectOrdered(catalog *Catalog, requested []string) ([]Descriptor, error) {
	out, err := Select(catalog, requested)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool {
		return catalog.index[out[i].ID] < catalog.index[out[j].ID]
	})
	return out, nil
}
