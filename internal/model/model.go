package model

import "strings"

// Catalog is the allow-list of provider models a client may request.
type Catalog struct {
	names map[string]struct{}
	order []string
}

func NewCatalog(names []string) *Catalog {
	c := &Catalog{names: make(map[string]struct{}, len(names))}
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, dup := c.names[n]; dup {
			continue
		}
		c.names[n] = struct{}{}
		c.order = append(c.order, n)
	}
	return c
}

// Supports reports whether name is an exact, case-sensitive catalog entry.
func (c *Catalog) Supports(name string) bool {
	_, ok := c.names[name]
	return ok
}

func (c *Catalog) Names() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}
