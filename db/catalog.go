package db

import (
	"sort"
)

type Orientation string

const (
	ORIENTATION_UNKNOWN    Orientation = ""
	ORIENTATION_HORIZONTAL Orientation = "horizontal"
	ORIENTATION_VERTICAL   Orientation = "vertical"
)

// GameEntry is one game of a DAT catalog. Zero width/height and empty strings
// mean the catalog did not provide the value.
type GameEntry struct {
	Name          string
	Description   string
	Width         int
	Height        int
	Year          string
	Manufacturer  string
	Orientation   Orientation
	ScreenType    string
	CloneOf       string
	CloneResolved bool
}

func (g GameEntry) HasResolution() bool {
	return g.Width > 0 && g.Height > 0
}

func (g GameEntry) IsClone() bool {
	return g.CloneOf != ""
}

// Catalog is the in-memory, read-only view of a parsed DAT file.
type Catalog struct {
	Path    string
	Version string
	entries map[string]GameEntry
	names   []string
	clones  map[string][]string
}

// NewCatalog indexes entries and resolves clone references inside the set.
// The first entry wins when a name appears twice.
func NewCatalog(path string, version string, entries []GameEntry) *Catalog {
	c := &Catalog{
		Path:    path,
		Version: version,
		entries: make(map[string]GameEntry, len(entries)),
		names:   make([]string, 0, len(entries)),
		clones:  map[string][]string{},
	}

	for _, entry := range entries {
		if _, ok := c.entries[entry.Name]; ok {
			continue
		}
		c.entries[entry.Name] = entry
		c.names = append(c.names, entry.Name)
	}

	for name, entry := range c.entries {
		if !entry.IsClone() {
			continue
		}
		_, entry.CloneResolved = c.entries[entry.CloneOf]
		c.entries[name] = entry
	}

	sort.Strings(c.names)
	for _, name := range c.names {
		if parent := c.entries[name].CloneOf; parent != "" {
			c.clones[parent] = append(c.clones[parent], name)
		}
	}
	return c
}

func (c *Catalog) Get(name string) (GameEntry, bool) {
	entry, ok := c.entries[name]
	return entry, ok
}

func (c *Catalog) Len() int {
	return len(c.names)
}

// Names returns all identifiers in sorted order.
func (c *Catalog) Names() []string {
	result := make([]string, len(c.names))
	copy(result, c.names)
	return result
}

// Entries returns all games sorted by identifier.
func (c *Catalog) Entries() []GameEntry {
	result := make([]GameEntry, 0, len(c.names))
	for _, name := range c.names {
		result = append(result, c.entries[name])
	}
	return result
}

// WithResolution counts the games carrying a native resolution.
func (c *Catalog) WithResolution() int {
	count := 0
	for _, entry := range c.entries {
		if entry.HasResolution() {
			count++
		}
	}
	return count
}

// Unresolved lists clones whose parent is missing from the catalog.
func (c *Catalog) Unresolved() []string {
	var result []string
	for _, name := range c.names {
		entry := c.entries[name]
		if entry.IsClone() && !entry.CloneResolved {
			result = append(result, name)
		}
	}
	return result
}

// Clones lists the games declaring parent as their clone-of.
func (c *Catalog) Clones(parent string) []GameEntry {
	var result []GameEntry
	for _, name := range c.clones[parent] {
		result = append(result, c.entries[name])
	}
	return result
}
