package data

import (
	"sort"
	"time"
)

// Ore is a mineable action definition. Immutable after catalog construction.
type Ore struct {
	ID            string
	Name          string
	LevelRequired int
	XP            int64         // XP awarded per completed ore
	Duration      time.Duration // nominal time to mine one ore
	ASCII         string
	Color         string // hex colour for UI
	Description   string
}

// ItemType returns the inventory item kind produced by mining this ore.
func (o Ore) ItemType() string {
	return o.ID + "_ore"
}

// oreDefs: default ore table.
var oreDefs = []Ore{
	{
		ID:            "copper",
		Name:          "Copper Ore",
		LevelRequired: 1,
		XP:            10,
		Duration:      2 * time.Second,
		ASCII:         "[Cu]",
		Color:         "#B87333",
		Description:   "A common ore, perfect for beginners.",
	},
	{
		ID:            "iron",
		Name:          "Iron Ore",
		LevelRequired: 15,
		XP:            25,
		Duration:      3500 * time.Millisecond,
		ASCII:         "[Fe]",
		Color:         "#A19D94",
		Description:   "A sturdy ore used in many tools.",
	},
	{
		ID:            "silver",
		Name:          "Silver Ore",
		LevelRequired: 30,
		XP:            45,
		Duration:      5 * time.Second,
		ASCII:         "[Ag]",
		Color:         "#C0C0C0",
		Description:   "A precious metal with a brilliant shine.",
	},
	{
		ID:            "gold",
		Name:          "Gold Ore",
		LevelRequired: 50,
		XP:            75,
		Duration:      7 * time.Second,
		ASCII:         "[Au]",
		Color:         "#FFD700",
		Description:   "The most sought-after precious metal.",
	},
	{
		ID:            "mithril",
		Name:          "Mithril Ore",
		LevelRequired: 70,
		XP:            120,
		Duration:      10 * time.Second,
		ASCII:         "[Mi]",
		Color:         "#4169E1",
		Description:   "A legendary ore of immense power.",
	},
}

// Catalog is a read-only set of ores indexed by id.
type Catalog struct {
	byID    map[string]Ore
	ordered []Ore
}

// NewCatalog builds a catalog from the given ores.
// Ores are listed by required level, ties broken by id.
func NewCatalog(ores ...Ore) *Catalog {
	c := &Catalog{
		byID:    make(map[string]Ore, len(ores)),
		ordered: make([]Ore, 0, len(ores)),
	}
	for _, o := range ores {
		if _, dup := c.byID[o.ID]; dup {
			continue
		}
		c.byID[o.ID] = o
		c.ordered = append(c.ordered, o)
	}
	sort.SliceStable(c.ordered, func(i, j int) bool {
		if c.ordered[i].LevelRequired != c.ordered[j].LevelRequired {
			return c.ordered[i].LevelRequired < c.ordered[j].LevelRequired
		}
		return c.ordered[i].ID < c.ordered[j].ID
	})
	return c
}

var defaultCatalog = NewCatalog(oreDefs...)

// DefaultCatalog returns the built-in ore catalog.
func DefaultCatalog() *Catalog {
	return defaultCatalog
}

// Lookup returns the ore with the given id.
func (c *Catalog) Lookup(id string) (Ore, bool) {
	o, ok := c.byID[id]
	return o, ok
}

// List returns all ores ordered by required level.
// The returned slice is a copy.
func (c *Catalog) List() []Ore {
	out := make([]Ore, len(c.ordered))
	copy(out, c.ordered)
	return out
}

// Len returns number of ores in the catalog.
func (c *Catalog) Len() int {
	return len(c.ordered)
}
