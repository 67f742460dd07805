package pricecheck

import (
	"fmt"
	"strings"
)

// Level is one tier of the merchandise hierarchy, from Area (broadest) down
// to ProductGroup.
type Level int

const (
	LevelArea Level = iota
	LevelDivision
	LevelFamily
	LevelCategory
	LevelProductGroup
)

// NumLevels is the depth of the merchandise hierarchy.
const NumLevels = 5

// pendingPrefix marks a hierarchy key whose classification is not yet known.
const pendingPrefix = "UNKNOWN_"

type levelInfo struct {
	entity      EntityName
	keyField    string
	descField   string
	textField   string
	placeholder string
}

var levels = [NumLevels]levelInfo{
	{EntityAreas, "Area", "AreaDesc", "AreaText", "UNKNOWN_AREA"},
	{EntityDivisions, "Division", "DivisionDesc", "DivisionText", "UNKNOWN_DIVISION"},
	{EntityFamilies, "Family", "FamilyDesc", "FamilyText", "UNKNOWN_FAMILY"},
	{EntityCategories, "Category", "CategoryDesc", "CategoryText", "UNKNOWN_CATEGORY"},
	{EntityProductGroups, "ProductGroup", "ProductGroupDesc", "ProductGroupText", "UNKNOWN_GROUP"},
}

// Levels returns all hierarchy levels, broadest first.
func Levels() []Level {
	return []Level{LevelArea, LevelDivision, LevelFamily, LevelCategory, LevelProductGroup}
}

// ParseLevel accepts a level key field ("Area"), its entity set ("Areas")
// or either in any case.
func ParseLevel(s string) (Level, error) {
	for i, info := range levels {
		if strings.EqualFold(s, info.keyField) || strings.EqualFold(s, string(info.entity)) {
			return Level(i), nil
		}
	}
	return 0, &ValidationError{Field: "level", Message: fmt.Sprintf("unknown hierarchy level %q", s)}
}

// IsValid reports whether l names a hierarchy level.
func (l Level) IsValid() bool { return l >= LevelArea && l <= LevelProductGroup }

func (l Level) String() string {
	if !l.IsValid() {
		return fmt.Sprintf("Level(%d)", int(l))
	}
	return levels[l].keyField
}

// Entity returns the entity set holding nodes of this level.
func (l Level) Entity() EntityName { return levels[l].entity }

// KeyField returns the document field carrying this level's key.
func (l Level) KeyField() string { return levels[l].keyField }

// DescField returns the node field carrying the level's description.
func (l Level) DescField() string { return levels[l].descField }

// TextField returns the product field carrying the denormalised description.
func (l Level) TextField() string { return levels[l].textField }

// Placeholder returns the stored form of a pending key at this level.
func (l Level) Placeholder() string { return levels[l].placeholder }

type keyState uint8

const (
	keyAbsent keyState = iota
	keyPending
	keyAssigned
)

// Key is a hierarchy key that is absent, pending classification, or
// assigned. The zero value is absent.
type Key struct {
	value string
	state keyState
}

// Assigned returns a key holding v. An empty v yields an absent key.
func Assigned(v string) Key {
	if v == "" {
		return Key{}
	}
	return Key{value: v, state: keyAssigned}
}

// Pending returns a key whose classification is not yet known.
func Pending() Key { return Key{state: keyPending} }

// ParseKey interprets a stored key: "" is absent, an UNKNOWN_* placeholder
// is pending, anything else is assigned.
func ParseKey(s string) Key {
	switch {
	case s == "":
		return Key{}
	case strings.HasPrefix(s, pendingPrefix):
		return Pending()
	default:
		return Key{value: s, state: keyAssigned}
	}
}

func (k Key) IsAbsent() bool   { return k.state == keyAbsent }
func (k Key) IsPending() bool  { return k.state == keyPending }
func (k Key) IsAssigned() bool { return k.state == keyAssigned }

// Value returns the assigned key, or "" for absent and pending keys.
func (k Key) Value() string { return k.value }

// Encode returns the stored form of k at level l.
func (k Key) Encode(l Level) string {
	switch k.state {
	case keyPending:
		return l.Placeholder()
	case keyAssigned:
		return k.value
	default:
		return ""
	}
}

// Path is a product's position in the hierarchy, one key per level.
type Path [NumLevels]Key

// NewPath builds a path from stored keys, broadest first. Missing trailing
// levels are absent.
func NewPath(keys ...string) Path {
	var p Path
	for i := 0; i < len(keys) && i < NumLevels; i++ {
		p[i] = ParseKey(keys[i])
	}
	return p
}

// Get returns the key at level l.
func (p Path) Get(l Level) Key { return p[l] }

// With returns a copy of p with level l set to k.
func (p Path) With(l Level, k Key) Path {
	p[l] = k
	return p
}

// Encoded returns the stored form of every level.
func (p Path) Encoded() [NumLevels]string {
	var out [NumLevels]string
	for i, k := range p {
		out[i] = k.Encode(Level(i))
	}
	return out
}

// Complete reports whether every level is assigned.
func (p Path) Complete() bool {
	for _, k := range p {
		if !k.IsAssigned() {
			return false
		}
	}
	return true
}

// Unassigned returns the levels that are absent or pending.
func (p Path) Unassigned() []Level {
	var out []Level
	for i, k := range p {
		if !k.IsAssigned() {
			out = append(out, Level(i))
		}
	}
	return out
}

// WithPlaceholders returns p with every absent level marked pending.
func (p Path) WithPlaceholders() Path {
	for i, k := range p {
		if k.IsAbsent() {
			p[i] = Pending()
		}
	}
	return p
}

// MissingLevels reports which hierarchy levels still need a selection.
type MissingLevels struct {
	NeedsArea         bool `json:"needsArea"`
	NeedsDivision     bool `json:"needsDivision"`
	NeedsFamily       bool `json:"needsFamily"`
	NeedsCategory     bool `json:"needsCategory"`
	NeedsProductGroup bool `json:"needsProductGroup"`
	HasMissingValues  bool `json:"hasMissingValues"`
}

// CheckMissing flags each level whose key is absent. Pending keys count as
// present here; pending classification is detected on the product itself.
func CheckMissing(p Path) MissingLevels {
	m := MissingLevels{
		NeedsArea:         p[LevelArea].IsAbsent(),
		NeedsDivision:     p[LevelDivision].IsAbsent(),
		NeedsFamily:       p[LevelFamily].IsAbsent(),
		NeedsCategory:     p[LevelCategory].IsAbsent(),
		NeedsProductGroup: p[LevelProductGroup].IsAbsent(),
	}
	m.HasMissingValues = m.NeedsArea || m.NeedsDivision || m.NeedsFamily || m.NeedsCategory || m.NeedsProductGroup
	return m
}
