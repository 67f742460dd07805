package pricecheck

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// HierarchyNode is one Area, Division, Family, Category or ProductGroup.
type HierarchyNode struct {
	Level      Level  `json:"level"`
	Key        string `json:"key"`
	Text       string `json:"text"`
	Customer   string `json:"customer"`
	Assortment string `json:"assortment"`

	// Parents holds the ancestor keys; levels at or below Level are absent.
	Parents Path `json:"-"`
}

// Hierarchy resolves hierarchy labels and option lists from the local store.
type Hierarchy struct {
	repo *Repository
	log  logrus.FieldLogger
}

// NewHierarchy creates a hierarchy service. A nil logger discards.
func NewHierarchy(repo *Repository, log logrus.FieldLogger) *Hierarchy {
	if log == nil {
		log = discardLogger()
	}
	return &Hierarchy{repo: repo, log: log.WithField("component", "hierarchy")}
}

// ScopeFilters returns the equality filters restricting a query to scope.
// Empty scope fields are not constrained.
func ScopeFilters(scope Scope) []Filter {
	var filters []Filter
	if scope.Customer != "" {
		filters = append(filters, Eq(FieldCustomer, scope.Customer))
	}
	if scope.Assortment != "" {
		filters = append(filters, Eq(FieldAssortment, scope.Assortment))
	}
	return filters
}

// FetchText returns the description of the node at level with the given
// key. Absent and pending keys resolve to "" without touching the store;
// missing nodes and store errors also yield "".
func (h *Hierarchy) FetchText(scope Scope, level Level, key Key) string {
	if !key.IsAssigned() {
		return ""
	}

	filters := append(ScopeFilters(scope), Eq(level.KeyField(), key.Value()))
	docs, err := h.repo.FindByEntityName(level.Entity(), filters...)
	if err != nil {
		h.log.WithError(err).WithFields(logrus.Fields{
			"entity": level.Entity(),
			"key":    key.Value(),
		}).Warn("hierarchy text lookup failed")
		return ""
	}
	if len(docs) == 0 {
		return ""
	}
	return nodeText(docs[0], level)
}

// FetchTexts resolves the description of every level of path.
func (h *Hierarchy) FetchTexts(scope Scope, path Path) Texts {
	var texts Texts
	for _, l := range Levels() {
		texts[l] = h.FetchText(scope, l, path.Get(l))
	}
	return texts
}

// LoadOptions returns the nodes at level matching every filter. Callers
// include their scope filters; parent keys narrow the list further.
func (h *Hierarchy) LoadOptions(level Level, filters ...Filter) ([]HierarchyNode, error) {
	if !level.IsValid() {
		return nil, &ValidationError{Field: "level", Message: fmt.Sprintf("invalid hierarchy level %d", int(level))}
	}
	docs, err := h.repo.FindByEntityName(level.Entity(), filters...)
	if err != nil {
		return nil, fmt.Errorf("load %s options: %w", level, err)
	}
	nodes := make([]HierarchyNode, 0, len(docs))
	for _, doc := range docs {
		nodes = append(nodes, decodeNode(doc, level))
	}
	return nodes, nil
}

// NewSelection starts a cascading hierarchy selection in scope with the
// Area options loaded.
func (h *Hierarchy) NewSelection(scope Scope) (*Selection, error) {
	s := &Selection{h: h, scope: scope}
	areas, err := h.LoadOptions(LevelArea, ScopeFilters(scope)...)
	if err != nil {
		return nil, err
	}
	s.options[LevelArea] = areas
	return s, nil
}

// Selection is the state of a top-down hierarchy choice. Changing a level
// invalidates every level below it.
type Selection struct {
	h       *Hierarchy
	scope   Scope
	path    Path
	options [NumLevels][]HierarchyNode
}

// Select sets the key at level. Deeper selections are cleared, the options
// for the next level are reloaded under the new key, and the option lists
// further down are emptied. An empty key clears the level itself.
func (s *Selection) Select(level Level, key string) error {
	if !level.IsValid() {
		return &ValidationError{Field: "level", Message: fmt.Sprintf("invalid hierarchy level %d", int(level))}
	}

	s.path[level] = Assigned(key)
	for l := level + 1; l <= LevelProductGroup; l++ {
		s.path[l] = Key{}
		s.options[l] = nil
	}

	next := level + 1
	if key == "" || !next.IsValid() {
		return nil
	}
	filters := append(ScopeFilters(s.scope), Eq(level.KeyField(), key))
	opts, err := s.h.LoadOptions(next, filters...)
	if err != nil {
		return err
	}
	s.options[next] = opts
	return nil
}

// Options returns the choices currently offered at level.
func (s *Selection) Options(level Level) []HierarchyNode {
	return s.options[level]
}

// Path returns the keys selected so far.
func (s *Selection) Path() Path { return s.path }

// Missing reports which levels are still unselected.
func (s *Selection) Missing() MissingLevels { return CheckMissing(s.path) }

// Context returns a hierarchy-browsing collect context for the selection.
func (s *Selection) Context() CollectContext {
	return CollectContext{Scope: s.scope, Path: s.path, FromHierarchy: true}
}

func decodeNode(doc Document, level Level) HierarchyNode {
	n := HierarchyNode{
		Level:      level,
		Key:        doc.String(level.KeyField()),
		Text:       nodeText(doc, level),
		Customer:   doc.String(FieldCustomer),
		Assortment: doc.String(FieldAssortment),
	}
	for l := LevelArea; l < level; l++ {
		n.Parents[l] = Assigned(doc.String(l.KeyField()))
	}
	return n
}

// nodeText reads a node's description, accepting the product-style text
// field when the description field is missing.
func nodeText(doc Document, level Level) string {
	if s := doc.String(level.DescField()); s != "" {
		return s
	}
	return doc.String(level.TextField())
}
