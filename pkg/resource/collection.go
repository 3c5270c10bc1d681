package resource

// InsertPosition controls where a created entity lands in Items.
type InsertPosition int

const (
	// InsertEnd appends new entities ("most recently added last").
	InsertEnd InsertPosition = iota
	// InsertFront prepends new entities ("most recent first").
	InsertFront
)

// Collection is the list-valued state of one resource.
//
// Items is ordered and unique by ID. Selected is a drill-down view keyed by ID
// and independent of Items membership.
type Collection struct {
	Items    []Entity `json:"items"`
	Selected *Entity  `json:"selected"`
}

// Clone returns a deep copy of the collection.
func (c Collection) Clone() Collection {
	out := Collection{}
	if len(c.Items) > 0 {
		out.Items = make([]Entity, len(c.Items))
		for i, e := range c.Items {
			out.Items[i] = e.Clone()
		}
	}
	if c.Selected != nil {
		sel := c.Selected.Clone()
		out.Selected = &sel
	}
	return out
}

// Len returns the number of items.
func (c Collection) Len() int { return len(c.Items) }

// Find returns the item with the given ID.
func (c Collection) Find(id ID) (Entity, bool) {
	if i := c.index(id); i >= 0 {
		return c.Items[i], true
	}
	return Entity{}, false
}

// Primary returns the first item whose field is truthy.
func (c Collection) Primary(field string) (Entity, bool) {
	for _, e := range c.Items {
		if e.Bool(field) {
			return e, true
		}
	}
	return Entity{}, false
}

func (c Collection) index(id ID) int {
	for i := range c.Items {
		if c.Items[i].ID.Equal(id) {
			return i
		}
	}
	return -1
}

func (c Collection) selectedIs(id ID) bool {
	return c.Selected != nil && c.Selected.ID.Equal(id)
}

// ReplaceItems swaps Items wholesale. Duplicate IDs keep their first
// occurrence. A selected entity that also appears in the new items is
// refreshed from them; otherwise it is left alone.
func (c *Collection) ReplaceItems(items []Entity) {
	out := make([]Entity, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, e := range items {
		if _, dup := seen[e.ID.String()]; dup {
			continue
		}
		seen[e.ID.String()] = struct{}{}
		out = append(out, e.Clone())
	}
	c.Items = out
	if c.Selected != nil {
		if i := c.index(c.Selected.ID); i >= 0 {
			sel := c.Items[i].Clone()
			c.Selected = &sel
		}
	}
}

// Select sets the drill-down entity. Items is not touched.
func (c *Collection) Select(e Entity) {
	sel := e.Clone()
	c.Selected = &sel
}

// Insert adds a created entity. An entity whose ID is already present
// replaces the existing entry in place.
func (c *Collection) Insert(e Entity, pos InsertPosition) {
	if c.Replace(e) {
		return
	}
	e = e.Clone()
	if pos == InsertFront {
		c.Items = append([]Entity{e}, c.Items...)
		return
	}
	c.Items = append(c.Items, e)
}

// Replace swaps the item and the selected entity matching e.ID. It reports
// whether anything matched; no match is a silent no-op.
func (c *Collection) Replace(e Entity) bool {
	matched := false
	if i := c.index(e.ID); i >= 0 {
		c.Items[i] = e.Clone()
		matched = true
	}
	if c.selectedIs(e.ID) {
		sel := e.Clone()
		c.Selected = &sel
		matched = true
	}
	return matched
}

// Remove deletes the item with the given ID and clears Selected when it
// holds that ID.
func (c *Collection) Remove(id ID) bool {
	matched := false
	if i := c.index(id); i >= 0 {
		c.Items = append(c.Items[:i:i], c.Items[i+1:]...)
		matched = true
	}
	if c.selectedIs(id) {
		c.Selected = nil
		matched = true
	}
	return matched
}

// MergeFields merges patch into the matching item and the matching selected
// entity.
func (c *Collection) MergeFields(id ID, patch map[string]any) bool {
	matched := false
	if i := c.index(id); i >= 0 {
		c.Items[i] = mergeInto(c.Items[i], patch)
		matched = true
	}
	if c.selectedIs(id) {
		sel := mergeInto(*c.Selected, patch)
		c.Selected = &sel
		matched = true
	}
	return matched
}

// SetPrimary flags the entity with the given ID and unflags every other
// entity in one step, keeping exactly one primary. Unknown IDs are a no-op.
func (c *Collection) SetPrimary(id ID, field string) bool {
	if c.index(id) < 0 && !c.selectedIs(id) {
		return false
	}
	for i := range c.Items {
		c.Items[i] = withFlag(c.Items[i], field, c.Items[i].ID.Equal(id))
	}
	if c.Selected != nil {
		sel := withFlag(*c.Selected, field, c.Selected.ID.Equal(id))
		c.Selected = &sel
	}
	return true
}

// EnsurePrimary designates the first item as primary when none is flagged.
// It is a local default and reports whether it changed anything.
func (c *Collection) EnsurePrimary(field string) bool {
	if field == "" || len(c.Items) == 0 {
		return false
	}
	if _, ok := c.Primary(field); ok {
		return false
	}
	return c.SetPrimary(c.Items[0].ID, field)
}

// Reset empties the collection.
func (c *Collection) Reset() {
	c.Items = nil
	c.Selected = nil
}

func mergeInto(e Entity, patch map[string]any) Entity {
	out := e.Clone()
	for k, v := range patch {
		out.Fields[k] = cloneValue(v)
	}
	return out
}

func withFlag(e Entity, field string, on bool) Entity {
	if e.Bool(field) == on {
		if _, present := e.Fields[field]; present || !on {
			return e
		}
	}
	out := e.Clone()
	out.Fields[field] = on
	return out
}
