package marketplace

import "github.com/farmcart/farmcart/pkg/resource"

type editKind int

const (
	viewing editKind = iota
	adding
	editing
)

// EditMode is the address form state: viewing the saved addresses, adding
// a new one, or editing one identified by ID. The zero value is Viewing.
type EditMode struct {
	kind   editKind
	target resource.ID
}

// Viewing returns the idle mode.
func Viewing() EditMode { return EditMode{} }

// Adding returns the mode for a new address form.
func Adding() EditMode { return EditMode{kind: adding} }

// Editing returns the mode for editing the address with id.
func Editing(id resource.ID) EditMode {
	return EditMode{kind: editing, target: id}
}

// IsViewing reports whether no form is open.
func (m EditMode) IsViewing() bool { return m.kind == viewing }

// IsAdding reports whether a new address is being entered.
func (m EditMode) IsAdding() bool { return m.kind == adding }

// IsEditing reports whether an existing address is being edited.
func (m EditMode) IsEditing() bool { return m.kind == editing }

// TargetID returns the edited ID. ok is false outside Editing.
func (m EditMode) TargetID() (resource.ID, bool) {
	if m.kind != editing {
		return resource.ID{}, false
	}
	return m.target, true
}

// BeginAdd opens the add form.
func (m EditMode) BeginAdd() EditMode { return Adding() }

// BeginEdit opens the edit form for id. A zero id keeps the current mode.
func (m EditMode) BeginEdit(id resource.ID) EditMode {
	if id.IsZero() {
		return m
	}
	return Editing(id)
}

// Done closes any form.
func (m EditMode) Done() EditMode { return Viewing() }

// Category returns the operation a submit performs in this mode.
func (m EditMode) Category() (resource.Category, bool) {
	switch m.kind {
	case adding:
		return resource.Create, true
	case editing:
		return resource.Update, true
	}
	return "", false
}

func (m EditMode) String() string {
	switch m.kind {
	case adding:
		return "adding"
	case editing:
		return "editing(" + m.target.String() + ")"
	}
	return "viewing"
}
