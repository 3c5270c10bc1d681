package resource

// Category names an operation kind. Each category of each resource carries
// its own Status so operations of different categories never interfere.
type Category string

const (
	FetchAll     Category = "fetch-all"
	FetchOne     Category = "fetch-one"
	Create       Category = "create"
	Update       Category = "update"
	Delete       Category = "delete"
	SetPrimary   Category = "set-primary"
	ChangeStatus Category = "status-change"
)

// Categories lists the built-in categories in display order.
var Categories = []Category{FetchAll, FetchOne, Create, Update, Delete, SetPrimary, ChangeStatus}

// Status is the lifecycle metadata of one category. An empty Error or
// Message means none is set.
type Status struct {
	Loading bool   `json:"loading"`
	Error   string `json:"error,omitempty"`
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// Idle reports whether the status equals the initial value.
func (s Status) Idle() bool { return s == Status{} }

// Failed reports whether an error is recorded.
func (s Status) Failed() bool { return s.Error != "" }

// StatusPatch carries the fields to merge into a Status. Nil fields are kept.
type StatusPatch struct {
	Loading *bool
	Error   *string
	Success *bool
	Message *string
}

// Apply merges the patch into s.
func (p StatusPatch) Apply(s Status) Status {
	if p.Loading != nil {
		s.Loading = *p.Loading
	}
	if p.Error != nil {
		s.Error = *p.Error
	}
	if p.Success != nil {
		s.Success = *p.Success
	}
	if p.Message != nil {
		s.Message = *p.Message
	}
	return s
}

// Pending is the transition taken when an operation is dispatched: loading
// starts, the previous error and success flag are cleared. Success is
// cleared so loading and success are never both true. The previous message
// is kept so a stale confirmation can stay on screen.
func Pending() StatusPatch {
	return StatusPatch{Loading: ptr(true), Error: ptr(""), Success: ptr(false)}
}

// Fulfilled is the transition taken when the API accepted the operation.
func Fulfilled(message string) StatusPatch {
	return StatusPatch{Loading: ptr(false), Error: ptr(""), Success: ptr(true), Message: ptr(message)}
}

// Rejected is the transition taken when the operation failed.
func Rejected(errMsg string) StatusPatch {
	return StatusPatch{Loading: ptr(false), Error: ptr(errMsg), Success: ptr(false)}
}

func ptr[T any](v T) *T { return &v }
