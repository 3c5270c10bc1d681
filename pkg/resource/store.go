package resource

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// ErrUnknownResource is returned for operations on unregistered resources.
var ErrUnknownResource = errors.New("unknown resource")

// Change describes one store transition delivered to listeners. Category is
// empty for resets and for direct collection writes.
type Change struct {
	Resource string
	Category Category
}

// Listener is notified after a transition has been committed.
type Listener func(Change)

// Token identifies one dispatched operation. Epoch changes on Reset, Seq
// increases with every dispatch of the same category.
type Token struct {
	Epoch uint64
	Seq   uint64
}

// Outcome is the settlement of one operation.
type Outcome struct {
	// Patch is merged into the category status.
	Patch StatusPatch
	// Mutate applies the result to the collection. May be nil.
	Mutate func(*Collection)
	// ApplyWhenSuperseded lets a response whose token has been superseded by
	// a newer dispatch of the same category still run Mutate. The status is
	// left to the newer request. Responses from before a Reset never apply.
	ApplyWhenSuperseded bool
}

// Settlement reports what Settle did.
type Settlement int

const (
	// Applied means status and collection were updated.
	Applied Settlement = iota
	// Superseded means only the collection mutation was applied.
	Superseded
	// Discarded means nothing was applied.
	Discarded
)

type entry struct {
	collection Collection
	status     map[Category]Status
	epoch      uint64
	seq        map[Category]uint64
	started    map[Category]time.Time
}

func newEntry() *entry {
	return &entry{
		status:  make(map[Category]Status),
		seq:     make(map[Category]uint64),
		started: make(map[Category]time.Time),
	}
}

// Store is the shared container for every registered resource.
type Store struct {
	mu        sync.RWMutex
	resources map[string]*entry
	observer  Observer

	subMu   sync.Mutex
	subs    map[int]Listener
	nextSub int
}

// Option configures a Store.
type Option func(*Store)

// WithObserver installs transition hooks.
func WithObserver(o Observer) Option {
	return func(s *Store) {
		if o != nil {
			s.observer = o
		}
	}
}

// NewStore creates an empty Store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		resources: make(map[string]*entry),
		observer:  NoopObserver{},
		subs:      make(map[int]Listener),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register adds resources. Registering a known name is a no-op.
func (s *Store) Register(names ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, name := range names {
		if _, ok := s.resources[name]; !ok {
			s.resources[name] = newEntry()
		}
	}
}

// Unregister drops resources and their state.
func (s *Store) Unregister(names ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, name := range names {
		delete(s.resources, name)
	}
}

// Has reports whether name is registered.
func (s *Store) Has(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.resources[name]
	return ok
}

// Names returns registered resource names in sorted order.
func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.resources))
	for name := range s.resources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Collection returns a deep-copied snapshot. Unknown resources yield an
// empty collection.
func (s *Store) Collection(name string) Collection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e, ok := s.resources[name]; ok {
		return e.collection.Clone()
	}
	return Collection{}
}

// Status returns the status of one category.
func (s *Store) Status(name string, category Category) Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e, ok := s.resources[name]; ok {
		return e.status[category]
	}
	return Status{}
}

// Statuses returns every non-idle category status of a resource.
func (s *Store) Statuses(name string) map[Category]Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[Category]Status)
	if e, ok := s.resources[name]; ok {
		for c, st := range e.status {
			if !st.Idle() {
				out[c] = st
			}
		}
	}
	return out
}

// Begin enters the pending phase for one category and returns the token
// that must be presented to Settle.
func (s *Store) Begin(name string, category Category) (Token, error) {
	s.mu.Lock()
	e, ok := s.resources[name]
	if !ok {
		s.mu.Unlock()
		return Token{}, fmt.Errorf("%w: %q", ErrUnknownResource, name)
	}
	e.seq[category]++
	tok := Token{Epoch: e.epoch, Seq: e.seq[category]}
	e.started[category] = time.Now()
	e.status[category] = Pending().Apply(e.status[category])
	s.mu.Unlock()

	s.observer.OnPending(name, category, tok.Seq)
	s.notify(Change{Resource: name, Category: category})
	return tok, nil
}

// Latest returns the newest token issued for a category.
func (s *Store) Latest(name string, category Category) Token {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e, ok := s.resources[name]; ok {
		return Token{Epoch: e.epoch, Seq: e.seq[category]}
	}
	return Token{}
}

// Settle completes the operation identified by tok. Status patch and
// collection mutation are applied together under one lock when tok is still
// the latest token of its category. Otherwise see Outcome.ApplyWhenSuperseded.
func (s *Store) Settle(name string, category Category, tok Token, out Outcome) Settlement {
	s.mu.Lock()
	e, ok := s.resources[name]
	if !ok || e.epoch != tok.Epoch {
		s.mu.Unlock()
		s.observer.OnDiscarded(name, category, tok.Seq)
		return Discarded
	}
	if e.seq[category] != tok.Seq {
		if !out.ApplyWhenSuperseded || out.Mutate == nil {
			s.mu.Unlock()
			s.observer.OnDiscarded(name, category, tok.Seq)
			return Discarded
		}
		out.Mutate(&e.collection)
		s.mu.Unlock()
		s.observer.OnSuperseded(name, category, tok.Seq)
		s.notify(Change{Resource: name, Category: category})
		return Superseded
	}
	st := out.Patch.Apply(e.status[category])
	e.status[category] = st
	if out.Mutate != nil {
		out.Mutate(&e.collection)
	}
	elapsed := time.Since(e.started[category])
	s.mu.Unlock()

	if st.Failed() {
		s.observer.OnRejected(name, category, st.Error, elapsed)
	} else {
		s.observer.OnFulfilled(name, category, elapsed)
	}
	s.notify(Change{Resource: name, Category: category})
	return Applied
}

// SetStatus merges a patch into one category's status.
func (s *Store) SetStatus(name string, category Category, patch StatusPatch) {
	if s.withEntry(name, func(e *entry) { e.status[category] = patch.Apply(e.status[category]) }) {
		s.notify(Change{Resource: name, Category: category})
	}
}

// ClearStatus acknowledges a settled operation: error, success and message
// go back to their initial values. Loading is left alone so an in-flight
// request keeps its pending state. Clearing twice equals clearing once.
func (s *Store) ClearStatus(name string, category Category) {
	s.SetStatus(name, category, StatusPatch{Error: ptr(""), Success: ptr(false), Message: ptr("")})
}

// ApplyFetchAll replaces the items of a resource.
func (s *Store) ApplyFetchAll(name string, items []Entity) {
	s.mutate(name, func(c *Collection) { c.ReplaceItems(items) })
}

// ApplyFetchOne sets the selected entity.
func (s *Store) ApplyFetchOne(name string, e Entity) {
	s.mutate(name, func(c *Collection) { c.Select(e) })
}

// ApplyCreate inserts a created entity.
func (s *Store) ApplyCreate(name string, e Entity, pos InsertPosition) {
	s.mutate(name, func(c *Collection) { c.Insert(e, pos) })
}

// ApplyUpdate replaces the matching entity in items and selected.
func (s *Store) ApplyUpdate(name string, e Entity) {
	s.mutate(name, func(c *Collection) { c.Replace(e) })
}

// ApplyDelete removes the matching entity.
func (s *Store) ApplyDelete(name string, id ID) {
	s.mutate(name, func(c *Collection) { c.Remove(id) })
}

// ApplyPartial merges a field patch into the matching entity.
func (s *Store) ApplyPartial(name string, id ID, patch map[string]any) {
	s.mutate(name, func(c *Collection) { c.MergeFields(id, patch) })
}

// Reset wipes a resource back to its initial state. Tokens of in-flight
// requests are invalidated so their responses are discarded.
func (s *Store) Reset(name string) {
	if s.withEntry(name, func(e *entry) {
		e.collection.Reset()
		e.epoch++
		e.status = make(map[Category]Status)
	}) {
		s.observer.OnReset(name)
		s.notify(Change{Resource: name})
	}
}

// ResetAll wipes every registered resource.
func (s *Store) ResetAll() {
	for _, name := range s.Names() {
		s.Reset(name)
	}
}

// Subscribe registers a listener and returns a function that removes it.
func (s *Store) Subscribe(fn Listener) (cancel func()) {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *Store) mutate(name string, fn func(*Collection)) {
	if s.withEntry(name, func(e *entry) { fn(&e.collection) }) {
		s.notify(Change{Resource: name})
	}
}

func (s *Store) withEntry(name string, fn func(*entry)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.resources[name]
	if !ok {
		return false
	}
	fn(e)
	return true
}

func (s *Store) notify(ch Change) {
	s.subMu.Lock()
	listeners := make([]Listener, 0, len(s.subs))
	for _, fn := range s.subs {
		listeners = append(listeners, fn)
	}
	s.subMu.Unlock()

	for _, fn := range listeners {
		fn(ch)
	}
}
