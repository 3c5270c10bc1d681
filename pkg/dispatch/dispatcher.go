package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"sync"

	"github.com/ohler55/ojg/jp"

	"github.com/farmcart/farmcart/pkg/apiclient"
	"github.com/farmcart/farmcart/pkg/logging"
	"github.com/farmcart/farmcart/pkg/resource"
)

// Operation is one request against a resource.
type Operation struct {
	Resource string
	Category resource.Category
	// ID targets a single entity (fetch-one, update, delete, set-primary,
	// status-change, and custom routes containing {id}).
	ID resource.ID
	// Payload is the request body of create, update and custom categories.
	Payload map[string]any
	// Query holds filter parameters of fetch-all.
	Query url.Values
	// Status is the new value of a status-change.
	Status string
}

// Result is what a fulfilled operation produced.
type Result struct {
	Resource string
	Category resource.Category
	// Entity is the entity returned by single-entity operations.
	Entity *resource.Entity
	// Items is the list returned by fetch-all.
	Items []resource.Entity
	// Message is the confirmation recorded in the status.
	Message string
	// Effects must be run by the caller, see RunEffects.
	Effects []Effect
	// Superseded is set when a newer dispatch of the same category was
	// issued before this one settled; the status belongs to the newer one.
	Superseded bool
	// Discarded is set when the response was dropped entirely.
	Discarded bool
}

// Dispatcher runs operations against the API and records them in a store.
type Dispatcher struct {
	client apiclient.Sender
	store  *resource.Store
	logger *slog.Logger

	mu   sync.RWMutex
	defs map[string]Definition
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger used for phase transitions.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// New creates a Dispatcher. A nil store gets a fresh one.
func New(client apiclient.Sender, store *resource.Store, opts ...Option) *Dispatcher {
	if store == nil {
		store = resource.NewStore()
	}
	d := &Dispatcher{
		client: client,
		store:  store,
		logger: logging.Nop(),
		defs:   make(map[string]Definition),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Register adds resource definitions and their store entries.
func (d *Dispatcher) Register(defs ...Definition) error {
	for _, def := range defs {
		if err := def.validate(); err != nil {
			return err
		}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, def := range defs {
		d.defs[def.Name] = def.withDefaults()
		d.store.Register(def.Name)
	}
	return nil
}

// Unregister removes resources and drops their state.
func (d *Dispatcher) Unregister(names ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, name := range names {
		delete(d.defs, name)
	}
	d.store.Unregister(names...)
}

// Definition returns the registered definition of a resource.
func (d *Dispatcher) Definition(name string) (Definition, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	def, ok := d.defs[name]
	return def, ok
}

// Definitions returns all definitions sorted by name.
func (d *Dispatcher) Definitions() []Definition {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Definition, 0, len(d.defs))
	for _, def := range d.defs {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Store returns the underlying store for subscriptions and observers.
func (d *Dispatcher) Store() *resource.Store { return d.store }

// Select returns a snapshot of a resource collection.
func (d *Dispatcher) Select(name string) resource.Collection {
	return d.store.Collection(name)
}

// SelectStatus returns the status of one category.
func (d *Dispatcher) SelectStatus(name string, cat resource.Category) resource.Status {
	return d.store.Status(name, cat)
}

// ClearStatus acknowledges a settled operation.
func (d *Dispatcher) ClearStatus(name string, cat resource.Category) {
	d.store.ClearStatus(name, cat)
}

// Reset wipes a resource, used on sign-out and role switches.
func (d *Dispatcher) Reset(name string) {
	d.store.Reset(name)
}

// ResetAll wipes every resource.
func (d *Dispatcher) ResetAll() {
	d.store.ResetAll()
}

// Dispatch runs op through pending and then fulfilled or rejected. On
// failure the returned error is an *OperationError whose message is the one
// recorded in the status. Unknown resources and categories fail without
// touching any status.
func (d *Dispatcher) Dispatch(ctx context.Context, op Operation) (*Result, error) {
	def, ok := d.Definition(op.Resource)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownResource, op.Resource)
	}
	route, err := def.Route(op.Category)
	if err != nil {
		return nil, err
	}

	tok, err := d.store.Begin(op.Resource, op.Category)
	if err != nil {
		return nil, err
	}
	log := d.logger.With("resource", op.Resource, "category", string(op.Category), "seq", tok.Seq)
	log.Debug("dispatch pending", "id", op.ID.String())

	if err := d.precondition(def, route, op); err != nil {
		return nil, d.reject(log, def, op, tok, KindPrecondition, err)
	}

	env, err := d.client.Send(ctx, route.Method, route.build(op.ID, op.Query), d.body(def, op))
	if err == nil && env == nil {
		err = &envelopeFailure{}
	}
	if err == nil && !env.Success {
		err = &envelopeFailure{message: env.Message}
	}
	if err != nil {
		return nil, d.reject(log, def, op, tok, KindTransport, err)
	}

	if route.Extract != "" {
		def.ListPath, def.EntityPath = route.Extract, route.Extract
	}
	res, mutate, err := d.interpret(def, op, env)
	if err != nil {
		return nil, d.reject(log, def, op, tok, KindTransport, err)
	}

	switch d.store.Settle(op.Resource, op.Category, tok, resource.Outcome{
		Patch:               resource.Fulfilled(res.Message),
		Mutate:              mutate,
		ApplyWhenSuperseded: op.Category != resource.FetchAll && op.Category != resource.FetchOne,
	}) {
	case resource.Superseded:
		res.Superseded = true
		log.Debug("dispatch superseded")
	case resource.Discarded:
		res.Discarded = true
		log.Debug("dispatch discarded")
		return res, nil
	default:
		log.Debug("dispatch fulfilled", "message", res.Message)
	}

	if def.Effects != nil {
		res.Effects = def.Effects(op, env.Data)
	}
	return res, nil
}

func (d *Dispatcher) precondition(def Definition, route Route, op Operation) error {
	if route.needsID() && op.ID.IsZero() {
		return ErrMissingID
	}
	if op.Category == resource.ChangeStatus && op.Status == "" {
		return ErrMissingStatus
	}
	if op.Category == resource.Delete && def.RequireOne {
		coll := d.store.Collection(op.Resource)
		if coll.Len() == 1 && coll.Items[0].ID.Equal(op.ID) {
			return ErrLastEntity
		}
	}
	return nil
}

func (d *Dispatcher) reject(log *slog.Logger, def Definition, op Operation, tok resource.Token, kind ErrorKind, cause error) error {
	fallback := def.FailureMessage(op.Category)
	msg := NormalizeError(cause, fallback)
	if kind == KindPrecondition {
		msg = cause.Error()
	}
	settled := d.store.Settle(op.Resource, op.Category, tok, resource.Outcome{Patch: resource.Rejected(msg)})
	log.Warn("dispatch rejected", "kind", string(kind), "error", msg, "settled", settled == resource.Applied)
	return &OperationError{
		Resource: op.Resource,
		Category: op.Category,
		Kind:     kind,
		Message:  msg,
		Err:      cause,
	}
}

func (d *Dispatcher) body(def Definition, op Operation) any {
	switch op.Category {
	case resource.FetchAll, resource.FetchOne, resource.Delete:
		return nil
	case resource.SetPrimary:
		return map[string]any{def.PrimaryField: true}
	case resource.ChangeStatus:
		return map[string]any{def.StatusField: op.Status}
	}
	if op.Payload == nil {
		return nil
	}
	return op.Payload
}

// interpret decodes the response and builds the collection mutation.
func (d *Dispatcher) interpret(def Definition, op Operation, env *apiclient.Envelope) (*Result, func(*resource.Collection), error) {
	res := &Result{
		Resource: op.Resource,
		Category: op.Category,
		Message:  env.Message,
	}
	if res.Message == "" {
		res.Message = def.SuccessMessage(op.Category)
	}

	switch op.Category {
	case resource.FetchAll:
		items, err := decodeItems(env.Data, def)
		if err != nil {
			return nil, nil, err
		}
		res.Items = items
		return res, func(c *resource.Collection) {
			c.ReplaceItems(items)
			if def.PrimaryField != "" {
				c.EnsurePrimary(def.PrimaryField)
			}
		}, nil

	case resource.FetchOne:
		e, err := decodeEntity(env.Data, def)
		if err != nil {
			return nil, nil, err
		}
		res.Entity = e
		if e == nil {
			return nil, nil, fmt.Errorf("%s: empty response", def.FailureMessage(op.Category))
		}
		return res, func(c *resource.Collection) { c.Select(*e) }, nil

	case resource.Create:
		e, err := decodeEntity(env.Data, def)
		if err != nil {
			return nil, nil, err
		}
		if e == nil {
			d.logger.Warn("create response carried no entity; collection left unchanged",
				"resource", op.Resource)
			return res, nil, nil
		}
		res.Entity = e
		return res, keepPrimary(def, func(c *resource.Collection) { c.Insert(*e, def.Insert) }), nil

	case resource.Update:
		e, err := decodeEntity(env.Data, def)
		if err != nil {
			return nil, nil, err
		}
		if e == nil {
			patch := op.Payload
			return res, keepPrimary(def, func(c *resource.Collection) { c.MergeFields(op.ID, patch) }), nil
		}
		res.Entity = e
		return res, keepPrimary(def, func(c *resource.Collection) { c.Replace(carryPrimary(c, def, *e)) }), nil

	case resource.Delete:
		id := op.ID
		return res, keepPrimary(def, func(c *resource.Collection) { c.Remove(id) }), nil

	case resource.SetPrimary:
		e, _ := decodeEntity(env.Data, def)
		res.Entity = e
		return res, func(c *resource.Collection) {
			if e != nil {
				c.Replace(*e)
			}
			c.SetPrimary(op.ID, def.PrimaryField)
		}, nil

	case resource.ChangeStatus:
		e, _ := decodeEntity(env.Data, def)
		res.Entity = e
		patch := map[string]any{def.StatusField: op.Status}
		return res, keepPrimary(def, func(c *resource.Collection) {
			if e != nil {
				c.Replace(carryPrimary(c, def, *e))
			}
			c.MergeFields(op.ID, patch)
		}), nil
	}

	// Resource-specific categories: a returned entity becomes the selection.
	e, _ := decodeEntity(env.Data, def)
	res.Entity = e
	if e == nil {
		return res, nil, nil
	}
	return res, func(c *resource.Collection) { c.Select(*e) }, nil
}

// keepPrimary re-applies the first-item-primary rule after mutate, so a
// resource with a primary flag never ends up without a primary.
func keepPrimary(def Definition, mutate func(*resource.Collection)) func(*resource.Collection) {
	if def.PrimaryField == "" {
		return mutate
	}
	return func(c *resource.Collection) {
		mutate(c)
		c.EnsurePrimary(def.PrimaryField)
	}
}

// carryPrimary copies the local primary flag onto a server copy that omits
// the field.
func carryPrimary(c *resource.Collection, def Definition, e resource.Entity) resource.Entity {
	if def.PrimaryField == "" {
		return e
	}
	if _, ok := e.Fields[def.PrimaryField]; ok {
		return e
	}
	old, ok := c.Find(e.ID)
	if !ok || !old.Bool(def.PrimaryField) {
		return e
	}
	out := e.Clone()
	out.Fields[def.PrimaryField] = true
	return out
}

func locate(data json.RawMessage, path string) (any, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decode response data: %w", err)
	}
	if path == "" || path == "$" {
		return v, nil
	}
	x, err := jp.ParseString(path)
	if err != nil {
		return nil, fmt.Errorf("invalid data path %q: %w", path, err)
	}
	if found := x.Get(v); len(found) > 0 {
		return found[0], nil
	}
	return nil, nil
}

func decodeItems(data json.RawMessage, def Definition) ([]resource.Entity, error) {
	v, err := locate(data, def.ListPath)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return []resource.Entity{}, nil
	}
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("decode %s: expected a list", def.Label)
	}
	items := make([]resource.Entity, 0, len(list))
	for i, el := range list {
		m, ok := el.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("decode %s: item %d is not an object", def.Label, i)
		}
		e, err := resource.FromMap(m, def.IDField)
		if err != nil {
			return nil, fmt.Errorf("decode %s: item %d: %w", def.Label, i, err)
		}
		items = append(items, e)
	}
	return items, nil
}

func decodeEntity(data json.RawMessage, def Definition) (*resource.Entity, error) {
	v, err := locate(data, def.EntityPath)
	if err != nil {
		return nil, err
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, nil
	}
	e, err := resource.FromMap(m, def.IDField)
	if errors.Is(err, resource.ErrMissingID) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}
