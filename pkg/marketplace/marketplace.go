package marketplace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"

	"github.com/farmcart/farmcart/pkg/apiclient"
	"github.com/farmcart/farmcart/pkg/config"
	"github.com/farmcart/farmcart/pkg/dispatch"
	"github.com/farmcart/farmcart/pkg/logging"
	"github.com/farmcart/farmcart/pkg/resource"
	"github.com/farmcart/farmcart/pkg/session"
)

// ErrForbidden is returned for resources the current role cannot see.
var ErrForbidden = errors.New("resource not available for role")

// Credentials are the login form fields.
type Credentials struct {
	Phone    string `json:"phone,omitempty"`
	Email    string `json:"email,omitempty"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
}

// Marketplace is the client-side state of one signed-in user.
type Marketplace struct {
	cfg        config.Config
	sender     apiclient.Sender
	tokens     session.TokenStore
	store      *resource.Store
	dispatcher *dispatch.Dispatcher
	logger     *slog.Logger
	observer   resource.Observer

	mu   sync.RWMutex
	role config.Role
}

// Option configures a Marketplace.
type Option func(*Marketplace)

// WithSender replaces the HTTP client, e.g. with apiclienttest.Sender.
func WithSender(s apiclient.Sender) Option {
	return func(m *Marketplace) { m.sender = s }
}

// WithTokenStore sets where the session token is kept. Defaults to memory.
func WithTokenStore(ts session.TokenStore) Option {
	return func(m *Marketplace) { m.tokens = ts }
}

// WithLogger sets the logger shared by the client and the dispatcher.
func WithLogger(l *slog.Logger) Option {
	return func(m *Marketplace) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithObserver installs store transition hooks.
func WithObserver(o resource.Observer) Option {
	return func(m *Marketplace) { m.observer = o }
}

// New builds a Marketplace for cfg.Role.
func New(cfg config.Config, opts ...Option) (*Marketplace, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	m := &Marketplace{
		cfg:    cfg,
		role:   cfg.Role,
		logger: logging.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.tokens == nil {
		m.tokens = session.NewMemoryStore()
	}
	if m.sender == nil {
		client, err := apiclient.New(cfg.APIURL,
			apiclient.WithTimeout(cfg.RequestTimeout()),
			apiclient.WithUserAgent(cfg.UserAgent),
			apiclient.WithTokenSource(session.Source{Store: m.tokens}),
			apiclient.WithLogger(m.logger),
		)
		if err != nil {
			return nil, err
		}
		m.sender = client
	}

	var storeOpts []resource.Option
	if m.observer != nil {
		storeOpts = append(storeOpts, resource.WithObserver(m.observer))
	}
	m.store = resource.NewStore(storeOpts...)
	m.dispatcher = dispatch.New(m.sender, m.store, dispatch.WithLogger(m.logger))
	if err := m.dispatcher.Register(Definitions(cfg, m.role, m.tokens)...); err != nil {
		return nil, err
	}
	return m, nil
}

// Role returns the active role.
func (m *Marketplace) Role() config.Role {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.role
}

// Config returns the configuration the marketplace was built with.
func (m *Marketplace) Config() config.Config { return m.cfg }

// Store exposes the resource store for subscriptions.
func (m *Marketplace) Store() *resource.Store { return m.store }

// Dispatcher exposes the dispatcher.
func (m *Marketplace) Dispatcher() *dispatch.Dispatcher { return m.dispatcher }

// Tokens returns the session token store.
func (m *Marketplace) Tokens() session.TokenStore { return m.tokens }

// Dispatch runs one operation after checking the role can see the resource.
func (m *Marketplace) Dispatch(ctx context.Context, op dispatch.Operation) (*dispatch.Result, error) {
	if role := m.Role(); !Visible(role, op.Resource) {
		if _, known := m.dispatcher.Definition(op.Resource); !known {
			return nil, fmt.Errorf("%w: %s (role %s): %w", ErrForbidden, op.Resource, role, dispatch.ErrUnknownResource)
		}
	}
	return m.dispatcher.Dispatch(ctx, op)
}

// FetchAll loads a collection. query may be nil.
func (m *Marketplace) FetchAll(ctx context.Context, name string, query url.Values) (*dispatch.Result, error) {
	return m.Dispatch(ctx, dispatch.Operation{Resource: name, Category: resource.FetchAll, Query: query})
}

// FetchOne loads one entity into the selection.
func (m *Marketplace) FetchOne(ctx context.Context, name string, id resource.ID) (*dispatch.Result, error) {
	return m.Dispatch(ctx, dispatch.Operation{Resource: name, Category: resource.FetchOne, ID: id})
}

// Create creates an entity.
func (m *Marketplace) Create(ctx context.Context, name string, payload map[string]any) (*dispatch.Result, error) {
	return m.Dispatch(ctx, dispatch.Operation{Resource: name, Category: resource.Create, Payload: payload})
}

// Update patches an entity.
func (m *Marketplace) Update(ctx context.Context, name string, id resource.ID, payload map[string]any) (*dispatch.Result, error) {
	return m.Dispatch(ctx, dispatch.Operation{Resource: name, Category: resource.Update, ID: id, Payload: payload})
}

// Delete removes an entity.
func (m *Marketplace) Delete(ctx context.Context, name string, id resource.ID) (*dispatch.Result, error) {
	return m.Dispatch(ctx, dispatch.Operation{Resource: name, Category: resource.Delete, ID: id})
}

// SetPrimaryAddress makes id the primary address.
func (m *Marketplace) SetPrimaryAddress(ctx context.Context, id resource.ID) (*dispatch.Result, error) {
	return m.Dispatch(ctx, dispatch.Operation{Resource: Addresses, Category: resource.SetPrimary, ID: id})
}

// ChangeStatus moves an order or delivery to status.
func (m *Marketplace) ChangeStatus(ctx context.Context, name string, id resource.ID, status string) (*dispatch.Result, error) {
	return m.Dispatch(ctx, dispatch.Operation{Resource: name, Category: resource.ChangeStatus, ID: id, Status: status})
}

// SubmitAddress creates or updates an address depending on mode. The
// returned mode is Viewing after a successful submit and mode otherwise.
func (m *Marketplace) SubmitAddress(ctx context.Context, mode EditMode, payload map[string]any) (EditMode, *dispatch.Result, error) {
	cat, ok := mode.Category()
	if !ok {
		return mode, nil, fmt.Errorf("no address form is open")
	}
	id, _ := mode.TargetID()
	res, err := m.Dispatch(ctx, dispatch.Operation{Resource: Addresses, Category: cat, ID: id, Payload: payload})
	if err != nil {
		return mode, nil, err
	}
	return mode.Done(), res, nil
}

// Select returns a snapshot of a collection.
func (m *Marketplace) Select(name string) resource.Collection {
	return m.dispatcher.Select(name)
}

// SelectStatus returns one category status.
func (m *Marketplace) SelectStatus(name string, cat resource.Category) resource.Status {
	return m.dispatcher.SelectStatus(name, cat)
}

// ClearStatus acknowledges a settled operation.
func (m *Marketplace) ClearStatus(name string, cat resource.Category) {
	m.dispatcher.ClearStatus(name, cat)
}

// Login signs in, persists the token and switches to the role carried by the
// token when it differs from the active one.
func (m *Marketplace) Login(ctx context.Context, creds Credentials) (*session.Claims, error) {
	payload := map[string]any{"password": creds.Password}
	if creds.Phone != "" {
		payload["phone"] = creds.Phone
	}
	if creds.Email != "" {
		payload["email"] = creds.Email
	}
	if creds.Role != "" {
		payload["role"] = creds.Role
	}

	res, err := m.dispatcher.Dispatch(ctx, dispatch.Operation{Resource: Profile, Category: CategoryLogin, Payload: payload})
	if err != nil {
		return nil, err
	}
	if res.Discarded {
		return nil, fmt.Errorf("login superseded by a newer session change")
	}
	if err := dispatch.RunEffects(ctx, res.Effects); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	_, claims, err := session.Current(ctx, m.tokens)
	if err != nil {
		return nil, err
	}
	if role, err := config.ParseRole(claims.Role); err == nil && role != m.Role() {
		if err := m.SwitchRole(role); err != nil {
			return nil, err
		}
		// SwitchRole resets every status, the login confirmation included.
		m.store.SetStatus(Profile, CategoryLogin, resource.Fulfilled(res.Message))
		if res.Entity != nil {
			m.store.ApplyFetchOne(Profile, *res.Entity)
		}
	}
	m.logger.Info("logged in", "user", claims.User(), "role", string(m.Role()))
	return claims, nil
}

// Logout wipes every resource and forgets the stored token.
func (m *Marketplace) Logout(ctx context.Context) error {
	m.dispatcher.ResetAll()
	return dispatch.RunEffects(ctx, []dispatch.Effect{session.ForgetToken(m.tokens)})
}

// SwitchRole wipes every resource and registers the resources of role.
func (m *Marketplace) SwitchRole(role config.Role) error {
	if _, err := config.ParseRole(string(role)); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.dispatcher.ResetAll()
	for _, def := range m.dispatcher.Definitions() {
		if !Visible(role, def.Name) {
			m.dispatcher.Unregister(def.Name)
		}
	}
	if err := m.dispatcher.Register(Definitions(m.cfg, role, m.tokens)...); err != nil {
		return err
	}
	m.role = role
	return nil
}

// Close releases the token store.
func (m *Marketplace) Close() error {
	return m.tokens.Close()
}
