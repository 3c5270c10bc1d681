// Package fakeapi is an in-memory implementation of the marketplace REST
// API. It backs the package tests and the `farmcart sandbox` command.
package fakeapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"

	"github.com/farmcart/farmcart/pkg/logging"
)

// Collections served by the fake API.
var Collections = []string{"addresses", "farms", "vegetables", "orders", "deliveries"}

// User is an account that can log in.
type User struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Email    string `json:"email,omitempty"`
	Role     string `json:"role"`
	Password string `json:"-"`
}

type failure struct {
	status  int
	message string
}

// Server holds the fake API state.
type Server struct {
	mu          sync.Mutex
	secret      []byte
	tokenTTL    time.Duration
	requireAuth bool
	users       map[int64]*User
	nextUserID  int64
	items       map[string][]map[string]any
	nextID      map[string]int64
	failures    map[string][]failure
	calls       map[string]int
	latency     time.Duration
	logger      *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithSecret sets the HMAC key used to sign tokens.
func WithSecret(secret string) Option {
	return func(s *Server) { s.secret = []byte(secret) }
}

// WithTokenTTL sets the lifetime of issued tokens.
func WithTokenTTL(d time.Duration) Option {
	return func(s *Server) { s.tokenTTL = d }
}

// WithoutAuth serves collections without a bearer token.
func WithoutAuth() Option {
	return func(s *Server) { s.requireAuth = false }
}

// WithLatency delays every response.
func WithLatency(d time.Duration) Option {
	return func(s *Server) { s.latency = d }
}

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates an empty Server.
func New(opts ...Option) *Server {
	s := &Server{
		secret:      []byte("farmcart-fake-secret"),
		tokenTTL:    time.Hour,
		requireAuth: true,
		users:       make(map[int64]*User),
		items:       make(map[string][]map[string]any),
		nextID:      make(map[string]int64),
		failures:    make(map[string][]failure),
		calls:       make(map[string]int),
		logger:      logging.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddUser registers an account and returns its id.
func (s *Server) AddUser(u User) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextUserID++
	u.ID = s.nextUserID
	s.users[u.ID] = &u
	return u.ID
}

// Seed appends items to a collection, assigning ids.
func (s *Server) Seed(name string, items ...map[string]any) []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int64, 0, len(items))
	for _, it := range items {
		ids = append(ids, s.insertLocked(name, it)["id"].(int64))
	}
	return ids
}

// Items returns a copy of a collection.
func (s *Server) Items(name string) []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]map[string]any, len(s.items[name]))
	for i, it := range s.items[name] {
		out[i] = copyMap(it)
	}
	return out
}

// FailNext makes the next request matching method and route template (for
// example "/addresses/{id}") fail with status and message. An empty message
// sends a body without one.
func (s *Server) FailNext(method, template string, status int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := method + " " + template
	s.failures[key] = append(s.failures[key], failure{status: status, message: message})
}

// CallCount returns how many requests hit method and route template.
func (s *Server) CallCount(method, template string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method+" "+template]
}

// Handler returns the API router. Mount it under any prefix with
// http.StripPrefix.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.requestMiddleware)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeFailure(w, http.StatusNotFound, "Route not found")
	})

	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	}).Methods(http.MethodGet)

	r.HandleFunc("/auth/login", s.handleLogin).Methods(http.MethodPost)

	authed := r.NewRoute().Subrouter()
	authed.Use(s.authMiddleware)
	authed.HandleFunc("/auth/profile", s.handleGetProfile).Methods(http.MethodGet)
	authed.HandleFunc("/auth/profile", s.handleUpdateProfile).Methods(http.MethodPut)

	for _, name := range Collections {
		base := "/" + name
		authed.HandleFunc(base, s.handleList(name)).Methods(http.MethodGet)
		authed.HandleFunc(base, s.handleCreate(name)).Methods(http.MethodPost)
		authed.HandleFunc(base+"/{id}", s.handleGet(name)).Methods(http.MethodGet)
		authed.HandleFunc(base+"/{id}", s.handleUpdate(name)).Methods(http.MethodPut, http.MethodPatch)
		authed.HandleFunc(base+"/{id}", s.handleDelete(name)).Methods(http.MethodDelete)
		authed.HandleFunc(base+"/{id}/status", s.handleStatus(name)).Methods(http.MethodPatch)
	}
	authed.HandleFunc("/addresses/{id}/primary", s.handlePrimary).Methods(http.MethodPatch)
	return r
}

// requestMiddleware counts calls, applies injected failures and latency,
// and logs every request.
func (s *Server) requestMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		template := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if t, err := route.GetPathTemplate(); err == nil {
				template = t
			}
		}
		key := r.Method + " " + template

		s.mu.Lock()
		s.calls[key]++
		var injected *failure
		if queue := s.failures[key]; len(queue) > 0 {
			injected = &queue[0]
			s.failures[key] = queue[1:]
		}
		latency := s.latency
		s.mu.Unlock()

		if latency > 0 {
			time.Sleep(latency)
		}

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		if injected != nil {
			writeFailure(rw, injected.status, injected.message)
		} else {
			next.ServeHTTP(rw, r)
		}

		s.logger.Debug("fakeapi request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rw.statusCode,
			"duration", time.Since(start),
		)
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

type claims struct {
	UserID int64  `json:"id"`
	Role   string `json:"role"`
	Name   string `json:"name,omitempty"`
	Phone  string `json:"phone,omitempty"`
	jwt.RegisteredClaims
}

type ctxKey struct{}

func (s *Server) issueToken(u *User) (string, error) {
	now := time.Now()
	c := claims{
		UserID: u.ID,
		Role:   u.Role,
		Name:   u.Name,
		Phone:  u.Phone,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(u.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.requireAuth {
			next.ServeHTTP(w, r)
			return
		}
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || raw == "" {
			writeFailure(w, http.StatusUnauthorized, "Authentication required")
			return
		}
		c := &claims{}
		_, err := jwt.ParseWithClaims(raw, c, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return s.secret, nil
		})
		if err != nil {
			msg := "Invalid token"
			if errors.Is(err, jwt.ErrTokenExpired) {
				msg = "Token expired"
			}
			writeFailure(w, http.StatusUnauthorized, msg)
			return
		}
		next.ServeHTTP(w, r.WithContext(withUserID(r.Context(), c.UserID)))
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Phone    string `json:"phone"`
		Email    string `json:"email"`
		Password string `json:"password"`
		Role     string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	s.mu.Lock()
	var user *User
	for _, u := range s.users {
		if (req.Phone != "" && u.Phone == req.Phone) || (req.Email != "" && u.Email == req.Email) {
			user = u
			break
		}
	}
	s.mu.Unlock()

	if user == nil || user.Password != req.Password {
		writeFailure(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if req.Role != "" && req.Role != user.Role {
		writeFailure(w, http.StatusForbidden, fmt.Sprintf("Account is not registered as %s", req.Role))
		return
	}
	token, err := s.issueToken(user)
	if err != nil {
		writeFailure(w, http.StatusInternalServerError, "Failed to issue token")
		return
	}
	writeEnvelope(w, http.StatusOK, "Login successful", map[string]any{"token": token, "user": user})
}

func (s *Server) currentUser(r *http.Request) (*User, bool) {
	id, ok := userID(r.Context())
	if !ok {
		// Unauthenticated servers act as the first user.
		id = 1
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, found := s.users[id]
	if !found {
		return nil, false
	}
	cp := *u
	return &cp, true
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	u, ok := s.currentUser(r)
	if !ok {
		writeFailure(w, http.StatusNotFound, "User not found")
		return
	}
	writeEnvelope(w, http.StatusOK, "", u)
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	u, ok := s.currentUser(r)
	if !ok {
		writeFailure(w, http.StatusNotFound, "User not found")
		return
	}
	var patch struct {
		Name  *string `json:"name"`
		Email *string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeFailure(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	s.mu.Lock()
	stored := s.users[u.ID]
	if patch.Name != nil {
		stored.Name = *patch.Name
	}
	if patch.Email != nil {
		stored.Email = *patch.Email
	}
	cp := *stored
	s.mu.Unlock()
	writeEnvelope(w, http.StatusOK, "Profile updated successfully", &cp)
}

func (s *Server) handleList(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		s.mu.Lock()
		out := make([]map[string]any, 0, len(s.items[name]))
		for _, it := range s.items[name] {
			if matches(it, query) {
				out = append(out, copyMap(it))
			}
		}
		s.mu.Unlock()
		writeEnvelope(w, http.StatusOK, "", out)
	}
}

func (s *Server) handleGet(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		it, _ := s.findLocked(name, mux.Vars(r)["id"])
		var out map[string]any
		if it != nil {
			out = copyMap(it)
		}
		s.mu.Unlock()
		if out == nil {
			writeFailure(w, http.StatusNotFound, notFound(name))
			return
		}
		writeEnvelope(w, http.StatusOK, "", out)
	}
}

func (s *Server) handleCreate(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, ok := decodeObject(w, r)
		if !ok {
			return
		}
		s.mu.Lock()
		if name == "addresses" && len(s.items[name]) == 0 {
			body["isPrimary"] = true
		}
		created := copyMap(s.insertLocked(name, body))
		s.mu.Unlock()
		writeEnvelope(w, http.StatusCreated, fmt.Sprintf("%s created successfully", singularTitle(name)), created)
	}
}

func (s *Server) handleUpdate(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, ok := decodeObject(w, r)
		if !ok {
			return
		}
		s.mu.Lock()
		it, _ := s.findLocked(name, mux.Vars(r)["id"])
		var out map[string]any
		if it != nil {
			for k, v := range body {
				if k != "id" {
					it[k] = v
				}
			}
			out = copyMap(it)
		}
		s.mu.Unlock()
		if out == nil {
			writeFailure(w, http.StatusNotFound, notFound(name))
			return
		}
		writeEnvelope(w, http.StatusOK, fmt.Sprintf("%s updated successfully", singularTitle(name)), out)
	}
}

func (s *Server) handleDelete(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		_, idx := s.findLocked(name, mux.Vars(r)["id"])
		if idx >= 0 {
			items := s.items[name]
			s.items[name] = append(items[:idx:idx], items[idx+1:]...)
		}
		s.mu.Unlock()
		if idx < 0 {
			writeFailure(w, http.StatusNotFound, notFound(name))
			return
		}
		writeEnvelope(w, http.StatusOK, fmt.Sprintf("%s deleted successfully", singularTitle(name)), nil)
	}
}

func (s *Server) handleStatus(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Status string `json:"status"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Status == "" {
			writeFailure(w, http.StatusBadRequest, "Status is required")
			return
		}
		s.mu.Lock()
		it, _ := s.findLocked(name, mux.Vars(r)["id"])
		var out map[string]any
		if it != nil {
			it["status"] = req.Status
			out = copyMap(it)
		}
		s.mu.Unlock()
		if out == nil {
			writeFailure(w, http.StatusNotFound, notFound(name))
			return
		}
		writeEnvelope(w, http.StatusOK, fmt.Sprintf("%s status updated", singularTitle(name)), out)
	}
}

func (s *Server) handlePrimary(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	s.mu.Lock()
	target, _ := s.findLocked("addresses", id)
	var out map[string]any
	if target != nil {
		for _, it := range s.items["addresses"] {
			it["isPrimary"] = false
		}
		target["isPrimary"] = true
		out = copyMap(target)
	}
	s.mu.Unlock()
	if out == nil {
		writeFailure(w, http.StatusNotFound, notFound("addresses"))
		return
	}
	writeEnvelope(w, http.StatusOK, "Primary address updated", out)
}

func (s *Server) insertLocked(name string, item map[string]any) map[string]any {
	s.nextID[name]++
	it := copyMap(item)
	it["id"] = s.nextID[name]
	if _, ok := it["createdAt"]; !ok {
		it["createdAt"] = time.Now().UTC().Format(time.RFC3339)
	}
	s.items[name] = append(s.items[name], it)
	return it
}

func (s *Server) findLocked(name, rawID string) (map[string]any, int) {
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return nil, -1
	}
	for i, it := range s.items[name] {
		if v, ok := it["id"].(int64); ok && v == id {
			return it, i
		}
	}
	return nil, -1
}

func matches(item map[string]any, query map[string][]string) bool {
	keys := make([]string, 0, len(query))
	for k := range query {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if fmt.Sprint(item[k]) != query[k][0] {
			return false
		}
	}
	return true
}

func decodeObject(w http.ResponseWriter, r *http.Request) (map[string]any, bool) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body == nil {
		writeFailure(w, http.StatusBadRequest, "Invalid request body")
		return nil, false
	}
	return body, true
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func singular(name string) string {
	switch {
	case strings.HasSuffix(name, "ies"):
		return strings.TrimSuffix(name, "ies") + "y"
	case strings.HasSuffix(name, "sses"):
		return strings.TrimSuffix(name, "es")
	}
	return strings.TrimSuffix(name, "s")
}

func singularTitle(name string) string {
	s := singular(name)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func notFound(name string) string {
	return singularTitle(name) + " not found"
}
