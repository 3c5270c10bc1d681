package marketplace

import (
	"encoding/json"
	"net/http"

	"github.com/ohler55/ojg/jp"

	"github.com/farmcart/farmcart/pkg/config"
	"github.com/farmcart/farmcart/pkg/dispatch"
	"github.com/farmcart/farmcart/pkg/resource"
	"github.com/farmcart/farmcart/pkg/session"
)

// Resource names.
const (
	Addresses  = "addresses"
	Farms      = "farms"
	Vegetables = "vegetables"
	Orders     = "orders"
	Deliveries = "deliveries"
	Profile    = "profile"
)

// Custom categories of the profile resource.
const (
	CategoryLogin resource.Category = "login"
)

// PrimaryField is the address flag kept unique by set-primary.
const PrimaryField = "isPrimary"

var roleResources = map[config.Role][]string{
	config.RoleFarmer:   {Addresses, Farms, Vegetables, Orders, Profile},
	config.RoleCustomer: {Addresses, Vegetables, Orders, Profile},
	config.RoleDelivery: {Addresses, Deliveries, Orders, Profile},
}

// ResourcesFor returns the resource names a role works with.
func ResourcesFor(role config.Role) []string {
	return append([]string(nil), roleResources[role]...)
}

// Visible reports whether role can see the named resource.
func Visible(role config.Role, name string) bool {
	for _, r := range roleResources[role] {
		if r == name {
			return true
		}
	}
	return false
}

var tokenPath = jp.MustParseString("$.token")

// Definitions returns the definitions of every resource visible to role.
// Paths honour the per-resource overrides of cfg.
func Definitions(cfg config.Config, role config.Role, tokens session.TokenStore) []dispatch.Definition {
	all := map[string]dispatch.Definition{
		Addresses: {
			Name:         Addresses,
			Path:         cfg.ResourcePath(Addresses, "/addresses"),
			RequireOne:   true,
			PrimaryField: PrimaryField,
			FailureMessages: map[resource.Category]string{
				resource.Delete: "Failed to delete address",
			},
		},
		Farms: {
			Name: Farms,
			Path: cfg.ResourcePath(Farms, "/farms"),
		},
		Vegetables: {
			Name:   Vegetables,
			Path:   cfg.ResourcePath(Vegetables, "/vegetables"),
			Insert: resource.InsertFront,
		},
		Orders: {
			Name:        Orders,
			Path:        cfg.ResourcePath(Orders, "/orders"),
			StatusField: "status",
			SuccessMessages: map[resource.Category]string{
				resource.Create: "Order placed successfully",
			},
		},
		Deliveries: {
			Name:        Deliveries,
			Path:        cfg.ResourcePath(Deliveries, "/deliveries"),
			StatusField: "status",
		},
		Profile: profileDefinition(cfg, tokens),
	}

	names := roleResources[role]
	defs := make([]dispatch.Definition, 0, len(names))
	for _, name := range names {
		defs = append(defs, all[name])
	}
	return defs
}

func profileDefinition(cfg config.Config, tokens session.TokenStore) dispatch.Definition {
	path := cfg.ResourcePath(Profile, "/auth/profile")
	return dispatch.Definition{
		Name:       Profile,
		Path:       path,
		Singular:   "profile",
		Categories: []resource.Category{resource.FetchOne, resource.Update, CategoryLogin},
		Routes: map[resource.Category]dispatch.Route{
			resource.FetchOne: {Method: http.MethodGet, Path: path},
			resource.Update:   {Method: http.MethodPut, Path: path},
			CategoryLogin:     {Method: http.MethodPost, Path: "/auth/login", Extract: "$.user"},
		},
		SuccessMessages: map[resource.Category]string{
			CategoryLogin: "Login successful",
		},
		FailureMessages: map[resource.Category]string{
			CategoryLogin: "Login failed",
		},
		Effects: func(op dispatch.Operation, data json.RawMessage) []dispatch.Effect {
			if op.Category != CategoryLogin || tokens == nil {
				return nil
			}
			if tok := extractToken(data); tok != "" {
				return []dispatch.Effect{session.PersistToken(tokens, tok)}
			}
			return nil
		},
	}
}

func extractToken(data json.RawMessage) string {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return ""
	}
	for _, found := range tokenPath.Get(v) {
		if s, ok := found.(string); ok {
			return s
		}
	}
	return ""
}
