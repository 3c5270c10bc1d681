package dispatch

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farmcart/farmcart/pkg/resource"
)

func TestSingular(t *testing.T) {
	tests := map[string]string{
		"addresses":  "address",
		"deliveries": "delivery",
		"vegetables": "vegetable",
		"farms":      "farm",
		"boxes":      "box",
		"profile":    "profile",
	}
	for plural, want := range tests {
		assert.Equal(t, want, singular(plural), plural)
	}
}

func TestDefinition_Messages(t *testing.T) {
	def := Definition{Name: "addresses", Path: "/addresses"}.withDefaults()

	assert.Equal(t, "Loaded addresses", def.SuccessMessage(resource.FetchAll))
	assert.Equal(t, "Address created successfully", def.SuccessMessage(resource.Create))
	assert.Equal(t, "Failed to fetch addresses", def.FailureMessage(resource.FetchAll))
	assert.Equal(t, "Failed to delete address", def.FailureMessage(resource.Delete))

	def.FailureMessages = map[resource.Category]string{resource.FetchAll: "Could not load your addresses"}
	assert.Equal(t, "Could not load your addresses", def.FailureMessage(resource.FetchAll))
}

func TestDefinition_Routes(t *testing.T) {
	def := Definition{
		Name:         "addresses",
		Path:         "/addresses",
		PrimaryField: "isPrimary",
		Routes: map[resource.Category]Route{
			resource.FetchOne: {Method: http.MethodGet, Path: "/addresses/detail/{id}"},
		},
	}

	tests := []struct {
		cat        resource.Category
		wantMethod string
		wantPath   string
	}{
		{resource.FetchAll, http.MethodGet, "/addresses"},
		{resource.FetchOne, http.MethodGet, "/addresses/detail/{id}"},
		{resource.Create, http.MethodPost, "/addresses"},
		{resource.Update, http.MethodPut, "/addresses/{id}"},
		{resource.Delete, http.MethodDelete, "/addresses/{id}"},
		{resource.SetPrimary, http.MethodPatch, "/addresses/{id}/primary"},
	}
	for _, tt := range tests {
		t.Run(string(tt.cat), func(t *testing.T) {
			r, err := def.Route(tt.cat)
			require.NoError(t, err)
			assert.Equal(t, tt.wantMethod, r.Method)
			assert.Equal(t, tt.wantPath, r.Path)
		})
	}

	_, err := def.Route(resource.ChangeStatus)
	assert.ErrorIs(t, err, ErrUnknownCategory)
}

func TestDefinition_CategoriesRestrict(t *testing.T) {
	def := Definition{
		Name:       "profile",
		Path:       "/auth/profile",
		Categories: []resource.Category{resource.FetchOne, resource.Update},
		Routes: map[resource.Category]Route{
			resource.FetchOne: {Method: http.MethodGet, Path: "/auth/profile"},
			resource.Update:   {Method: http.MethodPut, Path: "/auth/profile"},
		},
	}
	assert.True(t, def.Supports(resource.Update))
	assert.False(t, def.Supports(resource.Delete))
}

func TestRoute_Build(t *testing.T) {
	r := Route{Method: http.MethodGet, Path: "/orders/{id}"}
	assert.True(t, r.needsID())
	assert.Equal(t, "/orders/a%2Fb", r.build(resource.StringID("a/b"), nil))
	assert.Equal(t, "/orders/3?page=2", r.build(resource.IntID(3), url.Values{"page": {"2"}}))
}

func TestDefinition_Validate(t *testing.T) {
	assert.ErrorIs(t, Definition{Path: "/x"}.validate(), ErrInvalidDefinition)
	assert.ErrorIs(t, Definition{Name: "x", Path: "x"}.validate(), ErrInvalidDefinition)
	assert.ErrorIs(t, Definition{
		Name:   "x",
		Path:   "/x",
		Routes: map[resource.Category]Route{"approve": {Path: "/x/{id}/approve"}},
	}.validate(), ErrInvalidDefinition)
	assert.NoError(t, Definition{Name: "x", Path: "/x"}.validate())
}
