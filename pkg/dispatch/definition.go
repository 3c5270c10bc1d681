package dispatch

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/farmcart/farmcart/pkg/resource"
)

// Route is the HTTP method and path template of one category. The template
// may contain "{id}", replaced by the escaped entity ID.
type Route struct {
	Method string `json:"method" yaml:"method"`
	Path   string `json:"path" yaml:"path"`
	// Extract overrides the definition's ListPath / EntityPath for this
	// route, e.g. "$.user" for a login response.
	Extract string `json:"extract,omitempty" yaml:"extract,omitempty"`
}

// Definition describes how one resource maps onto the API.
type Definition struct {
	// Name is the resource key, e.g. "addresses".
	Name string
	// Path is the collection base path, e.g. "/addresses".
	Path string
	// Label and Singular are used in default messages. Label defaults to
	// Name, Singular to Label without a trailing "s".
	Label    string
	Singular string
	// IDField is the payload key of the entity ID. Defaults to "id".
	IDField string
	// ListPath and EntityPath are JSONPath expressions locating the list or
	// the entity inside the response data, e.g. "$.addresses". Empty means
	// the data itself.
	ListPath   string
	EntityPath string
	// Insert is where created entities land.
	Insert resource.InsertPosition
	// RequireOne forbids deleting the last remaining entity.
	RequireOne bool
	// PrimaryField names the "exactly one primary" flag, if any.
	PrimaryField string
	// StatusField names the field updated by status-change operations.
	StatusField string
	// Categories limits the allowed categories. Empty means the built-in
	// CRUD categories plus set-primary / status-change when the matching
	// field is configured, plus any category in Routes.
	Categories []resource.Category
	// Routes overrides or adds routes per category.
	Routes map[resource.Category]Route
	// SuccessMessages and FailureMessages override default messages.
	SuccessMessages map[resource.Category]string
	FailureMessages map[resource.Category]string
	// Effects builds post-fulfillment side effects from the response data.
	Effects func(op Operation, data json.RawMessage) []Effect
}

var (
	// ErrUnknownResource is returned for resources not registered.
	ErrUnknownResource = resource.ErrUnknownResource
	// ErrUnknownCategory is returned for categories a resource does not support.
	ErrUnknownCategory = errors.New("unsupported operation")
	// ErrInvalidDefinition is returned by Register for malformed definitions.
	ErrInvalidDefinition = errors.New("invalid resource definition")
)

func (d Definition) validate() error {
	if d.Name == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidDefinition)
	}
	if !strings.HasPrefix(d.Path, "/") {
		return fmt.Errorf("%w: %s path must start with /", ErrInvalidDefinition, d.Name)
	}
	for cat, r := range d.Routes {
		if r.Method == "" || !strings.HasPrefix(r.Path, "/") {
			return fmt.Errorf("%w: %s route %s needs a method and an absolute path", ErrInvalidDefinition, d.Name, cat)
		}
	}
	return nil
}

func (d Definition) withDefaults() Definition {
	if d.Label == "" {
		d.Label = d.Name
	}
	if d.Singular == "" {
		d.Singular = singular(d.Label)
	}
	if d.IDField == "" {
		d.IDField = resource.DefaultIDField
	}
	return d
}

// Supports reports whether the category is allowed for this resource.
func (d Definition) Supports(cat resource.Category) bool {
	if len(d.Categories) > 0 {
		for _, c := range d.Categories {
			if c == cat {
				return true
			}
		}
		return false
	}
	if _, ok := d.Routes[cat]; ok {
		return true
	}
	switch cat {
	case resource.FetchAll, resource.FetchOne, resource.Create, resource.Update, resource.Delete:
		return true
	case resource.SetPrimary:
		return d.PrimaryField != ""
	case resource.ChangeStatus:
		return d.StatusField != ""
	}
	return false
}

// Route returns the route of a category.
func (d Definition) Route(cat resource.Category) (Route, error) {
	if !d.Supports(cat) {
		return Route{}, fmt.Errorf("%w: %s on %s", ErrUnknownCategory, cat, d.Name)
	}
	if r, ok := d.Routes[cat]; ok {
		return r, nil
	}
	item := d.Path + "/{id}"
	switch cat {
	case resource.FetchAll:
		return Route{Method: http.MethodGet, Path: d.Path}, nil
	case resource.FetchOne:
		return Route{Method: http.MethodGet, Path: item}, nil
	case resource.Create:
		return Route{Method: http.MethodPost, Path: d.Path}, nil
	case resource.Update:
		return Route{Method: http.MethodPut, Path: item}, nil
	case resource.Delete:
		return Route{Method: http.MethodDelete, Path: item}, nil
	case resource.SetPrimary:
		return Route{Method: http.MethodPatch, Path: item + "/primary"}, nil
	case resource.ChangeStatus:
		return Route{Method: http.MethodPatch, Path: item + "/status"}, nil
	}
	return Route{}, fmt.Errorf("%w: %s on %s has no route", ErrUnknownCategory, cat, d.Name)
}

func singular(plural string) string {
	switch {
	case strings.HasSuffix(plural, "ies"):
		return strings.TrimSuffix(plural, "ies") + "y"
	case strings.HasSuffix(plural, "sses"), strings.HasSuffix(plural, "shes"),
		strings.HasSuffix(plural, "ches"), strings.HasSuffix(plural, "xes"):
		return strings.TrimSuffix(plural, "es")
	}
	return strings.TrimSuffix(plural, "s")
}

// needsID reports whether the route addresses a single entity.
func (r Route) needsID() bool {
	return strings.Contains(r.Path, "{id}")
}

func (r Route) build(id resource.ID, query url.Values) string {
	p := strings.ReplaceAll(r.Path, "{id}", url.PathEscape(id.String()))
	if len(query) > 0 {
		p += "?" + query.Encode()
	}
	return p
}

// title capitalizes words. A Caser is stateful, so one is built per call.
func title(s string) string {
	return cases.Title(language.English).String(s)
}

// SuccessMessage is the confirmation used when the API sends none.
func (d Definition) SuccessMessage(cat resource.Category) string {
	if msg, ok := d.SuccessMessages[cat]; ok {
		return msg
	}
	switch cat {
	case resource.FetchAll:
		return "Loaded " + d.Label
	case resource.FetchOne:
		return "Loaded " + d.Singular
	case resource.Create:
		return title(d.Singular) + " created successfully"
	case resource.Update:
		return title(d.Singular) + " updated successfully"
	case resource.Delete:
		return title(d.Singular) + " deleted successfully"
	case resource.SetPrimary:
		return "Primary " + d.Singular + " updated"
	case resource.ChangeStatus:
		return title(d.Singular) + " status updated"
	}
	return title(string(cat)) + " succeeded"
}

// FailureMessage is the error used when a rejection carries no message.
func (d Definition) FailureMessage(cat resource.Category) string {
	if msg, ok := d.FailureMessages[cat]; ok {
		return msg
	}
	switch cat {
	case resource.FetchAll:
		return "Failed to fetch " + d.Label
	case resource.FetchOne:
		return "Failed to fetch " + d.Singular
	case resource.Create:
		return "Failed to create " + d.Singular
	case resource.Update:
		return "Failed to update " + d.Singular
	case resource.Delete:
		return "Failed to delete " + d.Singular
	case resource.SetPrimary:
		return "Failed to set primary " + d.Singular
	case resource.ChangeStatus:
		return "Failed to update " + d.Singular + " status"
	}
	return "Failed to " + string(cat)
}
