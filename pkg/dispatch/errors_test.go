package dispatch

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/farmcart/farmcart/pkg/apiclient"
)

func TestNormalizeError(t *testing.T) {
	const fallback = "Failed to fetch farms"

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, fallback},
		{"plain string", errors.New("Network Error"), "Network Error"},
		{"wrapped plain", fmt.Errorf("execute request: %w", errors.New("connection refused")), "execute request: connection refused"},
		{"blank", errors.New("   "), fallback},
		{
			"nested response shape",
			&Rejection{Payload: map[string]any{"response": map[string]any{"data": map[string]any{"message": "Token expired"}}}},
			"Token expired",
		},
		{"rejection message", &Rejection{Message: "Farm not found", StatusCode: 404}, "Farm not found"},
		{"rejection without message", &Rejection{StatusCode: 500}, fallback},
		{"string payload", &Rejection{Payload: "Forbidden"}, "Forbidden"},
		{
			"error object",
			&Rejection{Payload: map[string]any{"error": map[string]any{"message": "Out of stock"}}},
			"Out of stock",
		},
		{"error string", &Rejection{Payload: map[string]any{"error": "Bad pincode"}}, "Bad pincode"},
		{
			"api error",
			&apiclient.APIError{StatusCode: 400, Body: []byte(`{"success":false,"message":"Quantity must be positive"}`)},
			"Quantity must be positive",
		},
		{"api error without body", &apiclient.APIError{StatusCode: 503}, fallback},
		{"envelope failure", &envelopeFailure{message: "Farm is closed"}, "Farm is closed"},
		{"operation error", &OperationError{Message: "cannot delete last entity"}, "cannot delete last entity"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeError(tt.err, fallback))
		})
	}
}

func TestOperationError_Hint(t *testing.T) {
	err := &OperationError{Message: "expired", Err: &apiclient.APIError{StatusCode: 401}}
	assert.Contains(t, err.Hint(), "login")
	assert.Empty(t, (&OperationError{Err: errors.New("x")}).Hint())
}

func TestRunEffects_JoinsFailures(t *testing.T) {
	var order []string
	effects := []Effect{
		EffectFunc{Label: "a", Fn: func(context.Context) error { order = append(order, "a"); return errors.New("disk full") }},
		EffectFunc{Label: "b", Fn: func(context.Context) error { order = append(order, "b"); return nil }},
	}
	err := RunEffects(context.Background(), effects)
	assert.Equal(t, []string{"a", "b"}, order)
	assert.ErrorContains(t, err, "a: disk full")
}
