package resource

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilter(t *testing.T) {
	items := []Entity{
		entity(1, map[string]any{"status": "pending", "total": 12.5}),
		entity(2, map[string]any{"status": "delivered", "total": 40.0}),
		entity(3, map[string]any{"status": "pending", "total": 3.0}),
	}

	tests := []struct {
		name string
		expr string
		want []string
	}{
		{"empty expression", "", []string{"1", "2", "3"}},
		{"field equality", `status == "pending"`, []string{"1", "3"}},
		{"combined", `status == "pending" && total > 10`, []string{"1"}},
		{"by id", `id == 2`, []string{"2"}},
		{"unknown field", `missing == "x"`, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Filter(items, tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func TestFilter_InvalidExpression(t *testing.T) {
	_, err := Filter([]Entity{entity(1, nil)}, `status ==`)
	assert.Error(t, err)
}
