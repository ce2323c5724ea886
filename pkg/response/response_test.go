package response

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewPageMeta(t *testing.T) {
	tests := []struct {
		name     string
		page     int
		perPage  int
		total    int64
		wantLast int
	}{
		{"empty", 1, 15, 0, 1},
		{"exact", 1, 10, 30, 3},
		{"remainder", 2, 10, 31, 4},
		{"single", 1, 15, 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meta := NewPageMeta(tt.page, tt.perPage, tt.total)
			assert.Equal(t, tt.wantLast, meta.LastPage)
			assert.Equal(t, tt.page, meta.CurrentPage)
			assert.Equal(t, tt.total, meta.Total)
		})
	}
}
