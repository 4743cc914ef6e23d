package dto

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestListEventsQuery_SetDefaults(t *testing.T) {
	tests := []struct {
		name      string
		query     ListEventsQuery
		wantPage  int
		wantLimit int
	}{
		{"empty", ListEventsQuery{}, 1, 20},
		{"explicit", ListEventsQuery{Page: 3, Limit: 50}, 3, 50},
		{"page only", ListEventsQuery{Page: 2}, 2, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := tt.query
			q.SetDefaults()
			assert.Equal(t, tt.wantPage, q.Page)
			assert.Equal(t, tt.wantLimit, q.Limit)
		})
	}
}
