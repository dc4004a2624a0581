package email

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveDisplayName(t *testing.T) {
	tests := []struct {
		addr string
		want string
	}{
		{"jordan.lee@example.com", "Jordan Lee"},
		{"jordan_lee+tag@example.com", "Jordan Lee Tag"},
		{"jordan@example.com", "Jordan"},
		{"jordan.42@example.com", "Jordan"},
		{"42@example.com", "Member"},
		{"", "Member"},
	}
	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveDisplayName(tt.addr))
		})
	}
}
