package checkout

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"leading zero replaced by calling code", "0211234567", "+64211234567"},
		{"already international left unchanged", "+61211234567", "+61211234567"},
		{"local number without zero gets code prepended", "211234567", "+64211234567"},
		{"surrounding whitespace trimmed", "  0211234567 ", "+64211234567"},
		{"own country code untouched", "+64211234567", "+64211234567"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizePhone(tt.raw))
		})
	}
}
