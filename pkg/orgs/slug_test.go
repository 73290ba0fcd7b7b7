package orgs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateSlug(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"simple", "Acme Corp", "acme-corp"},
		{"already lowercase", "acme", "acme"},
		{"punctuation collapses", "Acme, Inc.", "acme-inc"},
		{"multiple separators", "a  --  b", "a-b"},
		{"leading and trailing junk", "  !!Acme!!  ", "acme"},
		{"digits survive", "Team 42", "team-42"},
		{"only junk", "!!!", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, generateSlug(tt.in))
		})
	}
}
