package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupeAndTrim(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{
			name:     "nil slice",
			input:    nil,
			expected: nil,
		},
		{
			name:     "trims and drops empties",
			input:    []string{"  foo ", "", "   ", "bar"},
			expected: []string{"foo", "bar"},
		},
		{
			name:     "keeps first occurrence order",
			input:    []string{"uid", "cn", "uid", "mail"},
			expected: []string{"uid", "cn", "mail"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DedupeAndTrim(tt.input))
		})
	}
}

func TestSplitList(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "empty setting",
			input:    "",
			expected: nil,
		},
		{
			name:     "whitespace only",
			input:    "  \t ",
			expected: nil,
		},
		{
			name:     "removes inner whitespace",
			input:    "object GUID, uid",
			expected: []string{"objectGUID", "uid"},
		},
		{
			name:     "drops duplicates and empty entries",
			input:    "uid,,cn, uid,",
			expected: []string{"uid", "cn"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SplitList(tt.input))
		})
	}
}
