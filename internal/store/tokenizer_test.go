package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"empty", "", nil},
		{"simple words", "Dawn Patrol", []string{"dawn", "patrol"}},
		{"punctuation splits", "dawn-patrol, vol.2", []string{"dawn", "patrol", "vol", "2"}},
		{"lowercased", "DAWN", []string{"dawn"}},
		{
			"japanese bigrams",
			"冒険者の宿",
			[]string{"冒険者の宿", "冒険", "険者", "者の", "の宿"},
		},
		{
			"korean bigrams",
			"새벽 순찰",
			[]string{"새벽", "순찰"},
		},
		{
			"mixed scripts split",
			"Dawn戦記",
			[]string{"dawn", "戦記"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Tokenize(tt.in))
		})
	}
}
