package id_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/interviewcoach/backend/internal/id"
)

func TestGenerateID(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		v := id.GenerateID()
		assert.True(t, id.Valid(v), v)
		assert.False(t, seen[v], "duplicate id %s", v)
		seen[v] = true
	}
}

func TestValid(t *testing.T) {
	assert.False(t, id.Valid(""))
	assert.False(t, id.Valid("0123456789abcdeg"))
	assert.False(t, id.Valid("0123456789ABCDEF"))
	assert.True(t, id.Valid("0123456789abcdef"))
}
