package tui

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSuggestionsCommands(t *testing.T) {
	s := NewSuggestions()

	s.Update("/pro")
	require.True(t, s.IsVisible())
	assert.Equal(t, "promote", s.Selected().Text)
	assert.Equal(t, "promote ", s.Complete())

	s.Update("promote")
	assert.False(t, s.IsVisible())

	s.Update("   ")
	assert.False(t, s.IsVisible())
}

func TestSuggestionsClients(t *testing.T) {
	s := NewSuggestions()

	s.Update("add call @ac")
	s.SetClients([]string{"acme", "globex"})
	require.True(t, s.IsVisible())
	assert.Equal(t, "acme", s.Selected().Text)
	assert.Equal(t, "add call @acme ", s.Complete())

	s.Update("add call @acme ")
	assert.False(t, s.IsVisible())
}

func TestSuggestionsCycle(t *testing.T) {
	s := NewSuggestions()
	s.Update("/")
	first := s.Selected().Text
	s.Prev()
	assert.NotEqual(t, first, s.Selected().Text)
	s.Next()
	assert.Equal(t, first, s.Selected().Text)
}
