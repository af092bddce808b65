package identity

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/anonchat/backend/internal/validate"
)

func TestUsernameShape(t *testing.T) {
	pattern := regexp.MustCompile(`^[A-Z][a-z]+[A-Z][a-z]+[1-9][0-9]{0,2}$`)
	for i := 0; i < 200; i++ {
		name := Username()
		require.Regexp(t, pattern, name)
	}
}

func TestUsernamePassesValidation(t *testing.T) {
	// Generated names must always clear the gate they feed into.
	for i := 0; i < 200; i++ {
		require.NoError(t, validate.Username(Username()))
	}
}

func TestRoomCodeShape(t *testing.T) {
	pattern := regexp.MustCompile(`^[A-Z0-9]{6}$`)
	for i := 0; i < 200; i++ {
		code := RoomCode()
		require.Len(t, code, RoomCodeLength)
		require.Regexp(t, pattern, code)
		require.NoError(t, validate.RoomCode(code))
	}
}

func TestUsernameVaries(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		seen[Username()] = true
	}
	// The space is adjectives x nouns x 999; 50 draws landing on one
	// value would mean a broken generator.
	require.Greater(t, len(seen), 1)
}
