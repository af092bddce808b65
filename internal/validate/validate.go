// Package validate holds the stateless checks applied to every mutating
// operation: room codes, usernames, message content, room names. The
// functions return nil or a user-facing error and have no side effects.
package validate

import (
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"github.com/anonchat/backend/internal/models"
)

const (
	MaxMessageLength  = 1000
	MaxRoomNameLength = 50
	MinUsernameLength = 3
	MaxUsernameLength = 20

	// maxRepeatedRun is the longest allowed run of one character in a
	// message before it is treated as spam.
	maxRepeatedRun = 10
)

var (
	ErrRoomCodeRequired = errors.New("room code is required")
	ErrRoomCodeFormat   = errors.New("room code must be exactly 6 uppercase letters and numbers")

	ErrUsernameRequired = errors.New("username is required")
	ErrUsernameLength   = errors.New("username must be between 3 and 20 characters")
	ErrUsernameFormat   = errors.New("username can only contain letters, numbers, and underscores")
	ErrUsernameReserved = errors.New("username contains a reserved word")

	ErrContentRequired = errors.New("message content is required")
	ErrContentTooLong  = errors.New("message content cannot exceed 1000 characters")
	ErrContentSpam     = errors.New("message contains too many repeated characters")

	ErrRoomNameTooLong = errors.New("room name cannot exceed 50 characters")

	ErrStatusUnknown = errors.New("status must be one of online, away, busy")
)

var (
	roomCodePattern = regexp.MustCompile(`^[A-Z0-9]{6}$`)
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

	// Reserved for system identities; matched as case-insensitive
	// substrings.
	blockedWords = []string{"admin", "system", "bot", "moderator", "null", "undefined"}
)

// RoomCode checks a room code after normalization.
func RoomCode(code string) error {
	code = models.NormalizeRoomCode(code)
	if code == "" {
		return ErrRoomCodeRequired
	}
	if !roomCodePattern.MatchString(code) {
		return ErrRoomCodeFormat
	}
	return nil
}

// Username checks a display name: trimmed length 3-20, alphanumerics and
// underscores only, and no reserved substrings.
func Username(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return ErrUsernameRequired
	}
	if len(trimmed) < MinUsernameLength || len(trimmed) > MaxUsernameLength {
		return ErrUsernameLength
	}
	if !usernamePattern.MatchString(trimmed) {
		return ErrUsernameFormat
	}
	lower := strings.ToLower(trimmed)
	for _, word := range blockedWords {
		if strings.Contains(lower, word) {
			return ErrUsernameReserved
		}
	}
	return nil
}

// MessageContent checks a chat message body.
func MessageContent(content string) error {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return ErrContentRequired
	}
	if utf8.RuneCountInString(trimmed) > MaxMessageLength {
		return ErrContentTooLong
	}
	if longestRun(trimmed) > maxRepeatedRun {
		return ErrContentSpam
	}
	return nil
}

// RoomName checks an optional room display name.
func RoomName(name string) error {
	if name == "" {
		return nil
	}
	if utf8.RuneCountInString(strings.TrimSpace(name)) > MaxRoomNameLength {
		return ErrRoomNameTooLong
	}
	return nil
}

// Status checks a member status value.
func Status(status string) error {
	switch status {
	case models.StatusOnline, models.StatusAway, models.StatusBusy:
		return nil
	}
	return ErrStatusUnknown
}

// longestRun returns the length of the longest run of one rune.
func longestRun(s string) int {
	var prev rune
	run, longest := 0, 0
	for _, r := range s {
		if r == prev {
			run++
		} else {
			prev = r
			run = 1
		}
		if run > longest {
			longest = run
		}
	}
	return longest
}

var structValidator = newStructValidator()

func newStructValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterValidation("roomcode", func(fl validator.FieldLevel) bool {
		return RoomCode(fl.Field().String()) == nil
	})
	v.RegisterValidation("roomname", func(fl validator.FieldLevel) bool {
		return RoomName(fl.Field().String()) == nil
	})
	return v
}

// Struct validates an HTTP request body against its validate tags.
// Custom tags: "roomcode" and "roomname".
func Struct(s any) error {
	return structValidator.Struct(s)
}
