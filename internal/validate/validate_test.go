package validate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoomCode(t *testing.T) {
	tests := []struct {
		name string
		code string
		want error
	}{
		{"valid", "ABC123", nil},
		{"valid lowercase normalized", "abc123", nil},
		{"valid with padding", "  ABC123  ", nil},
		{"empty", "", ErrRoomCodeRequired},
		{"whitespace only", "   ", ErrRoomCodeRequired},
		{"too short", "ABC12", ErrRoomCodeFormat},
		{"too long", "ABC1234", ErrRoomCodeFormat},
		{"punctuation", "ABC-12", ErrRoomCodeFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, RoomCode(tt.code))
		})
	}
}

func TestUsername(t *testing.T) {
	tests := []struct {
		name     string
		username string
		want     error
	}{
		{"valid", "CleverFox42", nil},
		{"valid underscore", "clever_fox", nil},
		{"valid trimmed", "  CleverFox  ", nil},
		{"empty", "", ErrUsernameRequired},
		{"too short", "ab", ErrUsernameLength},
		{"too long", strings.Repeat("a", 21), ErrUsernameLength},
		{"spaces inside", "clever fox", ErrUsernameFormat},
		{"punctuation", "clever-fox!", ErrUsernameFormat},
		{"reserved admin", "siteadmin", ErrUsernameReserved},
		{"reserved mixed case", "SysTem99", ErrUsernameReserved},
		{"reserved moderator", "moderator1", ErrUsernameReserved},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Username(tt.username))
		})
	}
}

func TestMessageContent(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    error
	}{
		{"valid", "hello there", nil},
		{"valid at limit", strings.Repeat("a ", 500), nil},
		{"empty", "", ErrContentRequired},
		{"whitespace only", "   \t  ", ErrContentRequired},
		{"too long", strings.Repeat("ab", 501), ErrContentTooLong},
		{"spam run", "hi " + strings.Repeat("!", 11), ErrContentSpam},
		{"run at limit allowed", strings.Repeat("!", 10), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, MessageContent(tt.content))
		})
	}
}

func TestMessageContentCountsRunes(t *testing.T) {
	// 1000 multi-byte runes are within the limit even though the byte
	// count is larger.
	require.NoError(t, MessageContent(strings.Repeat("é?", 500)))
	require.Equal(t, ErrContentTooLong, MessageContent(strings.Repeat("é?", 501)))
}

func TestRoomName(t *testing.T) {
	require.NoError(t, RoomName(""))
	require.NoError(t, RoomName("Team Standup"))
	require.Equal(t, ErrRoomNameTooLong, RoomName(strings.Repeat("x", 51)))
}

func TestStatus(t *testing.T) {
	require.NoError(t, Status("online"))
	require.NoError(t, Status("away"))
	require.NoError(t, Status("busy"))
	require.Equal(t, ErrStatusUnknown, Status("offline"))
	require.Equal(t, ErrStatusUnknown, Status(""))
}

func TestStructRoomCodeTag(t *testing.T) {
	type body struct {
		RoomCode string `validate:"roomcode"`
	}
	require.NoError(t, Struct(&body{RoomCode: "ABC123"}))
	require.Error(t, Struct(&body{RoomCode: "nope"}))
}

func TestStructRoomNameTag(t *testing.T) {
	type body struct {
		Name string `validate:"omitempty,roomname"`
	}
	require.NoError(t, Struct(&body{}))
	require.NoError(t, Struct(&body{Name: "General"}))
	require.Error(t, Struct(&body{Name: strings.Repeat("x", 51)}))
}
