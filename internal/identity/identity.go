// Package identity produces the random display names and room codes used
// by anonymous clients. Names are not globally unique; callers resolve
// collisions by asking for another one.
package identity

import (
	"fmt"
	"math/rand"
)

var adjectives = []string{
	"Shadow", "Silent", "Dark", "Mystic", "Ghost", "Stealth", "Cyber", "Neon",
	"Electric", "Blazing", "Swift", "Clever", "Brave", "Bold", "Fierce", "Wild",
	"Storm", "Thunder", "Lightning", "Frost", "Fire", "Ice", "Crystal", "Diamond",
	"Golden", "Silver", "Crimson", "Azure", "Emerald", "Violet", "Cosmic", "Stellar",
}

var nouns = []string{
	"Wolf", "Eagle", "Lion", "Tiger", "Dragon", "Phoenix", "Raven", "Hawk",
	"Viper", "Panther", "Falcon", "Shark", "Bear", "Fox", "Lynx", "Cobra",
	"Knight", "Warrior", "Hunter", "Ranger", "Scout", "Guardian", "Sentinel", "Champion",
	"Ninja", "Samurai", "Assassin", "Phantom", "Specter", "Wraith", "Spirit", "Soul",
}

const roomCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// RoomCodeLength is the fixed length of a room code.
const RoomCodeLength = 6

// Username returns a display name like "ShadowWolf427": adjective, noun,
// and a number in [1, 999] with no separator.
func Username() string {
	adjective := adjectives[rand.Intn(len(adjectives))]
	noun := nouns[rand.Intn(len(nouns))]
	number := rand.Intn(999) + 1
	return fmt.Sprintf("%s%s%d", adjective, noun, number)
}

// RoomCode returns a random 6-character uppercase alphanumeric code. Not
// checked for uniqueness here; room creation retries on duplicate key.
func RoomCode() string {
	code := make([]byte, RoomCodeLength)
	for i := range code {
		code[i] = roomCodeAlphabet[rand.Intn(len(roomCodeAlphabet))]
	}
	return string(code)
}
