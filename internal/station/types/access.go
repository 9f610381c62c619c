package types

import (
	"encoding/hex"
	"strings"
)

// AuthResult is the outcome of polling the authentication oracle.
type AuthResult int

const (
	AuthBusy AuthResult = iota
	AuthGranted
	AuthDenied
)

func (r AuthResult) String() string {
	switch r {
	case AuthGranted:
		return "granted"
	case AuthDenied:
		return "denied"
	default:
		return "busy"
	}
}

// NoCard is the card identifier reported when no tag is in range or the
// read failed.
const NoCard = "0"

// FormatCardID renders a tag UID as uppercase colon-separated hex, e.g.
// "AA:BB:CC:DD".  An empty UID yields NoCard.
func FormatCardID(uid []byte) string {
	if len(uid) == 0 {
		return NoCard
	}
	parts := make([]string, len(uid))
	for i, b := range uid {
		parts[i] = strings.ToUpper(hex.EncodeToString([]byte{b}))
	}
	return strings.Join(parts, ":")
}

// IsNoCard reports whether id is the no-card sentinel (or empty).
func IsNoCard(id string) bool {
	id = strings.TrimSpace(id)
	return id == "" || id == NoCard
}
