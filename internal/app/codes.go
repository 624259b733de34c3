package app

import (
	"crypto/rand"
	"math/big"

	"github.com/google/uuid"
)

const (
	roomCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	roomCodeLength   = 5
)

// NewRoomCode returns a random five character code from A-Z and 0-9.
func NewRoomCode() (string, error) {
	buf := make([]byte, roomCodeLength)
	max := big.NewInt(int64(len(roomCodeAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = roomCodeAlphabet[n.Int64()]
	}
	return string(buf), nil
}

// NewPlayerID returns an opaque player identifier.
func NewPlayerID() string {
	return uuid.NewString()
}

// ValidRoomCode reports whether code has the shape produced by NewRoomCode.
func ValidRoomCode(code string) bool {
	if len(code) != roomCodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		c := code[i]
		if !(c >= 'A' && c <= 'Z') && !(c >= '0' && c <= '9') {
			return false
		}
	}
	return true
}
