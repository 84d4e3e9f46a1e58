package session

import (
	"crypto/rand"
	"math/big"
	"strings"
)

// generateCode draws n characters from charset for creates that omit a room
// name.
func generateCode(n int, charset string) (string, error) {
	limit := big.NewInt(int64(len(charset)))
	var b strings.Builder
	b.Grow(n)
	for b.Len() < n {
		idx, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		b.WriteByte(charset[idx.Int64()])
	}
	return b.String(), nil
}
