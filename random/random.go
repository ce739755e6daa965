// Package random generates unguessable tokens such as receipt numbers.
package random

import (
	crand "crypto/rand"
	"fmt"
)

// Digits and upper case letters without the easily confused 0, O, 1 and I.
const alphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"

// Token returns n characters drawn uniformly from alphabet using crypto/rand.
func Token(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("token length must be positive, got %d", n)
	}

	buf := make([]byte, n)
	if _, err := crand.Read(buf); err != nil {
		return "", fmt.Errorf("reading random bytes: %w", err)
	}

	// 256 is a multiple of len(alphabet), so the modulo keeps the draw uniform.
	out := make([]byte, n)
	for i, b := range buf {
		out[i] = alphabet[int(b)%len(alphabet)]
	}
	return string(out), nil
}

// Prefixed returns prefix followed by an n character token.
func Prefixed(prefix string, n int) (string, error) {
	t, err := Token(n)
	if err != nil {
		return "", err
	}
	return prefix + t, nil
}
