package common

import (
	"crypto/rand"
	"math/big"
)

const tokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// MakeRandTokenString returns a random string of length n drawn from the
// alphanumeric alphabet using crypto/rand. Used for entitlement key tokens;
// at 24 characters the collision probability is negligible, and the keys
// table primary-key constraint is the backstop.
func MakeRandTokenString(n int) (string, error) {
	buf := make([]byte, n)
	max := big.NewInt(int64(len(tokenAlphabet)))
	for i := range buf {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = tokenAlphabet[idx.Int64()]
	}
	return string(buf), nil
}
