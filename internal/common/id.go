package common

import (
	"crypto/rand"
	"math/big"
	"regexp"
)

const localIDLength = 9

const base36Alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

var uuidRegexp = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// NewLocalID generates a short base36 token used as a client-side identifier
// for records that have not been persisted yet. The format is deliberately
// distinguishable from a canonical UUID so that the persistence layer can
// tell local records from server ones.
func NewLocalID() string {
	b := make([]byte, localIDLength)
	max := big.NewInt(int64(len(base36Alphabet)))
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand only fails when the OS entropy source is broken;
			// fall back to a fixed character rather than panic mid-upload.
			b[i] = 'x'
			continue
		}
		b[i] = base36Alphabet[n.Int64()]
	}
	return string(b)
}

// IsServerID reports whether s is a canonical lowercase-hex UUID as assigned
// by the database. Local tokens from NewLocalID never match.
func IsServerID(s string) bool {
	return uuidRegexp.MatchString(s)
}
