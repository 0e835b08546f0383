package lottery

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// BalanceKey returns the storage key for an identity. Identities are compared
// case-insensitively and never stored in clear.
func BalanceKey(id string) string {
	return BalanceKeyPrefix + identityHash(id)
}

func identityHash(id string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(id))))
	return hex.EncodeToString(sum[:])[:identityHashLength]
}
