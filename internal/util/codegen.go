package util

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/receiptly/activation-api/internal/domain/license"
)

// GenerateLicenseCode produces a 6-character code over the uppercase
// alphanumeric alphabet. Uniqueness is NOT guaranteed here; issuance
// inserts and retries on conflict until an unused value lands.
func GenerateLicenseCode() (string, error) {
	alphabetLen := big.NewInt(int64(len(license.CodeAlphabet)))
	buf := make([]byte, license.CodeLength)
	for i := range buf {
		n, err := rand.Int(rand.Reader, alphabetLen)
		if err != nil {
			return "", fmt.Errorf("failed to draw random code character: %w", err)
		}
		buf[i] = license.CodeAlphabet[n.Int64()]
	}
	return string(buf), nil
}
