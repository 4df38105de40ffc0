package cryptox

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// OTPLength is the number of digits in a login one-time code.
const OTPLength = 6

// GenerateOTP returns a random numeric one-time code. Codes are single-use
// and short-lived; entropy comes from crypto/rand, not math/rand, since they
// gate authentication.
func GenerateOTP() (string, error) {
	const digits = "0123456789"

	code := make([]byte, OTPLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(digits))))
		if err != nil {
			return "", fmt.Errorf("failed to generate otp: %w", err)
		}
		code[i] = digits[n.Int64()]
	}
	return string(code), nil
}
