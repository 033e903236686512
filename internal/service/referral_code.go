package service

import (
	"crypto/rand"
	"math/big"
	"strings"
)

// Sin 0/O ni 1/I para que el código se pueda dictar.
const referralCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const referralCodeLength = 8

func generateReferralCode() (string, error) {
	max := big.NewInt(int64(len(referralCodeAlphabet)))
	var b strings.Builder
	b.Grow(referralCodeLength)
	for i := 0; i < referralCodeLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(referralCodeAlphabet[n.Int64()])
	}
	return b.String(), nil
}

func normalizeReferralCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
