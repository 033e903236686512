package service

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"math/big"
	"strings"
	"unicode"
)

const otpDigits = 6

// generateOTP devuelve el código en claro y su hash salado "salt:hash".
func generateOTP() (string, string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", "", err
	}
	code := fmt.Sprintf("%06d", n.Int64())

	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", "", err
	}
	saltStr := base64.StdEncoding.EncodeToString(salt)
	return code, saltStr + ":" + hashOTP(saltStr, code), nil
}

func hashOTP(salt, code string) string {
	sum := sha256.Sum256([]byte(salt + ":" + code))
	return base64.StdEncoding.EncodeToString(sum[:])
}

func verifyOTP(code, stored string) bool {
	salt, expected, ok := strings.Cut(stored, ":")
	if !ok || salt == "" || expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(hashOTP(salt, code)), []byte(expected)) == 1
}

func isValidOTPCode(code string) bool {
	if len(code) != otpDigits {
		return false
	}
	for _, r := range code {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
