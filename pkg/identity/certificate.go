package identity

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// ComputeCertificate derives the device certificate an agent presents for a
// normalized MAC: hex(hmac_sha256(secret, mac)). This is a shared-secret
// annotation, not PKI; it raises the bar against casual MAC spoofing only.
func ComputeCertificate(secret, mac string) string {
	mac256 := hmac.New(sha256.New, []byte(secret))
	mac256.Write([]byte(mac))

	return hex.EncodeToString(mac256.Sum(nil))
}

// VerifyCertificate checks a presented certificate in constant time.
func VerifyCertificate(secret, mac, presented string) bool {
	if presented == "" {
		return false
	}

	expected := ComputeCertificate(secret, mac)

	return hmac.Equal([]byte(expected), []byte(presented))
}
