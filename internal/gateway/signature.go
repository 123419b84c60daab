package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

// checksumSeparator splits the digest from the salt index in a signature.
const checksumSeparator = "###"

// Sign computes the request checksum the gateway expects in the X-VERIFY
// header: hex(HMAC-SHA256(payload+endpoint, secret)) + "###" + saltIndex.
// Deterministic for identical inputs; any single-bit change of payload or
// endpoint changes the digest.
func Sign(payload, endpoint, secret, saltIndex string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	mac.Write([]byte(endpoint))
	return hex.EncodeToString(mac.Sum(nil)) + checksumSeparator + saltIndex
}

// Verify recomputes the checksum for payload and endpoint and compares it
// against candidate in constant time. Fails closed: malformed candidates
// return false, never panic.
func Verify(payload, endpoint, secret, candidate string) bool {
	idx := strings.LastIndex(candidate, checksumSeparator)
	if idx < 0 {
		return false
	}
	saltIndex := candidate[idx+len(checksumSeparator):]
	expected := Sign(payload, endpoint, secret, saltIndex)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(candidate)) == 1
}
