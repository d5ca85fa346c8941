package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DomainTree is the domain prefix for tree fingerprints.
// Version suffix enables future algorithm migration.
const DomainTree = "delegate/tree/v1"

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Fingerprint computes a content-addressed id for a tree from its canonical
// encoding. Two trees with the same structure share a fingerprint regardless
// of source spans.
func Fingerprint(n Node) (string, error) {
	canonical, err := MarshalCanonical(n)
	if err != nil {
		return "", fmt.Errorf("Fingerprint: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainTree, canonical), nil
}

// MustFingerprint is like Fingerprint but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustFingerprint(n Node) string {
	id, err := Fingerprint(n)
	if err != nil {
		panic(err)
	}
	return id
}
