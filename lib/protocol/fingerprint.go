package protocol

import (
	"crypto/sha256"
	"encoding/base64"
)

// fingerprintPrefix marks the canonical fingerprint form. It matches the
// SHA256:<base64> convention used by OpenSSH's own fingerprinting.
const fingerprintPrefix = "SHA256:"

// Fingerprint derives the canonical identifier for a key blob: the
// standard-alphabet, unpadded base64 encoding of the blob's SHA-256
// digest, prefixed with "SHA256:". It is a pure function of blob, so
// equal blobs always produce equal fingerprints.
func Fingerprint(blob []byte) string {
	sum := sha256.Sum256(blob)
	return fingerprintPrefix + base64.StdEncoding.WithPadding(base64.NoPadding).EncodeToString(sum[:])
}
