package protocol

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"
)

var fingerprintPattern = regexp.MustCompile(`^SHA256:[A-Za-z0-9+/]{43}$`)

func TestFingerprintFormat(t *testing.T) {
	for _, blob := range [][]byte{
		[]byte("a"),
		[]byte("a rather longer key blob, for variety"),
		{},
	} {
		fp := Fingerprint(blob)
		require.Regexp(t, fingerprintPattern, fp)
	}
}

func TestFingerprintIsPureFunctionOfBlob(t *testing.T) {
	a := []byte("identical-blob")
	b := []byte("identical-blob")
	require.Equal(t, Fingerprint(a), Fingerprint(b))

	require.NotEqual(t, Fingerprint([]byte("one")), Fingerprint([]byte("two")))
}
