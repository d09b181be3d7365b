package protocol

import (
	"github.com/gravitational/trace"
)

// unknownKeyType is reported for an identity whose blob cannot be parsed
// far enough to recover its type tag. The identity is still usable: it
// still has a fingerprint and a blob, it just can't be labeled.
const unknownKeyType = "unknown"

// Identity is one upstream-held public key as carried in an
// identities-answer message: an opaque blob, a free-text comment, and a
// fingerprint and key type derived from the blob.
type Identity struct {
	Blob        []byte
	Comment     string
	Fingerprint string
	KeyType     string
}

// NewIdentity derives Fingerprint and KeyType from blob and pairs them
// with comment. KeyType extraction failure is not fatal: the identity
// comes back with KeyType "unknown" rather than an error.
func NewIdentity(blob []byte, comment string) Identity {
	return Identity{
		Blob:        blob,
		Comment:     comment,
		Fingerprint: Fingerprint(blob),
		KeyType:     keyType(blob),
	}
}

// keyType reads the first inner string of a key blob, which by SSH wire
// convention is the algorithm name (e.g. "ssh-ed25519").
func keyType(blob []byte) string {
	s, _, err := readString(blob, 0)
	if err != nil {
		return unknownKeyType
	}
	return string(s)
}

// DecodeIdentitiesAnswer parses a type-12 frame body into an ordered list
// of identities, preserving upstream's order.
func DecodeIdentitiesAnswer(body []byte) ([]Identity, error) {
	if len(body) < 5 {
		return nil, trace.BadParameter("identities-answer body too short (%d bytes)", len(body))
	}
	if body[0] != MsgIdentitiesAnswer {
		return nil, trace.BadParameter("expected identities-answer (%d), got %d", MsgIdentitiesAnswer, body[0])
	}

	n := beUint32(body[1:5])
	identities := make([]Identity, 0, n)
	off := 5
	for i := uint32(0); i < n; i++ {
		blob, next, err := readString(body, off)
		if err != nil {
			return nil, trace.BadParameter("identities-answer: entry %d blob: %v", i, err)
		}
		off = next

		comment, next, err := readString(body, off)
		if err != nil {
			return nil, trace.BadParameter("identities-answer: entry %d comment: %v", i, err)
		}
		off = next

		identities = append(identities, NewIdentity(blob, string(comment)))
	}

	return identities, nil
}

// EncodeIdentitiesAnswer produces a single type-12 frame whose body lists
// exactly the given identities, in order, with their original blob and
// comment bytes untouched.
func EncodeIdentitiesAnswer(identities []Identity) Frame {
	body := make([]byte, 0, 5+len(identities)*32)
	body = append(body, MsgIdentitiesAnswer)
	body = beAppendUint32(body, uint32(len(identities)))
	for _, id := range identities {
		body = appendString(body, id.Blob)
		body = appendString(body, []byte(id.Comment))
	}
	return Frame{Body: body}
}

// SignRequestBlob extracts the key blob referenced by a type-13
// sign-request body. Per the wire layout it is the first inner string
// following the type byte. A parse failure is reported as an error
// rather than synthesizing a zero-value blob, so that callers can tell
// "no reference recoverable" apart from "empty blob".
func SignRequestBlob(body []byte) ([]byte, error) {
	if len(body) < 1 || body[0] != MsgSignRequest {
		return nil, trace.BadParameter("not a sign-request body")
	}
	blob, _, err := readString(body, 1)
	if err != nil {
		return nil, trace.Wrap(err, "parsing sign-request key blob")
	}
	return blob, nil
}

func beUint32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

func beAppendUint32(buf []byte, v uint32) []byte {
	return append(buf, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}
