package security

import (
    "crypto/hmac"
    "crypto/sha256"

    "github.com/carlossantillana/ndn-drop/pkg/face"
)

// Signer attaches an authentication tag to outgoing data.
type Signer interface {
    Sign(d *face.Data) error
}

// DigestSigner produces a SHA-256 digest over the data name and content,
// the equivalent of an NDN DigestSha256 signature.
type DigestSigner struct{}

func (DigestSigner) Sign(d *face.Data) error {
    d.Signature = Digest(*d)
    return nil
}

// Digest computes the tag DigestSigner attaches to d. The signature field
// itself is not covered.
func Digest(d face.Data) []byte {
    h := sha256.New()
    h.Write([]byte(face.Canonical(d.Name)))
    h.Write([]byte{0})
    h.Write(d.Content)
    return h.Sum(nil)
}

// Verify reports whether d carries a valid digest signature.
func Verify(d face.Data) bool {
    if len(d.Signature) == 0 { return false }
    return hmac.Equal(d.Signature, Digest(d))
}

var _ Signer = DigestSigner{}
