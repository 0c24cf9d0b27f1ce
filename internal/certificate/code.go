package certificate

import "crypto/rand"

// codeAlphabet avoids lookalike characters (I, L, O, 0, 1) so codes survive
// being read aloud or retyped from a printed certificate.
const codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

const codeLength = 16

// maxUnbiased is the largest byte range that divides evenly into the
// alphabet; values at or above it are redrawn so no character is
// over-represented.
const maxUnbiased = 256 - 256%len(codeAlphabet)

// NewCode returns a cryptographically random verification code with a
// uniform character distribution.
func NewCode() (string, error) {
	out := make([]byte, 0, codeLength)
	buf := make([]byte, codeLength)
	for len(out) < codeLength {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if int(b) >= maxUnbiased {
				continue
			}
			out = append(out, codeAlphabet[int(b)%len(codeAlphabet)])
			if len(out) == codeLength {
				break
			}
		}
	}
	return string(out), nil
}
