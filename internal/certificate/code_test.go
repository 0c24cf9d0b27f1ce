package certificate

import (
	"strings"
	"testing"
)

func TestNewCode(t *testing.T) {
	seen := map[string]struct{}{}
	for i := 0; i < 500; i++ {
		code, err := NewCode()
		if err != nil {
			t.Fatalf("new code: %v", err)
		}
		if len(code) != codeLength {
			t.Fatalf("length = %d, want %d (rejection must redraw, not truncate)", len(code), codeLength)
		}
		for _, r := range code {
			if !strings.ContainsRune(codeAlphabet, r) {
				t.Fatalf("code %q contains %q outside the alphabet", code, r)
			}
		}
		if _, dup := seen[code]; dup {
			t.Fatalf("duplicate code %q", code)
		}
		seen[code] = struct{}{}
	}
}

func TestNewCode_UnbiasedCutoff(t *testing.T) {
	// every accepted byte value must map to the alphabet an equal number of
	// times: the cutoff is the largest multiple of the alphabet size <= 256
	if maxUnbiased%len(codeAlphabet) != 0 {
		t.Fatalf("cutoff %d is not a multiple of alphabet size %d", maxUnbiased, len(codeAlphabet))
	}
	if 256-maxUnbiased >= len(codeAlphabet) {
		t.Fatalf("cutoff %d rejects more than one alphabet span", maxUnbiased)
	}
}
