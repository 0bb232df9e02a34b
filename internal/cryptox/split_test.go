package cryptox

import (
	"bytes"
	"testing"

	"github.com/carevault/carevault/internal/common"
)

func TestSplitCombineKey_RoundTrip(t *testing.T) {
	dek := common.GenerateRandByteArray(KeySize)

	fragA, fragB, err := SplitKey(dek)
	if err != nil {
		t.Fatalf("SplitKey error: %v", err)
	}

	got, err := CombineKey(fragA, fragB)
	if err != nil {
		t.Fatalf("CombineKey error: %v", err)
	}
	if !bytes.Equal(got, dek) {
		t.Fatalf("combined key differs from original")
	}
}

// Neither fragment alone may reveal the DEK: combining a fragment with
// anything other than its complement must not reproduce the key.
func TestSplitKey_SingleFragmentRevealsNothing(t *testing.T) {
	dek := common.GenerateRandByteArray(KeySize)

	fragA, fragB, err := SplitKey(dek)
	if err != nil {
		t.Fatalf("SplitKey error: %v", err)
	}

	if bytes.Equal(fragA, dek) || bytes.Equal(fragB, dek) {
		t.Fatalf("a fragment equals the DEK")
	}

	zero := make([]byte, KeySize)
	fromA, _ := CombineKey(fragA, zero)
	fromB, _ := CombineKey(fragB, zero)
	if bytes.Equal(fromA, dek) || bytes.Equal(fromB, dek) {
		t.Fatalf("a single fragment reconstructed the DEK")
	}
}

func TestSplitKey_FreshRandomnessPerSplit(t *testing.T) {
	dek := common.GenerateRandByteArray(KeySize)

	_, b1, err := SplitKey(dek)
	if err != nil {
		t.Fatalf("SplitKey error: %v", err)
	}
	_, b2, err := SplitKey(dek)
	if err != nil {
		t.Fatalf("SplitKey error: %v", err)
	}

	if bytes.Equal(b1, b2) {
		t.Fatalf("two splits of the same DEK used the same randomness")
	}
}

func TestSplitCombineKey_LengthChecks(t *testing.T) {
	if _, _, err := SplitKey([]byte("short")); err == nil {
		t.Fatalf("expected error splitting short key")
	}
	if _, err := CombineKey(make([]byte, KeySize), []byte("short")); err == nil {
		t.Fatalf("expected error combining short fragment")
	}
}
