package cryptox

import (
	"errors"

	"github.com/carevault/carevault/internal/common"
)

// SplitKey divides a DEK into two complementary fragments for the balanced
// session tier: fragB is uniformly random and fragA = dek XOR fragB, so either
// fragment alone is statistically independent of the DEK.
func SplitKey(dek []byte) (fragA, fragB []byte, err error) {
	if len(dek) != KeySize {
		return nil, nil, errors.New("key to split must be 32 bytes")
	}

	fragB = common.GenerateRandByteArray(KeySize)
	fragA = make([]byte, KeySize)
	for i := range dek {
		fragA[i] = dek[i] ^ fragB[i]
	}
	return fragA, fragB, nil
}

// CombineKey reconstructs the DEK from both fragments.
func CombineKey(fragA, fragB []byte) ([]byte, error) {
	if len(fragA) != KeySize || len(fragB) != KeySize {
		return nil, errors.New("fragments must be 32 bytes")
	}

	dek := make([]byte, KeySize)
	for i := range fragA {
		dek[i] = fragA[i] ^ fragB[i]
	}
	return dek, nil
}
