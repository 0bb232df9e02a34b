package services

import (
	"encoding/json"
	"fmt"

	"github.com/carevault/carevault/internal/cryptox"
)

// profilePayload is the plaintext of the encrypted profile blob created at
// registration. Profile attributes never reach the server unencrypted.
type profilePayload struct {
	DisplayName string `json:"display_name"`
}

func sealProfile(dek []byte, displayName string) ([]byte, error) {
	plain, err := json.Marshal(profilePayload{DisplayName: displayName})
	if err != nil {
		return nil, err
	}
	sealed, err := cryptox.EncryptField(dek, plain)
	if err != nil {
		return nil, fmt.Errorf("encrypting profile: %w", err)
	}
	return json.Marshal(sealed)
}

func openProfile(key, blob []byte) (string, error) {
	var sealed cryptox.SealedField
	if err := json.Unmarshal(blob, &sealed); err != nil {
		return "", fmt.Errorf("corrupt profile blob: %w", err)
	}
	plain, err := cryptox.DecryptField(key, &sealed)
	if err != nil {
		return "", err
	}
	var p profilePayload
	if err := json.Unmarshal(plain, &p); err != nil {
		return "", fmt.Errorf("corrupt profile payload: %w", err)
	}
	return p.DisplayName, nil
}
