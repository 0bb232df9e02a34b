package services

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"

	"github.com/carevault/carevault/internal/cryptox"
)

// PassphrasePrompt supplies the passphrase for a locked key file. It is only
// called when the file actually needs one, so a CLI can defer the prompt.
type PassphrasePrompt func() ([]byte, error)

// LoadRecoveryKey reads the administrator's private key from path. Plain PEM
// files load directly; passphrase-protected files trigger the prompt and one
// extra key derivation. The underlying crypto cannot distinguish a wrong
// passphrase from a corrupt file, so the returned messages point at the
// remediation for the path that was taken, never at which layer failed.
func LoadRecoveryKey(path string, prompt PassphrasePrompt) (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading key file: %w", err)
	}

	if cryptox.IsLockedKeyFile(data) {
		passphrase, err := prompt()
		if err != nil {
			return nil, err
		}
		priv, err := cryptox.UnlockPrivateKey(data, passphrase)
		if err != nil {
			if errors.Is(err, cryptox.ErrUnwrapFailed) {
				return nil, fmt.Errorf("%w: could not unlock %s, check the passphrase or use the original key file", cryptox.ErrUnwrapFailed, path)
			}
			return nil, err
		}
		return priv, nil
	}

	priv, err := cryptox.ParsePrivateKeyPEM(data)
	if err != nil {
		return nil, fmt.Errorf("%s is not a usable private key file: %w", path, err)
	}
	return priv, nil
}
