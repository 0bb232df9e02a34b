package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/carevault/carevault/internal/client/services"
)

// AdminDecrypt runs the recovery flow: load the administrator's private key
// from a file (prompting for a passphrase only when the file is locked),
// fetch every user's admin-wrapped DEK and ciphertext records, and decrypt
// them in bulk. Records that fail to decrypt are reported per user without
// aborting the rest.
//
// The admin must be logged in with an admin account; the server rejects the
// listing otherwise. The private key never leaves this machine.
func (a *App) AdminDecrypt(ctx context.Context) error {
	keyPath, err := getSimpleText(a.reader, "Path to the recovery key file", os.Stdout)
	if err != nil {
		return err
	}

	priv, err := services.LoadRecoveryKey(keyPath, func() ([]byte, error) {
		return getPassword("Key file passphrase", os.Stdout)
	})
	if err != nil {
		return err
	}

	bundles, err := a.api.AdminListRecords(ctx)
	if err != nil {
		return err
	}

	batches, err := a.decryptor.DecryptBundles(ctx, priv, bundles)

	var partial *services.PartialBatchFailure
	if err != nil && !errors.As(err, &partial) {
		return err
	}

	for _, batch := range batches {
		who := batch.Username
		if batch.DisplayName != "" {
			who = fmt.Sprintf("%s (%s)", batch.Username, batch.DisplayName)
		}
		printlnFn(fmt.Sprintf("== %s: %d record(s), %d unreadable", who, len(batch.Entries), len(batch.Failures)))
		for _, e := range batch.Entries {
			label := e.Period
			if e.Subkey != "" {
				label += "/" + e.Subkey
			}
			printlnFn(fmt.Sprintf("  %s: %s", label, string(e.Payload)))
		}
	}
	if partial != nil {
		printlnFn(partial.Error())
	}
	return nil
}
