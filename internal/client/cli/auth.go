package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/carevault/carevault/internal/client/client"
	"github.com/carevault/carevault/internal/common"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// Register prompts for a username, password, and display name and creates a
// new account. The envelope (salt, verifier, dual-wrapped DEK) and the
// encrypted profile are built locally; the password never leaves the machine.
// The password buffer is wiped before returning.
func (a *App) Register(ctx context.Context) error {
	userName, err := getSimpleText(a.reader, "Enter username", os.Stdout)
	if err != nil {
		return err
	}

	password, err := getPassword("Enter password", os.Stdout)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	displayName, err := getSimpleText(a.reader, "Display name (optional)", os.Stdout)
	if err != nil {
		return err
	}

	if err := a.authService.Register(ctx, userName, password, displayName); err != nil {
		return err
	}

	printlnFn("Success!")
	return nil
}

// Login prompts for credentials and a security tier and authenticates.
//
// The method first attempts an online login. If the server is unavailable it
// falls back to offline login against locally cached credentials, which
// unlocks the record cache in read-only fashion. The password is wiped
// before returning.
func (a *App) Login(ctx context.Context) error {
	userName, err := getSimpleText(a.reader, "Enter username", os.Stdout)
	if err != nil {
		return err
	}

	password, err := getPassword("Enter password", os.Stdout)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	tierText, err := getSimpleText(a.reader, "Security tier (high/balanced/convenience, default balanced)", os.Stdout)
	if err != nil {
		return err
	}
	if tierText == "" {
		tierText = string(common.TierBalanced)
	}
	tier, err := common.ParseTier(tierText)
	if err != nil {
		return err
	}

	if err := a.authService.Login(ctx, userName, password, tier); err != nil {
		if errors.Is(err, client.ErrUnavailable) {
			printlnFn("Server unavailable, trying offline login...")
			if err := a.authService.OfflineLogin(ctx, userName, password); err != nil {
				return err
			}
			a.userName = userName
			printlnFn("Offline login successful, cached records are readable")
			return nil
		}
		return err
	}

	a.userName = userName
	printlnFn(fmt.Sprintf("Logged in at %s tier", tier))
	return nil
}

// Logout ends the session on server and client and drops persisted
// convenience-tier key material.
func (a *App) Logout(ctx context.Context) error {
	if err := a.authService.Logout(ctx); err != nil {
		return err
	}
	a.userName = ""
	printlnFn("Logged out")
	return nil
}

// Passwd prompts for the old and new passwords and rewraps the DEK under the
// new one. Every session is revoked server-side, so the user is asked to log
// in again.
func (a *App) Passwd(ctx context.Context) error {
	oldPassword, err := getPassword("Enter current password", os.Stdout)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(oldPassword)

	newPassword, err := getPassword("Enter new password", os.Stdout)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(newPassword)

	if err := a.authService.ChangePassword(ctx, oldPassword, newPassword); err != nil {
		return err
	}

	printlnFn("Password changed, please log in again")
	return nil
}
