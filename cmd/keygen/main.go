// Command keygen generates the administrator's recovery key pair. The public
// key goes to the server, which hands it to registering clients; the private
// key stays on the admin's machine and can optionally be locked under a
// passphrase.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"golang.org/x/term"

	"github.com/carevault/carevault/internal/common"
	"github.com/carevault/carevault/internal/cryptox"
)

func main() {
	pubPath := flag.String("pub", "admin_key.pub", "output path for the public key PEM")
	keyPath := flag.String("key", "admin_key", "output path for the private key")
	lock := flag.Bool("lock", false, "protect the private key with a passphrase")
	flag.Parse()

	priv, err := cryptox.GenerateAdminKeyPair()
	if err != nil {
		log.Fatalf("generating key pair: %v", err)
	}

	pubPEM, err := cryptox.EncodePublicKeyPEM(&priv.PublicKey)
	if err != nil {
		log.Fatalf("encoding public key: %v", err)
	}

	keyData := cryptox.EncodePrivateKeyPEM(priv)
	if *lock {
		passphrase, err := promptPassphrase()
		if err != nil {
			log.Fatalf("reading passphrase: %v", err)
		}
		defer common.WipeByteArray(passphrase)

		keyData, err = cryptox.LockPrivateKey(priv, passphrase)
		if err != nil {
			log.Fatalf("locking private key: %v", err)
		}
	}

	if err := os.WriteFile(*pubPath, pubPEM, 0o644); err != nil {
		log.Fatalf("writing %s: %v", *pubPath, err)
	}
	if err := os.WriteFile(*keyPath, keyData, 0o600); err != nil {
		log.Fatalf("writing %s: %v", *keyPath, err)
	}

	fmt.Printf("public key:  %s\nprivate key: %s\n", *pubPath, *keyPath)
	fmt.Println("keep the private key offline; losing it makes admin recovery impossible")
}

func promptPassphrase() ([]byte, error) {
	fmt.Print("Passphrase: ")
	first, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return nil, err
	}
	fmt.Print("Repeat passphrase: ")
	second, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(second)

	if string(first) != string(second) {
		return nil, fmt.Errorf("passphrases do not match")
	}
	return first, nil
}
