package main

import (
	"fmt"
	"os"

	"websearch/internal/infra/config"
)

// runSecret encrypts a value for storage in the config file. The
// output is pasted as-is into a yaml field; Load decrypts it with the
// same passphrase.
func runSecret(args []string) error {
	if len(args) != 1 || args[0] == "" {
		return fmt.Errorf("usage: websearch secret <value>")
	}

	passphrase := os.Getenv("WEBSEARCH_CONFIG_KEY")
	if passphrase == "" {
		return fmt.Errorf("WEBSEARCH_CONFIG_KEY must be set to encrypt values")
	}

	encrypted, err := config.EncryptValue(args[0], passphrase)
	if err != nil {
		return err
	}

	fmt.Println("enc:" + encrypted)
	return nil
}
