package cryptoutils

import (
	"crypto/ecdsa"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// LoadPrivateKey parses a hex secp256k1 private key, with or without the 0x prefix.
func LoadPrivateKey(hexKey string) (*ecdsa.PrivateKey, error) {
	hexKey = strings.TrimSpace(hexKey)
	hexKey = strings.TrimPrefix(strings.TrimPrefix(hexKey, "0x"), "0X")

	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return key, nil
}

// LoadKeystore decrypts a go-ethereum JSON keystore file.
func LoadKeystore(path, passphrase string) (*ecdsa.PrivateKey, error) {
	keyJSON, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read keystore: %w", err)
	}

	key, err := keystore.DecryptKey(keyJSON, passphrase)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt keystore: %w", err)
	}
	return key.PrivateKey, nil
}

// LoadKey resolves a signing key from either a hex key or a keystore file.
// The hex key takes precedence when both are set.
func LoadKey(hexKey, keystorePath, passphrase string) (*ecdsa.PrivateKey, error) {
	switch {
	case hexKey != "":
		return LoadPrivateKey(hexKey)
	case keystorePath != "":
		return LoadKeystore(keystorePath, passphrase)
	default:
		return nil, fmt.Errorf("no signing key configured")
	}
}

// NewKeystoreAccount generates a key and writes it encrypted into dir.
// light selects cheap scrypt parameters, for tests and throwaway wallets.
func NewKeystoreAccount(dir, passphrase string, light bool) (common.Address, string, error) {
	scryptN, scryptP := keystore.StandardScryptN, keystore.StandardScryptP
	if light {
		scryptN, scryptP = keystore.LightScryptN, keystore.LightScryptP
	}

	ks := keystore.NewKeyStore(dir, scryptN, scryptP)
	account, err := ks.NewAccount(passphrase)
	if err != nil {
		return common.Address{}, "", fmt.Errorf("failed to create keystore account: %w", err)
	}
	return account.Address, account.URL.Path, nil
}
