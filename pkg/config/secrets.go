package config

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/scrypt"
)

// Secrets are stored in an encrypted file next to the config, protected by a
// passphrase from the NORTHSTAR_SECRETS_KEY environment variable. File layout:
// [16-byte salt][12-byte nonce][AES-256-GCM ciphertext+tag].
const (
	SecretsFileName = "secrets.enc"

	scryptN      = 32768
	scryptR      = 8
	scryptP      = 1
	keyLen       = 32
	saltLen      = 16
	nonceLen     = 12
	secretsPerms = 0o600
)

// secretsKeyEnv names the env var holding the secrets passphrase.
const secretsKeyEnv = "NORTHSTAR_SECRETS_KEY"

func secretsPath() string {
	if dir := os.Getenv("NORTHSTAR_CONFIG_DIR"); dir != "" {
		return filepath.Join(dir, SecretsFileName)
	}
	return SecretsFileName
}

func deriveKey(passphrase string, salt []byte) ([]byte, error) {
	key, err := scrypt.Key([]byte(passphrase), salt, scryptN, scryptR, scryptP, keyLen)
	if err != nil {
		return nil, fmt.Errorf("key derivation failed: %w", err)
	}
	return key, nil
}

func encryptSecrets(secrets map[string]string, passphrase string) ([]byte, error) {
	plaintext, err := json.Marshal(secrets)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal secrets: %w", err)
	}

	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	key, err := deriveKey(passphrase, salt)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	nonce := make([]byte, nonceLen)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nil, nonce, plaintext, nil)

	out := make([]byte, 0, saltLen+nonceLen+len(ciphertext))
	out = append(out, salt...)
	out = append(out, nonce...)
	out = append(out, ciphertext...)
	return out, nil
}

func decryptSecrets(data []byte, passphrase string) (map[string]string, error) {
	if len(data) < saltLen+nonceLen {
		return nil, fmt.Errorf("secrets file too short")
	}

	salt := data[:saltLen]
	nonce := data[saltLen : saltLen+nonceLen]
	ciphertext := data[saltLen+nonceLen:]

	key, err := deriveKey(passphrase, salt)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt secrets (wrong passphrase?): %w", err)
	}

	var secrets map[string]string
	if err := json.Unmarshal(plaintext, &secrets); err != nil {
		return nil, fmt.Errorf("failed to unmarshal secrets: %w", err)
	}
	return secrets, nil
}

func loadSecretsFile() (map[string]string, error) {
	passphrase := os.Getenv(secretsKeyEnv)
	if passphrase == "" {
		return nil, fmt.Errorf("%s not set", secretsKeyEnv)
	}

	data, err := os.ReadFile(secretsPath())
	if err != nil {
		return nil, fmt.Errorf("failed to read secrets file: %w", err)
	}
	return decryptSecrets(data, passphrase)
}

// SetSecret stores a secret in the encrypted secrets file, creating the file
// if needed. Requires NORTHSTAR_SECRETS_KEY to be set.
func SetSecret(name, value string) error {
	passphrase := os.Getenv(secretsKeyEnv)
	if passphrase == "" {
		return fmt.Errorf("%s not set", secretsKeyEnv)
	}

	secrets := map[string]string{}
	if existing, err := loadSecretsFile(); err == nil {
		secrets = existing
	}
	secrets[name] = value

	data, err := encryptSecrets(secrets, passphrase)
	if err != nil {
		return err
	}
	if err := os.WriteFile(secretsPath(), data, secretsPerms); err != nil {
		return fmt.Errorf("failed to write secrets file: %w", err)
	}
	return nil
}

// GetSecret reads a secret, preferring the encrypted secrets file and falling
// back to the environment variable of the same name.
func GetSecret(name string) (string, error) {
	if secrets, err := loadSecretsFile(); err == nil {
		if value, ok := secrets[name]; ok && value != "" {
			return value, nil
		}
	}

	if value := os.Getenv(name); value != "" {
		return value, nil
	}
	return "", fmt.Errorf("secret %s not found in secrets file or environment", name)
}
