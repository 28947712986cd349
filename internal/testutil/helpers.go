// Package testutil holds helpers shared by flakeload's package tests.
package testutil

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

var (
	keyOnce sync.Once
	key     *rsa.PrivateKey
	keyErr  error
)

// PrivateKey returns a 2048-bit RSA key shared by every test in the process.
func PrivateKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	keyOnce.Do(func() {
		key, keyErr = rsa.GenerateKey(rand.Reader, 2048)
	})
	if keyErr != nil {
		t.Fatalf("Failed to generate RSA key: %v", keyErr)
	}
	return key
}

// PrivateKeyPEM returns PrivateKey as an unencrypted PKCS#8 PEM block.
func PrivateKeyPEM(t *testing.T) string {
	t.Helper()
	der, err := x509.MarshalPKCS8PrivateKey(PrivateKey(t))
	if err != nil {
		t.Fatalf("Failed to marshal RSA key: %v", err)
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}))
}

// Env returns a lookup function over a fixed map, a stand-in for
// os.LookupEnv that never touches the process environment.
func Env(values map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

// BaseEnv returns the minimal environment for a customers load.
func BaseEnv(t *testing.T) map[string]string {
	t.Helper()
	return map[string]string{
		"SNOWFLAKE_ACCOUNT":     "xy12345.eu-west-1",
		"SNOWFLAKE_USER":        "LOADER_USER",
		"SNOWFLAKE_PRIVATE_KEY": PrivateKeyPEM(t),
		"SNOWFLAKE_DATABASE":    "DEMO_DB",
		"SNOWFLAKE_SCHEMA":      "PUBLIC",
		"SNOWFLAKE_ROLE":        "LOADER_ROLE",
		"SNOWFLAKE_WAREHOUSE":   "LOADER_WH",
		"CUSTOMER_TABLE":        "customers",
	}
}

// WriteFile writes content to dir/name and returns the path.
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("Failed to create directories: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write file %s: %v", path, err)
	}
	return path
}
