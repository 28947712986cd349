// Package keypair decodes the RSA private keys used for Snowflake key-pair
// authentication.
package keypair

import (
	"bytes"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"

	"github.com/youmark/pkcs8"

	"flakeload/pkg/errors"
)

// Parse decodes a PEM encoded RSA private key. PKCS#1, PKCS#8 and
// encrypted PKCS#8 keys are accepted; passphrase is only used for the
// latter.
func Parse(pemBytes []byte, passphrase string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(normalize(pemBytes))
	if block == nil {
		return nil, errors.New(errors.ErrCodePrivateKey, "failed to decode PEM block containing private key")
	}

	switch block.Type {
	case "RSA PRIVATE KEY":
		key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodePrivateKey, "failed to parse PKCS#1 private key")
		}
		return key, nil
	case "PRIVATE KEY":
		return parsePKCS8(block.Bytes, nil)
	case "ENCRYPTED PRIVATE KEY":
		if passphrase == "" {
			return nil, errors.New(errors.ErrCodePrivateKey, "private key is encrypted but no passphrase was provided").
				WithSuggestions("Set SNOWFLAKE_PRIVATE_KEY_PASSPHRASE")
		}
		key, err := parsePKCS8(block.Bytes, []byte(passphrase))
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodePrivateKey, "failed to decrypt private key").
				WithSuggestions("Check SNOWFLAKE_PRIVATE_KEY_PASSPHRASE")
		}
		return key, nil
	default:
		return nil, errors.Newf(errors.ErrCodePrivateKey, "unsupported PEM block type %q", block.Type)
	}
}

// normalize turns keys that were flattened into a single environment
// variable line (literal "\n" sequences) back into proper PEM.
func normalize(in []byte) []byte {
	out := bytes.TrimSpace(in)
	if !bytes.Contains(out, []byte("\n")) && bytes.Contains(out, []byte(`\n`)) {
		out = bytes.ReplaceAll(out, []byte(`\n`), []byte("\n"))
	}
	return out
}

// parsePKCS8 handles plain and encrypted PKCS#8; a nil password means the
// key is not encrypted.
func parsePKCS8(der, password []byte) (*rsa.PrivateKey, error) {
	var (
		key any
		err error
	)
	if password == nil {
		key, err = pkcs8.ParsePKCS8PrivateKey(der)
	} else {
		key, err = pkcs8.ParsePKCS8PrivateKey(der, password)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodePrivateKey, "failed to parse PKCS#8 private key")
	}

	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.Newf(errors.ErrCodePrivateKey, "expected an RSA private key, got %T", key)
	}
	return rsaKey, nil
}

// Fingerprint returns the SHA256 fingerprint Snowflake shows for the
// registered public key (DESC USER ... RSA_PUBLIC_KEY_FP).
func Fingerprint(key *rsa.PrivateKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(key.Public())
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodePrivateKey, "failed to marshal public key")
	}
	sum := sha256.Sum256(der)
	return "SHA256:" + base64.StdEncoding.EncodeToString(sum[:]), nil
}
