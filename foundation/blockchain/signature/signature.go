// Package signature provides helper functions for handling the blockchain
// identifier and signature needs. Wallets sign with RSA keys using PKCS#1 v1.5
// over a SHA-256 digest; content addressing uses SHA-256.
package signature

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
)

// KeyBits is the size of the RSA keys generated for wallets.
const KeyBits = 2048

// PEM block types for the PKCS#1 encodings.
const (
	publicKeyType  = "RSA PUBLIC KEY"
	privateKeyType = "RSA PRIVATE KEY"
)

// ErrInvalidSignature is returned when a signature does not verify.
var ErrInvalidSignature = errors.New("invalid signature")

// =============================================================================

// GenerateKey constructs a new RSA private key for a wallet.
func GenerateKey() (*rsa.PrivateKey, error) {
	return rsa.GenerateKey(rand.Reader, KeyBits)
}

// Sign uses the specified private key to sign the data.
func Sign(data []byte, privateKey *rsa.PrivateKey) ([]byte, error) {
	digest := sha256.Sum256(data)

	sig, err := rsa.SignPKCS1v15(rand.Reader, privateKey, crypto.SHA256, digest[:])
	if err != nil {
		return nil, fmt.Errorf("signing data: %w", err)
	}

	return sig, nil
}

// Verify checks the signature was produced over the data by the private key
// matching the PEM encoded public key. Malformed keys and empty signatures
// are reported as ErrInvalidSignature.
func Verify(data []byte, publicKeyPEM []byte, sig []byte) error {
	if len(sig) == 0 {
		return fmt.Errorf("%w: missing signature", ErrInvalidSignature)
	}

	publicKey, err := DecodePublicKey(publicKeyPEM)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidSignature, err)
	}

	digest := sha256.Sum256(data)
	if err := rsa.VerifyPKCS1v15(publicKey, crypto.SHA256, digest[:], sig); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidSignature, err)
	}

	return nil
}

// =============================================================================

// EncodePublicKey returns the PEM encoding of the public key. These bytes
// are what a wallet registers and what its identifier is hashed from.
func EncodePublicKey(publicKey *rsa.PublicKey) []byte {
	block := pem.Block{
		Type:  publicKeyType,
		Bytes: x509.MarshalPKCS1PublicKey(publicKey),
	}

	return pem.EncodeToMemory(&block)
}

// DecodePublicKey parses a PEM encoded public key.
func DecodePublicKey(data []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(data)
	if block == nil || block.Type != publicKeyType {
		return nil, errors.New("no public key pem block found")
	}

	return x509.ParsePKCS1PublicKey(block.Bytes)
}

// EncodePrivateKey returns the PEM encoding of the private key.
func EncodePrivateKey(privateKey *rsa.PrivateKey) []byte {
	block := pem.Block{
		Type:  privateKeyType,
		Bytes: x509.MarshalPKCS1PrivateKey(privateKey),
	}

	return pem.EncodeToMemory(&block)
}

// DecodePrivateKey parses a PEM encoded private key.
func DecodePrivateKey(data []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil || block.Type != privateKeyType {
		return nil, errors.New("no private key pem block found")
	}

	return x509.ParsePKCS1PrivateKey(block.Bytes)
}

// LoadPrivateKey reads a PEM encoded private key from disk.
func LoadPrivateKey(path string) (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return DecodePrivateKey(data)
}

// SavePrivateKey writes the PEM encoded private key to disk with
// restrictive permissions.
func SavePrivateKey(path string, privateKey *rsa.PrivateKey) error {
	return os.WriteFile(path, EncodePrivateKey(privateKey), 0600)
}

// WalletID returns the identifier of the wallet owning the private key.
func WalletID(publicKey *rsa.PublicKey) ID {
	return Hash(EncodePublicKey(publicKey))
}
