package cards

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

var (
	// ErrVaultSealFailed indicates card details could not be encrypted.
	ErrVaultSealFailed = errors.New("card vault: seal failed")
	// ErrVaultOpenFailed indicates a stored blob could not be decrypted,
	// usually because the key material does not match.
	ErrVaultOpenFailed = errors.New("card vault: open failed")
)

const (
	vaultKeyIterations = 4096
	vaultKeyLength     = 32
	vaultNonceLength   = 12
)

// CardDetails is the sensitive portion of a charge request. It only ever
// exists in memory and inside sealed vault blobs.
type CardDetails struct {
	Number      string `json:"number"`
	CVV         string `json:"cvv"`
	ExpiryMonth string `json:"expiry_month"`
	ExpiryYear  string `json:"expiry_year"`
}

// Fingerprint is the non-sensitive card summary safe to persist and
// return to merchants.
type Fingerprint struct {
	Bin   string `json:"bin"`
	Last4 string `json:"last4"`
	Brand string `json:"brand"`
}

// Fingerprint derives the persistable summary from the full details.
func (d CardDetails) Fingerprint(brand string) Fingerprint {
	fp := Fingerprint{Brand: brand}
	if len(d.Number) >= 6 {
		fp.Bin = d.Number[:6]
	}
	if len(d.Number) >= 4 {
		fp.Last4 = d.Number[len(d.Number)-4:]
	}
	return fp
}

// Vault seals card details into AES-256-GCM blobs. The key is derived
// per transaction from the payment reference and a deployment-wide
// pepper, so a leaked database alone cannot open any blob.
type Vault struct {
	pepper []byte
}

func NewVault(pepper string) *Vault {
	return &Vault{pepper: []byte(pepper)}
}

func (v *Vault) deriveKey(reference string) []byte {
	return pbkdf2.Key([]byte(reference), v.pepper, vaultKeyIterations, vaultKeyLength, sha256.New)
}

// Seal encrypts card details under a key derived from reference. The
// returned blob is nonce||ciphertext.
func (v *Vault) Seal(reference string, details CardDetails) ([]byte, error) {
	plaintext, err := json.Marshal(details)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVaultSealFailed, err)
	}

	gcm, err := v.aead(reference)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, vaultNonceLength)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVaultSealFailed, err)
	}

	return gcm.Seal(nonce, nonce, plaintext, []byte(reference)), nil
}

// Open decrypts a blob previously produced by Seal for the same reference.
func (v *Vault) Open(reference string, blob []byte) (CardDetails, error) {
	var details CardDetails

	gcm, err := v.aead(reference)
	if err != nil {
		return details, err
	}
	if len(blob) < vaultNonceLength {
		return details, ErrVaultOpenFailed
	}

	nonce, ciphertext := blob[:vaultNonceLength], blob[vaultNonceLength:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, []byte(reference))
	if err != nil {
		return details, fmt.Errorf("%w: %v", ErrVaultOpenFailed, err)
	}
	if err := json.Unmarshal(plaintext, &details); err != nil {
		return details, fmt.Errorf("%w: %v", ErrVaultOpenFailed, err)
	}
	return details, nil
}

func (v *Vault) aead(reference string) (cipher.AEAD, error) {
	block, err := aes.NewCipher(v.deriveKey(reference))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVaultSealFailed, err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVaultSealFailed, err)
	}
	return gcm, nil
}
