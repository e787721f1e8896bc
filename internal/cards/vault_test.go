package cards

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testCard = CardDetails{
	Number:      "4084084084084081",
	CVV:         "408",
	ExpiryMonth: "09",
	ExpiryYear:  "2030",
}

func TestVault_SealOpen(t *testing.T) {
	v := NewVault("unit-test-pepper")

	blob, err := v.Seal("TXN_SEAL01", testCard)
	require.NoError(t, err)
	assert.NotContains(t, string(blob), testCard.Number)
	assert.NotContains(t, string(blob), testCard.CVV)

	opened, err := v.Open("TXN_SEAL01", blob)
	require.NoError(t, err)
	assert.Equal(t, testCard, opened)
}

func TestVault_OpenWrongReference(t *testing.T) {
	v := NewVault("unit-test-pepper")

	blob, err := v.Seal("TXN_SEAL01", testCard)
	require.NoError(t, err)

	_, err = v.Open("TXN_SEAL02", blob)
	assert.ErrorIs(t, err, ErrVaultOpenFailed)
}

func TestVault_OpenWrongPepper(t *testing.T) {
	blob, err := NewVault("pepper-a").Seal("TXN_SEAL01", testCard)
	require.NoError(t, err)

	_, err = NewVault("pepper-b").Open("TXN_SEAL01", blob)
	assert.ErrorIs(t, err, ErrVaultOpenFailed)
}

func TestVault_OpenTamperedBlob(t *testing.T) {
	v := NewVault("unit-test-pepper")

	blob, err := v.Seal("TXN_SEAL01", testCard)
	require.NoError(t, err)
	blob[len(blob)-1] ^= 0xFF

	_, err = v.Open("TXN_SEAL01", blob)
	assert.ErrorIs(t, err, ErrVaultOpenFailed)
}

func TestVault_OpenTruncatedBlob(t *testing.T) {
	v := NewVault("unit-test-pepper")

	_, err := v.Open("TXN_SEAL01", []byte{0x01, 0x02})
	assert.ErrorIs(t, err, ErrVaultOpenFailed)
}

func TestVault_DistinctBlobsPerSeal(t *testing.T) {
	v := NewVault("unit-test-pepper")

	a, err := v.Seal("TXN_SEAL01", testCard)
	require.NoError(t, err)
	b, err := v.Seal("TXN_SEAL01", testCard)
	require.NoError(t, err)

	// random nonce per seal
	assert.NotEqual(t, a, b)
}

func TestCardDetails_Fingerprint(t *testing.T) {
	fp := testCard.Fingerprint("visa")
	assert.Equal(t, "408408", fp.Bin)
	assert.Equal(t, "4081", fp.Last4)
	assert.Equal(t, "visa", fp.Brand)

	short := CardDetails{Number: "40"}
	fp = short.Fingerprint("")
	assert.Empty(t, fp.Bin)
	assert.Empty(t, fp.Last4)
}
