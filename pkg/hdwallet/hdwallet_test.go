package hdwallet

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testMnemonic = "achieve climb couple wait accident symbol spy blouse reduce foil echo label"
	testXpub     = "xpub661MyMwAqRbcGeCE1g3KTUVGZsFDE3jMNinRPGCQGQsAp1nwinB9Pi16ihKPJw7qtaaTFuBHbRPeSc6w3AcMjxiHkAPfyp1hqQRbthv4Ryx"
)

func TestMasterExtendedPublicKey(t *testing.T) {
	xpub, err := MasterExtendedPublicKey(testMnemonic)
	require.NoError(t, err)
	assert.Equal(t, testXpub, xpub)
}

func TestDeriveAddressGoldenVectors(t *testing.T) {
	tests := []struct {
		index   uint32
		address string
	}{
		{1, "0xBff368EaD703f07fC6C9585e25d9755A47361562"},
		{777, "0x36c6c96d0ce55c37613a8acA1D895B923C557FA4"},
	}

	for _, tt := range tests {
		address, err := DeriveAddress(testXpub, tt.index)
		require.NoError(t, err)
		assert.Equal(t, common.HexToAddress(tt.address), address, "index %d", tt.index)
	}
}

func TestDeriveSigningKeyMatchesAddress(t *testing.T) {
	for _, index := range []uint32{0, 1, 777} {
		key, err := DeriveSigningKey(testMnemonic, index)
		require.NoError(t, err)

		address, err := DeriveAddress(testXpub, index)
		require.NoError(t, err)

		assert.Equal(t, address, crypto.PubkeyToAddress(key.PublicKey), "index %d", index)
	}
}

func TestDeriveRejectsHardenedIndex(t *testing.T) {
	_, err := DeriveAddress(testXpub, 1<<31)
	assert.Error(t, err)

	_, err = DeriveSigningKey(testMnemonic, 1<<31)
	assert.Error(t, err)
}

func TestInvalidInputs(t *testing.T) {
	_, err := MasterExtendedPublicKey("not a valid mnemonic")
	assert.ErrorIs(t, err, ErrInvalidMnemonic)

	_, err = DeriveAddress("xpub-garbage", 1)
	assert.Error(t, err)
}

func TestProviderIDIsStable(t *testing.T) {
	first, err := ProviderID(testXpub)
	require.NoError(t, err)
	second, err := ProviderID(testXpub)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.NotEqual(t, common.Hash{}, first)
}
