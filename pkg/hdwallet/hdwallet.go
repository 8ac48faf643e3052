// Package hdwallet derives the node's signing wallets from its master mnemonic.
//
// Every wallet lives on the non-hardened path m/0/0/{index}, so its address can
// be computed from the master extended public key alone while the signing key
// needs the mnemonic. Index 0 is the node's admin wallet.
package hdwallet

import (
	"crypto/ecdsa"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/tyler-smith/go-bip32"
	"github.com/tyler-smith/go-bip39"
)

const AdminWalletIndex uint32 = 0

var ErrInvalidMnemonic = errors.New("invalid mnemonic")

// MasterExtendedPublicKey returns the base58 xpub of the master node.
func MasterExtendedPublicKey(mnemonic string) (string, error) {
	master, err := masterKey(mnemonic)
	if err != nil {
		return "", err
	}
	return master.PublicKey().B58Serialize(), nil
}

// DeriveAddress returns the address of the wallet at index using only the
// master extended public key.
func DeriveAddress(xpub string, index uint32) (common.Address, error) {
	if index >= bip32.FirstHardenedChild {
		return common.Address{}, fmt.Errorf("wallet index %d is out of range", index)
	}

	master, err := bip32.B58Deserialize(xpub)
	if err != nil {
		return common.Address{}, fmt.Errorf("cannot parse extended public key: %w", err)
	}
	if master.IsPrivate {
		master = master.PublicKey()
	}

	child, err := derivePath(master, index)
	if err != nil {
		return common.Address{}, err
	}

	pub, err := crypto.DecompressPubkey(child.Key)
	if err != nil {
		return common.Address{}, fmt.Errorf("cannot decompress public key: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// DeriveSigningKey returns the private key of the wallet at index.
func DeriveSigningKey(mnemonic string, index uint32) (*ecdsa.PrivateKey, error) {
	if index >= bip32.FirstHardenedChild {
		return nil, fmt.Errorf("wallet index %d is out of range", index)
	}

	master, err := masterKey(mnemonic)
	if err != nil {
		return nil, err
	}

	child, err := derivePath(master, index)
	if err != nil {
		return nil, err
	}

	key, err := crypto.ToECDSA(child.Key)
	if err != nil {
		return nil, fmt.Errorf("cannot convert derived key: %w", err)
	}
	return key, nil
}

// ProviderID is the on-chain identity of the node: the keccak256 hash of the
// ABI encoded admin wallet address.
func ProviderID(xpub string) (common.Hash, error) {
	admin, err := DeriveAddress(xpub, AdminWalletIndex)
	if err != nil {
		return common.Hash{}, err
	}
	return crypto.Keccak256Hash(common.LeftPadBytes(admin.Bytes(), 32)), nil
}

func masterKey(mnemonic string) (*bip32.Key, error) {
	seed, err := bip39.NewSeedWithErrorChecking(mnemonic, "")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMnemonic, err)
	}

	master, err := bip32.NewMasterKey(seed)
	if err != nil {
		return nil, fmt.Errorf("cannot create master key: %w", err)
	}
	return master, nil
}

// derivePath walks m/0/0/{index} from the given master key, private or public.
func derivePath(master *bip32.Key, index uint32) (*bip32.Key, error) {
	key := master
	for _, idx := range []uint32{0, 0, index} {
		child, err := key.NewChildKey(idx)
		if err != nil {
			return nil, fmt.Errorf("derive child %d: %w", idx, err)
		}
		key = child
	}
	return key, nil
}
