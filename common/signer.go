package common

import (
	"crypto/ecdsa"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/xerrors"
)

// Signer produces a signature over a message. The service never holds keys,
// implementations live with the owners' wallets.
type Signer interface {
	Address() string
	Sign(message []byte) ([]byte, error)
}

// KeySigner signs with an in-memory key using the EIP-191 personal message
// prefix, which is what browser wallets do for signMessage. Used by the
// message command and tests.
type KeySigner struct {
	key *ecdsa.PrivateKey
}

func NewKeySigner(hexKey string) (*KeySigner, error) {
	if len(hexKey) > 1 && (hexKey[:2] == "0x" || hexKey[:2] == "0X") {
		hexKey = hexKey[2:]
	}
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, xerrors.Errorf("load key: %w", err)
	}
	return &KeySigner{key: key}, nil
}

func (s *KeySigner) Address() string {
	return crypto.PubkeyToAddress(s.key.PublicKey).Hex()
}

func (s *KeySigner) Sign(message []byte) ([]byte, error) {
	sig, err := crypto.Sign(accounts.TextHash(message), s.key)
	if err != nil {
		return nil, err
	}
	sig[crypto.RecoveryIDOffset] += 27
	return sig, nil
}
