// Package chaintest provides an in-memory chain.Client for tests.
package chaintest

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"golang.org/x/xerrors"

	"github.com/rqzrqh/multisig_coordinator/chain"
)

// Client answers threshold() and getNonce() from maps and records every
// submitted envelope.
type Client struct {
	mu         sync.Mutex
	thresholds map[ethcommon.Address]uint64
	nonces     map[ethcommon.Address]*big.Int
	submitted  []*chain.Envelope

	ReadErr   error
	SubmitErr error
}

func NewClient() *Client {
	return &Client{
		thresholds: make(map[ethcommon.Address]uint64),
		nonces:     make(map[ethcommon.Address]*big.Int),
	}
}

func (c *Client) SetThreshold(account ethcommon.Address, threshold uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.thresholds[account] = threshold
}

func (c *Client) SetNonce(account ethcommon.Address, nonce int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nonces[account] = big.NewInt(nonce)
}

func (c *Client) Submitted() []*chain.Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*chain.Envelope(nil), c.submitted...)
}

func (c *Client) ReadContractValue(ctx context.Context, contract ethcommon.Address, method string, args ...interface{}) ([]interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ReadErr != nil {
		return nil, c.ReadErr
	}

	switch method {
	case chain.MethodThreshold:
		t, ok := c.thresholds[contract]
		if !ok {
			return nil, xerrors.Errorf("execution reverted: no contract at %s", contract.Hex())
		}
		return []interface{}{new(big.Int).SetUint64(t)}, nil
	case chain.MethodGetNonce:
		account, ok := args[0].(ethcommon.Address)
		if !ok {
			return nil, xerrors.Errorf("getNonce: bad sender %T", args[0])
		}
		nonce, ok := c.nonces[account]
		if !ok {
			nonce = new(big.Int)
		}
		return []interface{}{new(big.Int).Set(nonce)}, nil
	}
	return nil, xerrors.Errorf("method %s not supported", method)
}

func (c *Client) SubmitTransaction(ctx context.Context, env *chain.Envelope) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.SubmitErr != nil {
		return "", c.SubmitErr
	}
	c.submitted = append(c.submitted, env)
	return fmt.Sprintf("0x%064x", len(c.submitted)), nil
}

var _ chain.Client = (*Client)(nil)
