package common

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
	"golang.org/x/xerrors"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusReady    Status = "ready"
	StatusExecuted Status = "executed"
)

func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusPending, StatusReady, StatusExecuted:
		return st, nil
	}
	return "", xerrors.Errorf("status %q: %w", s, ErrInvalidInput)
}

// CanTransition reports whether the state machine allows from -> to. Only
// single forward steps exist.
func (from Status) CanTransition(to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusReady
	case StatusReady:
		return to == StatusExecuted
	}
	return false
}

// MaxValueDigits bounds request values so they fit a DECIMAL(65,0) column.
const MaxValueDigits = 65

// RequestFields are the proposer supplied parts of a request.
type RequestFields struct {
	Target string
	Value  decimal.Decimal
	Data   []byte
	Reason string
	Note   string
}

type Request struct {
	Account   string          `json:"account"`
	Target    string          `json:"targetAddress"`
	Value     decimal.Decimal `json:"value"`
	Data      hexutil.Bytes   `json:"data"`
	Reason    string          `json:"reason"`
	Note      string          `json:"note"`
	Status    Status          `json:"status"`
	Threshold uint64          `json:"threshold"`
	Revision  uint64          `json:"revision"`
	CreatedAt time.Time       `json:"createdAt"`
}

type SignatureDetail struct {
	Signer    string        `json:"signerAddress"`
	Signature hexutil.Bytes `json:"signature"`
}

// AggregatedRequest is the read time composite of a request and the
// signatures collected for its revision.
type AggregatedRequest struct {
	Request
	CurrentSignatures int               `json:"currentSignatures"`
	ApprovedBy        []string          `json:"approvedBy"`
	Signatures        []SignatureDetail `json:"signatures"`
}

type OwnerRecord struct {
	Address         string   `json:"address"`
	Factory         string   `json:"factory"`
	OwnerOf         []string `json:"ownerOf"`
	DeployedAccount string   `json:"deployedAccount"`
}

var proposalArgs = mustArguments("address", "address", "uint256", "bytes32")

func mustArguments(types ...string) abi.Arguments {
	args := make(abi.Arguments, 0, len(types))
	for _, t := range types {
		typ, err := abi.NewType(t, "", nil)
		if err != nil {
			panic(err)
		}
		args = append(args, abi.Argument{Type: typ})
	}
	return args
}

// ProposalMessage is the digest owners sign:
// keccak256(abi.encode(account, target, value, keccak256(data))).
func ProposalMessage(account, target ethcommon.Address, value *big.Int, data []byte) ([]byte, error) {
	if value == nil {
		value = new(big.Int)
	}
	var dataHash [32]byte
	copy(dataHash[:], crypto.Keccak256(data))

	packed, err := proposalArgs.Pack(account, target, value, dataHash)
	if err != nil {
		return nil, xerrors.Errorf("pack proposal: %w", err)
	}
	return crypto.Keccak256(packed), nil
}

// Message returns the canonical signing message of r.
func (r *Request) Message() ([]byte, error) {
	account, err := ParseAddress(r.Account)
	if err != nil {
		return nil, err
	}
	target, err := ParseAddress(r.Target)
	if err != nil {
		return nil, err
	}
	return ProposalMessage(account, target, r.Value.BigInt(), r.Data)
}

type EventKind string

const (
	EventProposed         EventKind = "proposed"
	EventSigned           EventKind = "signed"
	EventStatusChanged    EventKind = "status_changed"
	EventOwnershipGranted EventKind = "ownership_granted"
)

// Event describes a state change for subscribers of the notify channel.
type Event struct {
	Kind     EventKind `json:"kind"`
	Account  string    `json:"account"`
	Status   Status    `json:"status,omitempty"`
	Revision uint64    `json:"revision,omitempty"`
	Signer   string    `json:"signer,omitempty"`
}
