package chain

import (
	"math/big"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"golang.org/x/xerrors"
)

// UserOperation is the ERC-4337 v0.6 operation. Field names match the
// handleOps tuple components so it packs directly.
type UserOperation struct {
	Sender               ethcommon.Address
	Nonce                *big.Int
	InitCode             []byte
	CallData             []byte
	CallGasLimit         *big.Int
	VerificationGasLimit *big.Int
	PreVerificationGas   *big.Int
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
	PaymasterAndData     []byte
	Signature            []byte
}

// Envelope is one call batch for the entry point.
type Envelope struct {
	EntryPoint  ethcommon.Address
	Beneficiary ethcommon.Address
	Ops         []UserOperation
}

// HandleOpsCalldata encodes handleOps(ops, beneficiary) for relaying the
// batch from an externally owned account.
func (e *Envelope) HandleOpsCalldata() ([]byte, error) {
	if len(e.Ops) == 0 {
		return nil, xerrors.New("empty envelope")
	}
	data, err := ContractABI.Pack(MethodHandleOps, e.Ops, e.Beneficiary)
	if err != nil {
		return nil, xerrors.Errorf("pack handleOps: %w", err)
	}
	return data, nil
}

// EncodeExecute encodes the account call execute(target, value, data).
func EncodeExecute(target ethcommon.Address, value *big.Int, data []byte) ([]byte, error) {
	if value == nil {
		value = new(big.Int)
	}
	if data == nil {
		data = []byte{}
	}
	out, err := ContractABI.Pack(MethodExecute, target, value, data)
	if err != nil {
		return nil, xerrors.Errorf("pack execute: %w", err)
	}
	return out, nil
}

// UserOperationRPC is the JSON form bundlers accept.
type UserOperationRPC struct {
	Sender               ethcommon.Address `json:"sender"`
	Nonce                *hexutil.Big      `json:"nonce"`
	InitCode             hexutil.Bytes     `json:"initCode"`
	CallData             hexutil.Bytes     `json:"callData"`
	CallGasLimit         *hexutil.Big      `json:"callGasLimit"`
	VerificationGasLimit *hexutil.Big      `json:"verificationGasLimit"`
	PreVerificationGas   *hexutil.Big      `json:"preVerificationGas"`
	MaxFeePerGas         *hexutil.Big      `json:"maxFeePerGas"`
	MaxPriorityFeePerGas *hexutil.Big      `json:"maxPriorityFeePerGas"`
	PaymasterAndData     hexutil.Bytes     `json:"paymasterAndData"`
	Signature            hexutil.Bytes     `json:"signature"`
}

func (op *UserOperation) RPC() UserOperationRPC {
	return UserOperationRPC{
		Sender:               op.Sender,
		Nonce:                hexBig(op.Nonce),
		InitCode:             nonNil(op.InitCode),
		CallData:             nonNil(op.CallData),
		CallGasLimit:         hexBig(op.CallGasLimit),
		VerificationGasLimit: hexBig(op.VerificationGasLimit),
		PreVerificationGas:   hexBig(op.PreVerificationGas),
		MaxFeePerGas:         hexBig(op.MaxFeePerGas),
		MaxPriorityFeePerGas: hexBig(op.MaxPriorityFeePerGas),
		PaymasterAndData:     nonNil(op.PaymasterAndData),
		Signature:            nonNil(op.Signature),
	}
}

func hexBig(v *big.Int) *hexutil.Big {
	if v == nil {
		v = new(big.Int)
	}
	return (*hexutil.Big)(new(big.Int).Set(v))
}

func nonNil(b []byte) hexutil.Bytes {
	if b == nil {
		return hexutil.Bytes{}
	}
	return b
}
