package chain

import (
	"context"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/filecoin-project/go-jsonrpc"
	logging "github.com/ipfs/go-log/v2"
	"golang.org/x/xerrors"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

var log = logging.Logger("chain")

// Client is what the coordinator needs from the chain: contract reads and
// submission of an execution envelope.
type Client interface {
	ReadContractValue(ctx context.Context, contract ethcommon.Address, method string, args ...interface{}) ([]interface{}, error)
	SubmitTransaction(ctx context.Context, env *Envelope) (string, error)
}

type CallMsg struct {
	To   ethcommon.Address `json:"to"`
	Data hexutil.Bytes     `json:"data"`
}

// NodeAPI is the subset of the eth namespace read from a node.
type NodeAPI struct {
	Call    func(ctx context.Context, msg CallMsg, block string) (hexutil.Bytes, error) `rpc_method:"eth_call"`
	ChainId func(ctx context.Context) (hexutil.Uint64, error)                           `rpc_method:"eth_chainId"`
}

// BundlerAPI is the ERC-4337 bundler endpoint.
type BundlerAPI struct {
	SendUserOperation func(ctx context.Context, op UserOperationRPC, entryPoint ethcommon.Address) (string, error) `rpc_method:"eth_sendUserOperation"`
}

// RPCClient implements Client over JSON-RPC: reads go to a node, envelopes to
// a bundler.
type RPCClient struct {
	node    *NodeAPI
	bundler *BundlerAPI
}

func NewRPCClient(node *NodeAPI, bundler *BundlerAPI) *RPCClient {
	return &RPCClient{
		node:    node,
		bundler: bundler,
	}
}

// Dial connects to node and bundler. Both endpoints accept URLs or
// multiaddrs. An empty bundler address means the node also serves the
// bundler methods. Every call is timed through Proxy.
func Dial(ctx context.Context, nodeAddr, bundlerAddr, bundlerToken string) (*RPCClient, jsonrpc.ClientCloser, error) {
	if bundlerAddr == "" {
		bundlerAddr = nodeAddr
	}
	nodeURL, err := EndpointURL(nodeAddr)
	if err != nil {
		return nil, nil, xerrors.Errorf("node endpoint: %w", err)
	}
	bundlerURL, err := EndpointURL(bundlerAddr)
	if err != nil {
		return nil, nil, xerrors.Errorf("bundler endpoint: %w", err)
	}

	var rawNode NodeAPI
	nodeCloser, err := jsonrpc.NewMergeClient(ctx, nodeURL, "eth", []interface{}{&rawNode}, emptyHeaders())
	if err != nil {
		return nil, nil, xerrors.Errorf("dial node: %w", err)
	}

	var rawBundler BundlerAPI
	bundlerCloser, err := jsonrpc.NewMergeClient(ctx, bundlerURL, "eth", []interface{}{&rawBundler}, tokenHeaders(bundlerToken))
	if err != nil {
		nodeCloser()
		return nil, nil, xerrors.Errorf("dial bundler: %w", err)
	}

	var node NodeAPI
	Proxy(&rawNode, &node)
	var bundler BundlerAPI
	Proxy(&rawBundler, &bundler)

	closer := func() {
		nodeCloser()
		bundlerCloser()
	}
	return NewRPCClient(&node, &bundler), closer, nil
}

func (c *RPCClient) ChainID(ctx context.Context) (uint64, error) {
	id, err := c.node.ChainId(ctx)
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

func (c *RPCClient) ReadContractValue(ctx context.Context, contract ethcommon.Address, method string, args ...interface{}) ([]interface{}, error) {
	input, err := ContractABI.Pack(method, args...)
	if err != nil {
		return nil, xerrors.Errorf("pack %s: %w", method, err)
	}

	out, err := c.node.Call(ctx, CallMsg{To: contract, Data: input}, "latest")
	if err != nil {
		log.Warnw("eth_call failed", "contract", contract.Hex(), "method", method, "err", err)
		return nil, xerrors.Errorf("call %s on %s: %w", method, contract.Hex(), err)
	}

	values, err := ContractABI.Unpack(method, out)
	if err != nil {
		return nil, xerrors.Errorf("unpack %s: %w", method, err)
	}
	return values, nil
}

func (c *RPCClient) SubmitTransaction(ctx context.Context, env *Envelope) (string, error) {
	if len(env.Ops) != 1 {
		return "", xerrors.Errorf("bundler takes one operation per call, got %d", len(env.Ops))
	}

	hash, err := c.bundler.SendUserOperation(ctx, env.Ops[0].RPC(), env.EntryPoint)
	if err != nil {
		log.Warnw("eth_sendUserOperation failed", "sender", env.Ops[0].Sender.Hex(), "err", err)
		return "", xerrors.Errorf("send user operation: %w", err)
	}
	log.Infow("user operation submitted", "sender", env.Ops[0].Sender.Hex(), "hash", hash)
	return hash, nil
}

// ReadThreshold reads threshold() from the account.
func ReadThreshold(ctx context.Context, c Client, account ethcommon.Address) (uint64, error) {
	values, err := c.ReadContractValue(ctx, account, MethodThreshold)
	if err != nil {
		return 0, err
	}
	v, err := firstBig(values)
	if err != nil {
		return 0, xerrors.Errorf("threshold: %w", err)
	}
	if !v.IsUint64() {
		return 0, xerrors.Errorf("threshold %s overflows", v)
	}
	return v.Uint64(), nil
}

// ReadNonce reads the account's sequential nonce (key 0) from the entry point.
func ReadNonce(ctx context.Context, c Client, entryPoint, account ethcommon.Address) (*big.Int, error) {
	values, err := c.ReadContractValue(ctx, entryPoint, MethodGetNonce, account, new(big.Int))
	if err != nil {
		return nil, err
	}
	v, err := firstBig(values)
	if err != nil {
		return nil, xerrors.Errorf("nonce: %w", err)
	}
	return v, nil
}

func firstBig(values []interface{}) (*big.Int, error) {
	if len(values) != 1 {
		return nil, xerrors.Errorf("expected one value, got %d", len(values))
	}
	v, ok := values[0].(*big.Int)
	if !ok || v == nil {
		return nil, xerrors.Errorf("unexpected type %T", values[0])
	}
	return v, nil
}

func tokenHeaders(token string) http.Header {
	headers := http.Header{}
	if token != "" {
		headers.Add("Authorization", "Bearer "+token)
	}
	return headers
}

func emptyHeaders() http.Header {
	headers := http.Header{}
	return headers
}
