package chain

import (
	"context"
	"encoding/json"
	"math/big"
	"testing"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opencensus.io/stats/view"
	"golang.org/x/xerrors"
)

func selector(sig string) []byte {
	return crypto.Keccak256([]byte(sig))[:4]
}

func uint256Word(v int64) []byte {
	return ethcommon.LeftPadBytes(big.NewInt(v).Bytes(), 32)
}

func TestEncodeExecute(t *testing.T) {
	target := ethcommon.HexToAddress("0xbeef")
	data, err := EncodeExecute(target, big.NewInt(7), []byte{0xca, 0xfe})
	require.NoError(t, err)

	assert.Equal(t, selector("execute(address,uint256,bytes)"), data[:4])
	assert.Equal(t, ethcommon.LeftPadBytes(target.Bytes(), 32), data[4:36])
	assert.Equal(t, uint256Word(7), data[36:68])

	values, err := ContractABI.Methods[MethodExecute].Inputs.Unpack(data[4:])
	require.NoError(t, err)
	assert.Equal(t, []byte{0xca, 0xfe}, values[2])

	empty, err := EncodeExecute(target, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, selector("execute(address,uint256,bytes)"), empty[:4])
}

func TestHandleOpsCalldata(t *testing.T) {
	env := &Envelope{
		EntryPoint:  ethcommon.HexToAddress("0xe0"),
		Beneficiary: ethcommon.HexToAddress("0xbe"),
		Ops: []UserOperation{{
			Sender:               ethcommon.HexToAddress("0xa1"),
			Nonce:                big.NewInt(3),
			CallData:             []byte{0x01},
			CallGasLimit:         big.NewInt(1),
			VerificationGasLimit: big.NewInt(2),
			PreVerificationGas:   big.NewInt(3),
			MaxFeePerGas:         big.NewInt(4),
			MaxPriorityFeePerGas: big.NewInt(5),
			InitCode:             []byte{},
			PaymasterAndData:     []byte{},
			Signature:            []byte{0xaa, 0xbb},
		}},
	}

	data, err := env.HandleOpsCalldata()
	require.NoError(t, err)
	assert.Equal(t,
		selector("handleOps((address,uint256,bytes,bytes,uint256,uint256,uint256,uint256,uint256,bytes,bytes)[],address)"),
		data[:4])

	_, err = (&Envelope{}).HandleOpsCalldata()
	assert.Error(t, err)
}

func TestUserOperationRPCJSON(t *testing.T) {
	op := UserOperation{
		Sender: ethcommon.HexToAddress("0xa1"),
		Nonce:  big.NewInt(255),
	}
	raw, err := json.Marshal(op.RPC())
	require.NoError(t, err)

	var got map[string]string
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, "0xff", got["nonce"])
	assert.Equal(t, "0x0", got["callGasLimit"])
	assert.Equal(t, "0x", got["initCode"])
	assert.Equal(t, "0x", got["signature"])
	assert.True(t, ethcommon.IsHexAddress(got["sender"]))
	assert.Equal(t, ethcommon.HexToAddress("0xa1"), ethcommon.HexToAddress(got["sender"]))
}

func stubNode(t *testing.T, answer func(msg CallMsg) (hexutil.Bytes, error)) *NodeAPI {
	t.Helper()
	return &NodeAPI{
		Call: func(ctx context.Context, msg CallMsg, block string) (hexutil.Bytes, error) {
			assert.Equal(t, "latest", block)
			return answer(msg)
		},
		ChainId: func(ctx context.Context) (hexutil.Uint64, error) {
			return 11155111, nil
		},
	}
}

func TestReadThreshold(t *testing.T) {
	account := ethcommon.HexToAddress("0xa1")
	node := stubNode(t, func(msg CallMsg) (hexutil.Bytes, error) {
		assert.Equal(t, account, msg.To)
		assert.Equal(t, selector("threshold()"), []byte(msg.Data))
		return uint256Word(2), nil
	})
	c := NewRPCClient(node, &BundlerAPI{})

	threshold, err := ReadThreshold(context.Background(), c, account)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), threshold)

	id, err := c.ChainID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(11155111), id)
}

func TestReadNonce(t *testing.T) {
	entryPoint, account := ethcommon.HexToAddress("0xe0"), ethcommon.HexToAddress("0xa1")
	node := stubNode(t, func(msg CallMsg) (hexutil.Bytes, error) {
		assert.Equal(t, entryPoint, msg.To)
		assert.Equal(t, selector("getNonce(address,uint192)"), []byte(msg.Data[:4]))
		assert.Equal(t, ethcommon.LeftPadBytes(account.Bytes(), 32), []byte(msg.Data[4:36]))
		return uint256Word(42), nil
	})

	nonce, err := ReadNonce(context.Background(), NewRPCClient(node, &BundlerAPI{}), entryPoint, account)
	require.NoError(t, err)
	assert.Equal(t, int64(42), nonce.Int64())
}

func TestReadContractValueErrors(t *testing.T) {
	boom := xerrors.New("boom")
	c := NewRPCClient(stubNode(t, func(msg CallMsg) (hexutil.Bytes, error) {
		return nil, boom
	}), &BundlerAPI{})

	_, err := ReadThreshold(context.Background(), c, ethcommon.HexToAddress("0xa1"))
	assert.True(t, xerrors.Is(err, boom))

	_, err = c.ReadContractValue(context.Background(), ethcommon.HexToAddress("0xa1"), "nope")
	assert.Error(t, err)

	short := NewRPCClient(stubNode(t, func(msg CallMsg) (hexutil.Bytes, error) {
		return hexutil.Bytes{0x01}, nil
	}), &BundlerAPI{})
	_, err = ReadThreshold(context.Background(), short, ethcommon.HexToAddress("0xa1"))
	assert.Error(t, err)
}

func TestSubmitTransaction(t *testing.T) {
	entryPoint := ethcommon.HexToAddress("0xe0")
	var sent UserOperationRPC
	bundler := &BundlerAPI{
		SendUserOperation: func(ctx context.Context, op UserOperationRPC, ep ethcommon.Address) (string, error) {
			assert.Equal(t, entryPoint, ep)
			sent = op
			return "0xhash", nil
		},
	}
	c := NewRPCClient(&NodeAPI{}, bundler)

	op := UserOperation{Sender: ethcommon.HexToAddress("0xa1"), Nonce: big.NewInt(1), Signature: []byte{0x01, 0x02}}
	hash, err := c.SubmitTransaction(context.Background(), &Envelope{EntryPoint: entryPoint, Ops: []UserOperation{op}})
	require.NoError(t, err)
	assert.Equal(t, "0xhash", hash)
	assert.Equal(t, hexutil.Bytes{0x01, 0x02}, sent.Signature)

	_, err = c.SubmitTransaction(context.Background(), &Envelope{EntryPoint: entryPoint})
	assert.Error(t, err)
}

func TestProxyRecordsDuration(t *testing.T) {
	require.NoError(t, view.Register(DefaultViews...))
	defer view.Unregister(DefaultViews...)

	raw := stubNode(t, func(msg CallMsg) (hexutil.Bytes, error) {
		return uint256Word(1), nil
	})
	var node NodeAPI
	Proxy(raw, &node)

	threshold, err := ReadThreshold(context.Background(), NewRPCClient(&node, &BundlerAPI{}), ethcommon.HexToAddress("0xa1"))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), threshold)

	rows, err := view.RetrieveData(RPCRequestDurationView.Name)
	require.NoError(t, err)
	require.NotEmpty(t, rows)
	found := false
	for _, row := range rows {
		for _, tg := range row.Tags {
			if tg.Key == Endpoint && tg.Value == "Call" {
				found = true
			}
		}
	}
	assert.True(t, found)
}

func TestEndpointURL(t *testing.T) {
	cases := map[string]string{
		"http://127.0.0.1:8545":             "http://127.0.0.1:8545",
		"/ip4/127.0.0.1/tcp/8545/http":      "http://127.0.0.1:8545",
		"/ip4/127.0.0.1/tcp/8546/ws":        "ws://127.0.0.1:8546",
		"/dns4/bundler.local/tcp/443/https": "https://bundler.local:443",
	}
	for in, want := range cases {
		got, err := EndpointURL(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := EndpointURL("")
	assert.Error(t, err)
	_, err = EndpointURL("/ip4/not-an-ip")
	assert.Error(t, err)
}
