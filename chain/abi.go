package chain

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// contractABI covers the methods the service calls on the shared account and
// on the ERC-4337 entry point (v0.6 layout).
const contractABI = `[
{"type":"function","name":"threshold","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"execute","stateMutability":"nonpayable","inputs":[{"name":"dest","type":"address"},{"name":"value","type":"uint256"},{"name":"func","type":"bytes"}],"outputs":[]},
{"type":"function","name":"getNonce","stateMutability":"view","inputs":[{"name":"sender","type":"address"},{"name":"key","type":"uint192"}],"outputs":[{"name":"nonce","type":"uint256"}]},
{"type":"function","name":"handleOps","stateMutability":"nonpayable","inputs":[{"name":"ops","type":"tuple[]","components":[
	{"name":"sender","type":"address"},
	{"name":"nonce","type":"uint256"},
	{"name":"initCode","type":"bytes"},
	{"name":"callData","type":"bytes"},
	{"name":"callGasLimit","type":"uint256"},
	{"name":"verificationGasLimit","type":"uint256"},
	{"name":"preVerificationGas","type":"uint256"},
	{"name":"maxFeePerGas","type":"uint256"},
	{"name":"maxPriorityFeePerGas","type":"uint256"},
	{"name":"paymasterAndData","type":"bytes"},
	{"name":"signature","type":"bytes"}]},{"name":"beneficiary","type":"address"}],"outputs":[]}
]`

const (
	MethodThreshold = "threshold"
	MethodExecute   = "execute"
	MethodGetNonce  = "getNonce"
	MethodHandleOps = "handleOps"
)

var ContractABI = mustParseABI(contractABI)

func mustParseABI(s string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic(err)
	}
	return parsed
}
