package executor

import (
	"context"
	"math/big"
	"sort"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/params"
	logging "github.com/ipfs/go-log/v2"
	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"

	"github.com/rqzrqh/multisig_coordinator/chain"
	"github.com/rqzrqh/multisig_coordinator/common"
	"github.com/rqzrqh/multisig_coordinator/dao"
	"github.com/rqzrqh/multisig_coordinator/engine"
)

var log = logging.Logger("executor")

// Config holds the static gas parameters of every user operation. Limits are
// not estimated.
type Config struct {
	EntryPoint           ethcommon.Address
	Beneficiary          ethcommon.Address
	CallGasLimit         uint64
	VerificationGasLimit uint64
	PreVerificationGas   uint64
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
	ChainTimeout         time.Duration
}

func DefaultConfig() Config {
	return Config{
		CallGasLimit:         200_000,
		VerificationGasLimit: 500_000,
		PreVerificationGas:   60_000,
		MaxFeePerGas:         new(big.Int).Mul(big.NewInt(30), big.NewInt(params.GWei)),
		MaxPriorityFeePerGas: new(big.Int).Mul(big.NewInt(2), big.NewInt(params.GWei)),
		ChainTimeout:         30 * time.Second,
	}
}

type Result struct {
	Account  string `json:"account"`
	Revision uint64 `json:"revision"`
	Hash     string `json:"transactionHash"`
}

type Executor struct {
	cfg        Config
	requests   engine.RequestStore
	signatures engine.SignatureStore
	client     chain.Client
	locker     dao.Locker
	notifier   engine.Notifier

	inflight atomic.Int64
}

func NewExecutor(cfg Config, requests engine.RequestStore, signatures engine.SignatureStore, client chain.Client, locker dao.Locker, notifier engine.Notifier) *Executor {
	def := DefaultConfig()
	if cfg.ChainTimeout <= 0 {
		cfg.ChainTimeout = def.ChainTimeout
	}
	if cfg.MaxFeePerGas == nil {
		cfg.MaxFeePerGas = def.MaxFeePerGas
	}
	if cfg.MaxPriorityFeePerGas == nil {
		cfg.MaxPriorityFeePerGas = def.MaxPriorityFeePerGas
	}
	if notifier == nil {
		notifier = engine.NopNotifier
	}
	if cfg.Beneficiary == (ethcommon.Address{}) {
		log.Warn("no beneficiary configured, bundler refunds go to the zero address")
	}
	return &Executor{
		cfg:        cfg,
		requests:   requests,
		signatures: signatures,
		client:     client,
		locker:     locker,
		notifier:   notifier,
	}
}

// InFlight is the number of Execute calls currently running.
func (x *Executor) InFlight() int64 {
	return x.inflight.Load()
}

// Execute submits the ready request of account as a single user operation
// and marks it executed. On any chain error the request stays ready.
func (x *Executor) Execute(ctx context.Context, account string) (*Result, error) {
	addr, err := common.ParseAddress(account)
	if err != nil {
		return nil, err
	}
	account = addr.Hex()

	x.inflight.Inc()
	defer x.inflight.Dec()

	unlock, err := x.locker.Lock(ctx, dao.AccountLockKey(account))
	if err != nil {
		return nil, err
	}
	defer unlock()

	req, err := x.requests.GetRequest(ctx, account)
	if err != nil {
		return nil, err
	}
	if req.Status != common.StatusReady {
		return nil, xerrors.Errorf("request of %s is %s: %w", account, req.Status, common.ErrInvalidTransition)
	}

	var (
		nonce *big.Int
		sigs  []common.SignatureDetail
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		cctx, cancel := context.WithTimeout(gctx, x.cfg.ChainTimeout)
		defer cancel()
		n, err := chain.ReadNonce(cctx, x.client, x.cfg.EntryPoint, addr)
		if err != nil {
			return common.ExecutionFailed("read nonce", err)
		}
		nonce = n
		return nil
	})
	g.Go(func() error {
		_, list, err := x.signatures.CountAndList(gctx, account, req.Revision)
		sigs = list
		return err
	})
	if err := g.Wait(); err != nil {
		log.Errorw("prepare execution failed", "account", account, "err", err)
		return nil, err
	}

	env, err := x.buildEnvelope(req, addr, nonce, sigs)
	if err != nil {
		return nil, err
	}

	cctx, cancel := context.WithTimeout(ctx, x.cfg.ChainTimeout)
	hash, err := x.client.SubmitTransaction(cctx, env)
	cancel()
	if err != nil {
		log.Errorw("submit failed", "account", account, "revision", req.Revision, "err", err)
		return nil, common.ExecutionFailed("submit", err)
	}

	// The operation is on chain. Record it even if the caller has gone away,
	// otherwise a retry would submit it again.
	sctx, scancel := context.WithTimeout(context.Background(), engine.SettleTimeout)
	defer scancel()

	if err := x.requests.TransitionStatus(sctx, account, req.Revision, common.StatusReady, common.StatusExecuted); err != nil {
		log.Errorw("submitted but status not updated", "account", account, "hash", hash, "err", err)
		return nil, err
	}
	log.Infow("request executed", "account", account, "revision", req.Revision, "nonce", nonce, "signatures", len(sigs), "hash", hash)
	if err := x.notifier.Notify(sctx, common.Event{Kind: common.EventStatusChanged, Account: account, Status: common.StatusExecuted, Revision: req.Revision}); err != nil {
		log.Warnw("notify failed", "account", account, "err", err)
	}

	return &Result{Account: account, Revision: req.Revision, Hash: hash}, nil
}

func (x *Executor) buildEnvelope(req *common.Request, sender ethcommon.Address, nonce *big.Int, sigs []common.SignatureDetail) (*chain.Envelope, error) {
	target, err := common.ParseAddress(req.Target)
	if err != nil {
		return nil, err
	}
	callData, err := chain.EncodeExecute(target, req.Value.BigInt(), req.Data)
	if err != nil {
		return nil, err
	}

	op := chain.UserOperation{
		Sender:               sender,
		Nonce:                nonce,
		InitCode:             []byte{},
		CallData:             callData,
		CallGasLimit:         new(big.Int).SetUint64(x.cfg.CallGasLimit),
		VerificationGasLimit: new(big.Int).SetUint64(x.cfg.VerificationGasLimit),
		PreVerificationGas:   new(big.Int).SetUint64(x.cfg.PreVerificationGas),
		MaxFeePerGas:         new(big.Int).Set(x.cfg.MaxFeePerGas),
		MaxPriorityFeePerGas: new(big.Int).Set(x.cfg.MaxPriorityFeePerGas),
		PaymasterAndData:     []byte{},
		Signature:            AggregateSignatures(sigs),
	}
	return &chain.Envelope{
		EntryPoint:  x.cfg.EntryPoint,
		Beneficiary: x.cfg.Beneficiary,
		Ops:         []chain.UserOperation{op},
	}, nil
}

// AggregateSignatures concatenates signatures ordered by signer address,
// compared case-insensitively. The account contract recovers signers in the
// same order and rejects anything else.
func AggregateSignatures(sigs []common.SignatureDetail) []byte {
	sorted := append([]common.SignatureDetail(nil), sigs...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return common.AddressLess(sorted[i].Signer, sorted[j].Signer)
	})

	n := 0
	for _, s := range sorted {
		n += len(s.Signature)
	}
	out := make([]byte, 0, n)
	for _, s := range sorted {
		out = append(out, s.Signature...)
	}
	return out
}
