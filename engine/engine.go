package engine

import (
	"context"
	"time"

	logging "github.com/ipfs/go-log/v2"

	"github.com/rqzrqh/multisig_coordinator/chain"
	"github.com/rqzrqh/multisig_coordinator/common"
	"github.com/rqzrqh/multisig_coordinator/dao"
)

var log = logging.Logger("engine")

const DefaultChainTimeout = 10 * time.Second

// SettleTimeout bounds store writes that follow an irreversible step and so
// run detached from the caller's context.
const SettleTimeout = 10 * time.Second

type Config struct {
	// ChainTimeout bounds each contract read.
	ChainTimeout time.Duration
	// RejectActiveOverwrite makes a proposal fail with ErrConflict while the
	// account still has a pending or ready request.
	RejectActiveOverwrite bool
}

type RegistryStore interface {
	LinkOwnerToFactory(ctx context.Context, owner, factory, account string) (*common.OwnerRecord, error)
	GrantOwnership(ctx context.Context, account string, owners []string) ([]string, error)
	Lookup(ctx context.Context, owner string) (*common.OwnerRecord, error)
	AccountExists(ctx context.Context, account string) (bool, error)
	IsOwnerOf(ctx context.Context, owner, account string) (bool, error)
}

type RequestStore interface {
	CreateOrReplace(ctx context.Context, account string, fields common.RequestFields, threshold uint64) (*common.Request, error)
	GetRequest(ctx context.Context, account string) (*common.Request, error)
	GetByAccounts(ctx context.Context, accounts []string) ([]*common.Request, error)
	TransitionStatus(ctx context.Context, account string, revision uint64, from, to common.Status) error
}

type SignatureStore interface {
	AddSignature(ctx context.Context, account string, revision uint64, signer string, signature []byte) error
	CountAndList(ctx context.Context, account string, revision uint64) (int, []common.SignatureDetail, error)
}

// Notifier publishes state changes. Failures are logged and never roll back
// the change that produced the event.
type Notifier interface {
	Notify(ctx context.Context, ev common.Event) error
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, common.Event) error { return nil }

// NopNotifier drops every event.
var NopNotifier Notifier = nopNotifier{}

// Engine enforces the ownership and threshold rules over the stores. Every
// mutation of an account's request runs under that account's lock, mutations
// of an owner record run under the owner's lock.
type Engine struct {
	cfg        Config
	registry   RegistryStore
	requests   RequestStore
	signatures SignatureStore
	client     chain.Client
	locker     dao.Locker
	notifier   Notifier
}

func NewEngine(cfg Config, registry RegistryStore, requests RequestStore, signatures SignatureStore, client chain.Client, locker dao.Locker, notifier Notifier) *Engine {
	if cfg.ChainTimeout <= 0 {
		cfg.ChainTimeout = DefaultChainTimeout
	}
	if notifier == nil {
		notifier = NopNotifier
	}
	return &Engine{
		cfg:        cfg,
		registry:   registry,
		requests:   requests,
		signatures: signatures,
		client:     client,
		locker:     locker,
		notifier:   notifier,
	}
}

func (e *Engine) notify(ctx context.Context, ev common.Event) {
	if err := e.notifier.Notify(ctx, ev); err != nil {
		log.Warnw("notify failed", "kind", ev.Kind, "account", ev.Account, "err", err)
	}
}

// aggregate attaches the signatures collected for req's revision.
func (e *Engine) aggregate(ctx context.Context, req *common.Request) (*common.AggregatedRequest, error) {
	count, sigs, err := e.signatures.CountAndList(ctx, req.Account, req.Revision)
	if err != nil {
		return nil, err
	}
	approved := make([]string, 0, len(sigs))
	for _, s := range sigs {
		approved = append(approved, s.Signer)
	}
	return &common.AggregatedRequest{
		Request:           *req,
		CurrentSignatures: count,
		ApprovedBy:        approved,
		Signatures:        sigs,
	}, nil
}
