package engine

import (
	"bytes"
	"context"

	"golang.org/x/xerrors"

	"github.com/rqzrqh/multisig_coordinator/common"
	"github.com/rqzrqh/multisig_coordinator/dao"
)

// SubmitSignature stores an owner's signature for the active request of an
// account and moves the request to ready when the threshold is reached. The
// returned view reflects the request after the signature was counted.
func (e *Engine) SubmitSignature(ctx context.Context, msg *SubmitSignatureMsg) (*common.AggregatedRequest, error) {
	s, err := msg.parse()
	if err != nil {
		return nil, err
	}

	exists, err := e.registry.AccountExists(ctx, s.account)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, xerrors.Errorf("account %s: %w", s.account, common.ErrUnknownAccount)
	}
	isOwner, err := e.registry.IsOwnerOf(ctx, s.signer, s.account)
	if err != nil {
		return nil, err
	}
	if !isOwner {
		return nil, xerrors.Errorf("%s of %s: %w", s.signer, s.account, common.ErrNotAnOwner)
	}

	unlock, err := e.locker.Lock(ctx, dao.AccountLockKey(s.account))
	if err != nil {
		return nil, err
	}
	defer unlock()

	req, err := e.requests.GetRequest(ctx, s.account)
	if err != nil {
		return nil, err
	}
	if req.Status == common.StatusExecuted {
		return nil, xerrors.Errorf("request of %s already executed: %w", s.account, common.ErrInvalidTransition)
	}
	if len(s.message) > 0 {
		expected, err := req.Message()
		if err != nil {
			return nil, err
		}
		if !bytes.Equal(expected, s.message) {
			return nil, xerrors.Errorf("revision %d of %s: %w", req.Revision, s.account, common.ErrMessageMismatch)
		}
	}

	err = e.signatures.AddSignature(ctx, s.account, req.Revision, s.signer, s.signature)
	duplicate := xerrors.Is(err, common.ErrDuplicate)
	if err != nil && !duplicate {
		return nil, err
	}

	// The signature is committed. Counting and promotion must not be cut
	// short by the caller going away, and a retry that hits the stored
	// signature finishes what an interrupted call left undone.
	sctx, cancel := context.WithTimeout(context.Background(), SettleTimeout)
	defer cancel()

	if duplicate {
		if req.Status == common.StatusPending {
			if _, serr := e.settle(sctx, req); serr != nil {
				log.Warnw("recount after duplicate failed", "account", s.account, "err", serr)
			}
		}
		return nil, err
	}

	e.notify(sctx, common.Event{Kind: common.EventSigned, Account: s.account, Revision: req.Revision, Signer: s.signer})
	agg, err := e.settle(sctx, req)
	if err != nil {
		return nil, err
	}
	log.Infow("signature added", "account", s.account, "signer", s.signer, "revision", req.Revision,
		"signatures", agg.CurrentSignatures, "threshold", req.Threshold)
	return agg, nil
}

// settle recounts the signatures of req's revision and promotes a pending
// request whose threshold is met.
func (e *Engine) settle(ctx context.Context, req *common.Request) (*common.AggregatedRequest, error) {
	agg, err := e.aggregate(ctx, req)
	if err != nil {
		return nil, err
	}
	if req.Status != common.StatusPending || uint64(agg.CurrentSignatures) < req.Threshold {
		return agg, nil
	}

	if err := e.requests.TransitionStatus(ctx, req.Account, req.Revision, common.StatusPending, common.StatusReady); err != nil {
		return nil, err
	}
	agg.Status = common.StatusReady
	log.Infow("request ready", "account", req.Account, "revision", req.Revision)
	e.notify(ctx, common.Event{Kind: common.EventStatusChanged, Account: req.Account, Status: common.StatusReady, Revision: req.Revision})
	return agg, nil
}
