package engine

import (
	"context"

	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"

	"github.com/rqzrqh/multisig_coordinator/chain"
	"github.com/rqzrqh/multisig_coordinator/common"
	"github.com/rqzrqh/multisig_coordinator/dao"
)

// ProposeTransaction records the request an account should execute next,
// replacing any previous one. The threshold is read from the account contract
// at proposal time and frozen on the request.
func (e *Engine) ProposeTransaction(ctx context.Context, msg *ProposeMsg) (*common.Request, error) {
	p, err := msg.parse()
	if err != nil {
		return nil, err
	}
	account := p.account.Hex()

	cctx, cancel := context.WithTimeout(ctx, e.cfg.ChainTimeout)
	threshold, err := chain.ReadThreshold(cctx, e.client, p.account)
	cancel()
	if err != nil {
		log.Errorw("read threshold failed", "account", account, "err", err)
		return nil, xerrors.Errorf("read threshold of %s: %v: %w", account, err, common.ErrChainUnavailable)
	}
	if threshold == 0 {
		return nil, xerrors.Errorf("account %s reports threshold 0: %w", account, common.ErrInvalidInput)
	}

	unlock, err := e.locker.Lock(ctx, dao.AccountLockKey(account))
	if err != nil {
		return nil, err
	}
	defer unlock()

	if e.cfg.RejectActiveOverwrite {
		prev, err := e.requests.GetRequest(ctx, account)
		switch {
		case err == nil && prev.Status != common.StatusExecuted:
			return nil, xerrors.Errorf("account %s has a %s request: %w", account, prev.Status, common.ErrConflict)
		case err != nil && !xerrors.Is(err, common.ErrNotFound):
			return nil, err
		}
	}

	req, err := e.requests.CreateOrReplace(ctx, account, p.fields, threshold)
	if err != nil {
		return nil, err
	}
	log.Infow("transaction proposed", "account", account, "revision", req.Revision, "threshold", threshold)
	e.notify(ctx, common.Event{Kind: common.EventProposed, Account: account, Status: req.Status, Revision: req.Revision})
	return req, nil
}

// SigningMessage returns the message owners sign for the active request of
// account.
func (e *Engine) SigningMessage(ctx context.Context, account string) ([]byte, *common.Request, error) {
	addr, err := common.CanonicalAddress(account)
	if err != nil {
		return nil, nil, err
	}
	req, err := e.requests.GetRequest(ctx, addr)
	if err != nil {
		return nil, nil, err
	}
	msg, err := req.Message()
	if err != nil {
		return nil, nil, err
	}
	return msg, req, nil
}

func (e *Engine) GetAggregatedRequest(ctx context.Context, account string) (*common.AggregatedRequest, error) {
	addr, err := common.CanonicalAddress(account)
	if err != nil {
		return nil, err
	}
	req, err := e.requests.GetRequest(ctx, addr)
	if err != nil {
		return nil, err
	}
	return e.aggregate(ctx, req)
}

// GetAggregatedRequests lists the active request of every account owner
// belongs to, in the order the accounts were linked. An unknown owner has no
// requests.
func (e *Engine) GetAggregatedRequests(ctx context.Context, owner string) ([]*common.AggregatedRequest, error) {
	addr, err := common.CanonicalAddress(owner)
	if err != nil {
		return nil, err
	}
	rec, err := e.registry.Lookup(ctx, addr)
	if xerrors.Is(err, common.ErrNotFound) {
		return []*common.AggregatedRequest{}, nil
	}
	if err != nil {
		return nil, err
	}

	reqs, err := e.requests.GetByAccounts(ctx, rec.OwnerOf)
	if err != nil {
		return nil, err
	}

	out := make([]*common.AggregatedRequest, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	for i, req := range reqs {
		i, req := i, req
		g.Go(func() error {
			agg, err := e.aggregate(gctx, req)
			if err != nil {
				return err
			}
			out[i] = agg
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
