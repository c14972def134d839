package engine

import (
	"context"

	"golang.org/x/xerrors"

	"github.com/rqzrqh/multisig_coordinator/common"
	"github.com/rqzrqh/multisig_coordinator/dao"
)

// MarkExecuted records that the ready request of account went on chain
// outside the executor.
func (e *Engine) MarkExecuted(ctx context.Context, account string) (*common.Request, error) {
	return e.SetStatus(ctx, &SetStatusMsg{Account: account, Status: string(common.StatusExecuted)})
}

// SetStatus moves the active request one step forward. Promoting to ready
// still requires the threshold to be met.
func (e *Engine) SetStatus(ctx context.Context, msg *SetStatusMsg) (*common.Request, error) {
	account, status, err := msg.parse()
	if err != nil {
		return nil, err
	}

	unlock, err := e.locker.Lock(ctx, dao.AccountLockKey(account))
	if err != nil {
		return nil, err
	}
	defer unlock()

	req, err := e.requests.GetRequest(ctx, account)
	if err != nil {
		return nil, err
	}
	if !req.Status.CanTransition(status) {
		return nil, xerrors.Errorf("%s -> %s: %w", req.Status, status, common.ErrInvalidTransition)
	}
	if status == common.StatusReady {
		count, _, err := e.signatures.CountAndList(ctx, account, req.Revision)
		if err != nil {
			return nil, err
		}
		if uint64(count) < req.Threshold {
			return nil, xerrors.Errorf("%d of %d signatures: %w", count, req.Threshold, common.ErrInvalidTransition)
		}
	}

	if err := e.requests.TransitionStatus(ctx, account, req.Revision, req.Status, status); err != nil {
		return nil, err
	}
	log.Infow("status changed", "account", account, "revision", req.Revision, "from", req.Status, "to", status)
	req.Status = status
	e.notify(ctx, common.Event{Kind: common.EventStatusChanged, Account: account, Status: status, Revision: req.Revision})
	return req, nil
}
