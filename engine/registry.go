package engine

import (
	"context"

	"github.com/rqzrqh/multisig_coordinator/common"
	"github.com/rqzrqh/multisig_coordinator/dao"
)

func (e *Engine) LinkOwnerToFactory(ctx context.Context, msg *LinkOwnerMsg) (*common.OwnerRecord, error) {
	m, err := msg.parse()
	if err != nil {
		return nil, err
	}

	unlock, err := e.locker.Lock(ctx, dao.OwnerLockKey(m.owner))
	if err != nil {
		return nil, err
	}
	defer unlock()

	rec, err := e.registry.LinkOwnerToFactory(ctx, m.owner, m.factory, m.account)
	if err != nil {
		return nil, err
	}
	log.Infow("owner linked", "owner", m.owner, "factory", m.factory, "account", m.account)
	return rec, nil
}

// GrantOwnership adds owners to an account and returns the owners that were
// not yet linked to it.
func (e *Engine) GrantOwnership(ctx context.Context, msg *GrantOwnershipMsg) ([]string, error) {
	m, err := msg.parse()
	if err != nil {
		return nil, err
	}

	// lock in a fixed order so overlapping grants cannot deadlock
	for _, owner := range sortedCopy(m.owners) {
		unlock, err := e.locker.Lock(ctx, dao.OwnerLockKey(owner))
		if err != nil {
			return nil, err
		}
		defer unlock()
	}

	added, err := e.registry.GrantOwnership(ctx, m.account, m.owners)
	if err != nil {
		return nil, err
	}
	log.Infow("ownership granted", "account", m.account, "owners", len(m.owners), "added", len(added))
	if len(added) > 0 {
		e.notify(ctx, common.Event{Kind: common.EventOwnershipGranted, Account: m.account})
	}
	return added, nil
}

func (e *Engine) LookupOwner(ctx context.Context, owner string) (*common.OwnerRecord, error) {
	addr, err := common.CanonicalAddress(owner)
	if err != nil {
		return nil, err
	}
	return e.registry.Lookup(ctx, addr)
}
