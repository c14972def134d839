package dao

import (
	"context"

	"golang.org/x/xerrors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/rqzrqh/multisig_coordinator/common"
	"github.com/rqzrqh/multisig_coordinator/model"
)

// LinkOwnerToFactory binds owner to factory and records account as the
// account the owner deployed. Addresses must already be canonical.
func (d *Dao) LinkOwnerToFactory(ctx context.Context, owner, factory, account string) (*common.OwnerRecord, error) {
	err := d.session(ctx).Transaction(func(tx *gorm.DB) error {
		var o model.Owner
		result := tx.Where("address = ?", owner).Limit(1).Find(&o)
		if result.Error != nil {
			return result.Error
		}

		if result.RowsAffected == 0 {
			o = model.Owner{
				Address:         owner,
				Factory:         factory,
				DeployedAccount: account,
			}
			if err := tx.Create(&o).Error; err != nil {
				return err
			}
		} else {
			if o.Factory != "" && o.Factory != factory {
				return xerrors.Errorf("owner %s already linked to factory %s: %w", owner, o.Factory, common.ErrConflict)
			}
			if o.DeployedAccount != "" && o.DeployedAccount != account {
				return xerrors.Errorf("owner %s already deployed %s: %w", owner, o.DeployedAccount, common.ErrConflict)
			}
			if err := tx.Model(&model.Owner{}).Where("address = ?", owner).Updates(map[string]interface{}{
				"factory":          factory,
				"deployed_account": account,
			}).Error; err != nil {
				return err
			}
		}

		_, err := linkAccount(tx, owner, account)
		return err
	})
	if err != nil {
		return nil, err
	}

	return d.Lookup(ctx, owner)
}

// GrantOwnership links every owner to account and returns the owners that
// were not linked before.
func (d *Dao) GrantOwnership(ctx context.Context, account string, owners []string) ([]string, error) {
	addedTo := make([]string, 0, len(owners))

	err := d.session(ctx).Transaction(func(tx *gorm.DB) error {
		for _, owner := range owners {
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&model.Owner{Address: owner}).Error; err != nil {
				return err
			}
			added, err := linkAccount(tx, owner, account)
			if err != nil {
				return err
			}
			if added {
				addedTo = append(addedTo, owner)
			}
		}
		return nil
	})
	if err != nil {
		log.Errorw("GrantOwnership", "account", account, "err", err)
		return nil, err
	}

	return addedTo, nil
}

func linkAccount(tx *gorm.DB, owner, account string) (bool, error) {
	link := model.OwnerAccount{
		Owner:   owner,
		Account: account,
	}
	result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&link)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (d *Dao) Lookup(ctx context.Context, owner string) (*common.OwnerRecord, error) {
	db := d.session(ctx)

	var o model.Owner
	result := db.Where("address = ?", owner).Limit(1).Find(&o)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, xerrors.Errorf("owner %s: %w", owner, common.ErrNotFound)
	}

	var accounts []string
	if err := db.Model(&model.OwnerAccount{}).Where("owner = ?", owner).Order("id asc").Pluck("account", &accounts).Error; err != nil {
		return nil, err
	}
	if accounts == nil {
		accounts = []string{}
	}

	return &common.OwnerRecord{
		Address:         o.Address,
		Factory:         o.Factory,
		OwnerOf:         accounts,
		DeployedAccount: o.DeployedAccount,
	}, nil
}

func (d *Dao) AccountExists(ctx context.Context, account string) (bool, error) {
	var count int64
	if err := d.session(ctx).Model(&model.OwnerAccount{}).Where("account = ?", account).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (d *Dao) IsOwnerOf(ctx context.Context, owner, account string) (bool, error) {
	var count int64
	if err := d.session(ctx).Model(&model.OwnerAccount{}).Where("owner = ? AND account = ?", owner, account).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// OwnersOf lists the owners of account in the order they were linked.
func (d *Dao) OwnersOf(ctx context.Context, account string) ([]string, error) {
	var owners []string
	if err := d.session(ctx).Model(&model.OwnerAccount{}).Where("account = ?", account).Order("id asc").Pluck("owner", &owners).Error; err != nil {
		return nil, err
	}
	return owners, nil
}
