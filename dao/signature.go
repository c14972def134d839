package dao

import (
	"context"

	"golang.org/x/xerrors"
	"gorm.io/gorm/clause"

	"github.com/rqzrqh/multisig_coordinator/common"
	"github.com/rqzrqh/multisig_coordinator/model"
)

// AddSignature stores the signature of signer for the given request
// revision. A second signature from the same signer is rejected and the
// first one is kept.
func (d *Dao) AddSignature(ctx context.Context, account string, revision uint64, signer string, signature []byte) error {
	row := model.Signature{
		Account:   account,
		Revision:  revision,
		Signer:    signer,
		Signature: signature,
	}
	result := d.session(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if result.Error != nil {
		log.Errorw("AddSignature", "account", account, "signer", signer, "err", result.Error)
		return result.Error
	}
	if result.RowsAffected == 0 {
		return xerrors.Errorf("signature of %s for %s: %w", signer, account, common.ErrDuplicate)
	}
	return nil
}

// CountAndList returns the signatures of a request revision in submission
// order.
func (d *Dao) CountAndList(ctx context.Context, account string, revision uint64) (int, []common.SignatureDetail, error) {
	var rows []model.Signature
	if err := d.session(ctx).Where("account = ? AND revision = ?", account, revision).Order("id asc").Find(&rows).Error; err != nil {
		return 0, nil, err
	}

	details := make([]common.SignatureDetail, 0, len(rows))
	for _, row := range rows {
		details = append(details, common.SignatureDetail{
			Signer:    row.Signer,
			Signature: row.Signature,
		})
	}
	return len(details), details, nil
}
