package dao

import (
	"context"
	"time"

	"golang.org/x/xerrors"
	"gorm.io/gorm"

	"github.com/rqzrqh/multisig_coordinator/common"
	"github.com/rqzrqh/multisig_coordinator/model"
)

// CreateOrReplace overwrites the request of account. The new request starts
// pending with a fresh revision, so signatures gathered for the previous one
// no longer count.
func (d *Dao) CreateOrReplace(ctx context.Context, account string, fields common.RequestFields, threshold uint64) (*common.Request, error) {
	var row model.Request

	err := d.session(ctx).Transaction(func(tx *gorm.DB) error {
		var prev model.Request
		result := tx.Where("account = ?", account).Limit(1).Find(&prev)
		if result.Error != nil {
			return result.Error
		}

		row = model.Request{
			Account:   account,
			Revision:  prev.Revision + 1,
			Target:    fields.Target,
			Value:     fields.Value,
			Data:      fields.Data,
			Reason:    fields.Reason,
			Note:      fields.Note,
			Status:    string(common.StatusPending),
			Threshold: threshold,
			CreatedAt: time.Now().UTC(),
		}

		if result.RowsAffected == 0 {
			return tx.Create(&row).Error
		}

		log.Infow("replacing request", "account", account, "prev_revision", prev.Revision, "prev_status", prev.Status)
		return tx.Model(&model.Request{}).Where("account = ?", account).Updates(map[string]interface{}{
			"revision":       row.Revision,
			"target_address": row.Target,
			"value":          row.Value,
			"data":           row.Data,
			"reason":         row.Reason,
			"note":           row.Note,
			"status":         row.Status,
			"threshold":      row.Threshold,
			"created_at":     row.CreatedAt,
		}).Error
	})
	if err != nil {
		log.Errorw("CreateOrReplace", "account", account, "err", err)
		return nil, err
	}

	return toRequest(&row), nil
}

func (d *Dao) GetRequest(ctx context.Context, account string) (*common.Request, error) {
	var row model.Request
	result := d.session(ctx).Where("account = ?", account).Limit(1).Find(&row)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, xerrors.Errorf("request for %s: %w", account, common.ErrNotFound)
	}
	return toRequest(&row), nil
}

// GetByAccounts returns the requests of the given accounts, in the order the
// accounts were given. Accounts without a request are skipped.
func (d *Dao) GetByAccounts(ctx context.Context, accounts []string) ([]*common.Request, error) {
	if len(accounts) == 0 {
		return nil, nil
	}

	var rows []model.Request
	if err := d.session(ctx).Where("account IN ?", accounts).Find(&rows).Error; err != nil {
		return nil, err
	}

	byAccount := make(map[string]*model.Request, len(rows))
	for i := range rows {
		byAccount[rows[i].Account] = &rows[i]
	}

	out := make([]*common.Request, 0, len(rows))
	for _, account := range accounts {
		if row, ok := byAccount[account]; ok {
			out = append(out, toRequest(row))
			delete(byAccount, account)
		}
	}
	return out, nil
}

// SetStatus writes status without checking the state machine.
func (d *Dao) SetStatus(ctx context.Context, account string, status common.Status) error {
	return d.session(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.Request{}).Where("account = ?", account).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return xerrors.Errorf("request for %s: %w", account, common.ErrNotFound)
		}
		return tx.Model(&model.Request{}).Where("account = ?", account).Update("status", string(status)).Error
	})
}

// TransitionStatus moves the request of account from one status to the next
// only if it is still at revision and from.
func (d *Dao) TransitionStatus(ctx context.Context, account string, revision uint64, from, to common.Status) error {
	if !from.CanTransition(to) {
		return xerrors.Errorf("%s -> %s: %w", from, to, common.ErrInvalidTransition)
	}

	db := d.session(ctx)
	result := db.Model(&model.Request{}).
		Where("account = ? AND revision = ? AND status = ?", account, revision, string(from)).
		Update("status", string(to))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 1 {
		return nil
	}

	cur, err := d.GetRequest(ctx, account)
	if err != nil {
		return err
	}
	return xerrors.Errorf("request %s is %s at revision %d, want %s at revision %d: %w",
		account, cur.Status, cur.Revision, from, revision, common.ErrInvalidTransition)
}

func toRequest(row *model.Request) *common.Request {
	data := row.Data
	if data == nil {
		data = []byte{}
	}
	return &common.Request{
		Account:   row.Account,
		Target:    row.Target,
		Value:     row.Value,
		Data:      data,
		Reason:    row.Reason,
		Note:      row.Note,
		Status:    common.Status(row.Status),
		Threshold: row.Threshold,
		Revision:  row.Revision,
		CreatedAt: row.CreatedAt,
	}
}
