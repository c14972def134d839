package dao

import (
	"context"

	logging "github.com/ipfs/go-log/v2"
	"golang.org/x/xerrors"
	"gorm.io/gorm"

	"github.com/rqzrqh/multisig_coordinator/model"
)

var log = logging.Logger("dao")

// Dao implements the registry, request and signature stores on one gorm
// connection.
type Dao struct {
	db *gorm.DB
}

func NewDao(db *gorm.DB) *Dao {
	return &Dao{
		db: db,
	}
}

// Tables lists every model the service persists, in creation order.
func Tables() []interface{} {
	return []interface{}{
		&model.Owner{},
		&model.OwnerAccount{},
		&model.Request{},
		&model.Signature{},
		&model.ServiceConfig{},
	}
}

func (d *Dao) session(ctx context.Context) *gorm.DB {
	return d.db.WithContext(ctx)
}

func GetServiceConfig(db *gorm.DB) (*model.ServiceConfig, error) {
	var cfg model.ServiceConfig
	result := db.Take(&cfg)
	if result.Error != nil {
		log.Errorf("GetServiceConfig failed:%v", result.Error)
		return nil, result.Error
	}
	if result.RowsAffected != 1 {
		return nil, xerrors.New("service config count error")
	}
	return &cfg, nil
}
