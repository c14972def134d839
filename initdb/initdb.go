package initdb

import (
	"context"
	"time"

	logging "github.com/ipfs/go-log/v2"
	"golang.org/x/xerrors"
	"gorm.io/gorm"

	"github.com/rqzrqh/multisig_coordinator/common"
	"github.com/rqzrqh/multisig_coordinator/dao"
	"github.com/rqzrqh/multisig_coordinator/model"
)

var log = logging.Logger("initdb")

func InitDatabase(ctx context.Context, db *gorm.DB, chainID uint64, entryPoint string) error {

	if checkExist(db) {
		return xerrors.New("database has been initialized")
	}

	entryPoint, err := common.CanonicalAddress(entryPoint)
	if err != nil {
		return xerrors.Errorf("entry point: %w", err)
	}
	if chainID == 0 {
		return xerrors.New("chain id should > 0")
	}

	if err := createTables(db); err != nil {
		return err
	}

	if err := fillTables(ctx, db, chainID, entryPoint); err != nil {
		return err
	}

	return checkDB(db)
}

func checkExist(db *gorm.DB) bool {
	return db.Migrator().HasTable(&model.ServiceConfig{})
}

func createTables(db *gorm.DB) error {

	startTime := time.Now()
	defer func() {
		log.Infow("createTables", "duration", time.Since(startTime).String())
	}()

	// PidFile Table is created at the time of program starts
	return db.AutoMigrate(dao.Tables()...)
}

func fillTables(ctx context.Context, db *gorm.DB, chainID uint64, entryPoint string) error {
	cfg := model.ServiceConfig{
		ChainID:    chainID,
		EntryPoint: entryPoint,
	}
	return db.WithContext(ctx).Create(&cfg).Error
}

func checkDB(db *gorm.DB) error {
	cfg, err := dao.GetServiceConfig(db)
	if err != nil {
		return err
	}
	log.Infow("database initialized", "chain_id", cfg.ChainID, "entry_point", cfg.EntryPoint)
	return nil
}
