package model

import "time"

type Owner struct {
	Address         string `gorm:"primaryKey;type:varchar(42)"`
	Factory         string `gorm:"type:varchar(42);not null;default:''"`
	DeployedAccount string `gorm:"type:varchar(42);not null;default:''"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (Owner) TableName() string {
	return "owner"
}

// OwnerAccount links an owner to an account it co-controls. ID keeps the
// insertion order of an owner's accounts.
type OwnerAccount struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement:true"`
	Owner     string `gorm:"type:varchar(42);not null;uniqueIndex:idx_owner_account,priority:1"`
	Account   string `gorm:"type:varchar(42);not null;uniqueIndex:idx_owner_account,priority:2;index:idx_account"`
	CreatedAt time.Time
}

func (OwnerAccount) TableName() string {
	return "owner_account"
}
