package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Request holds the single active request of an account. Revision grows on
// every replacement, signatures reference it.
type Request struct {
	Account   string          `gorm:"primaryKey;type:varchar(42)"`
	Revision  uint64          `gorm:"not null"`
	Target    string          `gorm:"type:varchar(42);column:target_address;not null"`
	Value     decimal.Decimal `gorm:"type:DECIMAL(65,0);not null"`
	Data      []byte
	Reason    string `gorm:"type:text"`
	Note      string `gorm:"type:text"`
	Status    string `gorm:"type:varchar(16);index;not null"`
	Threshold uint64 `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Request) TableName() string {
	return "request"
}
