package model

import "time"

type Signature struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement:true"`
	Account   string `gorm:"type:varchar(42);not null;uniqueIndex:idx_signature,priority:1"`
	Revision  uint64 `gorm:"not null;uniqueIndex:idx_signature,priority:2"`
	Signer    string `gorm:"type:varchar(42);not null;uniqueIndex:idx_signature,priority:3"`
	Signature []byte `gorm:"not null"`
	CreatedAt time.Time
}

func (Signature) TableName() string {
	return "signature"
}
