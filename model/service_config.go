package model

// ServiceConfig pins the deployment a database was initialized for.
type ServiceConfig struct {
	ID         uint64 `gorm:"primaryKey;autoIncrement:true"`
	ChainID    uint64
	EntryPoint string `gorm:"type:varchar(42)"`
}

func (ServiceConfig) TableName() string {
	return "service_config"
}
