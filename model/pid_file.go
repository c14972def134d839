package model

import "time"

// PidFile exists only while a serve process holds the database. Its table is
// created at start and dropped at stop.
type PidFile struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement:true"`
	Info      string
	StartedAt time.Time
}

func (PidFile) TableName() string {
	return "pid_file"
}
