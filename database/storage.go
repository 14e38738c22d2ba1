package database

import "gorm.io/gorm"

// Storage is the lifecycle surface the server needs from a database backend
type Storage interface {
	Init() error
	Close() error
	HealthCheck() error
	GetDB() *gorm.DB
}
