package model

import "gorm.io/gorm"

// All lists every table owned by the service, in dependency order.
func All() []interface{} {
	return []interface{}{
		&User{},
		&ChatSession{},
		&ChatMessage{},
	}
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(All()...)
}
