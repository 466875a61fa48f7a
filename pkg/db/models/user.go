package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rank0/digimenu-backend/pkg/enums"
)

// User is a restaurant owner or platform administrator.
type User struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey"`
	FullName  string     `gorm:"column:full_name;not null"`
	Email     *string    `gorm:"column:email"`
	Mobile    string     `gorm:"column:mobile;not null;uniqueIndex"`
	Role      enums.Role `gorm:"column:role;type:text;not null"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
