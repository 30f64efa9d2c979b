package entity

import (
	"time"
)

// User представляет профиль студента на портале
type User struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	Email            string    `gorm:"size:255;not null;uniqueIndex" json:"email"`
	FullName         string    `gorm:"size:200;not null;default:''" json:"full_name"`
	AccessRestricted bool      `gorm:"not null;default:false" json:"access_restricted"`
	CanLogin         bool      `gorm:"not null;default:true" json:"can_login"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (User) TableName() string {
	return "profiles"
}

// HasPortalAccess reports whether the profile may still enter the portal.
func (u *User) HasPortalAccess() bool {
	return u.CanLogin && !u.AccessRestricted
}
