package models

import "time"

// Credential is one registered user. Only the password digest is stored.
type Credential struct {
	Username     string    `gorm:"type:varchar(191);primaryKey" json:"username"`
	PasswordHash string    `gorm:"type:varchar(64);not null" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

func (Credential) TableName() string { return "credentials" }
