package model

import "time"

// User represents a registered account. Authentication is handled by the
// handler layer; the upload core only ever sees the resolved user ID.
type User struct {
	ID           int64     `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	Username     string    `json:"username" gorm:"column:username;size:100;uniqueIndex;not null"`
	Email        string    `json:"email" gorm:"column:email;size:255;uniqueIndex;not null"`
	PasswordHash string    `json:"-" gorm:"column:password_hash;size:255;not null"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// TableName returns the database table name.
func (User) TableName() string {
	return "users"
}
