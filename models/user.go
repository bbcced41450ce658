package models

import "time"

type User struct {
	ID        uint       `gorm:"column:id;primaryKey" json:"id"`
	Email     string     `gorm:"column:email;uniqueIndex;not null" json:"email"`
	Password  string     `gorm:"column:password_hash;not null" json:"-"`
	Name        string     `gorm:"column:name" json:"name,omitempty"`
	PhoneNumber string     `gorm:"column:phone_number" json:"phone_number,omitempty"`
	Address     string     `gorm:"column:address" json:"address,omitempty"`
	Role      string     `gorm:"column:role;type:varchar(20);not null;default:user" json:"role"`
	IsActive  bool       `gorm:"column:is_active;not null;default:true" json:"is_active"`
	LastLogin *time.Time `gorm:"column:last_login" json:"last_login,omitempty"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (User) TableName() string { return "users" }
