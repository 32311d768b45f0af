package user

import "time"

type User struct {
	ID           int64     `gorm:"primaryKey"`
	FullName     string    `gorm:"column:full_name;not null"`
	Email        string    `gorm:"column:email;uniqueIndex;not null"`
	PasswordHash string    `gorm:"column:password_hash;not null"`
	CompanyName  string    `gorm:"column:company_name"`
	RoleID       int64     `gorm:"column:role_id;not null;index"`
	TempPassword bool      `gorm:"column:temp_password;not null;default:false"`
	CreatedAt    time.Time `gorm:"column:created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at"`
}

func (User) TableName() string {
	return "users"
}
