package models

import "strings"

// UserRole 用户角色
type UserRole string

const (
	RoleUser  UserRole = "user"
	RoleAdmin UserRole = "admin"
)

// User 设备所有者账号
type User struct {
	BaseModel
	Name     string   `gorm:"type:varchar(50);not null" json:"name"`
	Email    string   `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Password string   `gorm:"type:varchar(100);not null" json:"-"` // bcrypt哈希
	Role     UserRole `gorm:"type:varchar(20);not null;default:'user'" json:"role"`
}

// NormalizeEmail 邮箱统一去空白并转小写后再存储与查询
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
