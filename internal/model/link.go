package model

import "time"

// PasswordType 链接访问保护类型
type PasswordType string

const (
	PasswordNone     PasswordType = "none"
	PasswordSixDigit PasswordType = "six_digit"
	PasswordCustom   PasswordType = "custom"
)

type BaseModel struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Link slug 到目标 URL 的映射记录
type Link struct {
	BaseModel
	Slug         string       `gorm:"uniqueIndex;size:32;not null" json:"slug"`
	TargetURL    string       `gorm:"size:2048;not null" json:"targetUrl"`
	ExpiresAt    *time.Time   `gorm:"index" json:"expiresAt,omitempty"`
	OwnerID      string       `gorm:"size:64;index" json:"ownerId,omitempty"`
	VisitCount   int64        `gorm:"default:0" json:"visitCount"`
	PasswordType PasswordType `gorm:"size:16;default:none" json:"passwordType"`
	PasswordHash string       `gorm:"size:255" json:"-"`
	NoIndex      bool         `json:"noIndex"`
}

// IsExpired 检查链接是否已过期（ExpiresAt 为空视为永久有效）
func (l *Link) IsExpired(now time.Time) bool {
	return l.ExpiresAt != nil && !l.ExpiresAt.After(now)
}

// Protected 是否需要密码验证
func (l *Link) Protected() bool {
	return l.PasswordType != PasswordNone && l.PasswordType != ""
}
