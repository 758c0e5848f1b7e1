package models

import "time"

// User 代表系统中的用户。
// IsActive is a soft "recently logged in" flag maintained by the presence tracker.
// It says nothing about live websocket connections; only the hub knows those.
type User struct {
	BaseModel
	Username     string     `gorm:"type:varchar(50);not null" json:"username"`
	Email        string     `gorm:"type:varchar(100);uniqueIndex;not null" json:"email"`
	PasswordHash string     `gorm:"type:varchar(255);not null" json:"-"` // 不暴露密码哈希
	AvatarURL    string     `gorm:"type:varchar(255)" json:"avatar,omitempty"`
	IsActive     bool       `gorm:"not null;default:false;index" json:"isActive"`
	LastActive   *time.Time `gorm:"index" json:"lastActive"`
}

// UserBasicInfo holds the display fields attached to enriched messages.
type UserBasicInfo struct {
	ID        string `json:"id" bson:"id"`
	Username  string `json:"username" bson:"username"`
	AvatarURL string `json:"avatar,omitempty" bson:"avatar,omitempty"`
}

// TableName 指定 User 模型的表名。
func (User) TableName() string {
	return "users"
}

// BasicInfo projects the user onto its display fields.
func (u *User) BasicInfo() *UserBasicInfo {
	return &UserBasicInfo{ID: u.ID, Username: u.Username, AvatarURL: u.AvatarURL}
}

// LastActiveText describes when the user was last active, or "Never".
func (u *User) LastActiveText(now time.Time) string {
	if u.LastActive == nil {
		return "Never"
	}
	return TimeAgo(*u.LastActive, now)
}
