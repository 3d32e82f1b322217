package models

// Member is a person tasks can be assigned to.
type Member struct {
	ID        string `gorm:"primaryKey;size:64"`
	TenantID  string `gorm:"size:64;not null;index"`
	Name      string `gorm:"size:128;not null"`
	Email     string `gorm:"size:256"`
	AvatarURL string `gorm:"size:512"`
}

// Project groups tasks for filtering.
type Project struct {
	ID       string `gorm:"primaryKey;size:64"`
	TenantID string `gorm:"size:64;not null;index"`
	Name     string `gorm:"size:128;not null"`
}
