package models

import "time"

// Task is one row of the task tree. Level is 0 for roots and ParentID is
// nil exactly when Level is 0.
type Task struct {
	ID              string  `gorm:"primaryKey;size:36"`
	TenantID        string  `gorm:"size:64;not null;index:idx_tenant_parent"`
	ParentID        *string `gorm:"size:36;index:idx_tenant_parent"`
	Level           int     `gorm:"default:0"`
	Position        int     `gorm:"default:0"`
	Name            string  `gorm:"size:256;not null"`
	Description     string  `gorm:"type:text"`
	Status          string  `gorm:"size:16;default:not-started;index"`
	Priority        string  `gorm:"size:8;default:medium"`
	ProjectID       string  `gorm:"size:64;index"`
	AssigneeID      *string `gorm:"size:64;index"`
	DueDate         *time.Time
	StartDate       *time.Time
	Progress        *int
	ExternalLink    string `gorm:"size:512"`
	AttachmentCount int    `gorm:"default:0"`
	CommentCount    int    `gorm:"default:0"`
	CreatedAt       time.Time
	UpdatedAt       time.Time

	Parent   *Task   `gorm:"foreignKey:ParentID"`
	Children []Task  `gorm:"foreignKey:ParentID"`
	Assignee *Member `gorm:"foreignKey:AssigneeID"`
}

// StatusChange records one confirmed status write.
type StatusChange struct {
	ID         uint   `gorm:"primaryKey;autoIncrement"`
	TenantID   string `gorm:"size:64;index"`
	TaskID     string `gorm:"size:36;index"`
	FromStatus string `gorm:"size:16"`
	ToStatus   string `gorm:"size:16"`
	CreatedAt  time.Time
}
