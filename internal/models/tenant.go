package models

import "time"

// Tenant stores instance-level settings for one tenant.
type Tenant struct {
	ID       uint   `gorm:"primaryKey;autoIncrement"`
	Name     string `gorm:"size:64;uniqueIndex"`
	Timezone string `gorm:"size:64;default:Local"`
	Settings string `gorm:"type:json"`
}

// AnalyticsSnapshot is a precomputed analytics payload. The newest row
// per tenant is served as the remote analytics source.
type AnalyticsSnapshot struct {
	ID         uint      `gorm:"primaryKey;autoIncrement"`
	TenantID   string    `gorm:"size:64;not null;index:idx_tenant_computed"`
	ComputedAt time.Time `gorm:"index:idx_tenant_computed"`
	Payload    string    `gorm:"type:text"`
}
