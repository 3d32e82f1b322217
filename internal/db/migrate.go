package db

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/zulandar/opsdeck/internal/config"
	"github.com/zulandar/opsdeck/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AllModels returns every GORM model for migration.
func AllModels() []interface{} {
	return []interface{}{
		&models.Tenant{},
		&models.Member{},
		&models.Project{},
		&models.Task{},
		&models.StatusChange{},
		&models.AnalyticsSnapshot{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

// SeedTenant writes or updates the Tenant row for the configured tenant.
func SeedTenant(db *gorm.DB, cfg *config.Config) error {
	settings, err := marshalJSON(cfg.Board.Titles)
	if err != nil {
		return fmt.Errorf("db: marshal board titles for %q: %w", cfg.Tenant, err)
	}
	if settings == "" || settings == "null" {
		settings = "{}"
	}
	t := models.Tenant{
		Name:     cfg.Tenant,
		Timezone: cfg.Board.Timezone,
		Settings: settings,
	}
	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"timezone", "settings"}),
	}).Create(&t)
	if result.Error != nil {
		return fmt.Errorf("db: seed tenant %q: %w", cfg.Tenant, result.Error)
	}
	return nil
}

// SeedDemo inserts a small sample board for a tenant. Rows that already
// exist are left alone, so it is safe to run twice.
func SeedDemo(db *gorm.DB, tenant string, now time.Time) error {
	members := []models.Member{
		{ID: "m-ada", TenantID: tenant, Name: "Ada Park", Email: "ada@example.com"},
		{ID: "m-raj", TenantID: tenant, Name: "Raj Mehta", Email: "raj@example.com"},
	}
	projects := []models.Project{
		{ID: "p-payroll", TenantID: tenant, Name: "Payroll"},
		{ID: "p-hiring", TenantID: tenant, Name: "Hiring"},
	}
	day := func(offset int) *time.Time {
		d := time.Date(now.Year(), now.Month(), now.Day()+offset, 0, 0, 0, 0, time.UTC)
		return &d
	}
	ptr := func(s string) *string { return &s }
	tasks := []models.Task{
		{ID: "demo-1", Name: "Run October payroll", Status: "in-progress", Priority: "urgent", ProjectID: "p-payroll", AssigneeID: ptr("m-ada"), DueDate: day(1), Position: 0},
		{ID: "demo-1.1", ParentID: ptr("demo-1"), Level: 1, Name: "Collect timesheets", Status: "completed", Priority: "high", ProjectID: "p-payroll", Position: 0},
		{ID: "demo-1.2", ParentID: ptr("demo-1"), Level: 1, Name: "Approve overtime", Status: "not-started", Priority: "medium", ProjectID: "p-payroll", AssigneeID: ptr("m-raj"), Position: 1},
		{ID: "demo-1.2.1", ParentID: ptr("demo-1.2"), Level: 2, Name: "Check night shifts", Status: "not-started", Priority: "low", ProjectID: "p-payroll", Position: 0},
		{ID: "demo-2", Name: "Onboard new hire", Status: "blocked", Priority: "high", ProjectID: "p-hiring", AssigneeID: ptr("m-raj"), DueDate: day(-2), Position: 1},
		{ID: "demo-3", Name: "Renew office lease", Status: "not-started", Priority: "medium", DueDate: day(0), Position: 2},
		{ID: "demo-4", Name: "Quarterly tax filing", Status: "in-review", Priority: "high", ProjectID: "p-payroll", AssigneeID: ptr("m-ada"), Position: 3},
	}
	for i := range tasks {
		tasks[i].TenantID = tenant
		tasks[i].CreatedAt = now.Add(time.Duration(i) * time.Minute)
		tasks[i].UpdatedAt = tasks[i].CreatedAt
	}

	return db.Transaction(func(tx *gorm.DB) error {
		ignore := clause.OnConflict{DoNothing: true}
		if err := tx.Clauses(ignore).Create(&members).Error; err != nil {
			return fmt.Errorf("db: seed members: %w", err)
		}
		if err := tx.Clauses(ignore).Create(&projects).Error; err != nil {
			return fmt.Errorf("db: seed projects: %w", err)
		}
		// Parents first, so foreign keys hold on insert.
		for _, t := range tasks {
			if err := tx.Clauses(ignore).Omit(clause.Associations).Create(&t).Error; err != nil {
				return fmt.Errorf("db: seed task %s: %w", t.ID, err)
			}
		}
		return nil
	})
}

// marshalJSON marshals a value to a JSON string, returning empty string for nil.
func marshalJSON(v interface{}) (string, error) {
	if v == nil {
		return "", nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
