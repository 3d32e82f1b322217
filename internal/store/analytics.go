package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zulandar/opsdeck/internal/models"
	"github.com/zulandar/opsdeck/internal/query"
	"github.com/zulandar/opsdeck/internal/rollup"
	"gorm.io/gorm"
)

// Analytics returns the newest precomputed analytics, or nil when none
// has been recorded.
func (s *Store) Analytics(ctx context.Context) (*rollup.Analytics, error) {
	var snap models.AnalyticsSnapshot
	err := s.db.WithContext(ctx).Where("tenant_id = ?", s.tenant).
		Order("computed_at DESC, id DESC").First(&snap).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: load analytics: %w", err)
	}
	var a rollup.Analytics
	if err := json.Unmarshal([]byte(snap.Payload), &a); err != nil {
		return nil, fmt.Errorf("store: decode analytics %d: %w", snap.ID, err)
	}
	return &a, nil
}

// RecordAnalytics computes analytics over the whole tree and stores them.
func (s *Store) RecordAnalytics(ctx context.Context) (rollup.Analytics, error) {
	t, err := s.Tree(ctx)
	if err != nil {
		return rollup.Analytics{}, err
	}
	a := rollup.FromTree(t, s.Now())
	payload, err := json.Marshal(a)
	if err != nil {
		return rollup.Analytics{}, fmt.Errorf("store: encode analytics: %w", err)
	}
	snap := models.AnalyticsSnapshot{
		TenantID:   s.tenant,
		ComputedAt: a.ComputedAt,
		Payload:    string(payload),
	}
	if err := s.db.WithContext(ctx).Create(&snap).Error; err != nil {
		return rollup.Analytics{}, fmt.Errorf("store: save analytics: %w", err)
	}
	return a, nil
}

// Members returns the tenant's assignable people, by name.
func (s *Store) Members(ctx context.Context) ([]models.Member, error) {
	var ms []models.Member
	if err := s.db.WithContext(ctx).Where("tenant_id = ?", s.tenant).Order("name ASC").Find(&ms).Error; err != nil {
		return nil, fmt.Errorf("store: list members: %w", err)
	}
	return ms, nil
}

// Directory resolves assignee ids to member names.
func (s *Store) Directory(ctx context.Context) (query.DirectoryMap, error) {
	ms, err := s.Members(ctx)
	if err != nil {
		return nil, err
	}
	dir := make(query.DirectoryMap, len(ms))
	for _, m := range ms {
		dir[m.ID] = m.Name
	}
	return dir, nil
}

// StatusHistory returns the recorded status changes of one task, oldest
// first.
func (s *Store) StatusHistory(ctx context.Context, taskID string) ([]models.StatusChange, error) {
	var cs []models.StatusChange
	if err := s.db.WithContext(ctx).Where("tenant_id = ? AND task_id = ?", s.tenant, taskID).
		Order("id ASC").Find(&cs).Error; err != nil {
		return nil, fmt.Errorf("store: status history of %s: %w", taskID, err)
	}
	return cs, nil
}
