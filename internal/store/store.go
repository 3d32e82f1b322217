// Package store is the gorm-backed remote store behind the Kanban
// controller. Every query is scoped to one tenant.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/zulandar/opsdeck/internal/models"
	"github.com/zulandar/opsdeck/internal/query"
	"github.com/zulandar/opsdeck/internal/rollup"
	"github.com/zulandar/opsdeck/internal/tasktree"
	"gorm.io/gorm"
)

// ErrNotFound is returned for a task id the tenant does not have.
var ErrNotFound = errors.New("task not found")

// DeletePolicy decides what happens to the subtree of a deleted task.
type DeletePolicy string

const (
	// Cascade deletes every descendant.
	Cascade DeletePolicy = "cascade"
	// Orphan moves the direct children up to the deleted task's parent.
	Orphan DeletePolicy = "orphan"
)

// Store reads and writes one tenant's tasks.
type Store struct {
	db     *gorm.DB
	tenant string

	// Now stamps updatedAt. Defaults to time.Now.
	Now func() time.Time
	// Location is the calendar timezone for due-date filters.
	Location *time.Location
}

// New returns a Store for tenant.
func New(db *gorm.DB, tenant string) *Store {
	return &Store{db: db, tenant: tenant, Now: time.Now, Location: time.Local}
}

// Tenant returns the tenant the store is scoped to.
func (s *Store) Tenant() string { return s.tenant }

func (s *Store) tasks(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Model(&models.Task{}).Where("tenant_id = ?", s.tenant)
}

// Calendar returns the calendar filters are evaluated against.
func (s *Store) Calendar() rollup.Calendar {
	return rollup.Calendar{Now: s.Now, Location: s.Location}
}

// Tree loads the tenant's whole task tree.
func (s *Store) Tree(ctx context.Context) (tasktree.Tree, error) {
	var rows []models.Task
	if err := s.tasks(ctx).Preload("Assignee").
		Order("level ASC, position ASC, created_at ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("store: load tasks: %w", err)
	}
	items := make([]tasktree.Item, len(rows))
	for i, r := range rows {
		items[i] = tasktree.Item{Task: toTask(r)}
		if r.ParentID != nil {
			items[i].ParentID = *r.ParentID
		}
	}
	t, err := tasktree.Build(items)
	if err != nil {
		return nil, fmt.Errorf("store: build tree: %w", err)
	}
	return t, nil
}

// ListTasks returns the filtered and sorted tree.
func (s *Store) ListTasks(ctx context.Context, filter query.FilterSpec, sort query.SortSpec) (tasktree.Tree, error) {
	t, err := s.Tree(ctx)
	if err != nil {
		return nil, err
	}
	dir, err := s.Directory(ctx)
	if err != nil {
		return nil, err
	}
	out, err := query.Run(t, filter, sort, query.Env{Calendar: s.Calendar(), Directory: dir})
	if err != nil {
		return nil, fmt.Errorf("store: list: %w", err)
	}
	return out, nil
}

// Get returns one task and its subtree.
func (s *Store) Get(ctx context.Context, id string) (tasktree.Node, error) {
	t, err := s.Tree(ctx)
	if err != nil {
		return nil, err
	}
	n, ok := tasktree.FindByID(t, id)
	if !ok {
		return nil, fmt.Errorf("store: get %s: %w", id, ErrNotFound)
	}
	return n, nil
}

func (s *Store) row(tx *gorm.DB, id string) (models.Task, error) {
	var r models.Task
	if err := tx.Where("tenant_id = ? AND id = ?", s.tenant, id).First(&r).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return r, fmt.Errorf("store: %s: %w", id, ErrNotFound)
		}
		return r, fmt.Errorf("store: get %s: %w", id, err)
	}
	return r, nil
}

// SetStatus changes one task's status, advances its updatedAt and records
// the change.
func (s *Store) SetStatus(ctx context.Context, id string, status tasktree.Status) error {
	if !status.Valid() {
		return fmt.Errorf("store: set status of %s: %w: %q", id, tasktree.ErrInvalidStatus, status)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r, err := s.row(tx, id)
		if err != nil {
			return err
		}
		return s.setStatus(tx, r, status)
	})
}

func (s *Store) setStatus(tx *gorm.DB, r models.Task, status tasktree.Status) error {
	updates := map[string]interface{}{
		"status":     string(status),
		"updated_at": tasktree.Advance(r.UpdatedAt, s.Now()),
	}
	if err := tx.Model(&models.Task{}).Where("id = ?", r.ID).Updates(updates).Error; err != nil {
		return fmt.Errorf("store: set status of %s: %w", r.ID, err)
	}
	change := models.StatusChange{
		TenantID:   s.tenant,
		TaskID:     r.ID,
		FromStatus: r.Status,
		ToStatus:   string(status),
	}
	if err := tx.Create(&change).Error; err != nil {
		return fmt.Errorf("store: record status change of %s: %w", r.ID, err)
	}
	return nil
}

// CreateOpts holds parameters for creating a task.
type CreateOpts struct {
	Name         string
	Description  string
	Status       tasktree.Status
	Priority     tasktree.Priority
	ParentID     string
	ProjectID    string
	AssigneeID   string
	DueDate      *time.Time
	StartDate    *time.Time
	Progress     *int
	ExternalLink string
}

// Create adds a task at the end of its siblings. A parent at the deepest
// level is rejected with tasktree.ErrTooDeep.
func (s *Store) Create(ctx context.Context, opts CreateOpts) (tasktree.Task, error) {
	if opts.Name == "" {
		return tasktree.Task{}, fmt.Errorf("store: name is required")
	}
	if opts.Status == "" {
		opts.Status = tasktree.StatusNotStarted
	}
	if opts.Priority == "" {
		opts.Priority = tasktree.PriorityMedium
	}
	if !opts.Status.Valid() {
		return tasktree.Task{}, fmt.Errorf("store: create: %w: %q", tasktree.ErrInvalidStatus, opts.Status)
	}
	if !opts.Priority.Valid() {
		return tasktree.Task{}, fmt.Errorf("store: create: %w: %q", tasktree.ErrInvalidPriority, opts.Priority)
	}
	if opts.Progress != nil && (*opts.Progress < 0 || *opts.Progress > 100) {
		return tasktree.Task{}, fmt.Errorf("store: progress %d out of range", *opts.Progress)
	}

	now := s.Now()
	r := models.Task{
		ID:           uuid.NewString(),
		TenantID:     s.tenant,
		Name:         opts.Name,
		Description:  opts.Description,
		Status:       string(opts.Status),
		Priority:     string(opts.Priority),
		ProjectID:    opts.ProjectID,
		DueDate:      opts.DueDate,
		StartDate:    opts.StartDate,
		Progress:     opts.Progress,
		ExternalLink: opts.ExternalLink,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if opts.AssigneeID != "" {
		r.AssigneeID = &opts.AssigneeID
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		siblings := tx.Model(&models.Task{}).Where("tenant_id = ?", s.tenant)
		if opts.ParentID != "" {
			parent, err := s.row(tx, opts.ParentID)
			if err != nil {
				return fmt.Errorf("store: parent: %w", err)
			}
			if parent.Level >= tasktree.MaxDepth-1 {
				return fmt.Errorf("store: parent %s is at level %d: %w", parent.ID, parent.Level, tasktree.ErrTooDeep)
			}
			r.ParentID = &parent.ID
			r.Level = parent.Level + 1
			siblings = siblings.Where("parent_id = ?", parent.ID)
		} else {
			siblings = siblings.Where("parent_id IS NULL")
		}
		if opts.AssigneeID != "" {
			var n int64
			if err := tx.Model(&models.Member{}).Where("tenant_id = ? AND id = ?", s.tenant, opts.AssigneeID).Count(&n).Error; err != nil {
				return fmt.Errorf("store: check assignee %s: %w", opts.AssigneeID, err)
			}
			if n == 0 {
				return fmt.Errorf("store: assignee not found: %s", opts.AssigneeID)
			}
		}
		var n int64
		if err := siblings.Count(&n).Error; err != nil {
			return fmt.Errorf("store: count siblings: %w", err)
		}
		r.Position = int(n)
		if err := tx.Omit("Parent", "Children", "Assignee").Create(&r).Error; err != nil {
			return fmt.Errorf("store: create: %w", err)
		}
		return nil
	})
	if err != nil {
		return tasktree.Task{}, err
	}
	return toTask(r), nil
}

// UpdateOpts holds the fields to change. Nil fields are left alone.
type UpdateOpts struct {
	Name         *string
	Description  *string
	Status       *tasktree.Status
	Priority     *tasktree.Priority
	ProjectID    *string
	AssigneeID   *string // "" unassigns
	DueDate      *time.Time
	ClearDueDate bool
	Progress     *int
}

// UpdateFields edits a task. A status change is recorded like SetStatus.
func (s *Store) UpdateFields(ctx context.Context, id string, opts UpdateOpts) error {
	updates := map[string]interface{}{}
	if opts.Name != nil {
		if *opts.Name == "" {
			return fmt.Errorf("store: update %s: name must not be empty", id)
		}
		updates["name"] = *opts.Name
	}
	if opts.Description != nil {
		updates["description"] = *opts.Description
	}
	if opts.Priority != nil {
		if !opts.Priority.Valid() {
			return fmt.Errorf("store: update %s: %w: %q", id, tasktree.ErrInvalidPriority, *opts.Priority)
		}
		updates["priority"] = string(*opts.Priority)
	}
	if opts.Status != nil && !opts.Status.Valid() {
		return fmt.Errorf("store: update %s: %w: %q", id, tasktree.ErrInvalidStatus, *opts.Status)
	}
	if opts.ProjectID != nil {
		updates["project_id"] = *opts.ProjectID
	}
	if opts.AssigneeID != nil {
		if *opts.AssigneeID == "" {
			updates["assignee_id"] = nil
		} else {
			updates["assignee_id"] = *opts.AssigneeID
		}
	}
	if opts.ClearDueDate {
		updates["due_date"] = nil
	} else if opts.DueDate != nil {
		updates["due_date"] = *opts.DueDate
	}
	if opts.Progress != nil {
		if *opts.Progress < 0 || *opts.Progress > 100 {
			return fmt.Errorf("store: update %s: progress %d out of range", id, *opts.Progress)
		}
		updates["progress"] = *opts.Progress
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r, err := s.row(tx, id)
		if err != nil {
			return err
		}
		if len(updates) > 0 {
			updates["updated_at"] = tasktree.Advance(r.UpdatedAt, s.Now())
			if err := tx.Model(&models.Task{}).Where("id = ?", id).Updates(updates).Error; err != nil {
				return fmt.Errorf("store: update %s: %w", id, err)
			}
			r.UpdatedAt = updates["updated_at"].(time.Time)
		}
		if opts.Status != nil && string(*opts.Status) != r.Status {
			return s.setStatus(tx, r, *opts.Status)
		}
		return nil
	})
}

// Delete removes a task. Its descendants are deleted or moved up one
// level according to policy. It returns the ids of every deleted task.
func (s *Store) Delete(ctx context.Context, id string, policy DeletePolicy) ([]string, error) {
	if policy != Cascade && policy != Orphan {
		return nil, fmt.Errorf("store: unknown delete policy %q", policy)
	}
	var deleted []string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r, err := s.row(tx, id)
		if err != nil {
			return err
		}

		if policy == Orphan {
			if err := s.promoteChildren(tx, r); err != nil {
				return err
			}
			deleted = []string{r.ID}
		} else {
			levels, err := s.descendants(tx, r.ID)
			if err != nil {
				return err
			}
			// Deepest first, so no row outlives its parent.
			for i := len(levels) - 1; i >= 0; i-- {
				if err := tx.Where("id IN ?", levels[i]).Delete(&models.Task{}).Error; err != nil {
					return fmt.Errorf("store: delete subtree of %s: %w", id, err)
				}
				deleted = append(deleted, levels[i]...)
			}
			deleted = append(deleted, r.ID)
		}
		if err := tx.Where("id = ?", r.ID).Delete(&models.Task{}).Error; err != nil {
			return fmt.Errorf("store: delete %s: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

// descendants returns the ids below id, one slice per level.
func (s *Store) descendants(tx *gorm.DB, id string) ([][]string, error) {
	var levels [][]string
	frontier := []string{id}
	for range tasktree.MaxDepth - 1 {
		var ids []string
		if err := tx.Model(&models.Task{}).Where("tenant_id = ? AND parent_id IN ?", s.tenant, frontier).
			Pluck("id", &ids).Error; err != nil {
			return nil, fmt.Errorf("store: descendants of %s: %w", id, err)
		}
		if len(ids) == 0 {
			break
		}
		levels = append(levels, ids)
		frontier = ids
	}
	return levels, nil
}

// promoteChildren moves r's children to r's parent and lifts the whole
// subtree one level.
func (s *Store) promoteChildren(tx *gorm.DB, r models.Task) error {
	levels, err := s.descendants(tx, r.ID)
	if err != nil {
		return err
	}
	if len(levels) == 0 {
		return nil
	}
	if err := tx.Model(&models.Task{}).Where("id IN ?", levels[0]).
		UpdateColumn("parent_id", r.ParentID).Error; err != nil {
		return fmt.Errorf("store: reparent children of %s: %w", r.ID, err)
	}
	for _, ids := range levels {
		if err := tx.Model(&models.Task{}).Where("id IN ?", ids).
			UpdateColumn("level", gorm.Expr("level - 1")).Error; err != nil {
			return fmt.Errorf("store: lift subtree of %s: %w", r.ID, err)
		}
	}
	return nil
}

func toTask(r models.Task) tasktree.Task {
	t := tasktree.Task{
		ID:              r.ID,
		Name:            r.Name,
		Description:     r.Description,
		Status:          tasktree.Status(r.Status),
		Priority:        tasktree.Priority(r.Priority),
		ProjectID:       r.ProjectID,
		DueDate:         r.DueDate,
		StartDate:       r.StartDate,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
		Progress:        r.Progress,
		ExternalLink:    r.ExternalLink,
		AttachmentCount: r.AttachmentCount,
		CommentCount:    r.CommentCount,
	}
	switch {
	case r.Assignee != nil:
		t.Assignee = &tasktree.Assignee{
			ID:        r.Assignee.ID,
			Name:      r.Assignee.Name,
			Email:     r.Assignee.Email,
			AvatarURL: r.Assignee.AvatarURL,
		}
	case r.AssigneeID != nil:
		t.Assignee = &tasktree.Assignee{ID: *r.AssigneeID}
	}
	return t
}
