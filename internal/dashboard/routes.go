package dashboard

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/opsdeck/internal/kanban"
	"github.com/zulandar/opsdeck/internal/query"
	"github.com/zulandar/opsdeck/internal/rollup"
	"github.com/zulandar/opsdeck/internal/store"
	"github.com/zulandar/opsdeck/internal/tasktree"
)

// registerRoutes sets up all dashboard routes on the Gin router.
func registerRoutes(router *gin.Engine, s *Server) {
	router.GET("/healthz", s.handleHealth)
	router.GET("/metrics", s.metrics.handler())

	api := router.Group("/api")
	api.GET("/tasks", s.handleListTasks)
	api.GET("/tasks/:id", s.handleGetTask)
	api.POST("/tasks", s.handleCreateTask)
	api.DELETE("/tasks/:id", s.handleDeleteTask)
	api.GET("/stats", s.handleStats)
	api.GET("/analytics", s.handleAnalytics)
	api.GET("/board", s.handleBoard)
	api.POST("/board/move", s.handleMove)
	api.POST("/refresh", s.handleRefresh)
	api.GET("/events", s.handleEvents)
}

type errorResponse struct {
	Error string `json:"error"`
}

func abort(c *gin.Context, code int, err error) {
	c.AbortWithStatusJSON(code, errorResponse{Error: err.Error()})
}

// snapshot returns the current snapshot and records its version.
func (s *Server) snapshot() *kanban.Snapshot {
	snap := s.ctrl.Snapshot()
	s.metrics.snapshotVersion.Set(float64(snap.Version))
	return snap
}

// env is the filter/sort context for one request.
func (s *Server) env(ctx context.Context) query.Env {
	env := query.Env{Calendar: s.cal}
	dir, err := s.backend.Directory(ctx)
	if err == nil {
		env.Directory = dir
	}
	return env
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "version": s.snapshot().Version})
}

type treeResponse struct {
	Version uint64        `json:"version"`
	Tasks   tasktree.Tree `json:"tasks"`
}

func bindQuery(c *gin.Context) (query.FilterSpec, query.SortSpec, bool) {
	var filter query.FilterSpec
	var sort query.SortSpec
	if err := c.ShouldBindQuery(&filter); err != nil {
		abort(c, http.StatusBadRequest, err)
		return filter, sort, false
	}
	if err := c.ShouldBindQuery(&sort); err != nil {
		abort(c, http.StatusBadRequest, err)
		return filter, sort, false
	}
	return filter, sort, true
}

func (s *Server) handleListTasks(c *gin.Context) {
	filter, sort, ok := bindQuery(c)
	if !ok {
		return
	}
	snap := s.snapshot()
	tree, err := query.Run(snap.Tree, filter, sort, s.env(c.Request.Context()))
	if err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}
	if tree == nil {
		tree = tasktree.Tree{}
	}
	c.JSON(http.StatusOK, treeResponse{Version: snap.Version, Tasks: tree})
}

type taskResponse struct {
	Version  uint64          `json:"version"`
	Task     tasktree.Task   `json:"task"`
	Level    tasktree.Level  `json:"level"`
	Progress int             `json:"progress"`
	Subtasks []tasktree.Node `json:"subtasks"`
}

func (s *Server) handleGetTask(c *gin.Context) {
	filter, sort, ok := bindQuery(c)
	if !ok {
		return
	}
	snap := s.snapshot()
	n, found := tasktree.FindByID(snap.Tree, c.Param("id"))
	if !found {
		abort(c, http.StatusNotFound, store.ErrNotFound)
		return
	}
	env := s.env(c.Request.Context())
	pred, err := query.BuildFilter(filter, env)
	if err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}
	less, err := query.BuildSort(sort.Field, sort.Direction, env)
	if err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}
	subtasks := query.Subtasks(n, pred, less)
	if subtasks == nil {
		subtasks = []tasktree.Node{}
	}
	c.JSON(http.StatusOK, taskResponse{
		Version:  snap.Version,
		Task:     n.Data(),
		Level:    n.Level(),
		Progress: tasktree.Progress(n),
		Subtasks: subtasks,
	})
}

type createRequest struct {
	Name         string `json:"name" binding:"required"`
	Description  string `json:"description"`
	Status       string `json:"status"`
	Priority     string `json:"priority"`
	ParentID     string `json:"parent_id"`
	ProjectID    string `json:"project_id"`
	AssigneeID   string `json:"assignee_id"`
	DueDate      string `json:"due_date"`
	StartDate    string `json:"start_date"`
	Progress     *int   `json:"progress"`
	ExternalLink string `json:"external_link"`
}

// parseDate reads a YYYY-MM-DD calendar date.
func parseDate(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	d, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *Server) handleCreateTask(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}
	due, err := parseDate(req.DueDate)
	if err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}
	start, err := parseDate(req.StartDate)
	if err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}
	ctx := c.Request.Context()
	task, err := s.backend.Create(ctx, store.CreateOpts{
		Name:         req.Name,
		Description:  req.Description,
		Status:       tasktree.Status(req.Status),
		Priority:     tasktree.Priority(req.Priority),
		ParentID:     req.ParentID,
		ProjectID:    req.ProjectID,
		AssigneeID:   req.AssigneeID,
		DueDate:      due,
		StartDate:    start,
		Progress:     req.Progress,
		ExternalLink: req.ExternalLink,
	})
	switch {
	case errors.Is(err, store.ErrNotFound):
		abort(c, http.StatusNotFound, err)
		return
	case err != nil:
		abort(c, http.StatusBadRequest, err)
		return
	}
	if err := s.ctrl.Invalidate(ctx, "create "+task.ID); err != nil {
		s.logger(c).WithError(err).Warn("refetch after create")
	}
	c.JSON(http.StatusCreated, task)
}

func (s *Server) handleDeleteTask(c *gin.Context) {
	policy := store.DeletePolicy(c.DefaultQuery("policy", string(store.Cascade)))
	if policy != store.Cascade && policy != store.Orphan {
		abort(c, http.StatusBadRequest, errors.New("policy must be cascade or orphan"))
		return
	}
	ctx := c.Request.Context()
	deleted, err := s.backend.Delete(ctx, c.Param("id"), policy)
	switch {
	case errors.Is(err, store.ErrNotFound):
		abort(c, http.StatusNotFound, err)
		return
	case err != nil:
		abort(c, http.StatusInternalServerError, err)
		return
	}
	s.ctrl.Forget(deleted...)
	if err := s.ctrl.Invalidate(ctx, "delete "+c.Param("id")); err != nil {
		s.logger(c).WithError(err).Warn("refetch after delete")
	}
	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

func (s *Server) handleStats(c *gin.Context) {
	snap := s.snapshot()
	c.JSON(http.StatusOK, gin.H{
		"version": snap.Version,
		"stats":   rollup.Compute(snap.Tree, s.cal),
	})
}

func (s *Server) handleAnalytics(c *gin.Context) {
	remote, err := s.backend.Analytics(c.Request.Context())
	if err != nil {
		s.logger(c).WithError(err).Warn("precomputed analytics unavailable")
		remote = nil
	}
	snap := s.snapshot()
	now := time.Now()
	if s.cal.Now != nil {
		now = s.cal.Now()
	}
	a, src := rollup.Resolve(remote, s.maxAge, now, snap.Tree)
	c.JSON(http.StatusOK, gin.H{"version": snap.Version, "source": src, "analytics": a})
}

type boardResponse struct {
	Version uint64        `json:"version"`
	Lanes   []kanban.Lane `json:"lanes"`
}

func (s *Server) handleBoard(c *gin.Context) {
	snap := s.snapshot()
	c.JSON(http.StatusOK, boardResponse{Version: snap.Version, Lanes: s.ctrl.Board().Lanes(snap.Tree)})
}

type moveRequest struct {
	TaskID string        `json:"task_id" binding:"required"`
	From   kanban.Column `json:"from" binding:"required"`
	To     kanban.Column `json:"to" binding:"required"`
	// Wait holds the response until the store has answered.
	Wait bool `json:"wait"`
}

type moveResponse struct {
	Applied bool           `json:"applied"`
	Version uint64         `json:"version"`
	Seq     uint64         `json:"seq,omitempty"`
	Outcome kanban.Outcome `json:"outcome,omitempty"`
	Error   string         `json:"error,omitempty"`
}

func (s *Server) handleMove(c *gin.Context) {
	var req moveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}
	p, err := s.ctrl.Move(c.Request.Context(), req.TaskID, req.From, req.To)
	switch {
	case errors.Is(err, kanban.ErrInvalidColumn):
		abort(c, http.StatusBadRequest, err)
		return
	case errors.Is(err, kanban.ErrTaskNotFound):
		// Not an error for the board: the card is simply gone.
		c.JSON(http.StatusOK, moveResponse{Version: s.snapshot().Version, Error: err.Error()})
		return
	case err != nil:
		abort(c, http.StatusInternalServerError, err)
		return
	case p == nil:
		c.JSON(http.StatusOK, moveResponse{Version: s.snapshot().Version})
		return
	}

	resp := moveResponse{Applied: true, Seq: p.Seq, Outcome: kanban.OutcomePending}
	code := http.StatusAccepted
	if req.Wait {
		outcome, werr := p.Wait(c.Request.Context())
		resp.Outcome = outcome
		if werr != nil {
			resp.Error = werr.Error()
		}
		code = http.StatusOK
	}
	resp.Version = s.snapshot().Version
	c.JSON(code, resp)
}

type refreshRequest struct {
	Filter *query.FilterSpec `json:"filter"`
	Sort   *query.SortSpec   `json:"sort"`
}

func (s *Server) handleRefresh(c *gin.Context) {
	var req refreshRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			abort(c, http.StatusBadRequest, err)
			return
		}
	}
	if req.Filter != nil || req.Sort != nil {
		filter, sort := s.ctrl.Query()
		if req.Filter != nil {
			filter = *req.Filter
		}
		if req.Sort != nil {
			sort = *req.Sort
		}
		if err := s.ctrl.SetQuery(filter, sort); err != nil {
			abort(c, http.StatusBadRequest, err)
			return
		}
	}
	if err := s.ctrl.Refresh(c.Request.Context()); err != nil {
		abort(c, http.StatusBadGateway, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"version": s.snapshot().Version})
}
