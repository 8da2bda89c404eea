package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"mefolio/internal/database"
	"mefolio/internal/sortable"
)

// ProjectHandler 负责后台作品集条目的增删改与重排。
// 重排端点在服务端跑一次完整的排序会话：快照、移动、逐条回写。
type ProjectHandler struct {
	db *gorm.DB
}

// NewProjectHandler 构造 ProjectHandler。
func NewProjectHandler(db *gorm.DB) *ProjectHandler {
	return &ProjectHandler{db: db}
}

type projectRequest struct {
	TitleZH   string         `json:"titleZh" binding:"required"`
	TitleEN   string         `json:"titleEn" binding:"required"`
	SummaryZH string         `json:"summaryZh"`
	SummaryEN string         `json:"summaryEn"`
	Link      string         `json:"link"`
	Tags      datatypes.JSON `json:"tags"`
	Visible   *bool          `json:"visible"`
}

// ListAllProjects 返回全部条目（含隐藏），供后台编辑列表使用。
func (h *ProjectHandler) ListAllProjects(c *gin.Context) {
	projects, err := h.loadOrdered(c)
	if err != nil {
		Internal(c, "failed to list projects")
		return
	}

	items := make([]gin.H, 0, len(projects))
	for _, p := range projects {
		items = append(items, gin.H{
			"id":        p.ID,
			"titleZh":   p.TitleZH,
			"titleEn":   p.TitleEN,
			"summaryZh": p.SummaryZH,
			"summaryEn": p.SummaryEN,
			"link":      p.Link,
			"coverKey":  p.CoverObjectKey,
			"tags":      p.Tags,
			"sortOrder": p.SortOrder,
			"visible":   p.Visible,
		})
	}
	c.JSON(http.StatusOK, items)
}

// CreateProject 新建条目，排到列表末尾。
func (h *ProjectHandler) CreateProject(c *gin.Context) {
	var req projectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	var maxOrder int
	row := h.db.WithContext(ctx).
		Model(&database.Project{}).
		Select("COALESCE(MAX(sort_order), -1)").
		Row()
	if err := row.Scan(&maxOrder); err != nil {
		Internal(c, "failed to compute sort order")
		return
	}

	project := database.Project{
		TitleZH:   req.TitleZH,
		TitleEN:   req.TitleEN,
		SummaryZH: req.SummaryZH,
		SummaryEN: req.SummaryEN,
		Link:      req.Link,
		Tags:      req.Tags,
		SortOrder: maxOrder + 1,
		Visible:   req.Visible == nil || *req.Visible,
	}
	if err := h.db.WithContext(ctx).Create(&project).Error; err != nil {
		Internal(c, "failed to create project")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": project.ID, "sortOrder": project.SortOrder})
}

// UpdateProject 覆盖指定条目的可编辑字段。
func (h *ProjectHandler) UpdateProject(c *gin.Context) {
	var req projectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	project, ok := h.findProject(c)
	if !ok {
		return
	}

	updates := map[string]any{
		"title_zh":   req.TitleZH,
		"title_en":   req.TitleEN,
		"summary_zh": req.SummaryZH,
		"summary_en": req.SummaryEN,
		"link":       req.Link,
		"tags":       req.Tags,
	}
	if req.Visible != nil {
		updates["visible"] = *req.Visible
	}

	if err := h.db.WithContext(c.Request.Context()).Model(project).Updates(updates).Error; err != nil {
		Internal(c, "failed to update project")
		return
	}
	c.Status(http.StatusNoContent)
}

// DeleteProject 删除指定条目。
func (h *ProjectHandler) DeleteProject(c *gin.Context) {
	project, ok := h.findProject(c)
	if !ok {
		return
	}

	if err := h.db.WithContext(c.Request.Context()).Delete(&database.Project{}, project.ID).Error; err != nil {
		Internal(c, "failed to delete project")
		return
	}
	c.Status(http.StatusNoContent)
}

type dragReorderRequest struct {
	From        int  `json:"from"`
	To          int  `json:"to"`
	VisibleOnly bool `json:"visibleOnly"`
}

// ReorderByDrag 在服务端执行一次拖拽式重排并持久化新顺序。
func (h *ProjectHandler) ReorderByDrag(c *gin.Context) {
	var req dragReorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	h.runReorder(c, req.VisibleOnly, func(sess *sortable.Session[database.Project]) error {
		return sess.MoveTo(req.From, req.To)
	})
}

type stepReorderRequest struct {
	Index       int  `json:"index"`
	Direction   int  `json:"direction"`
	VisibleOnly bool `json:"visibleOnly"`
}

// ReorderByStep 将条目与相邻条目交换并持久化新顺序。
func (h *ProjectHandler) ReorderByStep(c *gin.Context) {
	var req stepReorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	h.runReorder(c, req.VisibleOnly, func(sess *sortable.Session[database.Project]) error {
		return sess.Step(req.Index, req.Direction)
	})
}

// runReorder 执行一次完整的排序会话。move 失败属于客户端参数问题，
// 持久化失败则保留会话语义原样上抛（本请求即会话生命周期，无需驻留状态）。
func (h *ProjectHandler) runReorder(c *gin.Context, visibleOnly bool, move func(*sortable.Session[database.Project]) error) {
	ctx := c.Request.Context()
	projects, err := h.loadOrdered(c)
	if err != nil {
		Internal(c, "failed to list projects")
		return
	}

	sess := sortable.NewSession(func(p database.Project, order int) database.Project {
		p.SortOrder = order
		return p
	}, nil)

	var keep func(database.Project) bool
	if visibleOnly {
		keep = func(p database.Project) bool { return p.Visible }
	}
	if err := sess.Enter(projects, keep); err != nil {
		Internal(c, "failed to start sort session")
		return
	}

	if err := move(sess); err != nil {
		BadRequest(c, err.Error())
		return
	}

	// 重发工作副本中的完整记录（upsert 语义），而不只是 sort_order。
	count := len(sess.Items())
	err = sess.Save(ctx, func(ctx context.Context, p database.Project) error {
		return h.db.WithContext(ctx).Save(&p).Error
	}, nil)
	if err != nil {
		Internal(c, "failed to persist new order")
		return
	}

	c.JSON(http.StatusOK, gin.H{"reordered": count})
}

func (h *ProjectHandler) loadOrdered(c *gin.Context) ([]database.Project, error) {
	var projects []database.Project
	err := h.db.WithContext(c.Request.Context()).
		Order("sort_order ASC, id ASC").
		Find(&projects).Error
	return projects, err
}

func (h *ProjectHandler) findProject(c *gin.Context) (*database.Project, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		BadRequest(c, "invalid project id")
		return nil, false
	}

	var project database.Project
	if err := h.db.WithContext(c.Request.Context()).First(&project, uint(id)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "project not found")
		} else {
			Internal(c, "failed to query project")
		}
		return nil, false
	}
	return &project, true
}
