package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"gorm.io/datatypes"

	"mefolio/internal/api/middleware"
	"mefolio/internal/database"
	"mefolio/internal/metrics"
	"mefolio/internal/profile"
	"mefolio/internal/resume"
	"mefolio/internal/storage"
	"mefolio/internal/tasks"
)

// ProfileHandler 承接简历档案同步协议与打印旁路的 HTTP 入口。
type ProfileHandler struct {
	svc         *profile.Service
	store       *profile.Store
	asynqClient *asynq.Client
	storage     *storage.Client
}

// NewProfileHandler 构造 ProfileHandler。
func NewProfileHandler(svc *profile.Service, store *profile.Store, asynqClient *asynq.Client, storageClient *storage.Client) *ProfileHandler {
	return &ProfileHandler{
		svc:         svc,
		store:       store,
		asynqClient: asynqClient,
		storage:     storageClient,
	}
}

type saveProfileRequest struct {
	ProfileName        string         `json:"profileName"`
	ResumeData         datatypes.JSON `json:"resumeData"`
	Layout             string         `json:"layout"`
	Palette            string         `json:"palette"`
	ShowIcons          *bool          `json:"showIcons"`
	FontScale          int            `json:"fontScale"`
	Locale             string         `json:"locale"`
	DeviceToken        string         `json:"deviceToken"`
	LastSavedTimestamp int64          `json:"lastSavedTimestamp"`
}

type profileResponse struct {
	ID          uint           `json:"id"`
	ProfileName string         `json:"profileName"`
	ResumeData  datatypes.JSON `json:"resumeData"`
	Layout      string         `json:"layout"`
	Palette     string         `json:"palette"`
	ShowIcons   bool           `json:"showIcons"`
	FontScale   int            `json:"fontScale"`
	Locale      string         `json:"locale"`
	PrintStatus string         `json:"printStatus,omitempty"`
	UpdatedAt   int64          `json:"updatedAt"` // epoch 毫秒，作为下次保存的基线
	CreatedAt   time.Time      `json:"createdAt"`
}

// newProfileResponse 构造对外的档案视图。设备令牌集合绝不返回给客户端。
func newProfileResponse(p *database.ResumeProfile) profileResponse {
	return profileResponse{
		ID:          p.ID,
		ProfileName: p.ProfileName,
		ResumeData:  p.ResumeData,
		Layout:      p.Layout,
		Palette:     p.Palette,
		ShowIcons:   p.ShowIcons,
		FontScale:   p.FontScale,
		Locale:      p.Locale,
		PrintStatus: p.PrintStatus,
		UpdatedAt:   p.UpdatedAt.UnixMilli(),
		CreatedAt:   p.CreatedAt,
	}
}

// SaveProfile 执行一次保存：创建、授权更新或给出明确的失败类别。
func (h *ProfileHandler) SaveProfile(c *gin.Context) {
	var req saveProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	res, err := h.svc.Save(c.Request.Context(), profile.SaveInput{
		ProfileName: req.ProfileName,
		ResumeData:  req.ResumeData,
		Layout:      req.Layout,
		Palette:     req.Palette,
		ShowIcons:   req.ShowIcons,
		FontScale:   req.FontScale,
		Locale:      req.Locale,
		DeviceToken: req.DeviceToken,
		LastSavedMs: req.LastSavedTimestamp,
	})
	if err != nil {
		h.renderSyncError(c, err)
		return
	}

	metrics.CountSaveOutcome(string(res.Action))
	status := http.StatusOK
	if res.Action == profile.ActionCreated {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{
		"action":    res.Action,
		"id":        res.ID,
		"updatedAt": res.UpdatedAt.UnixMilli(),
	})
}

// LoadProfile 按名称或设备令牌加载档案，恰好需要其中一个。
func (h *ProfileHandler) LoadProfile(c *gin.Context) {
	name := c.Query("name")
	token := c.Query("device_token")

	p, err := h.svc.Load(c.Request.Context(), name, token)
	if err != nil {
		h.renderSyncError(c, err)
		return
	}

	c.JSON(http.StatusOK, newProfileResponse(p))
}

// ClaimProfile 把现有档案链接到新设备。
func (h *ProfileHandler) ClaimProfile(c *gin.Context) {
	var req struct {
		ProfileName string `json:"profileName"`
		DeviceToken string `json:"deviceToken"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	res, err := h.svc.Claim(c.Request.Context(), req.ProfileName, req.DeviceToken)
	if err != nil {
		h.renderSyncError(c, err)
		return
	}

	metrics.CountSaveOutcome(string(res.Action))
	c.JSON(http.StatusOK, gin.H{
		"action":    res.Action,
		"id":        res.ID,
		"updatedAt": res.UpdatedAt.UnixMilli(),
	})
}

// PrintProfile 将 PDF 生成任务入队并立即返回 202。仅限已链接设备。
func (h *ProfileHandler) PrintProfile(c *gin.Context) {
	var req struct {
		ProfileName string `json:"profileName"`
		DeviceToken string `json:"deviceToken"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	p, err := h.svc.Authorized(c.Request.Context(), req.ProfileName, req.DeviceToken)
	if err != nil {
		h.renderSyncError(c, err)
		return
	}

	correlationID := middleware.GetCorrelationID(c)
	task, err := tasks.NewProfilePrintTask(p.ID, correlationID)
	if err != nil {
		Internal(c, "failed to create task")
		return
	}

	info, err := h.asynqClient.Enqueue(task, asynq.MaxRetry(5))
	if err != nil {
		Internal(c, "failed to enqueue print task")
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"message": "print request accepted",
		"task_id": info.ID,
	})
}

// GetPrintLink 返回已生成 PDF 的预签名下载链接。
func (h *ProfileHandler) GetPrintLink(c *gin.Context) {
	p, err := h.svc.Authorized(c.Request.Context(), c.Query("name"), c.Query("device_token"))
	if err != nil {
		h.renderSyncError(c, err)
		return
	}

	if p.PdfObjectKey == "" || p.PrintStatus != "ready" {
		Conflict(c, "pdf not ready")
		return
	}

	signedURL, err := h.storage.PresignedGetURL(c.Request.Context(), p.PdfObjectKey, 5*time.Minute)
	if err != nil {
		Internal(c, "failed to generate download link")
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": signedURL})
}

// GetPrintData 返回打印 Worker 渲染所需的数据（仅内部密钥可访问）。
func (h *ProfileHandler) GetPrintData(c *gin.Context) {
	profileID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		BadRequest(c, "invalid profile id")
		return
	}

	p, err := h.store.FindByID(c.Request.Context(), uint(profileID))
	if err != nil {
		if errors.Is(err, profile.ErrNotFound) {
			NotFound(c, "profile not found")
			return
		}
		Internal(c, "failed to load profile")
		return
	}

	// resumeData 对核心协议不透明，打印按约定形状宽松解析；
	// 解析失败不阻断打印，退化为只有头部信息的文档。
	var doc resume.Document
	if err := json.Unmarshal(p.ResumeData, &doc); err != nil {
		middleware.LoggerFromContext(c).Warn("resume data does not match print shape",
			slog.Uint64("profile_id", uint64(p.ID)),
			slog.Any("error", err),
		)
		doc = resume.Document{}
	}

	c.JSON(http.StatusOK, gin.H{
		"profile_name": p.ProfileName,
		"layout":       p.Layout,
		"palette":      p.Palette,
		"show_icons":   p.ShowIcons,
		"font_scale":   p.FontScale,
		"locale":       p.Locale,
		"document":     doc,
	})
}

// renderSyncError 把协议失败类别映射为 HTTP 状态与可区分的响应体。
func (h *ProfileHandler) renderSyncError(c *gin.Context, err error) {
	var conflict *profile.ConflictError
	switch {
	case errors.As(err, &conflict):
		metrics.CountSaveOutcome("conflict")
		c.JSON(http.StatusConflict, gin.H{
			"error":           conflict.Error(),
			"kind":            "conflict",
			"profile":         newProfileResponse(conflict.Server),
			"serverUpdatedAt": conflict.Server.UpdatedAt.UnixMilli(),
		})
	case errors.Is(err, profile.ErrNameTaken):
		metrics.CountSaveOutcome("name_taken")
		c.JSON(http.StatusConflict, gin.H{
			"error": err.Error(),
			"kind":  "name_taken",
		})
	case errors.Is(err, profile.ErrInvalidName),
		errors.Is(err, profile.ErrMissingData),
		errors.Is(err, profile.ErrInvalidRequest):
		BadRequest(c, err.Error())
	case errors.Is(err, profile.ErrRateLimited):
		metrics.CountSaveOutcome("rate_limited")
		TooMany(c, err.Error())
	case errors.Is(err, profile.ErrNotFound):
		NotFound(c, err.Error())
	default:
		middleware.LoggerFromContext(c).Error("profile operation failed", slog.Any("error", err))
		Internal(c, "internal error")
	}
}
