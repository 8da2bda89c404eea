package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"mefolio/internal/database"
	"mefolio/internal/pdf"
	"mefolio/internal/storage"
	"mefolio/internal/tasks"
)

// 档案打印状态，写回 resume_profiles.print_status。
const (
	PrintStatusProcessing = "processing"
	PrintStatusReady      = "ready"
	PrintStatusFailed     = "failed"
)

// PrintTaskHandler 消费档案打印任务：拉取渲染输入、导出 PDF、
// 上传对象存储、回写档案状态并广播进度。
type PrintTaskHandler struct {
	db             *gorm.DB
	storage        *storage.Client
	redisClient    *redis.Client
	logger         *slog.Logger
	internalSecret string
	apiBaseURL     string
}

// NewPrintTaskHandler 创建任务处理器。
func NewPrintTaskHandler(
	db *gorm.DB,
	storageClient *storage.Client,
	redisClient *redis.Client,
	logger *slog.Logger,
	internalSecret string,
	apiBaseURL string,
) *PrintTaskHandler {
	return &PrintTaskHandler{
		db:             db,
		storage:        storageClient,
		redisClient:    redisClient,
		logger:         logger,
		internalSecret: internalSecret,
		apiBaseURL:     strings.TrimRight(strings.TrimSpace(apiBaseURL), "/"),
	}
}

// ProcessTask 实现 asynq.Handler。
func (h *PrintTaskHandler) ProcessTask(ctx context.Context, t *asynq.Task) (retErr error) {
	var payload tasks.ProfilePrintPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		h.logger.Error("unmarshal task payload failed", slog.Any("error", err))
		return err
	}

	log := h.logger.With(
		slog.String("correlation_id", payload.CorrelationID),
		slog.Uint64("profile_id", uint64(payload.ProfileID)),
	)
	log.Info("starting profile print task")

	var p database.ResumeProfile
	if err := h.db.WithContext(ctx).First(&p, payload.ProfileID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warn("profile not found, skipping task")
			return nil
		}
		log.Error("query profile failed", slog.Any("error", err))
		return err
	}

	defer func() {
		if retErr == nil {
			return
		}
		if !isFinalAttempt(ctx) {
			return
		}
		// 重试耗尽才对外宣告失败，避免前端提前放弃。
		_ = h.setPrintStatus(ctx, p.ID, PrintStatusFailed, "")
		notify := PrintNotifyMessage{
			Status:        "error",
			ProfileID:     p.ID,
			ProfileName:   p.ProfileName,
			CorrelationID: payload.CorrelationID,
			ErrorMessage:  strings.TrimSpace(retErr.Error()),
		}
		if err := PublishPrintNotify(ctx, h.redisClient, notify); err != nil {
			log.Error("publish print error notification failed", slog.Any("error", err))
		}
	}()

	if err := h.setPrintStatus(ctx, p.ID, PrintStatusProcessing, ""); err != nil {
		return err
	}

	data, err := fetchPrintData(ctx, h.apiBaseURL, p.ID, h.internalSecret)
	if err != nil {
		log.Error("fetch print data failed", slog.Any("error", err))
		return err
	}

	html, err := renderPrintHTML(data)
	if err != nil {
		log.Error("render print html failed", slog.Any("error", err))
		return err
	}

	pdfBytes, err := pdf.RenderHTML(html, data.FontScale)
	if err != nil {
		log.Error("export pdf failed", slog.Any("error", err))
		return err
	}

	objectKey := fmt.Sprintf("print/%d/%s.pdf", p.ID, uuid.NewString())
	if _, err := h.storage.UploadObject(ctx, objectKey, bytes.NewReader(pdfBytes), int64(len(pdfBytes)), "application/pdf"); err != nil {
		log.Error("upload pdf failed", slog.Any("error", err))
		return err
	}

	// 覆盖旧 PDF 的对象不删除，由存储端的生命周期策略回收。
	if err := h.setPrintStatus(ctx, p.ID, PrintStatusReady, objectKey); err != nil {
		return err
	}

	notify := PrintNotifyMessage{
		Status:        "done",
		ProfileID:     p.ID,
		ProfileName:   p.ProfileName,
		CorrelationID: payload.CorrelationID,
	}
	if err := PublishPrintNotify(ctx, h.redisClient, notify); err != nil {
		log.Error("publish print done notification failed", slog.Any("error", err))
	}

	log.Info("profile print task finished", slog.String("object_key", objectKey))
	return nil
}

func (h *PrintTaskHandler) setPrintStatus(ctx context.Context, profileID uint, status, objectKey string) error {
	fields := map[string]any{"print_status": status}
	if objectKey != "" {
		fields["pdf_object_key"] = objectKey
	}
	if err := h.db.WithContext(ctx).
		Model(&database.ResumeProfile{}).
		Where("id = ?", profileID).
		Updates(fields).Error; err != nil {
		return fmt.Errorf("set print status: %w", err)
	}
	return nil
}

func isFinalAttempt(ctx context.Context) bool {
	retried, ok := asynq.GetRetryCount(ctx)
	if !ok {
		return true
	}
	max, ok := asynq.GetMaxRetry(ctx)
	if !ok {
		return true
	}
	return retried >= max
}
