package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dutchcoders/go-clamd"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"mefolio/internal/database"
	"mefolio/internal/storage"
)

const assetKeyPrefix = "assets/"

// AssetHandler 负责后台素材的上传、列表与访问。
// 素材本体在对象存储，元数据落库，上传前经 clamd 扫描。
type AssetHandler struct {
	db        *gorm.DB
	storage   *storage.Client
	logger    *slog.Logger
	clamdAddr string
	maxBytes  int64
}

// NewAssetHandler 构造 AssetHandler。
func NewAssetHandler(db *gorm.DB, storageClient *storage.Client, logger *slog.Logger, clamdAddr string, maxBytes int64) *AssetHandler {
	return &AssetHandler{
		db:        db,
		storage:   storageClient,
		logger:    logger,
		clamdAddr: clamdAddr,
		maxBytes:  maxBytes,
	}
}

// UploadAsset 处理受保护的图片上传，并在上传前扫描病毒。
func (h *AssetHandler) UploadAsset(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		BadRequest(c, "missing file")
		return
	}

	if h.maxBytes > 0 && file.Size > h.maxBytes {
		Error(c, http.StatusRequestEntityTooLarge, fmt.Sprintf("file exceeds %d bytes", h.maxBytes))
		return
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !allowedAssetExt(ext) {
		BadRequest(c, "unsupported file type")
		return
	}

	if h.clamdAddr != "" {
		fileReader, err := file.Open()
		if err != nil {
			Internal(c, "failed to open file")
			return
		}

		clamdClient := clamd.NewClamd(h.clamdAddr)
		abortChan := make(chan bool)
		scanChan, err := clamdClient.ScanStream(fileReader, abortChan)
		fileReader.Close()
		if err != nil {
			h.logger.Error("scan file", slog.String("error", err.Error()))
			Internal(c, "failed to scan file")
			return
		}
		defer close(abortChan)

		for result := range scanChan {
			if result.Status != clamd.RES_OK {
				BadRequest(c, "malicious file detected")
				return
			}
		}
	} else {
		h.logger.Warn("clamd address not configured, skipping virus scan")
	}

	fileReader, err := file.Open()
	if err != nil {
		Internal(c, "failed to reopen file")
		return
	}
	defer fileReader.Close()

	objectKey := assetKeyPrefix + uuid.NewString() + ext
	contentType := file.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	ctx := c.Request.Context()
	if _, err := h.storage.UploadObject(ctx, objectKey, fileReader, file.Size, contentType); err != nil {
		h.logger.Error("upload file", slog.String("error", err.Error()))
		Internal(c, "failed to upload file")
		return
	}

	asset := database.Asset{
		ObjectKey:   objectKey,
		ContentType: contentType,
		Size:        file.Size,
	}
	if err := h.db.WithContext(ctx).Create(&asset).Error; err != nil {
		h.logger.Error("record asset", slog.String("error", err.Error()))
		Internal(c, "failed to record asset")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": asset.ID, "objectKey": objectKey})
}

// ListAssets 按上传时间倒序列出素材，附带临时预览链接。
func (h *AssetHandler) ListAssets(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "60"))
	if err != nil || limit <= 0 {
		limit = 60
	}
	if limit > 200 {
		limit = 200
	}

	ctx := c.Request.Context()
	var assets []database.Asset
	if err := h.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&assets).Error; err != nil {
		h.logger.Error("list assets", slog.String("error", err.Error()))
		Internal(c, "failed to list assets")
		return
	}

	items := make([]gin.H, 0, len(assets))
	for _, a := range assets {
		url, err := h.storage.PresignedGetURL(ctx, a.ObjectKey, 10*time.Minute)
		if err != nil {
			h.logger.Error("generate asset url", slog.String("objectKey", a.ObjectKey), slog.String("error", err.Error()))
			continue
		}
		items = append(items, gin.H{
			"id":          a.ID,
			"objectKey":   a.ObjectKey,
			"previewUrl":  url,
			"contentType": a.ContentType,
			"size":        a.Size,
			"createdAt":   a.CreatedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{"items": items})
}

// GetAssetURL 返回素材的临时预签名 URL。
func (h *AssetHandler) GetAssetURL(c *gin.Context) {
	objectKey := c.Query("key")
	if !isValidAssetObjectKey(objectKey) {
		BadRequest(c, "invalid key")
		return
	}

	signedURL, err := h.storage.PresignedGetURL(c.Request.Context(), objectKey, 15*time.Minute)
	if err != nil {
		h.logger.Error("generate presigned url", slog.String("error", err.Error()))
		Internal(c, "failed to generate url")
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": signedURL})
}

// DeleteAsset 删除素材记录及其对象。
func (h *AssetHandler) DeleteAsset(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		BadRequest(c, "invalid asset id")
		return
	}

	ctx := c.Request.Context()
	var asset database.Asset
	if err := h.db.WithContext(ctx).First(&asset, uint(id)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "asset not found")
		} else {
			Internal(c, "failed to query asset")
		}
		return
	}

	if err := h.storage.DeleteObject(ctx, asset.ObjectKey); err != nil {
		h.logger.Error("delete object", slog.String("objectKey", asset.ObjectKey), slog.String("error", err.Error()))
		Internal(c, "failed to delete object")
		return
	}

	if err := h.db.WithContext(ctx).Delete(&asset).Error; err != nil {
		Internal(c, "failed to delete asset")
		return
	}
	c.Status(http.StatusNoContent)
}

func allowedAssetExt(ext string) bool {
	switch ext {
	case ".png", ".jpg", ".jpeg", ".webp", ".svg":
		return true
	}
	return false
}

func isValidAssetObjectKey(key string) bool {
	if key == "" || !utf8.ValidString(key) {
		return false
	}
	if !strings.HasPrefix(key, assetKeyPrefix) {
		return false
	}
	if strings.Contains(key, "..") || strings.Contains(key, "\\") || strings.Contains(key, "//") {
		return false
	}
	if len(key) > 200 {
		return false
	}
	return allowedAssetExt(strings.ToLower(filepath.Ext(strings.TrimSpace(key))))
}
