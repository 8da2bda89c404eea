package profile

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/datatypes"

	"mefolio/internal/database"
)

// Action 表示一次协议操作的结果类别。
type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
	ActionLinked  Action = "linked"
)

const (
	minNameLen = 2
	maxNameLen = 100

	defaultLayout  = "classic"
	defaultPalette = "clean-blue"
	defaultLocale  = "en"
)

// SaveInput 是一次保存请求的完整输入。
// LastSavedMs 是客户端自报的上次成功保存时间（epoch 毫秒），0 表示没有基线。
type SaveInput struct {
	ProfileName string
	ResumeData  datatypes.JSON
	Layout      string
	Palette     string
	ShowIcons   *bool
	FontScale   int
	Locale      string
	DeviceToken string
	LastSavedMs int64
}

// SaveResult 是保存/认领成功后的返回。
type SaveResult struct {
	Action    Action
	ID        uint
	UpdatedAt time.Time
}

// Service 实现简历档案的多设备同步协议：按名创建、授权更新、
// 乐观并发冲突检测、跨设备认领。名称是面向人的身份标识，
// 设备令牌集合是授权机制，二者配合省掉了完整的账号体系。
type Service struct {
	store     *Store
	limiter   *RateLimiter
	tolerance time.Duration
}

// NewService 构造同步服务。tolerance 是冲突判定容差。
func NewService(store *Store, limiter *RateLimiter, tolerance time.Duration) *Service {
	return &Service{
		store:     store,
		limiter:   limiter,
		tolerance: tolerance,
	}
}

// Save 执行一次保存。按状态机分派：
//   - 名称未被占用 → 创建（ActionCreated），请求令牌成为首个授权设备；
//   - 名称已存在且令牌在授权集合内 → 冲突检测通过后覆盖（ActionUpdated）；
//   - 名称已存在且令牌不在集合内（或为空）→ ErrNameTaken。
func (s *Service) Save(ctx context.Context, in SaveInput) (SaveResult, error) {
	name := strings.TrimSpace(in.ProfileName)
	if n := utf8.RuneCountInString(name); n < minNameLen || n > maxNameLen {
		return SaveResult{}, ErrInvalidName
	}
	if len(in.ResumeData) == 0 {
		return SaveResult{}, ErrMissingData
	}

	token := strings.TrimSpace(in.DeviceToken)
	if !s.limiter.Allow(token) {
		return SaveResult{}, ErrRateLimited
	}

	existing, err := s.store.FindByName(ctx, name)
	switch {
	case errors.Is(err, ErrNotFound):
		return s.create(ctx, name, token, in)
	case err != nil:
		return SaveResult{}, err
	}

	if !DeviceLinked(existing, token) {
		return SaveResult{}, ErrNameTaken
	}

	if Staleness(existing.UpdatedAt, in.LastSavedMs, s.tolerance) == Stale {
		return SaveResult{}, &ConflictError{Server: existing}
	}

	updated, err := s.store.Update(ctx, existing.ID, map[string]any{
		"resume_data": in.ResumeData,
		"layout":      normalize(in.Layout, defaultLayout),
		"palette":     normalize(in.Palette, defaultPalette),
		"show_icons":  in.ShowIcons == nil || *in.ShowIcons,
		"font_scale":  normalizeScale(in.FontScale),
		"locale":      normalizeLocale(in.Locale),
	})
	if err != nil {
		return SaveResult{}, err
	}

	return SaveResult{Action: ActionUpdated, ID: updated.ID, UpdatedAt: updated.UpdatedAt}, nil
}

func (s *Service) create(ctx context.Context, name, token string, in SaveInput) (SaveResult, error) {
	p := &database.ResumeProfile{
		ProfileName: name,
		ResumeData:  in.ResumeData,
		Layout:      normalize(in.Layout, defaultLayout),
		Palette:     normalize(in.Palette, defaultPalette),
		ShowIcons:   in.ShowIcons == nil || *in.ShowIcons,
		FontScale:   normalizeScale(in.FontScale),
		Locale:      normalizeLocale(in.Locale),
	}

	// 两台设备用同一名称并发创建时，由唯一约束裁决先后；
	// 输掉竞争的一方拿到的结果与“名称已被他人占用”一致。
	if err := s.store.Insert(ctx, p, token); err != nil {
		return SaveResult{}, err
	}

	return SaveResult{Action: ActionCreated, ID: p.ID, UpdatedAt: p.UpdatedAt}, nil
}

// Load 按名称或设备令牌加载档案，二者必须恰好提供一个。
// 名称优先；未命中返回 ErrNotFound（对首次访问的用户是正常结果）。
func (s *Service) Load(ctx context.Context, name, token string) (*database.ResumeProfile, error) {
	name = strings.TrimSpace(name)
	token = strings.TrimSpace(token)

	switch {
	case name == "" && token == "":
		return nil, ErrInvalidRequest
	case name != "":
		return s.store.FindByName(ctx, name)
	default:
		return s.store.FindLatestByDeviceToken(ctx, token)
	}
}

// Claim 把现有档案链接到新设备（如用户在第二台设备上手输档案名）。
// 重复认领无副作用。
func (s *Service) Claim(ctx context.Context, name, token string) (SaveResult, error) {
	name = strings.TrimSpace(name)
	token = strings.TrimSpace(token)
	if name == "" || token == "" {
		return SaveResult{}, ErrInvalidRequest
	}

	p, err := s.store.FindByName(ctx, name)
	if err != nil {
		return SaveResult{}, err
	}

	if err := s.store.LinkDevice(ctx, p.ID, token); err != nil {
		return SaveResult{}, err
	}

	return SaveResult{Action: ActionLinked, ID: p.ID, UpdatedAt: p.UpdatedAt}, nil
}

// Authorized 判断令牌是否可操作指定名称的档案（打印等旁路功能使用）。
func (s *Service) Authorized(ctx context.Context, name, token string) (*database.ResumeProfile, error) {
	name = strings.TrimSpace(name)
	token = strings.TrimSpace(token)
	if name == "" || token == "" {
		return nil, ErrInvalidRequest
	}

	p, err := s.store.FindByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if !DeviceLinked(p, token) {
		return nil, ErrNameTaken
	}
	return p, nil
}

func normalize(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

func normalizeScale(scale int) int {
	if scale <= 0 {
		return 100
	}
	return scale
}

func normalizeLocale(locale string) string {
	switch locale {
	case "zh", "en":
		return locale
	}
	return defaultLocale
}
