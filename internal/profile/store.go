package profile

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"mefolio/internal/database"
)

// Store 提供 ResumeProfile 的持久化读写。
// 名称唯一约束由数据库承担，并发创建的先后由存储层原子裁决，
// 应用层不做 check-then-insert。
type Store struct {
	db *gorm.DB
}

// NewStore 构造 Store。
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// FindByName 按精确名称查找档案，附带已授权设备列表。
// 未命中返回 ErrNotFound。
func (s *Store) FindByName(ctx context.Context, name string) (*database.ResumeProfile, error) {
	var p database.ResumeProfile
	err := s.db.WithContext(ctx).
		Preload("Devices").
		Where("profile_name = ?", name).
		First(&p).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, ErrNotFound
	case err != nil:
		return nil, fmt.Errorf("find profile by name: %w", err)
	}
	return &p, nil
}

// FindByID 按主键查找档案（打印管线使用）。未命中返回 ErrNotFound。
func (s *Store) FindByID(ctx context.Context, id uint) (*database.ResumeProfile, error) {
	var p database.ResumeProfile
	err := s.db.WithContext(ctx).First(&p, id).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, ErrNotFound
	case err != nil:
		return nil, fmt.Errorf("find profile by id: %w", err)
	}
	return &p, nil
}

// FindLatestByDeviceToken 在包含该设备令牌的档案中返回最近更新的一个。
// 未命中返回 ErrNotFound。
func (s *Store) FindLatestByDeviceToken(ctx context.Context, token string) (*database.ResumeProfile, error) {
	var p database.ResumeProfile
	err := s.db.WithContext(ctx).
		Preload("Devices").
		Joins("JOIN profile_devices ON profile_devices.resume_profile_id = resume_profiles.id").
		Where("profile_devices.token = ? AND profile_devices.deleted_at IS NULL", token).
		Order("resume_profiles.updated_at DESC").
		First(&p).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, ErrNotFound
	case err != nil:
		return nil, fmt.Errorf("find profile by device: %w", err)
	}
	return &p, nil
}

// Insert 创建新档案；token 非空时一并写入首个授权设备。
// 名称唯一约束冲突映射为 ErrNameTaken。
func (s *Store) Insert(ctx context.Context, p *database.ResumeProfile, token string) error {
	if token != "" {
		p.Devices = []database.ProfileDevice{{Token: token}}
	}

	err := s.db.WithContext(ctx).Create(p).Error
	switch {
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrNameTaken
	case err != nil:
		return fmt.Errorf("insert profile: %w", err)
	}
	return nil
}

// Update 覆盖档案字段并重新加载；updated_at 由 GORM 在同一次写入中推进。
func (s *Store) Update(ctx context.Context, id uint, fields map[string]any) (*database.ResumeProfile, error) {
	if err := s.db.WithContext(ctx).
		Model(&database.ResumeProfile{}).
		Where("id = ?", id).
		Updates(fields).Error; err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}

	var p database.ResumeProfile
	if err := s.db.WithContext(ctx).Preload("Devices").First(&p, id).Error; err != nil {
		return nil, fmt.Errorf("reload profile: %w", err)
	}
	return &p, nil
}

// LinkDevice 将令牌加入档案的授权集合。令牌已存在时静默跳过（幂等）。
func (s *Store) LinkDevice(ctx context.Context, profileID uint, token string) error {
	device := database.ProfileDevice{
		ResumeProfileID: profileID,
		Token:           token,
	}
	if err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&device).Error; err != nil {
		// 某些驱动在 DoNothing 下仍会返回重复键错误，同样视为已链接。
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil
		}
		return fmt.Errorf("link device: %w", err)
	}
	return nil
}

// DeviceLinked 判断令牌是否已在档案的授权集合内。
func DeviceLinked(p *database.ResumeProfile, token string) bool {
	if token == "" {
		return false
	}
	for _, d := range p.Devices {
		if d.Token == token {
			return true
		}
	}
	return false
}
