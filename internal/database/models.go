package database

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AdminUser 表示后台管理账号。
type AdminUser struct {
	gorm.Model
	Username           string `gorm:"uniqueIndex;size:64"`
	PasswordHash       string `gorm:"size:255"`
	MustChangePassword bool   `gorm:"default:false"`
}

// ResumeProfile 表示访客保存的简历档案。
// 名称是面向人的唯一标识，设备令牌集合（profile_devices）承担轻量授权。
type ResumeProfile struct {
	gorm.Model
	ProfileName  string          `gorm:"uniqueIndex;size:100"`
	ResumeData   datatypes.JSON  `gorm:"type:jsonb"` // 简历正文，核心协议不校验其内容
	Layout       string          `gorm:"size:32;default:classic"`
	Palette      string          `gorm:"size:32;default:clean-blue"`
	ShowIcons    bool            `gorm:"default:true"`
	FontScale    int             `gorm:"default:100"`
	Locale       string          `gorm:"size:8;default:en"`
	PdfObjectKey string          `gorm:"size:512"`
	PrintStatus  string          `gorm:"size:32"`
	Devices      []ProfileDevice `gorm:"constraint:OnDelete:CASCADE"`
}

// ProfileDevice 记录已获授权更新某档案的设备令牌。
// 联合唯一索引保证同一令牌只会被记录一次，链接操作因此天然幂等。
type ProfileDevice struct {
	gorm.Model
	ResumeProfileID uint   `gorm:"index;uniqueIndex:idx_profile_token"`
	Token           string `gorm:"size:128;uniqueIndex:idx_profile_token"`
}

// Project 表示作品集条目（中英双语字段）。
type Project struct {
	gorm.Model
	TitleZH        string         `gorm:"size:255"`
	TitleEN        string         `gorm:"size:255"`
	SummaryZH      string         `gorm:"type:text"`
	SummaryEN      string         `gorm:"type:text"`
	Link           string         `gorm:"size:512"`
	CoverObjectKey string         `gorm:"size:512"`
	Tags           datatypes.JSON `gorm:"type:jsonb"` // 字符串数组
	SortOrder      int            `gorm:"index"`
	Visible        bool           `gorm:"default:true"`
}

// Award 表示获奖记录。
type Award struct {
	gorm.Model
	TitleZH   string `gorm:"size:255"`
	TitleEN   string `gorm:"size:255"`
	Issuer    string `gorm:"size:255"`
	Year      int
	SortOrder int  `gorm:"index"`
	Visible   bool `gorm:"default:true"`
}

// Experience 表示工作/教育经历。
type Experience struct {
	gorm.Model
	OrgZH     string `gorm:"size:255"`
	OrgEN     string `gorm:"size:255"`
	RoleZH    string `gorm:"size:255"`
	RoleEN    string `gorm:"size:255"`
	Period    string `gorm:"size:64"`
	DetailZH  string `gorm:"type:text"`
	DetailEN  string `gorm:"type:text"`
	SortOrder int    `gorm:"index"`
	Visible   bool   `gorm:"default:true"`
}

// Skill 表示技能条目。
type Skill struct {
	gorm.Model
	Name      string `gorm:"size:128"`
	Category  string `gorm:"size:64"`
	Level     int    `gorm:"default:0"`
	SortOrder int    `gorm:"index"`
	Visible   bool   `gorm:"default:true"`
}

// SocialLink 表示社交主页链接。
type SocialLink struct {
	gorm.Model
	Platform  string `gorm:"size:64"`
	URL       string `gorm:"size:512"`
	Icon      string `gorm:"size:64"`
	SortOrder int    `gorm:"index"`
	Visible   bool   `gorm:"default:true"`
}

// Game 表示站点内嵌的小游戏条目。
type Game struct {
	gorm.Model
	TitleZH   string `gorm:"size:255"`
	TitleEN   string `gorm:"size:255"`
	Path      string `gorm:"size:512"`
	SortOrder int    `gorm:"index"`
	Visible   bool   `gorm:"default:true"`
}

// SiteConfig 表示站点级键值配置（标题、主题、默认语言等）。
type SiteConfig struct {
	gorm.Model
	Key   string         `gorm:"uniqueIndex;size:64"`
	Value datatypes.JSON `gorm:"type:jsonb"`
}

// Asset 记录后台上传到对象存储的素材。
type Asset struct {
	gorm.Model
	ObjectKey   string `gorm:"uniqueIndex;size:512"`
	ContentType string `gorm:"size:128"`
	Size        int64
}

// AllModels 返回需要 AutoMigrate 的全部模型。
func AllModels() []any {
	return []any{
		&AdminUser{},
		&ResumeProfile{},
		&ProfileDevice{},
		&Project{},
		&Award{},
		&Experience{},
		&Skill{},
		&SocialLink{},
		&Game{},
		&SiteConfig{},
		&Asset{},
	}
}
