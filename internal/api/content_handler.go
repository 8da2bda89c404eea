package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"mefolio/internal/database"
)

// ContentHandler 提供站点公开内容的只读端点。
// 所有列表都按 sort_order 升序返回，排序由后台的重排会话维护。
type ContentHandler struct {
	db *gorm.DB
}

// NewContentHandler 构造 ContentHandler。
func NewContentHandler(db *gorm.DB) *ContentHandler {
	return &ContentHandler{db: db}
}

// GetSiteConfig 返回全部站点级键值配置。
func (h *ContentHandler) GetSiteConfig(c *gin.Context) {
	var rows []database.SiteConfig
	if err := h.db.WithContext(c.Request.Context()).Find(&rows).Error; err != nil {
		Internal(c, "failed to load site config")
		return
	}

	out := make(map[string]datatypes.JSON, len(rows))
	for _, row := range rows {
		out[row.Key] = row.Value
	}
	c.JSON(http.StatusOK, out)
}

// listVisible 按统一约定查询可见条目。
func listVisible[T any](db *gorm.DB, c *gin.Context) ([]T, bool) {
	var rows []T
	if err := db.WithContext(c.Request.Context()).
		Where("visible = ?", true).
		Order("sort_order ASC, id ASC").
		Find(&rows).Error; err != nil {
		Internal(c, "failed to load content")
		return nil, false
	}
	return rows, true
}

type projectItem struct {
	ID        uint           `json:"id"`
	TitleZH   string         `json:"titleZh"`
	TitleEN   string         `json:"titleEn"`
	SummaryZH string         `json:"summaryZh"`
	SummaryEN string         `json:"summaryEn"`
	Link      string         `json:"link"`
	Tags      datatypes.JSON `json:"tags"`
	SortOrder int            `json:"sortOrder"`
}

// ListProjects 返回可见的作品集条目。
func (h *ContentHandler) ListProjects(c *gin.Context) {
	rows, ok := listVisible[database.Project](h.db, c)
	if !ok {
		return
	}
	items := make([]projectItem, 0, len(rows))
	for _, r := range rows {
		items = append(items, projectItem{
			ID:        r.ID,
			TitleZH:   r.TitleZH,
			TitleEN:   r.TitleEN,
			SummaryZH: r.SummaryZH,
			SummaryEN: r.SummaryEN,
			Link:      r.Link,
			Tags:      r.Tags,
			SortOrder: r.SortOrder,
		})
	}
	c.JSON(http.StatusOK, items)
}

type awardItem struct {
	ID        uint   `json:"id"`
	TitleZH   string `json:"titleZh"`
	TitleEN   string `json:"titleEn"`
	Issuer    string `json:"issuer"`
	Year      int    `json:"year"`
	SortOrder int    `json:"sortOrder"`
}

// ListAwards 返回可见的获奖记录。
func (h *ContentHandler) ListAwards(c *gin.Context) {
	rows, ok := listVisible[database.Award](h.db, c)
	if !ok {
		return
	}
	items := make([]awardItem, 0, len(rows))
	for _, r := range rows {
		items = append(items, awardItem{
			ID:        r.ID,
			TitleZH:   r.TitleZH,
			TitleEN:   r.TitleEN,
			Issuer:    r.Issuer,
			Year:      r.Year,
			SortOrder: r.SortOrder,
		})
	}
	c.JSON(http.StatusOK, items)
}

type experienceItem struct {
	ID        uint   `json:"id"`
	OrgZH     string `json:"orgZh"`
	OrgEN     string `json:"orgEn"`
	RoleZH    string `json:"roleZh"`
	RoleEN    string `json:"roleEn"`
	Period    string `json:"period"`
	DetailZH  string `json:"detailZh"`
	DetailEN  string `json:"detailEn"`
	SortOrder int    `json:"sortOrder"`
}

// ListExperiences 返回可见的经历条目。
func (h *ContentHandler) ListExperiences(c *gin.Context) {
	rows, ok := listVisible[database.Experience](h.db, c)
	if !ok {
		return
	}
	items := make([]experienceItem, 0, len(rows))
	for _, r := range rows {
		items = append(items, experienceItem{
			ID:        r.ID,
			OrgZH:     r.OrgZH,
			OrgEN:     r.OrgEN,
			RoleZH:    r.RoleZH,
			RoleEN:    r.RoleEN,
			Period:    r.Period,
			DetailZH:  r.DetailZH,
			DetailEN:  r.DetailEN,
			SortOrder: r.SortOrder,
		})
	}
	c.JSON(http.StatusOK, items)
}

type skillItem struct {
	ID        uint   `json:"id"`
	Name      string `json:"name"`
	Category  string `json:"category"`
	Level     int    `json:"level"`
	SortOrder int    `json:"sortOrder"`
}

// ListSkills 返回可见的技能条目。
func (h *ContentHandler) ListSkills(c *gin.Context) {
	rows, ok := listVisible[database.Skill](h.db, c)
	if !ok {
		return
	}
	items := make([]skillItem, 0, len(rows))
	for _, r := range rows {
		items = append(items, skillItem{
			ID:        r.ID,
			Name:      r.Name,
			Category:  r.Category,
			Level:     r.Level,
			SortOrder: r.SortOrder,
		})
	}
	c.JSON(http.StatusOK, items)
}

type socialLinkItem struct {
	ID        uint   `json:"id"`
	Platform  string `json:"platform"`
	URL       string `json:"url"`
	Icon      string `json:"icon"`
	SortOrder int    `json:"sortOrder"`
}

// ListSocialLinks 返回可见的社交链接。
func (h *ContentHandler) ListSocialLinks(c *gin.Context) {
	rows, ok := listVisible[database.SocialLink](h.db, c)
	if !ok {
		return
	}
	items := make([]socialLinkItem, 0, len(rows))
	for _, r := range rows {
		items = append(items, socialLinkItem{
			ID:        r.ID,
			Platform:  r.Platform,
			URL:       r.URL,
			Icon:      r.Icon,
			SortOrder: r.SortOrder,
		})
	}
	c.JSON(http.StatusOK, items)
}

type gameItem struct {
	ID        uint   `json:"id"`
	TitleZH   string `json:"titleZh"`
	TitleEN   string `json:"titleEn"`
	Path      string `json:"path"`
	SortOrder int    `json:"sortOrder"`
}

// ListGames 返回可见的小游戏条目。
func (h *ContentHandler) ListGames(c *gin.Context) {
	rows, ok := listVisible[database.Game](h.db, c)
	if !ok {
		return
	}
	items := make([]gameItem, 0, len(rows))
	for _, r := range rows {
		items = append(items, gameItem{
			ID:        r.ID,
			TitleZH:   r.TitleZH,
			TitleEN:   r.TitleEN,
			Path:      r.Path,
			SortOrder: r.SortOrder,
		})
	}
	c.JSON(http.StatusOK, items)
}
