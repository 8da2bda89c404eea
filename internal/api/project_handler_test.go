package api

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"mefolio/internal/database"
)

func newProjectRouter(t *testing.T, db *gorm.DB) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	handler := NewProjectHandler(db)
	router := gin.New()
	group := router.Group("/v1/admin/projects")
	group.GET("", handler.ListAllProjects)
	group.POST("", handler.CreateProject)
	group.PUT("/:id", handler.UpdateProject)
	group.DELETE("/:id", handler.DeleteProject)
	group.POST("/reorder/drag", handler.ReorderByDrag)
	group.POST("/reorder/step", handler.ReorderByStep)
	return router
}

func seedProjects(t *testing.T, db *gorm.DB, titles []string, hidden map[string]bool) {
	t.Helper()
	for i, title := range titles {
		p := database.Project{
			TitleZH:   title,
			TitleEN:   title,
			SortOrder: i,
			Visible:   !hidden[title],
		}
		if err := db.Create(&p).Error; err != nil {
			t.Fatalf("seed project %s: %v", title, err)
		}
	}
}

func orderedTitles(t *testing.T, db *gorm.DB) []string {
	t.Helper()
	var rows []database.Project
	if err := db.Order("sort_order ASC, id ASC").Find(&rows).Error; err != nil {
		t.Fatalf("load projects: %v", err)
	}
	titles := make([]string, 0, len(rows))
	for _, r := range rows {
		titles = append(titles, r.TitleEN)
	}
	return titles
}

func assertTitles(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("titles = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("titles = %v, want %v", got, want)
		}
	}
}

func TestReorderByDrag_MovesAndPersists(t *testing.T) {
	db := newAPITestDB(t)
	seedProjects(t, db, []string{"a", "b", "c", "d"}, nil)
	router := newProjectRouter(t, db)

	rec := doJSON(t, router, http.MethodPost, "/v1/admin/projects/reorder/drag", `{"from":0,"to":2}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if body := decodeBody(t, rec); body["reordered"].(float64) != 4 {
		t.Fatalf("reordered = %v, want 4", body["reordered"])
	}

	assertTitles(t, orderedTitles(t, db), []string{"b", "c", "a", "d"})

	// 持久化后的排序值必须稠密连续。
	var rows []database.Project
	if err := db.Order("sort_order ASC").Find(&rows).Error; err != nil {
		t.Fatalf("load projects: %v", err)
	}
	for i, r := range rows {
		if r.SortOrder != i {
			t.Fatalf("sort_order[%d] = %d, want %d", i, r.SortOrder, i)
		}
	}
}

func TestReorderByDrag_InvalidRange(t *testing.T) {
	db := newAPITestDB(t)
	seedProjects(t, db, []string{"a", "b"}, nil)
	router := newProjectRouter(t, db)

	rec := doJSON(t, router, http.MethodPost, "/v1/admin/projects/reorder/drag", `{"from":0,"to":5}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	assertTitles(t, orderedTitles(t, db), []string{"a", "b"})
}

func TestReorderByStep_SwapsNeighbors(t *testing.T) {
	db := newAPITestDB(t)
	seedProjects(t, db, []string{"a", "b", "c"}, nil)
	router := newProjectRouter(t, db)

	rec := doJSON(t, router, http.MethodPost, "/v1/admin/projects/reorder/step", `{"index":1,"direction":-1}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	assertTitles(t, orderedTitles(t, db), []string{"b", "a", "c"})
}

func TestReorderByStep_EdgeIsNoop(t *testing.T) {
	db := newAPITestDB(t)
	seedProjects(t, db, []string{"a", "b", "c"}, nil)
	router := newProjectRouter(t, db)

	rec := doJSON(t, router, http.MethodPost, "/v1/admin/projects/reorder/step", `{"index":0,"direction":-1}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	assertTitles(t, orderedTitles(t, db), []string{"a", "b", "c"})
}

func TestReorderByDrag_VisibleOnlyLeavesHiddenUntouched(t *testing.T) {
	db := newAPITestDB(t)
	seedProjects(t, db, []string{"a", "hidden", "b", "c"}, map[string]bool{"hidden": true})
	router := newProjectRouter(t, db)

	rec := doJSON(t, router, http.MethodPost, "/v1/admin/projects/reorder/drag", `{"from":0,"to":2,"visibleOnly":true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if body := decodeBody(t, rec); body["reordered"].(float64) != 3 {
		t.Fatalf("reordered = %v, want 3", body["reordered"])
	}

	var hiddenRow database.Project
	if err := db.Where("title_en = ?", "hidden").First(&hiddenRow).Error; err != nil {
		t.Fatalf("load hidden row: %v", err)
	}
	if hiddenRow.SortOrder != 1 {
		t.Fatalf("hidden sort_order = %d, want untouched 1", hiddenRow.SortOrder)
	}

	// 可见条目在过滤后的序列内重排为 b, c, a。
	var visible []database.Project
	if err := db.Where("visible = ?", true).Order("sort_order ASC, id ASC").Find(&visible).Error; err != nil {
		t.Fatalf("load visible rows: %v", err)
	}
	got := make([]string, 0, len(visible))
	for _, r := range visible {
		got = append(got, r.TitleEN)
	}
	assertTitles(t, got, []string{"b", "c", "a"})
}

func TestCreateProject_AppendsAtEnd(t *testing.T) {
	db := newAPITestDB(t)
	seedProjects(t, db, []string{"a", "b"}, nil)
	router := newProjectRouter(t, db)

	rec := doJSON(t, router, http.MethodPost, "/v1/admin/projects", `{"titleZh":"新作品","titleEn":"new"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if body := decodeBody(t, rec); body["sortOrder"].(float64) != 2 {
		t.Fatalf("sortOrder = %v, want 2", body["sortOrder"])
	}
}

func TestUpdateAndDeleteProject(t *testing.T) {
	db := newAPITestDB(t)
	seedProjects(t, db, []string{"a"}, nil)
	router := newProjectRouter(t, db)

	var row database.Project
	if err := db.First(&row).Error; err != nil {
		t.Fatalf("load row: %v", err)
	}

	rec := doJSON(t, router, http.MethodPut, "/v1/admin/projects/1", `{"titleZh":"改","titleEn":"changed","visible":false}`)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("update status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if err := db.First(&row, row.ID).Error; err != nil {
		t.Fatalf("reload row: %v", err)
	}
	if row.TitleEN != "changed" || row.Visible {
		t.Fatalf("update not applied: %+v", row)
	}

	rec = doJSON(t, router, http.MethodDelete, "/v1/admin/projects/1", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}
	rec = doJSON(t, router, http.MethodDelete, "/v1/admin/projects/1", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("second delete status = %d, want 404", rec.Code)
	}
}
