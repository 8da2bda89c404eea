package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"mefolio/internal/api/middleware"
	"mefolio/internal/database"
	"mefolio/internal/profile"
)

func newAPITestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&database.ResumeProfile{}, &database.ProfileDevice{}, &database.Project{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// newProfileRouter 搭一个只挂档案路由的引擎。window=0 时限流形同虚设。
func newProfileRouter(t *testing.T, db *gorm.DB, window time.Duration) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := profile.NewStore(db)
	svc := profile.NewService(store, profile.NewRateLimiter(window), 2*time.Second)
	handler := NewProfileHandler(svc, store, nil, nil)

	router := gin.New()
	group := router.Group("/v1/profile")
	group.POST("/save", handler.SaveProfile)
	group.GET("/load", handler.LoadProfile)
	group.POST("/claim", handler.ClaimProfile)
	group.GET("/print-link", handler.GetPrintLink)

	internal := router.Group("/internal")
	internal.Use(middleware.InternalSecretMiddleware("test-secret"))
	internal.GET("/print/profiles/:id", handler.GetPrintData)

	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return out
}

func saveBody(name, token string, baseline int64) string {
	return fmt.Sprintf(
		`{"profileName":%q,"resumeData":{"basics":{"name":"A"}},"deviceToken":%q,"lastSavedTimestamp":%d}`,
		name, token, baseline,
	)
}

func TestSaveProfile_CreateThenUpdate(t *testing.T) {
	router := newProfileRouter(t, newAPITestDB(t), 0)

	rec := doJSON(t, router, http.MethodPost, "/v1/profile/save", saveBody("alice", "tok-a", 0))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", rec.Code, rec.Body.String())
	}
	created := decodeBody(t, rec)
	if created["action"] != "created" {
		t.Fatalf("action = %v, want created", created["action"])
	}
	baseline := int64(created["updatedAt"].(float64))
	if baseline <= 0 {
		t.Fatal("create response must carry an epoch-millis baseline")
	}

	rec = doJSON(t, router, http.MethodPost, "/v1/profile/save", saveBody("alice", "tok-a", baseline))
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if updated := decodeBody(t, rec); updated["action"] != "updated" {
		t.Fatalf("action = %v, want updated", updated["action"])
	}
}

func TestSaveProfile_NameTaken(t *testing.T) {
	router := newProfileRouter(t, newAPITestDB(t), 0)

	doJSON(t, router, http.MethodPost, "/v1/profile/save", saveBody("bob", "tok-1", 0))
	rec := doJSON(t, router, http.MethodPost, "/v1/profile/save", saveBody("bob", "tok-2", 0))
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	if body := decodeBody(t, rec); body["kind"] != "name_taken" {
		t.Fatalf("kind = %v, want name_taken", body["kind"])
	}
}

func TestSaveProfile_ConflictCarriesServerSnapshot(t *testing.T) {
	router := newProfileRouter(t, newAPITestDB(t), 0)

	rec := doJSON(t, router, http.MethodPost, "/v1/profile/save", saveBody("carol", "tok-c", 0))
	serverUpdatedAt := int64(decodeBody(t, rec)["updatedAt"].(float64))

	// 基线落后于服务器超过容差，视为并发冲突。
	stale := serverUpdatedAt - 3000
	rec = doJSON(t, router, http.MethodPost, "/v1/profile/save", saveBody("carol", "tok-c", stale))
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["kind"] != "conflict" {
		t.Fatalf("kind = %v, want conflict", body["kind"])
	}
	snapshot, ok := body["profile"].(map[string]any)
	if !ok {
		t.Fatalf("conflict response must carry the server snapshot, got %v", body["profile"])
	}
	if snapshot["profileName"] != "carol" {
		t.Fatalf("snapshot name = %v", snapshot["profileName"])
	}
	if _, exists := snapshot["deviceToken"]; exists {
		t.Fatal("snapshot must not expose device tokens")
	}
	if _, exists := body["serverUpdatedAt"]; !exists {
		t.Fatal("conflict response must carry serverUpdatedAt")
	}
	if strings.Contains(rec.Body.String(), "tok-c") {
		t.Fatal("device token leaked into conflict response")
	}
}

func TestSaveProfile_Validation(t *testing.T) {
	router := newProfileRouter(t, newAPITestDB(t), 0)

	rec := doJSON(t, router, http.MethodPost, "/v1/profile/save", saveBody("x", "tok", 0))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("short name status = %d, want 400", rec.Code)
	}

	rec = doJSON(t, router, http.MethodPost, "/v1/profile/save", `{"profileName":"valid-name","deviceToken":"tok"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing data status = %d, want 400", rec.Code)
	}
}

func TestSaveProfile_RateLimited(t *testing.T) {
	router := newProfileRouter(t, newAPITestDB(t), time.Hour)

	rec := doJSON(t, router, http.MethodPost, "/v1/profile/save", saveBody("dave", "tok-d", 0))
	if rec.Code != http.StatusCreated {
		t.Fatalf("first save status = %d", rec.Code)
	}
	rec = doJSON(t, router, http.MethodPost, "/v1/profile/save", saveBody("dave", "tok-d", 0))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second save status = %d, want 429", rec.Code)
	}
}

func TestLoadProfile_Selectors(t *testing.T) {
	router := newProfileRouter(t, newAPITestDB(t), 0)
	doJSON(t, router, http.MethodPost, "/v1/profile/save", saveBody("erin", "tok-e", 0))

	rec := doJSON(t, router, http.MethodGet, "/v1/profile/load?name=erin", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("load by name status = %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["profileName"] != "erin" {
		t.Fatalf("profileName = %v", body["profileName"])
	}

	rec = doJSON(t, router, http.MethodGet, "/v1/profile/load?device_token=tok-e", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("load by token status = %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodGet, "/v1/profile/load", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("load without selector status = %d, want 400", rec.Code)
	}

	rec = doJSON(t, router, http.MethodGet, "/v1/profile/load?name=nobody", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("load unknown status = %d, want 404", rec.Code)
	}
}

func TestClaimProfile(t *testing.T) {
	db := newAPITestDB(t)
	router := newProfileRouter(t, db, 0)
	doJSON(t, router, http.MethodPost, "/v1/profile/save", saveBody("frank", "tok-old", 0))

	rec := doJSON(t, router, http.MethodPost, "/v1/profile/claim", `{"profileName":"frank","deviceToken":"tok-new"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("claim status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if body := decodeBody(t, rec); body["action"] != "linked" {
		t.Fatalf("action = %v, want linked", body["action"])
	}

	// 新设备随即可以授权更新。
	rec = doJSON(t, router, http.MethodGet, "/v1/profile/load?name=frank", "")
	baseline := int64(decodeBody(t, rec)["updatedAt"].(float64))
	rec = doJSON(t, router, http.MethodPost, "/v1/profile/save", saveBody("frank", "tok-new", baseline))
	if rec.Code != http.StatusOK {
		t.Fatalf("save from claimed device status = %d, body = %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, router, http.MethodPost, "/v1/profile/claim", `{"profileName":"ghost","deviceToken":"tok-x"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("claim unknown status = %d, want 404", rec.Code)
	}
}

func TestGetPrintLink_PdfNotReady(t *testing.T) {
	router := newProfileRouter(t, newAPITestDB(t), 0)
	doJSON(t, router, http.MethodPost, "/v1/profile/save", saveBody("grace", "tok-g", 0))

	rec := doJSON(t, router, http.MethodGet, "/v1/profile/print-link?name=grace&device_token=tok-g", "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}

	// 未链接设备被当作名称占用处理。
	rec = doJSON(t, router, http.MethodGet, "/v1/profile/print-link?name=grace&device_token=tok-wrong", "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("unlinked device status = %d, want 409", rec.Code)
	}
	if body := decodeBody(t, rec); body["kind"] != "name_taken" {
		t.Fatalf("kind = %v, want name_taken", body["kind"])
	}
}

func TestGetPrintData_RequiresInternalSecret(t *testing.T) {
	db := newAPITestDB(t)
	router := newProfileRouter(t, db, 0)
	doJSON(t, router, http.MethodPost, "/v1/profile/save", saveBody("heidi", "tok-h", 0))

	var p database.ResumeProfile
	if err := db.Where("profile_name = ?", "heidi").First(&p).Error; err != nil {
		t.Fatalf("load profile row: %v", err)
	}

	path := fmt.Sprintf("/internal/print/profiles/%d", p.ID)
	rec := doJSON(t, router, http.MethodGet, path, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("without secret status = %d, want 401", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("X-Internal-Secret", "test-secret")
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("with secret status = %d, body = %s", res.Code, res.Body.String())
	}
	body := decodeBody(t, res)
	if body["profile_name"] != "heidi" {
		t.Fatalf("profile_name = %v", body["profile_name"])
	}
	if _, ok := body["document"]; !ok {
		t.Fatal("print data must carry the parsed document")
	}
}
