package profile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"mefolio/internal/database"
)

func newSyncTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&database.ResumeProfile{}, &database.ProfileDevice{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// newTestService 返回限流形同虚设的同步服务，便于连续调用。
func newTestService(t *testing.T) *Service {
	t.Helper()
	limiter := NewRateLimiter(5 * time.Second)
	cur := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time {
		cur = cur.Add(time.Minute)
		return cur
	}
	return NewService(NewStore(newSyncTestDB(t)), limiter, 2*time.Second)
}

func validInput(name, token string) SaveInput {
	return SaveInput{
		ProfileName: name,
		ResumeData:  datatypes.JSON(`{"sections":[{"title":"Education"}]}`),
		DeviceToken: token,
	}
}

func TestSave_CreatesProfileWithDefaults(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	res, err := svc.Save(ctx, validInput("alice", "tok-a"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if res.Action != ActionCreated {
		t.Fatalf("action = %s, want created", res.Action)
	}
	if res.ID == 0 {
		t.Fatal("created profile must carry a server-assigned id")
	}

	p, err := svc.Load(ctx, "alice", "")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if p.Layout != "classic" || p.Palette != "clean-blue" || !p.ShowIcons || p.FontScale != 100 || p.Locale != "en" {
		t.Fatalf("defaults not applied: %+v", p)
	}
	if !DeviceLinked(p, "tok-a") {
		t.Fatal("creating device should be the first linked device")
	}
}

func TestSave_ValidatesNameAndData(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	in := validInput("  a  ", "tok")
	if _, err := svc.Save(ctx, in); !errors.Is(err, ErrInvalidName) {
		t.Fatalf("short name: err = %v, want ErrInvalidName", err)
	}

	in = validInput(strings.Repeat("x", 101), "tok")
	if _, err := svc.Save(ctx, in); !errors.Is(err, ErrInvalidName) {
		t.Fatalf("long name: err = %v, want ErrInvalidName", err)
	}

	in = validInput("alice", "tok")
	in.ResumeData = nil
	if _, err := svc.Save(ctx, in); !errors.Is(err, ErrMissingData) {
		t.Fatalf("missing data: err = %v, want ErrMissingData", err)
	}
}

func TestSave_NameTakenForForeignDevice(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Save(ctx, validInput("alice", "tok-a")); err != nil {
		t.Fatalf("seed save: %v", err)
	}

	if _, err := svc.Save(ctx, validInput("alice", "tok-b")); !errors.Is(err, ErrNameTaken) {
		t.Fatalf("foreign device: err = %v, want ErrNameTaken", err)
	}
	if _, err := svc.Save(ctx, validInput("alice", "")); !errors.Is(err, ErrNameTaken) {
		t.Fatalf("empty token: err = %v, want ErrNameTaken", err)
	}
}

func TestSave_AuthorizedUpdateAdvancesUpdatedAt(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created, err := svc.Save(ctx, validInput("alice", "tok-a"))
	if err != nil {
		t.Fatalf("seed save: %v", err)
	}

	in := validInput("alice", "tok-a")
	in.Palette = "ink"
	res, err := svc.Save(ctx, in)
	if err != nil {
		t.Fatalf("update save: %v", err)
	}
	if res.Action != ActionUpdated {
		t.Fatalf("action = %s, want updated", res.Action)
	}
	if !res.UpdatedAt.After(created.UpdatedAt) {
		t.Fatalf("updatedAt must strictly advance: %s -> %s", created.UpdatedAt, res.UpdatedAt)
	}

	p, err := svc.Load(ctx, "alice", "")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if p.Palette != "ink" {
		t.Fatalf("palette = %s, want ink", p.Palette)
	}
}

func TestSave_ConflictWhenServerAheadOfClientBaseline(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Save(ctx, validInput("alice", "tok-a")); err != nil {
		t.Fatalf("seed save: %v", err)
	}
	stored, err := svc.Load(ctx, "alice", "")
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	// 客户端基线落后 3 秒，超出 2 秒容差。
	in := validInput("alice", "tok-a")
	in.LastSavedMs = stored.UpdatedAt.Add(-3 * time.Second).UnixMilli()
	_, err = svc.Save(ctx, in)

	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("err = %v, want ConflictError", err)
	}
	if !conflict.Server.UpdatedAt.Equal(stored.UpdatedAt) {
		t.Fatalf("conflict snapshot updatedAt = %s, want %s", conflict.Server.UpdatedAt, stored.UpdatedAt)
	}

	// 落后 1 秒在容差内，写入应当放行。
	in.LastSavedMs = stored.UpdatedAt.Add(-time.Second).UnixMilli()
	if _, err := svc.Save(ctx, in); err != nil {
		t.Fatalf("save within tolerance: %v", err)
	}
}

func TestSave_RateLimited(t *testing.T) {
	limiter := NewRateLimiter(5 * time.Second)
	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	limiter.now = clock.Now
	svc := NewService(NewStore(newSyncTestDB(t)), limiter, 2*time.Second)
	ctx := context.Background()

	if _, err := svc.Save(ctx, validInput("alice", "tok-a")); err != nil {
		t.Fatalf("first save: %v", err)
	}

	clock.Advance(time.Second)
	if _, err := svc.Save(ctx, validInput("alice", "tok-a")); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("save inside window: err = %v, want ErrRateLimited", err)
	}

	clock.Advance(5 * time.Second)
	if _, err := svc.Save(ctx, validInput("alice", "tok-a")); err != nil {
		t.Fatalf("save after window: %v", err)
	}
}

func TestLoad_SelectorShapes(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Load(ctx, "", ""); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("no selector: err = %v, want ErrInvalidRequest", err)
	}
	if _, err := svc.Load(ctx, "ghost", ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown name: err = %v, want ErrNotFound", err)
	}
	if _, err := svc.Load(ctx, "", "ghost-token"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown token: err = %v, want ErrNotFound", err)
	}
}

func TestLoad_ByDeviceReturnsLatest(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Save(ctx, validInput("older", "tok-a")); err != nil {
		t.Fatalf("save older: %v", err)
	}
	if _, err := svc.Save(ctx, validInput("newer", "tok-a")); err != nil {
		t.Fatalf("save newer: %v", err)
	}

	p, err := svc.Load(ctx, "", "tok-a")
	if err != nil {
		t.Fatalf("load by device: %v", err)
	}
	if p.ProfileName != "newer" {
		t.Fatalf("loaded %q, want the most recently updated profile", p.ProfileName)
	}
}

func TestClaim_IdempotentLink(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Claim(ctx, "", "tok-b"); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("empty name: err = %v, want ErrInvalidRequest", err)
	}
	if _, err := svc.Claim(ctx, "alice", ""); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("empty token: err = %v, want ErrInvalidRequest", err)
	}
	if _, err := svc.Claim(ctx, "alice", "tok-b"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing profile: err = %v, want ErrNotFound", err)
	}

	if _, err := svc.Save(ctx, validInput("alice", "tok-a")); err != nil {
		t.Fatalf("seed save: %v", err)
	}

	for i := 0; i < 2; i++ {
		res, err := svc.Claim(ctx, "alice", "tok-b")
		if err != nil {
			t.Fatalf("claim #%d: %v", i+1, err)
		}
		if res.Action != ActionLinked {
			t.Fatalf("claim #%d action = %s, want linked", i+1, res.Action)
		}
	}

	p, err := svc.Load(ctx, "alice", "")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	count := 0
	for _, d := range p.Devices {
		if d.Token == "tok-b" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("tok-b linked %d times, want exactly once", count)
	}
}

func TestEndToEnd_TwoDeviceScenario(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	res, err := svc.Save(ctx, validInput("alice", "tok-a"))
	if err != nil || res.Action != ActionCreated {
		t.Fatalf("device A create: action=%s err=%v", res.Action, err)
	}

	if _, err := svc.Save(ctx, validInput("alice", "tok-b")); !errors.Is(err, ErrNameTaken) {
		t.Fatalf("device B create: err = %v, want ErrNameTaken", err)
	}

	res, err = svc.Claim(ctx, "alice", "tok-b")
	if err != nil || res.Action != ActionLinked {
		t.Fatalf("device B claim: action=%s err=%v", res.Action, err)
	}

	res, err = svc.Save(ctx, validInput("alice", "tok-b"))
	if err != nil || res.Action != ActionUpdated {
		t.Fatalf("device B save: action=%s err=%v", res.Action, err)
	}
}
