package users

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type staticIDGenerator struct {
	ids   []string
	index int
}

func (g *staticIDGenerator) NewID() (string, error) {
	if g.index >= len(g.ids) {
		return "", errors.New("exhausted ids")
	}
	id := g.ids[g.index]
	g.index++
	return id, nil
}

func TestRegisterHashesPasswordAndNormalizesEmail(t *testing.T) {
	service, db := newTestService(t, []string{"user-1"})

	user, err := service.Register(context.Background(), "  Reader@Example.COM ", "sufficient", "Reader One")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.Email != "reader@example.com" {
		t.Fatalf("expected normalized email, got %q", user.Email)
	}
	if user.PasswordHash == "sufficient" || user.PasswordHash == "" {
		t.Fatalf("expected hashed password, got %q", user.PasswordHash)
	}

	var stored User
	if err := db.Where("id = ?", "user-1").First(&stored).Error; err != nil {
		t.Fatalf("failed to load stored user: %v", err)
	}
	if stored.DisplayName != "Reader One" {
		t.Fatalf("unexpected display name %q", stored.DisplayName)
	}
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	service, _ := newTestService(t, []string{"user-1", "user-2"})

	if _, err := service.Register(context.Background(), "reader@example.com", "sufficient", "One"); err != nil {
		t.Fatalf("unexpected error on first registration: %v", err)
	}
	_, err := service.Register(context.Background(), "READER@example.com", "sufficient", "Two")
	if !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestRegisterRejectsShortPassword(t *testing.T) {
	service, _ := newTestService(t, []string{"user-1"})

	_, err := service.Register(context.Background(), "reader@example.com", "short", "One")
	if !errors.Is(err, ErrInvalidRegistration) {
		t.Fatalf("expected ErrInvalidRegistration, got %v", err)
	}
}

func TestAuthenticateVerifiesPassword(t *testing.T) {
	service, _ := newTestService(t, []string{"user-1"})

	if _, err := service.Register(context.Background(), "reader@example.com", "sufficient", "One"); err != nil {
		t.Fatalf("unexpected registration error: %v", err)
	}

	user, err := service.Authenticate(context.Background(), "reader@example.com", "sufficient")
	if err != nil {
		t.Fatalf("unexpected login error: %v", err)
	}
	if user.ID != "user-1" {
		t.Fatalf("unexpected user id %q", user.ID)
	}

	if _, err := service.Authenticate(context.Background(), "reader@example.com", "wrong-pass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for wrong password, got %v", err)
	}
	if _, err := service.Authenticate(context.Background(), "nobody@example.com", "sufficient"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}
}

func TestUpdateProfileReplacesDisplayName(t *testing.T) {
	service, db := newTestService(t, []string{"user-1"})

	if _, err := service.Register(context.Background(), "reader@example.com", "sufficient", "Before"); err != nil {
		t.Fatalf("unexpected registration error: %v", err)
	}

	updated, err := service.UpdateProfile(context.Background(), "user-1", "  After  ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.DisplayName != "After" {
		t.Fatalf("expected trimmed display name, got %q", updated.DisplayName)
	}

	var stored User
	if err := db.Where("id = ?", "user-1").First(&stored).Error; err != nil {
		t.Fatalf("failed to load stored user: %v", err)
	}
	if stored.DisplayName != "After" {
		t.Fatalf("expected persisted display name, got %q", stored.DisplayName)
	}

	if _, err := service.UpdateProfile(context.Background(), "user-1", "   "); !errors.Is(err, ErrInvalidRegistration) {
		t.Fatalf("expected ErrInvalidRegistration for blank name, got %v", err)
	}
	if _, err := service.UpdateProfile(context.Background(), "missing", "Name"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestTopReadersOrdersByCountThenID(t *testing.T) {
	service, db := newTestService(t, nil)

	seed := []User{
		{ID: "user-a", Email: "a@example.com", PasswordHash: "x", ChaptersReadCount: 5},
		{ID: "user-b", Email: "b@example.com", PasswordHash: "x", ChaptersReadCount: 9, GroupID: "group-1"},
		{ID: "user-c", Email: "c@example.com", PasswordHash: "x", ChaptersReadCount: 5},
		{ID: "user-d", Email: "d@example.com", PasswordHash: "x", ChaptersReadCount: 1, GroupID: "group-1"},
	}
	for index := range seed {
		if err := db.Create(&seed[index]).Error; err != nil {
			t.Fatalf("failed to seed user: %v", err)
		}
	}

	top, err := service.TopReaders(context.Background(), "", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantOrder := []string{"user-b", "user-a", "user-c"}
	if len(top) != len(wantOrder) {
		t.Fatalf("expected %d users, got %d", len(wantOrder), len(top))
	}
	for index, want := range wantOrder {
		if top[index].ID != want {
			t.Fatalf("expected %s at position %d, got %s", want, index, top[index].ID)
		}
	}

	scoped, err := service.TopReaders(context.Background(), "group-1", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(scoped) != 2 || scoped[0].ID != "user-b" || scoped[1].ID != "user-d" {
		t.Fatalf("unexpected group scoping: %#v", scoped)
	}

	none, err := service.TopReaders(context.Background(), "", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("expected empty result for non-positive limit, got %d", len(none))
	}
}

func TestListGroupedExcludesUngroupedUsers(t *testing.T) {
	service, db := newTestService(t, nil)

	seed := []User{
		{ID: "user-a", Email: "a@example.com", PasswordHash: "x"},
		{ID: "user-b", Email: "b@example.com", PasswordHash: "x", GroupID: "group-1"},
		{ID: "user-c", Email: "c@example.com", PasswordHash: "x", GroupID: "group-2"},
	}
	for index := range seed {
		if err := db.Create(&seed[index]).Error; err != nil {
			t.Fatalf("failed to seed user: %v", err)
		}
	}

	grouped, err := service.ListGrouped(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(grouped) != 2 {
		t.Fatalf("expected 2 grouped users, got %d", len(grouped))
	}
	for _, user := range grouped {
		if user.GroupID == "" {
			t.Fatalf("unexpected ungrouped user %s", user.ID)
		}
	}
}

func newTestService(t *testing.T, ids []string) (*Service, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:lumen_users_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&User{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	service, err := NewService(ServiceConfig{
		Database:   db,
		Clock:      func() time.Time { return time.Unix(1_700_000_600, 0).UTC() },
		IDProvider: &staticIDGenerator{ids: ids},
	})
	if err != nil {
		t.Fatalf("failed to construct users service: %v", err)
	}

	return service, db
}
