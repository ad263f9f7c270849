package progress

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/lumenreads/lumen/internal/users"
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

func TestApplyTogglesCreatesRecordAndRecounts(t *testing.T) {
	service, db := newTestService(t, []string{"record-1", "record-2"})
	seedUser(t, db, "user-1")

	result, err := service.ApplyToggles(context.Background(), "user-1", []Toggle{
		mustToggle(t, "Genesis", 1, ActionComplete),
		mustToggle(t, "Exodus", 2, ActionComplete),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Outcomes) != 2 {
		t.Fatalf("expected 2 outcomes, got %d", len(result.Outcomes))
	}
	for index, outcome := range result.Outcomes {
		if !outcome.Applied {
			t.Fatalf("expected outcome %d to be applied", index)
		}
	}
	if result.ChaptersReadCount != 2 {
		t.Fatalf("expected recount of 2, got %d", result.ChaptersReadCount)
	}

	var stored users.User
	if err := db.Where("id = ?", "user-1").First(&stored).Error; err != nil {
		t.Fatalf("failed to load user: %v", err)
	}
	if stored.ChaptersReadCount != 2 {
		t.Fatalf("expected persisted count 2, got %d", stored.ChaptersReadCount)
	}
}

func TestApplyTogglesCompleteIsIdempotent(t *testing.T) {
	service, db := newTestService(t, []string{"record-1", "record-2"})
	seedUser(t, db, "user-1")

	first, err := service.ApplyToggles(context.Background(), "user-1", []Toggle{
		mustToggle(t, "Genesis", 1, ActionComplete),
	})
	if err != nil {
		t.Fatalf("unexpected error on first toggle: %v", err)
	}
	second, err := service.ApplyToggles(context.Background(), "user-1", []Toggle{
		mustToggle(t, "Genesis", 1, ActionComplete),
	})
	if err != nil {
		t.Fatalf("unexpected error on repeat toggle: %v", err)
	}
	if !first.Outcomes[0].Applied {
		t.Fatalf("expected first completion to apply")
	}
	if second.Outcomes[0].Applied {
		t.Fatalf("expected repeat completion to be a no-op")
	}
	if second.Outcomes[0].RecordID != first.Outcomes[0].RecordID {
		t.Fatalf("expected repeat to report the live record id")
	}
	if second.ChaptersReadCount != 1 {
		t.Fatalf("expected count to remain 1, got %d", second.ChaptersReadCount)
	}

	var recordCount int64
	if err := db.Model(&Record{}).Count(&recordCount).Error; err != nil {
		t.Fatalf("failed to count records: %v", err)
	}
	if recordCount != 1 {
		t.Fatalf("expected 1 stored record, got %d", recordCount)
	}
}

func TestApplyTogglesUncompleteDeletesRecord(t *testing.T) {
	service, db := newTestService(t, []string{"record-1"})
	seedUser(t, db, "user-1")

	if _, err := service.ApplyToggles(context.Background(), "user-1", []Toggle{
		mustToggle(t, "Psalms", 23, ActionComplete),
	}); err != nil {
		t.Fatalf("unexpected error completing: %v", err)
	}

	result, err := service.ApplyToggles(context.Background(), "user-1", []Toggle{
		mustToggle(t, "Psalms", 23, ActionUncomplete),
	})
	if err != nil {
		t.Fatalf("unexpected error uncompleting: %v", err)
	}
	if !result.Outcomes[0].Applied {
		t.Fatalf("expected uncomplete to apply")
	}
	if result.ChaptersReadCount != 0 {
		t.Fatalf("expected count 0 after uncomplete, got %d", result.ChaptersReadCount)
	}

	var recordCount int64
	if err := db.Model(&Record{}).Count(&recordCount).Error; err != nil {
		t.Fatalf("failed to count records: %v", err)
	}
	if recordCount != 0 {
		t.Fatalf("expected no stored records, got %d", recordCount)
	}
}

func TestApplyTogglesUncompleteMissingRecordIsNoOp(t *testing.T) {
	service, _ := newTestService(t, nil)

	result, err := service.ApplyToggles(context.Background(), "user-1", []Toggle{
		mustToggle(t, "Genesis", 1, ActionUncomplete),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcomes[0].Applied {
		t.Fatalf("expected missing-record uncomplete to be a no-op")
	}
}

func TestApplyTogglesRollsBackFailedBatch(t *testing.T) {
	// One id for a two-insert batch: the second insert fails, so the first
	// must not survive either.
	service, db := newTestService(t, []string{"record-1"})
	seedUser(t, db, "user-1")

	_, err := service.ApplyToggles(context.Background(), "user-1", []Toggle{
		mustToggle(t, "Genesis", 1, ActionComplete),
		mustToggle(t, "Genesis", 2, ActionComplete),
	})
	if err == nil {
		t.Fatalf("expected batch to fail")
	}

	var recordCount int64
	if err := db.Model(&Record{}).Count(&recordCount).Error; err != nil {
		t.Fatalf("failed to count records: %v", err)
	}
	if recordCount != 0 {
		t.Fatalf("expected rollback to remove partial writes, got %d records", recordCount)
	}

	var stored users.User
	if err := db.Where("id = ?", "user-1").First(&stored).Error; err != nil {
		t.Fatalf("failed to load user: %v", err)
	}
	if stored.ChaptersReadCount != 0 {
		t.Fatalf("expected derived count untouched, got %d", stored.ChaptersReadCount)
	}
}

func TestRecentCompletionCountsFiltersByCutoff(t *testing.T) {
	service, db := newTestService(t, nil)

	old := Record{RecordID: "old", UserID: "user-1", Book: "Genesis", Chapter: 1, CompletedAtSeconds: 1_700_000_000}
	fresh := Record{RecordID: "fresh", UserID: "user-1", Book: "Genesis", Chapter: 2, CompletedAtSeconds: 1_700_500_000}
	other := Record{RecordID: "other", UserID: "user-2", Book: "Exodus", Chapter: 1, CompletedAtSeconds: 1_700_500_100}
	for _, record := range []Record{old, fresh, other} {
		if err := db.Create(&record).Error; err != nil {
			t.Fatalf("failed to seed record: %v", err)
		}
	}

	counts, err := service.RecentCompletionCounts(context.Background(), time.Unix(1_700_400_000, 0).UTC())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if counts["user-1"] != 1 {
		t.Fatalf("expected 1 recent record for user-1, got %d", counts["user-1"])
	}
	if counts["user-2"] != 1 {
		t.Fatalf("expected 1 recent record for user-2, got %d", counts["user-2"])
	}
}

func TestListRecordsRequiresUserID(t *testing.T) {
	service, _ := newTestService(t, nil)

	_, err := service.ListRecords(context.Background(), "")
	if err == nil {
		t.Fatalf("expected error for missing user id")
	}
	var svcErr *ServiceError
	if !errors.As(err, &svcErr) {
		t.Fatalf("expected service error, got %T", err)
	}
	if svcErr.Code() != "progress.list_records.missing_user_id" {
		t.Fatalf("unexpected error code %s", svcErr.Code())
	}
}

func mustToggle(t *testing.T, book string, chapter int, action ToggleAction) Toggle {
	t.Helper()
	toggle, err := NewToggle(book, chapter, action)
	if err != nil {
		t.Fatalf("unexpected toggle error: %v", err)
	}
	return toggle
}

func seedUser(t *testing.T, db *gorm.DB, userID string) {
	t.Helper()
	user := users.User{
		ID:           userID,
		Email:        userID + "@example.com",
		PasswordHash: "x",
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
}

func newTestService(t *testing.T, ids []string) (*Service, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:lumen_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&users.User{}, &Record{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	generator := &staticIDGenerator{ids: ids}
	clock := func() time.Time { return time.Unix(1_700_000_600, 0).UTC() }

	service, err := NewService(ServiceConfig{
		Database:   db,
		Clock:      clock,
		IDProvider: generator,
	})
	if err != nil {
		t.Fatalf("failed to construct progress service: %v", err)
	}

	return service, db
}
