package audit

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/homematrix/panel-core/internal/infrastructure/database"
	_ "github.com/homematrix/panel-core/migrations"
)

func openTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "panelcore.db"),
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("migrating database: %v", err)
	}
	return NewSQLiteRepository(db.DB)
}

func TestRecordAndList(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)

	if err := repo.Record(ctx, "kitchen", "user-1"); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := repo.Record(ctx, "garage", "user-1"); err != nil {
		t.Fatalf("Record: %v", err)
	}

	result, err := repo.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}

	if result.Total != 2 {
		t.Errorf("Total = %d, want 2", result.Total)
	}
	if len(result.Records) != 2 {
		t.Fatalf("len(Records) = %d, want 2", len(result.Records))
	}

	rec := result.Records[0]
	if rec.ID == "" {
		t.Error("record has no generated ID")
	}
	if rec.UserID != "user-1" {
		t.Errorf("UserID = %q, want user-1", rec.UserID)
	}
	if rec.OpenedAt.IsZero() {
		t.Error("OpenedAt not set")
	}
}

func TestListFiltersBySlug(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)

	for _, slug := range []string{"kitchen", "kitchen", "garage"} {
		if err := repo.Record(ctx, slug, "user-1"); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	result, err := repo.List(ctx, Filter{ViewSlug: "kitchen"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}

	if result.Total != 2 {
		t.Errorf("Total = %d, want 2", result.Total)
	}
	for _, rec := range result.Records {
		if rec.ViewSlug != "kitchen" {
			t.Errorf("record slug = %q, want kitchen", rec.ViewSlug)
		}
	}
}

func TestListPagination(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)

	for range 5 {
		if err := repo.Record(ctx, "kitchen", "user-1"); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	page, err := repo.List(ctx, Filter{Limit: 2, Offset: 4})
	if err != nil {
		t.Fatalf("List: %v", err)
	}

	if page.Total != 5 {
		t.Errorf("Total = %d, want 5", page.Total)
	}
	if len(page.Records) != 1 {
		t.Errorf("len(Records) = %d, want 1", len(page.Records))
	}
}

func TestListClampsLimit(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)

	result, err := repo.List(ctx, Filter{Limit: 10000, Offset: -3})
	if err != nil {
		t.Fatalf("List: %v", err)
	}

	if result.Limit != 200 {
		t.Errorf("Limit = %d, want clamped to 200", result.Limit)
	}
	if result.Offset != 0 {
		t.Errorf("Offset = %d, want clamped to 0", result.Offset)
	}
	if result.Records == nil {
		t.Error("Records is nil, want empty slice")
	}
}
