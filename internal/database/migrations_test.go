package database

import (
	"path/filepath"
	"testing"

	"github.com/ngx-workshop/user-metadata-api/internal/usermeta"
)

func TestOpenMigratesSchemaAndLedger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usermeta.db")

	db, err := Open(path, nil)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}

	if !db.Migrator().HasTable(&usermeta.Record{}) {
		t.Fatal("expected user_metadata table")
	}

	var applied int64
	if err := db.Model(&migrationRecord{}).Where("name = ?", migrationBackfillDescriptionSentinel).Count(&applied).Error; err != nil {
		t.Fatalf("ledger query failed: %v", err)
	}
	if applied != 1 {
		t.Fatalf("expected migration recorded once, got %d", applied)
	}

	// Reopening must not reapply recorded migrations.
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	if err := sqlDB.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if _, err := Open(path, nil); err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
}

func TestBackfillDescriptionSentinel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usermeta.db")
	db, err := Open(path, nil)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}

	legacy := usermeta.Record{UUID: "legacy", Role: usermeta.RoleUser, Version: 1}
	if err := db.Create(&legacy).Error; err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	if err := backfillDescriptionSentinel(db); err != nil {
		t.Fatalf("backfill failed: %v", err)
	}

	var repaired usermeta.Record
	if err := db.Where("uuid = ?", "legacy").Take(&repaired).Error; err != nil {
		t.Fatalf("readback failed: %v", err)
	}
	if repaired.Description != usermeta.DefaultDescription {
		t.Fatalf("expected sentinel description, got %q", repaired.Description)
	}
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open("", nil); err == nil {
		t.Fatal("expected error for empty database path")
	}
}
