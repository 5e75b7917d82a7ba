package database

import (
	"path/filepath"
	"testing"

	"github.com/DrorShokoPeer/ttydx/internal/config"
	"gorm.io/gorm/logger"
)

func TestInit_CreatesSchema(t *testing.T) {
	config.Cfg.DatabasePath = filepath.Join(t.TempDir(), "nested", "ttydx.db")
	if err := Init(); err != nil {
		t.Fatalf("Init() error: %v", err)
	}
	defer Close()

	if !DB.Migrator().HasTable(&AuditLog{}) {
		t.Fatal("audit_logs table was not created")
	}

	row := AuditLog{Event: "login_success", ClientKey: "10.0.0.1", Outcome: "success", Username: "admin"}
	if err := DB.Create(&row).Error; err != nil {
		t.Fatalf("create audit row: %v", err)
	}
	if row.ID == 0 {
		t.Error("expected auto-increment ID to be assigned")
	}
	if row.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set by gorm")
	}
}

func TestOpen_Memory(t *testing.T) {
	db, err := Open(":memory:", logger.Silent)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	sqlDB, _ := db.DB()
	defer sqlDB.Close()

	var count int64
	if err := db.Model(&AuditLog{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Errorf("count = %d, want 0", count)
	}
}
