package event

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

// openTestDB returns an isolated in-memory database per test.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.ReplaceAll(t.Name(), "/", "_")
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}

	if err := Migrate(db); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}

	return db
}

func seedAttendee(t *testing.T, db *gorm.DB, id, eventID, name string) *Attendee {
	t.Helper()

	a := &Attendee{
		ID:        id,
		EventID:   eventID,
		Phone:     "+100" + id,
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.Create(a).Error; err != nil {
		t.Fatalf("seed attendee %s: %v", id, err)
	}
	return a
}

func testLogger() *zap.Logger { return zap.NewNop() }
