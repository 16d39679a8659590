package workspaces

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/geko-labs/gateway/internal/ids"
	"github.com/geko-labs/gateway/internal/users"
	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

var fixedNow = time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)

func openTestDatabase(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
		t.Fatalf("failed to enable foreign keys: %v", err)
	}
	if err := db.AutoMigrate(&users.User{}, &Workspace{}, &Member{}, &ExternalIdentity{}); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}
	return db
}

func seedUser(t *testing.T, db *gorm.DB, id, email string) users.User {
	t.Helper()
	hash := "$2a$04$fixture"
	user := users.User{
		ID:           id,
		Email:        email,
		PasswordHash: &hash,
		FullName:     "Fixture " + id,
		AuthProvider: users.ProviderEmail,
		IsActive:     true,
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("failed to seed user %s: %v", id, err)
	}
	return user
}

type testClock struct {
	now time.Time
}

// tick advances by a second on every read so join order is deterministic.
func (c *testClock) tick() time.Time {
	current := c.now
	c.now = c.now.Add(time.Second)
	return current
}

func newTestService(t *testing.T, db *gorm.DB, workspaceIDs ...string) *Service {
	t.Helper()
	store, err := NewStore(db)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	clock := &testClock{now: fixedNow}
	service, err := NewService(ServiceConfig{
		Store:      store,
		IDProvider: ids.NewSequence(workspaceIDs...),
		Clock:      clock.tick,
	})
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	return service
}

func countRows(t *testing.T, db *gorm.DB, model interface{}) int64 {
	t.Helper()
	var count int64
	if err := db.Model(model).Count(&count).Error; err != nil {
		t.Fatalf("failed to count rows: %v", err)
	}
	return count
}

func mustCreate(t *testing.T, service *Service, creator, name, workspaceType string) Workspace {
	t.Helper()
	workspace, err := service.CreateWorkspace(context.Background(), CreateInput{CreatorUserID: creator, Name: name, Type: workspaceType})
	if err != nil {
		t.Fatalf("failed to create workspace %q: %v", name, err)
	}
	return workspace
}
