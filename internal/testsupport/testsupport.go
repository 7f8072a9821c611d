package testsupport

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"
	ctestsupport "github.com/karloscodes/cartridge/testsupport"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"swipestats/internal"
	"swipestats/internal/config"
	"swipestats/internal/database"
	"swipestats/internal/export"
)

// testDBCache caches test databases by test name to allow multiple calls
// within the same test to share the same database
var testDBCache = make(map[string]*gorm.DB)
var testDBCacheMu sync.Mutex

// TestDBManager wraps cartridge's TestDBManager with swipestats' interface
type TestDBManager struct {
	*ctestsupport.TestDBManager
}

// NewTestDBManager creates a TestDBManager that implements cartridge.DBManager
func NewTestDBManager(db *gorm.DB) *TestDBManager {
	return &TestDBManager{
		TestDBManager: ctestsupport.NewTestDBManager(db),
	}
}

// Ensure TestDBManager implements cartridge.DBManager
var _ cartridge.DBManager = (*TestDBManager)(nil)

// SetupTestDB creates a test database with all models migrated.
// Uses a named in-memory database with cache=shared to allow multiple connections
// to share the same database within a test. Caches the database by test name
// so multiple calls within the same test return the same database.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	// Use root test name for caching so subtests share their parent's database
	rootName := t.Name()
	if idx := strings.Index(rootName, "/"); idx > 0 {
		rootName = rootName[:idx]
	}

	testDBCacheMu.Lock()
	if db, exists := testDBCache[rootName]; exists {
		testDBCacheMu.Unlock()
		return db
	}
	testDBCacheMu.Unlock()

	sanitizedName := strings.ReplaceAll(rootName, "/", "_")
	dsn := fmt.Sprintf("file:test_%s_%d?mode=memory&cache=shared", sanitizedName, time.Now().UnixNano())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("testsupport: failed to open test database: %v", err)
	}

	db.Exec("PRAGMA foreign_keys = ON")

	if err := db.AutoMigrate(database.Models()...); err != nil {
		t.Fatalf("testsupport: failed to migrate models: %v", err)
	}

	testDBCacheMu.Lock()
	testDBCache[rootName] = db
	testDBCacheMu.Unlock()

	t.Cleanup(func() {
		testDBCacheMu.Lock()
		delete(testDBCache, rootName)
		testDBCacheMu.Unlock()
		sqlDB, err := db.DB()
		if err == nil {
			sqlDB.Close()
		}
	})

	return db
}

// SetupTestDBManager creates a test DB manager using cartridge's testsupport
func SetupTestDBManager(t *testing.T) (*TestDBManager, *slog.Logger) {
	db := SetupTestDB(t)
	return NewTestDBManager(db), GetLogger()
}

// CountRows returns the number of rows in a table.
func CountRows(t *testing.T, db *gorm.DB, table string) int64 {
	t.Helper()
	var count int64
	require.NoError(t, db.Table(table).Count(&count).Error)
	return count
}

// GetLogger returns a logger that only prints errors.
func GetLogger() *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError})
	return slog.New(handler)
}

// CreateMinimalTestApp creates a test Fiber app with all routes
func CreateMinimalTestApp(t *testing.T, db *gorm.DB) *fiber.App {
	t.Helper()

	dbManager := NewTestDBManager(db)
	appConfig := config.GetConfig()
	appConfig.Environment = config.Test

	cfg := cartridge.DefaultServerConfig()
	cfg.Config = appConfig
	cfg.Logger = GetLogger()
	cfg.DBManager = dbManager
	cfg.EnableSecFetchSite = true
	cfg.SecFetchSiteAllowedValues = []string{"cross-site", "same-site", "same-origin"}

	srv, err := cartridge.NewServer(cfg)
	require.NoError(t, err)

	internal.MountAppRoutes(srv)
	return srv.App()
}

// sampleExport spans February to April 2021 with a gap in March, three matches
// (one ghosted) and one message without a timestamp.
const sampleExport = `{
  "User": {
    "birth_date": "1994-03-15T00:00:00.000Z",
    "create_date": "2020-12-30T18:22:01.000Z",
    "gender": "M",
    "interested_in": "F",
    "gender_filter": "F",
    "age_filter_min": 24,
    "age_filter_max": 33,
    "city": {"name": "Berlin", "region": "Berlin"},
    "country": "Germany",
    "education": "Has high school and/or college education",
    "bio": "Coffee &amp; climbing"
  },
  "Usage": {
    "app_opens": {"2021-02-26": 4, "2021-02-27": 0, "2021-02-28": 6, "2021-03-04": 2, "2021-04-02": 1},
    "swipes_likes": {"2021-02-26": 20, "2021-02-28": 35, "2021-03-04": 10},
    "swipes_passes": {"2021-02-26": 40, "2021-02-28": 15, "2021-03-04": 30, "2021-04-02": 5},
    "superlikes": {"2021-02-28": 1},
    "matches": {"2021-02-26": 2, "2021-02-28": 3, "2021-03-04": 1},
    "messages_sent": {"2021-02-28": 4, "2021-03-04": 3},
    "messages_received": {"2021-02-28": 2, "2021-03-04": 5}
  },
  "Messages": [
    {"match_id": "Match 3", "messages": []},
    {"match_id": "Match 2", "messages": [
      {"to": 2, "from": "You", "message": "Nice climbing shot!", "sent_date": "Thu, 04 Mar 2021 09:10:00 GMT", "type": "text"},
      {"to": 2, "from": "You", "message": "", "sent_date": "", "type": "gif"},
      {"to": 2, "from": "You", "message": "", "sent_date": "Thu, 04 Mar 2021 09:11:30 GMT", "type": "gif"}
    ]},
    {"match_id": "Match 1", "messages": [
      {"to": 1, "from": "You", "message": "Hi &amp; hello", "sent_date": "Fri, 26 Feb 2021 20:00:00 GMT", "type": 1},
      {"to": 1, "from": "You", "message": "How was the trip?", "sent_date": "Sun, 28 Feb 2021 21:30:00 GMT"},
      {"to": 1, "from": "You", "message": "", "sent_date": "Fri, 02 Apr 2021 08:00:00 GMT", "type": "gesture"}
    ]}
  ]
}`

// SampleExportJSON returns a small but complete export document.
func SampleExportJSON() []byte {
	return []byte(sampleExport)
}

// SampleExport returns the decoded sample export.
func SampleExport(t *testing.T) *export.Export {
	t.Helper()
	doc, err := export.DecodeBytes(SampleExportJSON())
	require.NoError(t, err)
	return doc
}

// SampleExportFor returns the sample export for a different account, identified by
// its birth date, as decoded document and raw JSON.
func SampleExportFor(t *testing.T, birthDate string, mutate func(doc *export.Export)) (*export.Export, []byte) {
	t.Helper()
	doc := SampleExport(t)
	doc.User.BirthDate = birthDate
	if mutate != nil {
		mutate(doc)
	}
	raw, err := json.Marshal(doc)
	require.NoError(t, err)
	return doc, raw
}
