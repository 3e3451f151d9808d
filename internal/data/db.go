package data

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"FootyCollect/internal/conf"
	pkglog "FootyCollect/pkg/log"

	sqlite "github.com/glebarez/sqlite"
	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB opens the catalog database (MySQL or SQLite), configures the pool and
// migrates the catalog schema.
func NewDB(c *conf.Data, l log.Logger) (*gorm.DB, func(), error) {
	helper := log.NewHelper(l)

	if c == nil || c.Database == nil {
		helper.Error("database configuration is missing")
		return nil, nil, fmt.Errorf("database configuration is required")
	}

	gormLogger := logger.New(
		&gormLogAdapter{helper: helper},
		logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	dialector, err := openDialector(c.Database)
	if err != nil {
		return nil, nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 gormLogger,
		SkipDefaultTransaction: true,
		PrepareStmt:            c.Database.Driver == conf.DriverMySQL,
	})
	if err != nil {
		helper.Errorf("failed to connect to %s: %v", c.Database.Driver, err)
		return nil, nil, fmt.Errorf("failed to connect to %s: %w", c.Database.Driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		helper.Errorf("failed to get sql.DB: %v", err)
		return nil, nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	switch c.Database.Driver {
	case conf.DriverSQLite:
		db.Exec("PRAGMA journal_mode=WAL;")
		db.Exec("PRAGMA foreign_keys=ON;")
		db.Exec("PRAGMA busy_timeout=5000;")
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
	default:
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(100)
		sqlDB.SetConnMaxLifetime(time.Hour)
		sqlDB.SetConnMaxIdleTime(10 * time.Minute)
	}

	if err := sqlDB.Ping(); err != nil {
		helper.Errorf("failed to ping database: %v", err)
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := AutoMigrate(db); err != nil {
		_ = sqlDB.Close()
		return nil, nil, fmt.Errorf("failed to migrate catalog schema: %w", err)
	}

	pkglog.NewLogHelper(l).Database("catalog database ready", "driver", c.Database.Driver)

	cleanup := func() {
		helper.Info("closing database connection")
		if err := sqlDB.Close(); err != nil {
			helper.Errorf("failed to close database: %v", err)
		}
	}

	return db, cleanup, nil
}

func openDialector(c *conf.Database) (gorm.Dialector, error) {
	switch c.Driver {
	case conf.DriverMySQL:
		return mysql.Open(c.Source), nil
	case conf.DriverSQLite:
		// fail early on a missing parent directory
		if dir := filepath.Dir(c.Source); dir != "." && c.Source != ":memory:" {
			if _, err := os.Stat(dir); err != nil {
				return nil, fmt.Errorf("sqlite directory: %w", err)
			}
		}
		return sqlite.Open(c.Source), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", c.Driver)
	}
}

// AutoMigrate creates or updates the catalog tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Club{},
		&Season{},
		&Brand{},
		&Competition{},
		&KitType{},
		&Kit{},
	)
}

// gormLogAdapter adapts Kratos log.Helper to GORM logger interface.
type gormLogAdapter struct {
	helper *log.Helper
}

// Printf implements gorm/logger.Writer interface.
func (g *gormLogAdapter) Printf(format string, v ...interface{}) {
	g.helper.Infof(format, v...)
}
