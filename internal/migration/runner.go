package migration

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Schema is the part of the database manager the runner drives.
type Schema interface {
	Migrate() error
}

type Runner struct {
	schema Schema
	db     *gorm.DB
	logger *logrus.Logger
}

func NewRunner(schema Schema, db *gorm.DB, logger *logrus.Logger) *Runner {
	return &Runner{
		schema: schema,
		db:     db,
		logger: logger,
	}
}

// RunMigrations auto-migrates the models and then applies every .sql file
// in migrationsPath in name order. Files must be idempotent. A missing
// directory is skipped.
func (r *Runner) RunMigrations(migrationsPath string) error {
	r.logger.Info("Starting database migrations...")

	if err := r.schema.Migrate(); err != nil {
		return fmt.Errorf("GORM auto-migration failed: %w", err)
	}

	files, err := SQLFiles(migrationsPath)
	if err != nil {
		return fmt.Errorf("SQL migrations failed: %w", err)
	}

	for _, file := range files {
		content, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", file, err)
		}
		if err := r.db.Exec(string(content)).Error; err != nil {
			return fmt.Errorf("failed to run migration %s: %w", filepath.Base(file), err)
		}
		r.logger.WithField("file", filepath.Base(file)).Info("Migration executed successfully")
	}

	r.logger.Info("Database migrations completed successfully")
	return nil
}

// SQLFiles lists the .sql files in dir, sorted by name.
func SQLFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}
