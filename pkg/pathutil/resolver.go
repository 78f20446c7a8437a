// Package pathutil resolves where exported Beancount files and the export
// history database live.
package pathutil

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pigeonworks-llc/txn-ledger/pkg/config"
)

const yearMonthLayout = "2006-01"

// PathResolver maps months to Beancount files under a root directory.
type PathResolver struct {
	root         string
	databasePath string
}

// Config represents the configuration for PathResolver.
type Config struct {
	// Root is the directory holding one sub-directory per year.
	Root string
	// DatabasePath is the SQLite export history file.
	DatabasePath string
}

// New creates a PathResolver. An empty DatabasePath defaults to
// {Root}/.export/export.db.
func New(cfg Config) *PathResolver {
	dbPath := cfg.DatabasePath
	if dbPath == "" {
		dbPath = filepath.Join(cfg.Root, ".export", "export.db")
	}
	return &PathResolver{root: cfg.Root, databasePath: dbPath}
}

// FromConfig creates a PathResolver from the loaded Beancount settings.
func FromConfig(cfg config.BeancountConfig) (*PathResolver, error) {
	if cfg.Root == "" {
		return nil, fmt.Errorf("BEANCOUNT_ROOT is required")
	}
	return New(Config{Root: cfg.Root, DatabasePath: cfg.DBPath}), nil
}

// Root returns the Beancount root directory.
func (p *PathResolver) Root() string {
	return p.root
}

// DatabasePath returns the export history database path.
func (p *PathResolver) DatabasePath() string {
	return p.databasePath
}

// YearDir returns the directory for a year, e.g. {root}/2024.
func (p *PathResolver) YearDir(year string) string {
	return filepath.Join(p.root, year)
}

// YearMonth formats t as the YYYY-MM key of its monthly file, in UTC.
func YearMonth(t time.Time) string {
	return t.UTC().Format(yearMonthLayout)
}

// MonthFilePath returns {root}/YYYY/YYYY-MM.beancount for a YYYY-MM key.
func (p *PathResolver) MonthFilePath(yearMonth string) (string, error) {
	if _, err := time.Parse(yearMonthLayout, yearMonth); err != nil {
		return "", fmt.Errorf("invalid year-month format: %s. Expected YYYY-MM", yearMonth)
	}
	return filepath.Join(p.YearDir(yearMonth[:4]), yearMonth+".beancount"), nil
}

// EnsureParentDir creates the parent directory of a file (like mkdir -p).
func (p *PathResolver) EnsureParentDir(filePath string) error {
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}

// FileExists checks if a file exists.
func FileExists(filePath string) bool {
	_, err := os.Stat(filePath)
	return err == nil
}
