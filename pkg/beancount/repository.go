package beancount

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pigeonworks-llc/txn-ledger/pkg/pathutil"
)

// Repository stores formatted transactions in monthly files.
type Repository interface {
	// AppendTransaction appends a formatted transaction to a monthly file
	AppendTransaction(yearMonth, transaction string, comment ...string) error

	// ReadMonthFile reads the content of a monthly file
	ReadMonthFile(yearMonth string) (string, error)

	// MonthFileExists checks if a monthly file exists
	MonthFileExists(yearMonth string) bool

	// MonthFilesInYear lists the YYYY-MM keys that have a file in year
	MonthFilesInYear(year string) ([]string, error)
}

// FileSystemRepository is a file system implementation of Repository.
type FileSystemRepository struct {
	paths *pathutil.PathResolver
	now   func() time.Time
}

// NewFileSystemRepository creates a new FileSystemRepository.
func NewFileSystemRepository(paths *pathutil.PathResolver) *FileSystemRepository {
	return &FileSystemRepository{paths: paths, now: time.Now}
}

// AppendTransaction appends a transaction to a monthly file, creating the file
// with a header when needed. A non-empty comment is written as a ";" line
// above the transaction.
func (r *FileSystemRepository) AppendTransaction(yearMonth, transaction string, comment ...string) error {
	filePath, err := r.ensureMonthFile(yearMonth)
	if err != nil {
		return err
	}

	var sb strings.Builder
	if len(comment) > 0 && comment[0] != "" {
		fmt.Fprintf(&sb, "; %s\n", comment[0])
	}
	sb.WriteString(transaction)
	if !strings.HasSuffix(transaction, "\n") {
		sb.WriteString("\n")
	}
	sb.WriteString("\n")

	f, err := os.OpenFile(filePath, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open file for appending: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(sb.String()); err != nil {
		return fmt.Errorf("failed to write to file: %w", err)
	}
	return nil
}

// ReadMonthFile returns the content of a monthly file, or "" if it does not
// exist.
func (r *FileSystemRepository) ReadMonthFile(yearMonth string) (string, error) {
	filePath, err := r.paths.MonthFilePath(yearMonth)
	if err != nil {
		return "", err
	}

	data, err := os.ReadFile(filePath)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	return string(data), nil
}

// MonthFileExists checks if a monthly file exists.
func (r *FileSystemRepository) MonthFileExists(yearMonth string) bool {
	filePath, err := r.paths.MonthFilePath(yearMonth)
	if err != nil {
		return false
	}
	return pathutil.FileExists(filePath)
}

// MonthFilesInYear returns the sorted YYYY-MM keys of the files in a year.
func (r *FileSystemRepository) MonthFilesInYear(year string) ([]string, error) {
	entries, err := os.ReadDir(r.paths.YearDir(year))
	if os.IsNotExist(err) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read year directory: %w", err)
	}

	months := []string{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".beancount" {
			continue
		}
		months = append(months, strings.TrimSuffix(name, ".beancount"))
	}
	sort.Strings(months)
	return months, nil
}

func (r *FileSystemRepository) ensureMonthFile(yearMonth string) (string, error) {
	filePath, err := r.paths.MonthFilePath(yearMonth)
	if err != nil {
		return "", err
	}
	if pathutil.FileExists(filePath) {
		return filePath, nil
	}

	if err := r.paths.EnsureParentDir(filePath); err != nil {
		return "", err
	}
	header := fmt.Sprintf("; Ledger export for %s\n; Generated at %s\n\n", yearMonth, r.now().Format(time.RFC3339))
	if err := os.WriteFile(filePath, []byte(header), 0644); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	return filePath, nil
}
