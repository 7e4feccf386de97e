// Package files handles the control file and the output document on disk.
package files

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/couchcryptid/rise-hydromet-export/internal/domain"
)

const utf8BOM = "\ufeff"

// ReadControlLines returns the raw lines of the control file. A leading BOM
// and CRLF line endings are removed; nothing else is trimmed.
func ReadControlLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open control file: %w", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSuffix(scanner.Text(), "\r")
		if len(lines) == 0 {
			line = strings.TrimPrefix(line, utf8BOM)
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read control file: %w", err)
	}
	return lines, nil
}

// CreateOutput creates the parent directory if needed, removes any previous
// document at path, and opens a fresh file for writing.
func CreateOutput(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("%w: create output directory: %w", domain.ErrDestination, err)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: remove previous output: %w", domain.ErrDestination, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("%w: create output file: %w", domain.ErrDestination, err)
	}
	return f, nil
}
