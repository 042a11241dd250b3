package rules

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toll "toll-calculator/internal/toll/domain"
)

// FileProvider reads a rule document from disk on every fetch.
type FileProvider struct {
	path   string
	format Format
}

// NewFileProvider constructs a provider. The format follows the file
// extension: .yaml and .yml are YAML, anything else JSON.
func NewFileProvider(path string) (*FileProvider, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("file provider: empty path")
	}
	return &FileProvider{path: path, format: formatFromPath(path)}, nil
}

// Fetch implements application.RuleProvider.
func (p *FileProvider) Fetch(ctx context.Context) (*toll.RuleSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p.path)
	if err != nil {
		return nil, fmt.Errorf("file provider: read %s: %w", p.path, err)
	}
	return DecodeRuleSet(data, p.format)
}

func formatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}
