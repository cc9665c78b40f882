// Package data holds the static data shipped inside the engine binary.
package data

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/contest-maker-150/assessment/internal/domain"
)

//go:embed languages.yaml
var languagesData []byte

// LoadLanguageTable returns the embedded language table. When path is set the
// file at path is parsed instead, letting operators pin other runtimes.
func LoadLanguageTable(path string) (domain.LanguageTable, error) {
	raw := languagesData
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read language table: %w", err)
		}
		raw = b
	}
	return ParseLanguageTable(raw)
}

// ParseLanguageTable decodes a YAML language table and checks every entry
// pins a version
func ParseLanguageTable(raw []byte) (domain.LanguageTable, error) {
	var table domain.LanguageTable
	if err := yaml.Unmarshal(raw, &table); err != nil {
		return nil, fmt.Errorf("parse language table: %w", err)
	}
	if len(table) == 0 {
		return nil, fmt.Errorf("language table is empty")
	}
	for lang, spec := range table {
		if spec.Version == "" {
			return nil, fmt.Errorf("language %q has no version", lang)
		}
	}
	return table, nil
}

// TestCaseFile is the on-disk format read by the run command
type TestCaseFile struct {
	Language domain.Language   `yaml:"language"`
	Cases    []domain.TestCase `yaml:"cases"`
}

// LoadTestCaseFile reads a YAML file of test cases
func LoadTestCaseFile(path string) (*TestCaseFile, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read test cases: %w", err)
	}
	var file TestCaseFile
	if err := yaml.Unmarshal(b, &file); err != nil {
		return nil, fmt.Errorf("parse test cases: %w", err)
	}
	return &file, nil
}
