package data

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/contest-maker-150/assessment/internal/domain"
)

func TestEmbeddedLanguageTable(t *testing.T) {
	table, err := LoadLanguageTable("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	for lang, want := range domain.DefaultLanguageVersions {
		got, ok := table.Version(lang)
		if !ok || got != want {
			t.Fatalf("expected %s pinned to %s, got %q", lang, want, got)
		}
		if table.Snippet(lang) == "" {
			t.Fatalf("expected a snippet for %s", lang)
		}
	}
}

func TestParseLanguageTableRejectsMissingVersion(t *testing.T) {
	if _, err := ParseLanguageTable([]byte("go:\n  snippet: x\n")); err == nil {
		t.Fatalf("expected error for entry without version")
	}
	if _, err := ParseLanguageTable([]byte("")); err == nil {
		t.Fatalf("expected error for empty table")
	}
}

func TestLoadTestCaseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cases.yaml")
	content := "language: python\ncases:\n  - input: \"1 2\"\n    output: \"3\"\n  - input: \"2 2\"\n    output: \"4\"\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	file, err := LoadTestCaseFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if file.Language != domain.LanguagePython || len(file.Cases) != 2 || file.Cases[1].Output != "4" {
		t.Fatalf("unexpected file: %+v", file)
	}
}
