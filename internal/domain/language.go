package domain

import "sort"

// Language identifies a programming language accepted by the execution service
type Language string

const (
	LanguageCPP        Language = "cpp"
	LanguageJavaScript Language = "javascript"
	LanguagePython     Language = "python"
	LanguageJava       Language = "java"
)

// LanguageSpec pins the runtime version sent to the execution service and the
// snippet shown when a question carries no boilerplate for the language
type LanguageSpec struct {
	Version string `json:"version" yaml:"version"`
	Snippet string `json:"snippet" yaml:"snippet"`
}

// LanguageTable maps every supported language to its spec
type LanguageTable map[Language]LanguageSpec

// DefaultLanguageVersions is the version table used when no table is configured
var DefaultLanguageVersions = map[Language]string{
	LanguageCPP:        "10.2.0",
	LanguageJavaScript: "18.15.0",
	LanguagePython:     "3.10.0",
	LanguageJava:       "15.0.2",
}

// Version returns the pinned runtime version for lang
func (t LanguageTable) Version(lang Language) (string, bool) {
	spec, ok := t[lang]
	if !ok || spec.Version == "" {
		return "", false
	}
	return spec.Version, true
}

// Supports reports whether lang can be executed
func (t LanguageTable) Supports(lang Language) bool {
	_, ok := t.Version(lang)
	return ok
}

// Snippet returns the default code for lang
func (t LanguageTable) Snippet(lang Language) string {
	return t[lang].Snippet
}

// Languages returns the supported languages in a stable order
func (t LanguageTable) Languages() []Language {
	langs := make([]Language, 0, len(t))
	for lang := range t {
		langs = append(langs, lang)
	}
	sort.Slice(langs, func(i, j int) bool { return langs[i] < langs[j] })
	return langs
}

// Versions flattens the table into a language to version map
func (t LanguageTable) Versions() map[Language]string {
	versions := make(map[Language]string, len(t))
	for lang, spec := range t {
		versions[lang] = spec.Version
	}
	return versions
}
