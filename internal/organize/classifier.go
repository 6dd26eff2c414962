package organize

import (
	"path/filepath"
	"strings"

	"downsort/internal/config"
)

// Classifier maps extensions to categories. Categories are checked in
// configuration order and the first one listing the extension wins.
type Classifier struct {
	rules []rule
}

type rule struct {
	category   config.Category
	extensions map[string]struct{}
}

// NewClassifier builds a classifier over categories, keeping their order.
func NewClassifier(categories []config.Category) *Classifier {
	rules := make([]rule, 0, len(categories))
	for _, cat := range categories {
		exts := make(map[string]struct{}, len(cat.Extensions))
		for _, ext := range cat.Extensions {
			exts[strings.ToLower(ext)] = struct{}{}
		}
		rules = append(rules, rule{category: cat, extensions: exts})
	}
	return &Classifier{rules: rules}
}

// Classify returns the category owning ext. The lookup is case-insensitive;
// an empty extension never matches.
func (c *Classifier) Classify(ext string) (config.Category, bool) {
	if ext == "" {
		return config.Category{}, false
	}
	ext = strings.ToLower(ext)
	for _, r := range c.rules {
		if _, ok := r.extensions[ext]; ok {
			return r.category, true
		}
	}
	return config.Category{}, false
}

// Extension returns the lower-cased extension of name, including the dot.
// Names whose only dot is the leading one (".bashrc") have no extension.
func Extension(name string) string {
	return strings.ToLower(rawExtension(name))
}

func rawExtension(name string) string {
	base := filepath.Base(name)
	ext := filepath.Ext(base)
	if ext == base {
		return ""
	}
	return ext
}
