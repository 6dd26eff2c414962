package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"downsort/internal/errors"
	"downsort/internal/fsutil"
	"downsort/internal/log"

	"github.com/adrg/xdg"
	"github.com/gobwas/glob"
	"gopkg.in/yaml.v3"
)

const appName = "downsort"

// Category maps a set of extensions to one destination folder.
// Extensions are lower-case and start with a dot.
type Category struct {
	Name       string
	Extensions []string
	Folder     string
}

// Settings tunes how the organizer behaves.
type Settings struct {
	CreateDirs  bool   // Create missing destination folders before moving
	InitialScan bool   // Watch mode sorts pre-existing files before subscribing
	HistoryFile string // Where the move history of a run is persisted
}

// Config is the validated, read-only configuration of a run. Categories are
// kept in declaration order; the first category claiming an extension wins.
type Config struct {
	Source     string
	Categories []Category
	Ignore     []string
	Settings   Settings
}

// fileConfig mirrors the on-disk layout:
//
//	extensions: {<category>: [ext, ...]}
//	folders:    {<category>: path}
type fileConfig struct {
	Source     string         `yaml:"source,omitempty" json:"source,omitempty"`
	Extensions extensionTable `yaml:"extensions" json:"extensions"`
	Folders    folderTable    `yaml:"folders" json:"folders"`
	Ignore     []string       `yaml:"ignore,omitempty" json:"ignore,omitempty"`
	Settings   *fileSettings  `yaml:"settings,omitempty" json:"settings,omitempty"`
}

type fileSettings struct {
	CreateDirs  *bool  `yaml:"create_dirs,omitempty" json:"create_dirs,omitempty"`
	InitialScan *bool  `yaml:"initial_scan,omitempty" json:"initial_scan,omitempty"`
	HistoryFile string `yaml:"history_file,omitempty" json:"history_file,omitempty"`
}

// DefaultPath returns $XDG_CONFIG_HOME/downsort/config.yaml.
func DefaultPath() string {
	return filepath.Join(xdg.ConfigHome, appName, "config.yaml")
}

// DefaultHistoryPath returns $XDG_STATE_HOME/downsort/history.json.
func DefaultHistoryPath() string {
	return filepath.Join(xdg.StateHome, appName, "history.json")
}

// LoadConfig loads configuration from the default location.
func LoadConfig() (*Config, error) {
	return LoadConfigFile(DefaultPath())
}

// LoadConfigFile loads configuration from a specific file path.
// If the file doesn't exist, the default configuration is returned.
// JSON files (.json) are decoded with encoding/json, everything else as YAML.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.LogWithFields(log.F("path", path)).Debug("config file not found, using defaults")
			return Default(), nil
		}
		return nil, errors.NewConfigError("error reading config file", path, errors.ConfigNotFound, err)
	}

	var fc fileConfig
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, &fc)
	} else {
		err = yaml.Unmarshal(data, &fc)
	}
	if err != nil {
		var cfgErr *errors.ConfigError
		if errors.As(err, &cfgErr) {
			return nil, cfgErr
		}
		return nil, errors.NewConfigError("error parsing config file", path, errors.InvalidConfig, err)
	}

	cfg, err := fc.build()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	for _, overlap := range cfg.Overlaps() {
		log.LogWithFields(log.F("path", path)).Warn(overlap)
	}
	return cfg, nil
}

// build turns the parsed file into a Config, filling defaults for
// sections the file leaves out.
func (fc *fileConfig) build() (*Config, error) {
	cfg := Default()

	if fc.Source != "" {
		cfg.Source = ExpandPath(fc.Source)
	}
	if fc.Ignore != nil {
		cfg.Ignore = fc.Ignore
	}
	if fc.Settings != nil {
		if fc.Settings.CreateDirs != nil {
			cfg.Settings.CreateDirs = *fc.Settings.CreateDirs
		}
		if fc.Settings.InitialScan != nil {
			cfg.Settings.InitialScan = *fc.Settings.InitialScan
		}
		if fc.Settings.HistoryFile != "" {
			cfg.Settings.HistoryFile = ExpandPath(fc.Settings.HistoryFile)
		}
	}

	// A file without an extensions section keeps the default categories.
	if fc.Extensions == nil {
		if len(fc.Folders) > 0 {
			return nil, errors.NewConfigError("folders given without extensions", "extensions", errors.InvalidConfig, nil)
		}
		return cfg, nil
	}

	folders := make(map[string]string, len(fc.Folders))
	for _, f := range fc.Folders {
		folders[f.category] = f.path
	}

	categories := make([]Category, 0, len(fc.Extensions))
	for _, entry := range fc.Extensions {
		folder, ok := folders[entry.category]
		if !ok || strings.TrimSpace(folder) == "" {
			return nil, errors.NewConfigError("category has no destination folder", entry.category, errors.InvalidConfig, nil)
		}
		exts := make([]string, 0, len(entry.extensions))
		for _, ext := range entry.extensions {
			exts = append(exts, strings.ToLower(strings.TrimSpace(ext)))
		}
		categories = append(categories, Category{
			Name:       entry.category,
			Extensions: exts,
			Folder:     ExpandPath(folder),
		})
		delete(folders, entry.category)
	}
	for name := range folders {
		log.LogWithFields(log.F("category", name)).Warn("folder configured for a category without extensions, ignoring")
	}
	cfg.Categories = categories
	return cfg, nil
}

// Default returns the built-in configuration: common media and document
// extensions sorted out of the XDG Downloads folder into the matching XDG
// user folders.
func Default() *Config {
	return &Config{
		Source: xdg.UserDirs.Download,
		Categories: []Category{
			{Name: "images", Extensions: []string{".jpg", ".png", ".jpeg", ".svg"}, Folder: xdg.UserDirs.Pictures},
			{Name: "videos", Extensions: []string{".mp4", ".mkv"}, Folder: xdg.UserDirs.Videos},
			{Name: "music", Extensions: []string{".mp3", ".wav"}, Folder: xdg.UserDirs.Music},
			{Name: "documents", Extensions: []string{".txt", ".pdf", ".docx"}, Folder: xdg.UserDirs.Documents},
		},
		Ignore: []string{"*.part", "*.crdownload", "*.tmp"},
		Settings: Settings{
			CreateDirs:  true,
			InitialScan: true,
			HistoryFile: DefaultHistoryPath(),
		},
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c == nil {
		return errors.NewConfigError("nil config", "", errors.InvalidConfig, nil)
	}
	if len(c.Categories) == 0 {
		return errors.NewConfigError("no categories configured", "extensions", errors.InvalidConfig, nil)
	}

	seen := make(map[string]bool, len(c.Categories))
	for i, cat := range c.Categories {
		if cat.Name == "" {
			return errors.NewConfigError("category name is required", fmt.Sprintf("extensions[%d]", i), errors.InvalidConfig, nil)
		}
		if seen[cat.Name] {
			return errors.NewConfigError("duplicate category", cat.Name, errors.InvalidConfig, nil)
		}
		seen[cat.Name] = true

		if strings.TrimSpace(cat.Folder) == "" {
			return errors.NewConfigError("category has no destination folder", cat.Name, errors.InvalidConfig, nil)
		}
		for _, ext := range cat.Extensions {
			if len(ext) < 2 || !strings.HasPrefix(ext, ".") {
				return errors.NewConfigError(fmt.Sprintf("extension %q must start with a dot", ext), cat.Name, errors.InvalidConfig, nil)
			}
			if ext != strings.ToLower(ext) {
				return errors.NewConfigError(fmt.Sprintf("extension %q must be lower-case", ext), cat.Name, errors.InvalidConfig, nil)
			}
		}
	}

	if _, err := c.IgnoreMatchers(); err != nil {
		return err
	}
	return nil
}

// Overlaps describes every extension claimed by more than one category.
// Overlaps are legal: the earlier category wins.
func (c *Config) Overlaps() []string {
	owner := make(map[string]string)
	var out []string
	for _, cat := range c.Categories {
		for _, ext := range cat.Extensions {
			if first, ok := owner[ext]; ok {
				if first != cat.Name {
					out = append(out, fmt.Sprintf("extension %s is claimed by %s and %s; %s wins", ext, first, cat.Name, first))
				}
				continue
			}
			owner[ext] = cat.Name
		}
	}
	return out
}

// IgnoreMatchers compiles the ignore globs.
func (c *Config) IgnoreMatchers() ([]glob.Glob, error) {
	matchers := make([]glob.Glob, 0, len(c.Ignore))
	for _, pattern := range c.Ignore {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, errors.NewConfigError("invalid ignore pattern", pattern, errors.InvalidConfig, err)
		}
		matchers = append(matchers, g)
	}
	return matchers, nil
}

// SaveConfig writes cfg to path as YAML, keeping category order.
// It creates parent directories if they don't exist.
func SaveConfig(cfg *Config, path string) error {
	createDirs := cfg.Settings.CreateDirs
	initialScan := cfg.Settings.InitialScan
	fc := fileConfig{
		Source: cfg.Source,
		Ignore: cfg.Ignore,
		Settings: &fileSettings{
			CreateDirs:  &createDirs,
			InitialScan: &initialScan,
			HistoryFile: cfg.Settings.HistoryFile,
		},
	}
	for _, cat := range cfg.Categories {
		fc.Extensions = append(fc.Extensions, extensionEntry{category: cat.Name, extensions: cat.Extensions})
		fc.Folders = append(fc.Folders, folderEntry{category: cat.Name, path: cat.Folder})
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&fc); err != nil {
		return errors.Wrap(err, "failed to marshal config")
	}
	if err := enc.Close(); err != nil {
		return errors.Wrap(err, "failed to marshal config")
	}

	if err := fsutil.WriteFileAtomic(path, buf.Bytes(), 0644); err != nil {
		return errors.Wrapf(err, "failed to write config file %s", path)
	}
	return nil
}

// ExpandPath expands a leading ~ and environment variables.
func ExpandPath(p string) string {
	p = os.ExpandEnv(strings.TrimSpace(p))
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			p = filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}
