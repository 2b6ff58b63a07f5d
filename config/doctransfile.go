// Package config implements .doctrans.yaml configuration file support.
//
// Settings are resolved in this order (highest first): command-line flags,
// the DOCTRANS_API_KEY environment variable, .doctrans.yaml, built-in
// defaults. Flags are applied by the caller after Load.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/minios-linux/doctrans/container"
	"github.com/minios-linux/doctrans/langmeta"
	"github.com/minios-linux/doctrans/translate"
)

// FileName is the default config file name.
const FileName = ".doctrans.yaml"

// EnvAPIKey overrides the provider API key from the config file.
const EnvAPIKey = "DOCTRANS_API_KEY"

// ---------------------------------------------------------------------------
// YAML schema
// ---------------------------------------------------------------------------

// File is the top-level .doctrans.yaml structure.
type File struct {
	// SourceLang is the language documents are written in (default "pl").
	SourceLang string `yaml:"source_lang,omitempty"`
	// TargetLang is the language to translate into (default "en").
	TargetLang string `yaml:"target_lang,omitempty"`
	// Workers is the translation pool size per document (default 10).
	Workers int `yaml:"workers,omitempty"`
	// Jobs is how many documents are processed at once (default 1).
	Jobs int `yaml:"jobs,omitempty"`
	// OutputDir receives translated documents (default: next to the input).
	OutputDir string `yaml:"output_dir,omitempty"`
	// Suffix is appended to output base names (default "_translated").
	Suffix string `yaml:"suffix,omitempty"`
	// ScratchDir is where per-run scratch directories are created (default: system temp).
	ScratchDir string `yaml:"scratch_dir,omitempty"`
	// Provider selects and configures the translation service.
	Provider Provider `yaml:"provider"`
	// Memo is the translation memory file (empty = disabled).
	Memo string `yaml:"memo,omitempty"`
	// Publish is a gs://bucket/prefix URL finished documents are uploaded to.
	Publish string `yaml:"publish,omitempty"`

	path string `yaml:"-"`
}

// Provider is the provider section of .doctrans.yaml.
type Provider struct {
	// ID: libretranslate, deepl, openai, google, vertex.
	ID         string        `yaml:"id,omitempty"`
	BaseURL    string        `yaml:"base_url,omitempty"`
	Model      string        `yaml:"model,omitempty"`
	APIKey     string        `yaml:"api_key,omitempty"`
	Proxy      string        `yaml:"proxy,omitempty"`
	Timeout    time.Duration `yaml:"timeout,omitempty"`
	MaxRetries int           `yaml:"max_retries,omitempty"`
	// Project and Region are used by the vertex provider.
	Project string `yaml:"project,omitempty"`
	Region  string `yaml:"region,omitempty"`
}

// Defaults returns the configuration used when no file is present.
func Defaults() *File {
	f := &File{}
	f.applyDefaults()
	return f
}

func (f *File) applyDefaults() {
	if f.SourceLang == "" {
		f.SourceLang = "pl"
	}
	if f.TargetLang == "" {
		f.TargetLang = "en"
	}
	if f.Workers == 0 {
		f.Workers = translate.DefaultWorkers
	}
	if f.Jobs == 0 {
		f.Jobs = 1
	}
	if f.Suffix == "" {
		f.Suffix = container.DefaultSuffix
	}
	if f.Provider.ID == "" {
		f.Provider.ID = translate.ProviderLibre
	}
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads the config file at path. With an empty path, .doctrans.yaml in
// dir is used if it exists and defaults otherwise; an explicit path must
// exist. Relative memo/output/scratch paths are resolved against the
// file's directory.
func Load(path, dir string) (*File, error) {
	explicit := path != ""
	if !explicit {
		path = filepath.Join(dir, FileName)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			f := Defaults()
			f.applyEnv()
			return f, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	f.path = path
	f.applyDefaults()
	f.applyEnv()

	base := filepath.Dir(path)
	for _, p := range []*string{&f.Memo, &f.OutputDir, &f.ScratchDir} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(base, *p)
		}
	}

	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &f, nil
}

// Path returns the file the configuration was read from ("" for defaults).
func (f *File) Path() string {
	return f.path
}

func (f *File) applyEnv() {
	if key := os.Getenv(EnvAPIKey); key != "" {
		f.Provider.APIKey = key
	}
}

// Validate checks the configuration after flags have been applied.
func (f *File) Validate() error {
	for _, lang := range []string{f.SourceLang, f.TargetLang} {
		if !langmeta.Known(lang) {
			return fmt.Errorf("unknown language %q (see 'doctrans languages')", lang)
		}
	}
	if err := f.Pair().Validate(); err != nil {
		return err
	}
	if f.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", f.Workers)
	}
	if f.Jobs < 1 {
		return fmt.Errorf("jobs must be at least 1, got %d", f.Jobs)
	}
	if strings.ContainsAny(f.Suffix, `/\`) {
		return fmt.Errorf("suffix %q must not contain path separators", f.Suffix)
	}
	if _, ok := translate.DefaultProviders()[f.Provider.ID]; !ok {
		return fmt.Errorf("unknown provider %q (valid: %s)", f.Provider.ID, strings.Join(ProviderIDs(), ", "))
	}
	if f.Provider.ID == translate.ProviderVertex && f.Provider.Project == "" {
		return fmt.Errorf("provider vertex requires provider.project")
	}
	if f.Publish != "" && !strings.HasPrefix(f.Publish, "gs://") {
		return fmt.Errorf("publish URL %q must start with gs://", f.Publish)
	}
	return nil
}

// Pair returns the configured language pair.
func (f *File) Pair() translate.LanguagePair {
	return translate.LanguagePair{Source: f.SourceLang, Target: f.TargetLang}
}

// HTTPProvider merges the provider section over the built-in definition.
func (f *File) HTTPProvider() translate.Provider {
	prov := translate.DefaultProviders()[f.Provider.ID]
	prov.ID = f.Provider.ID
	if f.Provider.BaseURL != "" {
		prov.BaseURL = f.Provider.BaseURL
	}
	if f.Provider.Model != "" {
		prov.Model = f.Provider.Model
	}
	if f.Provider.Timeout > 0 {
		prov.Timeout = f.Provider.Timeout
	}
	prov.APIKey = f.Provider.APIKey
	prov.Proxy = f.Provider.Proxy
	prov.MaxRetries = f.Provider.MaxRetries
	return prov
}

// ProviderIDs returns the known provider IDs.
func ProviderIDs() []string {
	return []string{
		translate.ProviderLibre,
		translate.ProviderDeepL,
		translate.ProviderOpenAI,
		translate.ProviderGoogle,
		translate.ProviderVertex,
	}
}
