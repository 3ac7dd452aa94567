// Package config reads the project configuration file: contentlayer.yaml,
// contentlayer.yml, contentlayer.json or contentlayer.jsonc.
//
// Settings go through viper so they can be overridden from the environment
// (CONTENTLAYER_SETTINGS_CACHEDIR, CONTENTLAYER_DATASTOREFILE, ...).
// Collections are decoded from yaml.v3 nodes to keep their order and the
// case of field names.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"github.com/tailscale/hujson"
	"gopkg.in/yaml.v3"

	"github.com/aretw0/contentlayer/pkg/core"
	"github.com/aretw0/contentlayer/pkg/schema"
)

// FileNames are searched in order.
var FileNames = []string{"contentlayer.yaml", "contentlayer.yml", "contentlayer.json", "contentlayer.jsonc"}

// EnvPrefix prefixes environment overrides.
const EnvPrefix = "CONTENTLAYER"

// Loader types.
const (
	LoaderGlob = "glob"
	LoaderFile = "file"
)

// Patterns accepts a single pattern or a list.
type Patterns []string

func (p *Patterns) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		*p = Patterns{node.Value}
		return nil
	}
	var list []string
	if err := node.Decode(&list); err != nil {
		return err
	}
	*p = list
	return nil
}

// LoaderSpec declares one of the built-in loaders.
type LoaderSpec struct {
	Type       string   `yaml:"type"`
	Pattern    Patterns `yaml:"pattern"`
	Base       string   `yaml:"base"`
	RetainBody *bool    `yaml:"retainBody"`
	Path       string   `yaml:"path"`
}

// CollectionSpec declares a collection.
type CollectionSpec struct {
	Name   string         `yaml:"-"`
	Loader LoaderSpec     `yaml:"loader"`
	Schema *schema.Schema `yaml:"schema"`
}

// Project is a loaded configuration.
type Project struct {
	// Root is the directory holding the configuration file.
	Root string
	// File is empty when no configuration file was found.
	File string
	// Raw holds the file contents. It is the content configuration digest input.
	Raw           []byte
	Settings      core.Settings
	DataStoreFile string
	BuildConfig   map[string]any
	Collections   []CollectionSpec
}

// Find returns the first configuration file present in dir.
func Find(dir string) (string, bool) {
	for _, name := range FileNames {
		p := filepath.Join(dir, name)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, true
		}
	}
	return "", false
}

// LoadDir loads the configuration of the project rooted at dir. A project
// without a configuration file gets default settings and no collections.
func LoadDir(dir string) (*Project, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if path, ok := Find(abs); ok {
		return Load(path)
	}
	return decode(abs, "", nil)
}

// Load reads one configuration file.
func Load(path string) (*Project, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrConfig, err)
	}
	return decode(filepath.Dir(abs), abs, raw)
}

func decode(root, file string, raw []byte) (*Project, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	source := raw
	if file != "" {
		configType := "yaml"
		if ext := strings.ToLower(filepath.Ext(file)); ext == ".json" || ext == ".jsonc" {
			configType = "json"
			std, err := hujson.Standardize(raw)
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %v", core.ErrConfig, filepath.Base(file), err)
			}
			source = std
		}
		v.SetConfigType(configType)
		if err := v.ReadConfig(bytes.NewReader(source)); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", core.ErrConfig, filepath.Base(file), err)
		}
	}

	p := &Project{
		Root: root,
		File: file,
		Raw:  raw,
		Settings: core.Settings{
			Root:     root,
			SrcDir:   v.GetString("settings.srcDir"),
			CacheDir: v.GetString("settings.cacheDir"),
			Markdown: core.MarkdownSettings{
				GFM:           v.GetBool("settings.markdown.gfm"),
				Typographer:   v.GetBool("settings.markdown.typographer"),
				HardWraps:     v.GetBool("settings.markdown.hardWraps"),
				UnsafeHTML:    v.GetBool("settings.markdown.unsafeHTML"),
				AutoHeadingID: v.GetBool("settings.markdown.autoHeadingID"),
			},
		},
		DataStoreFile: v.GetString("dataStoreFile"),
		BuildConfig:   v.GetStringMap("build"),
	}

	if len(source) > 0 {
		collections, err := decodeCollections(source)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", core.ErrConfig, filepath.Base(file), err)
		}
		p.Collections = collections
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// DefaultMarkdown returns the markdown settings of a project that sets none.
func DefaultMarkdown() core.MarkdownSettings {
	return core.MarkdownSettings{GFM: true, AutoHeadingID: true}
}

func setDefaults(v *viper.Viper) {
	md := DefaultMarkdown()
	v.SetDefault("settings.srcDir", "src")
	v.SetDefault("settings.cacheDir", ".contentlayer")
	v.SetDefault("settings.markdown.gfm", md.GFM)
	v.SetDefault("settings.markdown.typographer", md.Typographer)
	v.SetDefault("settings.markdown.hardWraps", md.HardWraps)
	v.SetDefault("settings.markdown.unsafeHTML", md.UnsafeHTML)
	v.SetDefault("settings.markdown.autoHeadingID", md.AutoHeadingID)
	v.SetDefault("dataStoreFile", "")
}

func decodeCollections(source []byte) ([]CollectionSpec, error) {
	var doc struct {
		Collections yaml.Node `yaml:"collections"`
	}
	if err := yaml.Unmarshal(source, &doc); err != nil {
		return nil, err
	}

	node := doc.Collections
	switch node.Kind {
	case 0:
		return nil, nil
	case yaml.MappingNode:
	default:
		return nil, errors.New("collections must be a mapping of name to definition")
	}

	specs := make([]CollectionSpec, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		name := node.Content[i].Value
		var spec CollectionSpec
		if err := node.Content[i+1].Decode(&spec); err != nil {
			return nil, fmt.Errorf("collection %q: %w", name, err)
		}
		spec.Name = name
		specs = append(specs, spec)
	}
	return specs, nil
}

// Validate checks the loader declarations.
func (p *Project) Validate() error {
	for _, c := range p.Collections {
		switch c.Loader.Type {
		case LoaderGlob:
			if len(c.Loader.Pattern) == 0 {
				return fmt.Errorf("%w: collection %q: glob loader needs a pattern", core.ErrConfig, c.Name)
			}
		case LoaderFile:
			if c.Loader.Path == "" {
				return fmt.Errorf("%w: collection %q: file loader needs a path", core.ErrConfig, c.Name)
			}
		case "":
			return fmt.Errorf("%w: collection %q: missing loader type", core.ErrConfig, c.Name)
		default:
			return fmt.Errorf("%w: collection %q: unknown loader type %q", core.ErrConfig, c.Name, c.Loader.Type)
		}
	}
	return nil
}
