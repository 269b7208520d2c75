// Package i18n serves the bot's reply texts from YAML catalogs embedded in the binary.
package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed locales/*.yaml
var locales embed.FS

const (
	localesDir  = "locales"
	defaultLang = "ru"
)

// Translator resolves localized strings using dot-separated keys.
type Translator interface {
	T(key string) string
	Tf(key string, args ...any) string
	Lang() string
}

// Manager holds one flattened catalog per language. Every catalog already contains
// the default language's entries for keys it does not translate.
type Manager struct {
	catalogs    map[string]map[string]string
	missing     map[string][]string
	defaultLang string
}

// Load loads the catalogs compiled into the binary.
func Load(lang string) (*Manager, error) {
	return LoadFS(locales, localesDir, lang)
}

// LoadFS loads every *.yaml and *.yml file in dir of fsys. Each file holds one or more
// top-level language keys; files may split a language between them.
func LoadFS(fsys fs.FS, dir, lang string) (*Manager, error) {
	raw, err := readCatalogs(fsys, dir)
	if err != nil {
		return nil, err
	}

	def := normalizeLang(lang)
	if def == "" {
		def = defaultLang
	}
	base, ok := raw[def]
	if !ok {
		return nil, fmt.Errorf("i18n: default language %q is missing", def)
	}

	m := &Manager{
		catalogs:    make(map[string]map[string]string, len(raw)),
		missing:     make(map[string][]string),
		defaultLang: def,
	}
	for name, entries := range raw {
		merged := make(map[string]string, len(base))
		for key, value := range base {
			merged[key] = value
		}
		for key, value := range entries {
			merged[key] = value
		}
		m.catalogs[name] = merged

		for key := range base {
			if _, ok := entries[key]; !ok {
				m.missing[name] = append(m.missing[name], key)
			}
		}
		sort.Strings(m.missing[name])
	}

	return m, nil
}

// Translator picks the catalog for an IETF tag such as "en-US"; unknown languages get the default.
func (m *Manager) Translator(lang string) Translator {
	if m == nil {
		return translator{}
	}

	name := normalizeLang(lang)
	if _, ok := m.catalogs[name]; !ok {
		name = m.defaultLang
	}
	return translator{lang: name, entries: m.catalogs[name]}
}

// Languages returns the loaded languages in sorted order.
func (m *Manager) Languages() []string {
	if m == nil {
		return nil
	}

	names := make([]string, 0, len(m.catalogs))
	for name := range m.catalogs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Missing lists the keys lang does not translate and serves from the default language.
func (m *Manager) Missing(lang string) []string {
	if m == nil {
		return nil
	}
	return m.missing[normalizeLang(lang)]
}

type translator struct {
	lang    string
	entries map[string]string
}

func (t translator) Lang() string {
	return t.lang
}

// T returns the translation for key or the key itself.
func (t translator) T(key string) string {
	key = strings.TrimSpace(key)
	if value, ok := t.entries[key]; ok {
		return value
	}
	return key
}

func (t translator) Tf(key string, args ...any) string {
	return fmt.Sprintf(t.T(key), args...)
}

func normalizeLang(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if head, _, ok := strings.Cut(strings.ReplaceAll(lang, "_", "-"), "-"); ok {
		return head
	}
	return lang
}

func readCatalogs(fsys fs.FS, dir string) (map[string]map[string]string, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("i18n: read dir %s: %w", dir, err)
	}

	catalogs := make(map[string]map[string]string)
	files := 0
	for _, entry := range entries {
		ext := strings.ToLower(path.Ext(entry.Name()))
		if entry.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		files++

		name := path.Join(dir, entry.Name())
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("i18n: read file %s: %w", name, err)
		}

		var doc map[string]yaml.Node
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("i18n: parse file %s: %w", name, err)
		}

		for lang, node := range doc {
			lang = normalizeLang(lang)
			if lang == "" {
				continue
			}
			if catalogs[lang] == nil {
				catalogs[lang] = make(map[string]string)
			}
			if err := flatten("", &node, catalogs[lang]); err != nil {
				return nil, fmt.Errorf("i18n: %s: %w", name, err)
			}
		}
	}

	if files == 0 {
		return nil, fmt.Errorf("i18n: no yaml files found in %s", dir)
	}
	return catalogs, nil
}

// flatten walks a mapping node and stores scalar leaves under dot-joined keys.
func flatten(prefix string, node *yaml.Node, out map[string]string) error {
	switch node.Kind {
	case yaml.ScalarNode:
		if prefix != "" {
			out[prefix] = node.Value
		}
		return nil
	case yaml.MappingNode:
		for i := 0; i+1 < len(node.Content); i += 2 {
			key := node.Content[i].Value
			if key == "" {
				continue
			}
			if prefix != "" {
				key = prefix + "." + key
			}
			if err := flatten(key, node.Content[i+1], out); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("key %q: unsupported yaml node", prefix)
	}
}
