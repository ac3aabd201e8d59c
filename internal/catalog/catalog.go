// Package catalog holds the Bitable template catalog: built-in table
// templates, the keyword synonyms that select them, and the keyword
// tables used to infer field types and default select options.
//
// The built-in catalog is embedded at build time. A templates directory
// can be configured to merge override documents on top of it, and Watch
// reloads those overrides when the directory changes.
package catalog

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/soracane/larkbridge/internal/model"
)

//go:embed templates.yaml
var embedded []byte

// reloadDebounce coalesces bursts of fsnotify events into one reload.
const reloadDebounce = 500 * time.Millisecond

// Synonym maps a message keyword to a template name.
type Synonym struct {
	Keyword  string `yaml:"keyword"`
	Template string `yaml:"template"`
}

// TypeRule assigns a field type to names containing one of its keywords.
type TypeRule struct {
	Type     model.FieldType `yaml:"type"`
	Keywords []string        `yaml:"keywords"`
}

// OptionRule supplies default select options for matching field names.
type OptionRule struct {
	Keywords []string `yaml:"keywords"`
	Options  []string `yaml:"options"`
}

// document is the on-disk schema shared by the embedded catalog and
// override files. Override files may populate any subset of the keys.
type document struct {
	Templates      []model.TableDefinition `yaml:"templates"`
	Synonyms       []Synonym               `yaml:"synonyms"`
	FieldTypeRules []TypeRule              `yaml:"field_type_keywords"`
	SelectDefaults []OptionRule            `yaml:"select_defaults"`
}

// state is the parsed catalog. It is replaced wholesale on reload so
// readers never observe a half-merged catalog.
type state struct {
	templates   map[string]model.TableDefinition
	order       []string
	synonyms    []Synonym
	typeRules   []TypeRule
	optionRules []OptionRule
}

// Catalog answers template and field-type queries. All methods are safe
// for concurrent use.
type Catalog struct {
	logger *zap.Logger
	dir    string

	mu sync.RWMutex
	st *state

	debounceMu    sync.Mutex
	debounceTimer *time.Timer
}

// New parses the embedded catalog and merges override documents from
// dir when it is non-empty. Missing override directories are an error;
// configure an empty dir to run on the built-in catalog alone.
func New(logger *zap.Logger, dir string) (*Catalog, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	st, err := load(dir)
	if err != nil {
		return nil, err
	}
	return &Catalog{logger: logger, dir: dir, st: st}, nil
}

// load parses the embedded document plus any overrides and validates
// the merged result.
func load(dir string) (*state, error) {
	var base document
	if err := yaml.Unmarshal(embedded, &base); err != nil {
		return nil, fmt.Errorf("parse embedded catalog: %w", err)
	}

	st := &state{templates: make(map[string]model.TableDefinition)}
	st.merge(base)

	if dir != "" {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("read templates dir: %w", err)
		}
		var names []string
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			ext := filepath.Ext(e.Name())
			if ext == ".yaml" || ext == ".yml" {
				names = append(names, e.Name())
			}
		}
		sort.Strings(names)
		for _, name := range names {
			path := filepath.Join(dir, name)
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("read template override %s: %w", name, err)
			}
			var doc document
			if err := yaml.Unmarshal(data, &doc); err != nil {
				return nil, fmt.Errorf("parse template override %s: %w", name, err)
			}
			st.merge(doc)
		}
	}

	if err := st.validate(); err != nil {
		return nil, err
	}
	return st, nil
}

// merge folds a document into the state. Templates replace same-named
// entries in place; new templates and all keyword rules append.
func (st *state) merge(doc document) {
	for _, t := range doc.Templates {
		if _, ok := st.templates[t.Name]; !ok {
			st.order = append(st.order, t.Name)
		}
		st.templates[t.Name] = t
	}
	st.synonyms = append(st.synonyms, doc.Synonyms...)
	st.typeRules = append(st.typeRules, doc.FieldTypeRules...)
	st.optionRules = append(st.optionRules, doc.SelectDefaults...)
}

func (st *state) validate() error {
	for name, t := range st.templates {
		if name == "" {
			return fmt.Errorf("catalog template with empty name")
		}
		if len(t.Fields) == 0 {
			return fmt.Errorf("catalog template %q has no fields", name)
		}
		for _, f := range t.Fields {
			if f.Name == "" {
				return fmt.Errorf("catalog template %q has a field with empty name", name)
			}
			if !f.Type.Valid() {
				return fmt.Errorf("catalog template %q field %q has invalid type %d", name, f.Name, int(f.Type))
			}
		}
	}
	for _, s := range st.synonyms {
		if s.Keyword == "" {
			return fmt.Errorf("catalog synonym for %q has empty keyword", s.Template)
		}
		if _, ok := st.templates[s.Template]; !ok {
			return fmt.Errorf("catalog synonym %q references unknown template %q", s.Keyword, s.Template)
		}
	}
	for _, r := range st.typeRules {
		if !r.Type.Valid() {
			return fmt.Errorf("catalog type rule has invalid type %d", int(r.Type))
		}
	}
	return nil
}

// Reload re-parses the embedded catalog and override directory. On
// error the previous catalog stays in effect.
func (c *Catalog) Reload() error {
	st, err := load(c.dir)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.st = st
	c.mu.Unlock()
	c.logger.Info("catalog reloaded",
		zap.Int("templates", len(st.order)),
		zap.Int("synonyms", len(st.synonyms)))
	return nil
}

// Match scans the synonym table in declaration order and returns the
// first template whose keyword the message contains. Matching is
// case-insensitive.
func (c *Catalog) Match(message string) (string, bool) {
	lower := strings.ToLower(message)
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, s := range c.st.synonyms {
		if strings.Contains(lower, strings.ToLower(s.Keyword)) {
			return s.Template, true
		}
	}
	return "", false
}

// Lookup returns a deep copy of the named template, so callers may
// adjust fields without mutating the catalog.
func (c *Catalog) Lookup(name string) (model.TableDefinition, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.st.templates[name]
	if !ok {
		return model.TableDefinition{}, false
	}
	return t.Clone(), true
}

// Names returns the template names in catalog order.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.st.order...)
}

// Len returns the number of templates in the catalog.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.st.order)
}

// InferFieldType resolves a field name to a type by keyword, falling
// back to text when no rule matches.
func (c *Catalog) InferFieldType(fieldName string) model.FieldType {
	lower := strings.ToLower(fieldName)
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, rule := range c.st.typeRules {
		for _, kw := range rule.Keywords {
			if strings.Contains(lower, strings.ToLower(kw)) {
				return rule.Type
			}
		}
	}
	return model.FieldText
}

// DefaultOptions returns the default select options for a field name,
// or nil when no rule matches.
func (c *Catalog) DefaultOptions(fieldName string) []string {
	lower := strings.ToLower(fieldName)
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, rule := range c.st.optionRules {
		for _, kw := range rule.Keywords {
			if strings.Contains(lower, strings.ToLower(kw)) {
				return append([]string(nil), rule.Options...)
			}
		}
	}
	return nil
}

// Watch reloads the catalog when yaml files in the override directory
// change. It blocks until ctx is cancelled and returns nil on a clean
// shutdown. Calling Watch without a configured directory is a no-op.
func (c *Catalog) Watch(ctx context.Context) error {
	if c.dir == "" {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	defer watcher.Close()
	defer c.stopDebounce()

	if err := watcher.Add(c.dir); err != nil {
		return fmt.Errorf("watch %s: %w", c.dir, err)
	}
	c.logger.Info("watching templates dir", zap.String("dir", c.dir))

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) {
				continue
			}
			ext := filepath.Ext(event.Name)
			if ext != ".yaml" && ext != ".yml" {
				continue
			}
			c.logger.Debug("templates dir event",
				zap.String("op", event.Op.String()),
				zap.String("file", event.Name))
			c.debounceReload()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			c.logger.Error("fsnotify error", zap.Error(err))
		}
	}
}

// debounceReload schedules a reload, resetting the timer on each call.
func (c *Catalog) debounceReload() {
	c.debounceMu.Lock()
	defer c.debounceMu.Unlock()
	if c.debounceTimer != nil {
		c.debounceTimer.Stop()
	}
	c.debounceTimer = time.AfterFunc(reloadDebounce, func() {
		if err := c.Reload(); err != nil {
			c.logger.Error("catalog reload failed", zap.Error(err))
		}
	})
}

func (c *Catalog) stopDebounce() {
	c.debounceMu.Lock()
	defer c.debounceMu.Unlock()
	if c.debounceTimer != nil {
		c.debounceTimer.Stop()
		c.debounceTimer = nil
	}
}
