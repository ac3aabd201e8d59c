// Package builder turns free-text requests into Bitable designs and
// materializes them through the Lark API. A catalog template match wins
// over field extraction, and a request that yields nothing still
// produces a minimal usable table.
package builder

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/soracane/larkbridge/internal/catalog"
	"github.com/soracane/larkbridge/internal/model"
)

// API is the slice of the Lark client the builder needs.
type API interface {
	CreateBitableApp(ctx context.Context, name, folderToken string) (json.RawMessage, error)
	CreateBitableTable(ctx context.Context, appToken, name string, fields []model.APIField) (json.RawMessage, error)
}

// Builder designs and builds Bitable apps.
type Builder struct {
	api     API
	catalog *catalog.Catalog
	logger  *zap.Logger
}

// New returns a Builder backed by the given API and template catalog.
func New(api API, cat *catalog.Catalog, logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{api: api, catalog: cat, logger: logger}
}

var (
	bulletItem   = regexp.MustCompile(`[-・•]\s*(.+)`)
	numberedItem = regexp.MustCompile(`(\d+)[.．)）]\s*(.+)`)
	itemSplit    = regexp.MustCompile(`[,、，]`)
)

// Design produces a Bitable design from a free-text request. When a
// catalog template matches the text, the template becomes a one-table
// design; otherwise candidate fields are extracted from the text, with
// a default 4-field table standing in when nothing usable is found. An
// explicit name overrides the generated one.
func (b *Builder) Design(message, name string) model.Design {
	if tmplName, ok := b.catalog.Match(message); ok {
		if tmpl, found := b.catalog.Lookup(tmplName); found {
			baseName := name
			if baseName == "" {
				baseName = tmplName + "Base"
			}
			return model.Design{
				Name:        baseName,
				Description: tmplName + "用のBitable",
				Tables:      []model.TableDefinition{tmpl},
			}
		}
	}

	fields := b.extractFields(message)
	if len(fields) == 0 {
		fields = defaultFields()
	}
	for i := range fields {
		f := &fields[i]
		if f.Type == model.FieldSingleSelect && len(f.Options) == 0 {
			f.Options = b.catalog.DefaultOptions(f.Name)
		}
	}

	tableName := name
	if tableName == "" {
		tableName = "メインテーブル"
	}
	baseName := name
	if baseName == "" {
		baseName = "新規Base"
	}
	return model.Design{
		Name:        baseName,
		Description: "自動生成されたBitable",
		Tables: []model.TableDefinition{{
			Name:        tableName,
			Description: "自動生成されたテーブル",
			Fields:      fields,
		}},
	}
}

// extractFields pulls candidate field names out of the text: bullet and
// numbered list items first, comma or full-width separators as the
// fallback. Empty items and items over 50 runes are treated as noise.
func (b *Builder) extractFields(text string) []model.FieldDefinition {
	var items []string
	for _, m := range bulletItem.FindAllStringSubmatch(text, -1) {
		items = append(items, m[1])
	}
	for _, m := range numberedItem.FindAllStringSubmatch(text, -1) {
		items = append(items, m[len(m)-1])
	}
	if len(items) == 0 {
		items = itemSplit.Split(text, -1)
	}

	var fields []model.FieldDefinition
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" || utf8.RuneCountInString(item) > 50 {
			continue
		}
		fields = append(fields, model.FieldDefinition{
			Name: item,
			Type: b.catalog.InferFieldType(item),
		})
	}
	return fields
}

func defaultFields() []model.FieldDefinition {
	return []model.FieldDefinition{
		{Name: "タイトル", Type: model.FieldText, Required: true},
		{Name: "説明", Type: model.FieldText},
		{Name: "ステータス", Type: model.FieldSingleSelect, Options: []string{"未着手", "進行中", "完了"}},
		{Name: "作成日", Type: model.FieldCreatedTime},
	}
}

// BuildResult reports what a materialization attempt produced. Partial
// results are kept when a later step fails so callers can surface what
// exists remotely.
type BuildResult struct {
	App     json.RawMessage   `json:"app"`
	Tables  []json.RawMessage `json:"tables"`
	Success bool              `json:"success"`
	Error   string            `json:"error,omitempty"`
}

// AppToken extracts the remote container token from the app payload.
func (r BuildResult) AppToken() string {
	return appToken(r.App)
}

func appToken(data json.RawMessage) string {
	var payload struct {
		App struct {
			AppToken string `json:"app_token"`
		} `json:"app"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return ""
	}
	return payload.App.AppToken
}

// Build materializes a design: the container first, then every table in
// declared order. A missing container token or a table failure stops
// the sequence without rolling back what was already created.
func (b *Builder) Build(ctx context.Context, design model.Design, folderToken string) BuildResult {
	result := BuildResult{Tables: []json.RawMessage{}}

	appData, err := b.api.CreateBitableApp(ctx, design.Name, folderToken)
	if err != nil {
		result.Error = err.Error()
		b.logger.Error("failed to create bitable app",
			zap.String("name", design.Name), zap.Error(err))
		return result
	}
	result.App = appData

	token := appToken(appData)
	if token == "" {
		result.Error = "Failed to get app_token"
		return result
	}

	for _, table := range design.Tables {
		tableData, err := b.api.CreateBitableTable(ctx, token, table.Name, table.APIFields())
		if err != nil {
			result.Error = err.Error()
			b.logger.Error("failed to create table",
				zap.String("name", design.Name),
				zap.String("table", table.Name), zap.Error(err))
			return result
		}
		result.Tables = append(result.Tables, tableData)
	}

	result.Success = true
	b.logger.Info("built bitable",
		zap.String("name", design.Name), zap.Int("tables", len(result.Tables)))
	return result
}

// MessageBuildResult is a BuildResult plus the redacted summary of the
// design that was generated for the message.
type MessageBuildResult struct {
	BuildResult
	Design model.DesignSummary `json:"design"`
}

// BuildFromMessage designs from the text and builds in one step.
func (b *Builder) BuildFromMessage(ctx context.Context, message, name, folderToken string) MessageBuildResult {
	design := b.Design(message, name)
	result := b.Build(ctx, design, folderToken)
	return MessageBuildResult{BuildResult: result, Design: design.Summary()}
}
