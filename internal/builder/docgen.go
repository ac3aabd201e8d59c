package builder

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/soracane/larkbridge/internal/model"
)

// WikiAPI is the slice of the Lark client documentation publishing needs.
type WikiAPI interface {
	CreateWikiPage(ctx context.Context, spaceID, title, content, parentPageID string) (json.RawMessage, error)
}

// DocGenerator renders Markdown manuals for Bitable designs and can
// publish them as wiki pages.
type DocGenerator struct {
	api WikiAPI
}

// NewDocGenerator returns a generator publishing through the given API.
func NewDocGenerator(api WikiAPI) *DocGenerator {
	return &DocGenerator{api: api}
}

// TableDocumentation renders the field reference of one table.
func (g *DocGenerator) TableDocumentation(table model.TableDefinition) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", table.Name)
	fmt.Fprintf(&sb, "%s\n\n", table.Description)
	sb.WriteString("## フィールド一覧\n\n")
	sb.WriteString("| フィールド名 | タイプ | 説明 |\n")
	sb.WriteString("|------------|--------|------|\n")
	for _, f := range table.Fields {
		options := ""
		if len(f.Options) > 0 {
			options = fmt.Sprintf(" (選択肢: %s)", strings.Join(f.Options, ", "))
		}
		fmt.Fprintf(&sb, "| %s | %s | %s%s |\n", f.Name, f.Type, f.Description, options)
	}
	return sb.String()
}

// Documentation renders the manual for a whole design: header, one
// section per table, and fixed usage notes.
func (g *DocGenerator) Documentation(design model.Design) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", design.Name)
	fmt.Fprintf(&sb, "%s\n\n", design.Description)
	sb.WriteString("---\n\n")
	for _, table := range design.Tables {
		sb.WriteString(g.TableDocumentation(table))
		sb.WriteString("\n---\n\n")
	}
	sb.WriteString("## 使い方\n\n")
	sb.WriteString("1. 各テーブルにデータを入力してください\n")
	sb.WriteString("2. ビューを切り替えて様々な角度からデータを確認できます\n")
	sb.WriteString("3. フィルターや並び替えで必要な情報を絞り込めます\n")
	return sb.String()
}

// PublishWiki creates the design's manual as a wiki page titled
// "<design name> マニュアル".
func (g *DocGenerator) PublishWiki(ctx context.Context, design model.Design, spaceID, parentPageID string) (json.RawMessage, error) {
	content := g.Documentation(design)
	return g.api.CreateWikiPage(ctx, spaceID, design.Name+" マニュアル", content, parentPageID)
}
