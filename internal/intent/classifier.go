// Package intent classifies inbound chat messages into command
// categories. The default classifier is regex-based; the Classifier
// interface is the seam for swapping in a model-backed implementation.
package intent

import (
	"regexp"
	"strings"

	"github.com/soracane/larkbridge/internal/model"
)

// ConversationThreshold is the confidence below which a classification
// is treated as small talk rather than a command.
const ConversationThreshold = 0.3

// Classifier turns one raw chat message into a ParsedCommand.
type Classifier interface {
	Classify(message string) model.ParsedCommand
}

// categoryPatterns binds a command category to its match patterns.
// Categories are scanned in declaration order; on equal confidence the
// earlier category wins.
type categoryPatterns struct {
	cmd      model.CommandType
	patterns []*regexp.Regexp
}

func compileAll(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, expr := range exprs {
		out[i] = regexp.MustCompile(`(?i)` + expr)
	}
	return out
}

// RegexClassifier scores messages against fixed pattern tables. The
// confidence for a category with n matching patterns is
// min(0.5 + 0.2*n, 1.0); a message matching nothing stays unknown at 0.
type RegexClassifier struct {
	table []categoryPatterns
}

// NewRegexClassifier compiles the pattern tables.
func NewRegexClassifier() *RegexClassifier {
	return &RegexClassifier{table: []categoryPatterns{
		{model.CommandCreateBitable, compileAll(
			`(?:ベース|base|bitable|多次元テーブル).*(?:作成|作って|作りたい|create)`,
			`(?:作成|作って|作りたい|create).*(?:ベース|base|bitable|多次元テーブル)`,
			`(?:顧客|プロジェクト|タスク|在庫|売上)(?:管理)?.*(?:テーブル|表)`,
		)},
		{model.CommandCreateTable, compileAll(
			`テーブル.*(?:追加|作成|作って)`,
			`(?:追加|作成).*テーブル`,
		)},
		{model.CommandCreateWiki, compileAll(
			`(?:wiki|ウィキ|知識|ナレッジ).*(?:作成|作って|作りたい)`,
			`(?:作成|作って).*(?:wiki|ウィキ|知識ベース)`,
			`ドキュメント.*(?:整理|まとめ)`,
		)},
		{model.CommandCreateDoc, compileAll(
			`(?:ドキュメント|文書|doc|マニュアル).*(?:作成|作って)`,
			`(?:作成|作って).*(?:ドキュメント|文書|doc)`,
		)},
		{model.CommandSendMessage, compileAll(
			`(?:メッセージ|通知).*(?:送|配信)`,
			`(?:伝えて|知らせて|連絡して)`,
		)},
		{model.CommandCreateTask, compileAll(
			`タスク.*(?:作成|追加|登録)`,
			`(?:作成|追加).*タスク`,
			`(?:TODO|やること).*(?:追加|登録)`,
		)},
		{model.CommandSearch, compileAll(
			`(?:検索|探して|見つけて|search)`,
			`(?:どこ|どれ).*(?:ある|いる)`,
		)},
		{model.CommandHelp, compileAll(
			`(?:ヘルプ|help|使い方|できること)`,
			`(?:教えて|何ができる)`,
		)},
		{model.CommandGreeting, compileAll(
			`^(?:こんにちは|こんばんは|おはよう|ハロー|hello|hi|hey|やあ|おっす)`,
			`(?:テスト|test|聞こえ|返事|応答)`,
			`^(?:よろしく|はじめまして)`,
		)},
	}}
}

// Classify scores the message against every category and extracts the
// category-specific parameters for the winner.
func (c *RegexClassifier) Classify(message string) model.ParsedCommand {
	message = strings.TrimSpace(message)

	detected := model.CommandUnknown
	best := 0.0
	for _, cat := range c.table {
		matches := 0
		for _, re := range cat.patterns {
			if re.MatchString(message) {
				matches++
			}
		}
		if matches == 0 {
			continue
		}
		confidence := 0.5 + 0.2*float64(matches)
		if confidence > 1.0 {
			confidence = 1.0
		}
		if confidence > best {
			best = confidence
			detected = cat.cmd
		}
	}

	return model.ParsedCommand{
		Type:       detected,
		Params:     extractParams(message, detected),
		RawText:    message,
		Confidence: best,
	}
}

var (
	namePatterns = []*regexp.Regexp{
		regexp.MustCompile(`名前[はを:：]?\s*[「『]?([^」』\s]+)[」』]?`),
		regexp.MustCompile(`(?:という|って)名前`),
		regexp.MustCompile(`[「『]([^」』]+)[」』]`),
	}
	fieldsPatterns = []*regexp.Regexp{
		regexp.MustCompile(`フィールド[はを:：]?\s*(.+)`),
		regexp.MustCompile(`項目[はを:：]?\s*(.+)`),
		regexp.MustCompile(`カラム[はを:：]?\s*(.+)`),
	}
	descriptionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`説明[はを:：]?\s*(.+)`),
		regexp.MustCompile(`概要[はを:：]?\s*(.+)`),
	}
	fieldSplit = regexp.MustCompile(`[,、，]`)
)

// firstCapture returns the first non-empty capture across the patterns.
// Patterns without a capture group never contribute a value.
func firstCapture(patterns []*regexp.Regexp, message string) string {
	for _, re := range patterns {
		m := re.FindStringSubmatch(message)
		if len(m) > 1 && m[1] != "" {
			return m[1]
		}
	}
	return ""
}

// extractParams builds the typed parameter set for the detected
// category. Categories that take no parameters return nil.
func extractParams(message string, cmd model.CommandType) model.Params {
	name := firstCapture(namePatterns, message)
	description := firstCapture(descriptionPatterns, message)

	switch cmd {
	case model.CommandCreateBitable:
		p := model.BitableParams{Name: name, Description: description}
		if raw := firstCapture(fieldsPatterns, message); raw != "" {
			for _, f := range fieldSplit.Split(raw, -1) {
				if f = strings.TrimSpace(f); f != "" {
					p.Fields = append(p.Fields, f)
				}
			}
		}
		return p
	case model.CommandCreateWiki:
		return model.WikiParams{Name: name, Description: description}
	case model.CommandCreateDoc:
		return model.DocParams{Name: name, Description: description}
	case model.CommandCreateTask:
		return model.TaskParams{Name: name, Description: description}
	case model.CommandSearch:
		return model.SearchParams{Query: message}
	default:
		return nil
	}
}
