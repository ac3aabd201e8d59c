// Package dispatch routes classified chat commands to their handlers
// and renders the Japanese replies users see. Handlers never let errors
// escape to the caller; anything unexpected becomes a failed result
// with an apology message.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"strings"

	"go.uber.org/zap"

	"github.com/soracane/larkbridge/internal/builder"
	"github.com/soracane/larkbridge/internal/catalog"
	"github.com/soracane/larkbridge/internal/intent"
	"github.com/soracane/larkbridge/internal/model"
)

// API is the slice of the Lark client the command handlers need.
type API interface {
	CreateWikiSpace(ctx context.Context, name, description string, members []string) (json.RawMessage, error)
	CreateDocument(ctx context.Context, title, content, folderToken string) (json.RawMessage, error)
	CreateTask(ctx context.Context, title, description, dueDate, assignee string, followers []string) (json.RawMessage, error)
	SearchDocuments(ctx context.Context, query string, docTypes, ownerIDs, chatIDs []string) (json.RawMessage, error)
}

// Handler executes one command category. A returned error is converted
// by the dispatcher into a failed CommandResult; handlers that can
// render a domain-specific failure message return it themselves.
type Handler func(ctx context.Context, cmd model.ParsedCommand) (model.CommandResult, error)

// Dispatcher owns the category-to-handler registry.
type Dispatcher struct {
	classifier intent.Classifier
	builder    *builder.Builder
	api        API
	catalog    *catalog.Catalog
	logger     *zap.Logger

	handlers map[model.CommandType]Handler
	randIntN func(int) int
}

// New wires the registry. Every classifier category has a handler.
func New(classifier intent.Classifier, bld *builder.Builder, api API, cat *catalog.Catalog, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Dispatcher{
		classifier: classifier,
		builder:    bld,
		api:        api,
		catalog:    cat,
		logger:     logger,
		randIntN:   rand.IntN,
	}
	d.handlers = map[model.CommandType]Handler{
		model.CommandCreateBitable: d.handleCreateBitable,
		model.CommandCreateTable:   d.handleCreateTable,
		model.CommandCreateWiki:    d.handleCreateWiki,
		model.CommandCreateDoc:     d.handleCreateDoc,
		model.CommandSendMessage:   d.handleSendMessage,
		model.CommandCreateTask:    d.handleCreateTask,
		model.CommandSearch:        d.handleSearch,
		model.CommandHelp:          d.handleHelp,
		model.CommandGreeting:      d.handleGreeting,
		model.CommandConversation:  d.handleConversation,
	}
	return d
}

// HandleMessage classifies the message and runs the matching handler.
// Low-confidence classifications fall back to conversation mode so the
// bot always answers something.
func (d *Dispatcher) HandleMessage(ctx context.Context, message string) model.CommandResult {
	parsed := d.classifier.Classify(message)
	d.logger.Info("parsed command",
		zap.String("command_type", string(parsed.Type)),
		zap.Float64("confidence", parsed.Confidence))

	if parsed.Confidence < intent.ConversationThreshold {
		parsed.Type = model.CommandConversation
		result, _ := d.handleConversation(ctx, parsed)
		return result
	}

	handler, ok := d.handlers[parsed.Type]
	if !ok {
		result, _ := d.handleConversation(ctx, parsed)
		return result
	}

	result, err := handler(ctx, parsed)
	if err != nil {
		d.logger.Error("handler error",
			zap.String("command_type", string(parsed.Type)), zap.Error(err))
		return model.CommandResult{
			Success: false,
			Data:    map[string]string{"error": err.Error()},
			Message: "エラーが発生しました: " + err.Error(),
			Type:    parsed.Type,
		}
	}
	return result
}

func (d *Dispatcher) handleCreateBitable(ctx context.Context, cmd model.ParsedCommand) (model.CommandResult, error) {
	var name string
	if p, ok := cmd.Params.(model.BitableParams); ok {
		name = p.Name
	}

	result := d.builder.BuildFromMessage(ctx, cmd.RawText, name, "")
	if !result.Success {
		errText := result.Error
		if errText == "" {
			errText = "不明なエラー"
		}
		return model.CommandResult{
			Success: false,
			Data:    result,
			Message: "❌ Bitable作成に失敗しました: " + errText,
			Type:    model.CommandCreateBitable,
		}, nil
	}

	var sb strings.Builder
	sb.WriteString("✅ Bitableを作成しました！\n\n")
	fmt.Fprintf(&sb, "**Base名:** %s\n", result.Design.Name)
	if token := result.AppToken(); token != "" {
		fmt.Fprintf(&sb, "**URL:** https://bytedance.feishu.cn/base/%s\n\n", token)
	}
	if len(result.Design.Tables) > 0 {
		sb.WriteString("**テーブル構成:**\n")
		for _, table := range result.Design.Tables {
			fmt.Fprintf(&sb, "\n📋 %s\n", table.Name)
			for _, field := range table.Fields {
				fmt.Fprintf(&sb, "  • %s (%s)\n", field.Name, field.Type)
			}
		}
	}

	return model.CommandResult{
		Success: true,
		Data:    result,
		Message: sb.String(),
		Type:    model.CommandCreateBitable,
	}, nil
}

func (d *Dispatcher) handleCreateTable(_ context.Context, _ model.ParsedCommand) (model.CommandResult, error) {
	// Adding to an existing base needs its app_token, which chat text
	// does not carry yet.
	return model.CommandResult{
		Success: false,
		Message: "テーブルを追加するには、対象のBitableのapp_tokenを指定してください。\n" +
			"例: 「app_token: xxx のベースにテーブルを追加して」",
		Type: model.CommandCreateTable,
	}, nil
}

func (d *Dispatcher) handleCreateWiki(ctx context.Context, cmd model.ParsedCommand) (model.CommandResult, error) {
	name := "ナレッジベース"
	description := ""
	if p, ok := cmd.Params.(model.WikiParams); ok {
		if p.Name != "" {
			name = p.Name
		}
		description = p.Description
	}

	data, err := d.api.CreateWikiSpace(ctx, name, description, nil)
	if err != nil {
		return model.CommandResult{
			Success: false,
			Data:    map[string]string{"error": err.Error()},
			Message: "❌ Wiki作成に失敗しました: " + err.Error(),
			Type:    model.CommandCreateWiki,
		}, nil
	}

	var payload struct {
		Space struct {
			SpaceID string `json:"space_id"`
		} `json:"space"`
	}
	_ = json.Unmarshal(data, &payload)

	return model.CommandResult{
		Success: true,
		Data:    data,
		Message: fmt.Sprintf("✅ Wikiスペースを作成しました！\n\n**スペース名:** %s\n**スペースID:** %s",
			name, payload.Space.SpaceID),
		Type: model.CommandCreateWiki,
	}, nil
}

func (d *Dispatcher) handleCreateDoc(ctx context.Context, cmd model.ParsedCommand) (model.CommandResult, error) {
	title := "新規ドキュメント"
	content := ""
	if p, ok := cmd.Params.(model.DocParams); ok {
		if p.Name != "" {
			title = p.Name
		}
		content = p.Description
	}

	data, err := d.api.CreateDocument(ctx, title, content, "")
	if err != nil {
		return model.CommandResult{
			Success: false,
			Data:    map[string]string{"error": err.Error()},
			Message: "❌ ドキュメント作成に失敗しました: " + err.Error(),
			Type:    model.CommandCreateDoc,
		}, nil
	}

	var payload struct {
		Document struct {
			DocumentID string `json:"document_id"`
		} `json:"document"`
	}
	_ = json.Unmarshal(data, &payload)

	return model.CommandResult{
		Success: true,
		Data:    data,
		Message: fmt.Sprintf("✅ ドキュメントを作成しました！\n\n**タイトル:** %s\n**ドキュメントID:** %s",
			title, payload.Document.DocumentID),
		Type: model.CommandCreateDoc,
	}, nil
}

func (d *Dispatcher) handleSendMessage(_ context.Context, _ model.ParsedCommand) (model.CommandResult, error) {
	return model.CommandResult{
		Success: false,
		Message: "メッセージを送信するには、宛先（chat_id）と内容を指定してください。",
		Type:    model.CommandSendMessage,
	}, nil
}

func (d *Dispatcher) handleCreateTask(ctx context.Context, cmd model.ParsedCommand) (model.CommandResult, error) {
	title := ""
	description := ""
	if p, ok := cmd.Params.(model.TaskParams); ok {
		title = p.Name
		description = p.Description
	}
	if title == "" {
		title = truncateRunes(cmd.RawText, 50)
	}

	data, err := d.api.CreateTask(ctx, title, description, "", "", nil)
	if err != nil {
		return model.CommandResult{
			Success: false,
			Data:    map[string]string{"error": err.Error()},
			Message: "❌ タスク作成に失敗しました: " + err.Error(),
			Type:    model.CommandCreateTask,
		}, nil
	}

	var payload struct {
		Task struct {
			ID string `json:"id"`
		} `json:"task"`
	}
	_ = json.Unmarshal(data, &payload)

	return model.CommandResult{
		Success: true,
		Data:    data,
		Message: fmt.Sprintf("✅ タスクを作成しました！\n\n**タイトル:** %s\n**タスクID:** %s",
			title, payload.Task.ID),
		Type: model.CommandCreateTask,
	}, nil
}

func (d *Dispatcher) handleSearch(ctx context.Context, cmd model.ParsedCommand) (model.CommandResult, error) {
	query := cmd.RawText
	if p, ok := cmd.Params.(model.SearchParams); ok && p.Query != "" {
		query = p.Query
	}

	data, err := d.api.SearchDocuments(ctx, query, nil, nil, nil)
	if err != nil {
		return model.CommandResult{
			Success: false,
			Data:    map[string]string{"error": err.Error()},
			Message: "❌ 検索に失敗しました: " + err.Error(),
			Type:    model.CommandSearch,
		}, nil
	}

	var payload struct {
		Docs []struct {
			Title string `json:"title"`
		} `json:"docs_entities"`
	}
	_ = json.Unmarshal(data, &payload)

	var message string
	if len(payload.Docs) > 0 {
		var sb strings.Builder
		fmt.Fprintf(&sb, "🔍 検索結果: %d件\n\n", len(payload.Docs))
		for i, doc := range payload.Docs {
			if i == 5 {
				break
			}
			title := doc.Title
			if title == "" {
				title = "N/A"
			}
			fmt.Fprintf(&sb, "• %s\n", title)
		}
		message = sb.String()
	} else {
		message = "検索結果が見つかりませんでした。"
	}

	return model.CommandResult{
		Success: true,
		Data:    data,
		Message: message,
		Type:    model.CommandSearch,
	}, nil
}

const helpHeader = `
🤖 **LarkBridge Bot** へようこそ！

以下のことができます：

📊 **Bitable (多次元テーブル)**
• 「顧客管理テーブルを作成して」
• 「プロジェクト管理用のベースを作って」
• 「在庫管理システムを構築」

📚 **Wiki / ドキュメント**
• 「ナレッジベースを作成」
• 「プロジェクトWikiを作って」
• 「マニュアルを作成」

✅ **タスク**
• 「タスクを追加: レビュー依頼」
• 「TODO: 資料作成」

🔍 **検索**
• 「〇〇を検索」
• 「△△のドキュメントを探して」

💡 **テンプレート**
利用可能なテンプレート:
`

// HelpText renders the bot help, listing the given template names.
func HelpText(templates []string) string {
	var sb strings.Builder
	sb.WriteString(helpHeader)
	for _, name := range templates {
		fmt.Fprintf(&sb, "• %s\n", name)
	}
	return sb.String()
}

func (d *Dispatcher) handleHelp(_ context.Context, _ model.ParsedCommand) (model.CommandResult, error) {
	names := d.catalog.Names()
	return model.CommandResult{
		Success: true,
		Data:    map[string]any{"templates": names},
		Message: HelpText(names),
		Type:    model.CommandHelp,
	}, nil
}

var greetings = []string{
	"こんにちは！LarkBridge Botです。何かお手伝いできることはありますか？",
	"はい！何でもお聞きください。Bitableの作成やドキュメント管理などお手伝いします。",
	"お呼びですか？「ヘルプ」で私にできることを確認できます！",
}

const connectivityReply = `📡 はい、聞こえています！

LarkBridge Bot が正常に動作しています。

私にできることの例：
• 「顧客管理テーブルを作成して」→ Bitable自動作成
• 「プロジェクト管理用のベースを作って」→ テンプレートから作成
• 「Wikiスペースを作成」→ ナレッジベース作成
• 「ヘルプ」→ 詳しい使い方

何かお手伝いできることはありますか？`

var connectivityKeywords = []string{"テスト", "test", "聞こえ", "返事", "応答"}

func (d *Dispatcher) handleGreeting(_ context.Context, cmd model.ParsedCommand) (model.CommandResult, error) {
	lowered := strings.ToLower(cmd.RawText)
	response := ""
	for _, kw := range connectivityKeywords {
		if strings.Contains(lowered, kw) {
			response = connectivityReply
			break
		}
	}
	if response == "" {
		response = greetings[d.randIntN(len(greetings))]
	}

	return model.CommandResult{
		Success: true,
		Message: response,
		Type:    model.CommandGreeting,
	}, nil
}

const conversationFormat = `💬 メッセージを受け取りました！

「%s」

私はLark操作の自動化が得意です。以下のようなことができます：

📊 **データ管理**
• 「顧客管理テーブルを作成」
• 「プロジェクト進捗管理のベースを作って」
• 「在庫管理システムを構築」

📚 **ドキュメント**
• 「Wikiスペースを作成」
• 「ドキュメントを作成」

✅ **タスク**
• 「タスクを追加: 〇〇」

具体的にやりたいことを教えていただければ、お手伝いします！
「ヘルプ」で詳しい使い方を確認できます。`

func (d *Dispatcher) handleConversation(_ context.Context, cmd model.ParsedCommand) (model.CommandResult, error) {
	preview := truncateRunes(cmd.RawText, 50)
	if preview != cmd.RawText {
		preview += "..."
	}

	return model.CommandResult{
		Success: true,
		Data:    map[string]string{"original_message": cmd.RawText},
		Message: fmt.Sprintf(conversationFormat, preview),
		Type:    model.CommandConversation,
	}, nil
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
