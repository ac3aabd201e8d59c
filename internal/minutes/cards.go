package minutes

import (
	"fmt"
	"strings"

	"github.com/soracane/larkbridge/internal/card"
	"github.com/soracane/larkbridge/internal/model"
)

var actionLabels = map[model.ActionType]string{
	model.ActionExtractTasks:         "📋 タスク抽出",
	model.ActionCreateSummaryBitable: "📊 Bitable作成",
	model.ActionArchiveToWiki:        "📚 Wikiに保存",
	model.ActionExtractDecisions:     "✅ 決定事項抽出",
	model.ActionFullAnalysis:         "🔍 フル分析",
}

// clarificationOptions are the four actions offered when no intent was
// recognized. Decision extraction is folded into full analysis here.
var clarificationOptions = []model.ActionType{
	model.ActionExtractTasks,
	model.ActionCreateSummaryBitable,
	model.ActionArchiveToWiki,
	model.ActionFullAnalysis,
}

var clarificationLabels = map[model.ActionType]string{
	model.ActionExtractTasks:         "📋 タスクを抽出",
	model.ActionCreateSummaryBitable: "📊 サマリーテーブル作成",
	model.ActionArchiveToWiki:        "📚 Wikiに保存",
	model.ActionFullAnalysis:         "🔍 すべて実行",
}

// register stores a fresh pending action for one card button and
// returns its id.
func (h *Handler) register(actionType model.ActionType, minuteToken, chatID, userID string) string {
	id := h.newID()
	h.store.Put(model.PendingAction{
		ID:          id,
		Type:        actionType,
		MinuteToken: minuteToken,
		ChatID:      chatID,
		UserID:      userID,
		CreatedAt:   h.now(),
	})
	return id
}

// ActionCard offers the suggested actions as buttons. Each button
// registers its own pending action; full analysis gets the primary
// style. minuteTitle may be empty when the metadata is not known yet.
func (h *Handler) ActionCard(minuteToken, chatID, userID string, suggested []model.ActionType, minuteTitle string) *card.Card {
	buttons := make([]card.Button, 0, len(suggested))
	for _, at := range suggested {
		id := h.register(at, minuteToken, chatID, userID)
		label, ok := actionLabels[at]
		if !ok {
			label = string(at)
		}
		style := card.StyleDefault
		if at == model.ActionFullAnalysis {
			style = card.StylePrimary
		}
		buttons = append(buttons, card.NewButton(label, style, card.Selection(id, string(at))))
	}

	title := minuteTitle
	if title == "" {
		title = "会議"
	}
	return card.New("📝 議事録を検出しました", card.TemplateBlue).
		Markdown(fmt.Sprintf("**%s** の議事録リンクを検出しました。\n\nどの処理を実行しますか？", title)).
		Divider().
		Actions(buttons...)
}

// ClarificationCard asks which action to run when the message gave no
// hint. All four primary actions are offered.
func (h *Handler) ClarificationCard(minuteToken, chatID, userID string) *card.Card {
	buttons := make([]card.Button, 0, len(clarificationOptions))
	for _, at := range clarificationOptions {
		id := h.register(at, minuteToken, chatID, userID)
		style := card.StyleDefault
		if at == model.ActionFullAnalysis {
			style = card.StylePrimary
		}
		buttons = append(buttons, card.NewButton(clarificationLabels[at], style, card.Selection(id, string(at))))
	}

	return card.New("🤔 何をしますか？", card.TemplateTurquoise).
		Markdown("議事録リンクを検出しました。\n\n以下から実行したい処理を選んでください：").
		Divider().
		Actions(buttons...)
}

// ConfirmationCard shows what the clicked action will do, with a short
// content preview, and asks for an explicit confirm or cancel. Both
// buttons carry the same pending-action id.
func ConfirmationCard(actionID string, actionType model.ActionType, analysis model.MinuteAnalysis) *card.Card {
	var description string
	switch actionType {
	case model.ActionExtractTasks:
		description = fmt.Sprintf("以下の **%d件のタスク** を抽出します", len(analysis.Tasks))
	case model.ActionCreateSummaryBitable:
		description = "議事録サマリーのBitableを作成します"
	case model.ActionArchiveToWiki:
		description = "議事録をWikiページとして保存します"
	case model.ActionExtractDecisions:
		description = fmt.Sprintf("以下の **%d件の決定事項** を抽出します", len(analysis.Decisions))
	case model.ActionFullAnalysis:
		description = "タスク抽出、決定事項、Bitable作成を一括で行います"
	}

	var items []string
	switch actionType {
	case model.ActionExtractTasks, model.ActionFullAnalysis:
		for _, task := range analysis.Tasks {
			if len(items) == 3 {
				break
			}
			items = append(items, fmt.Sprintf("• %s...", truncateRunes(task.Task, 50)))
		}
	case model.ActionExtractDecisions:
		for _, decision := range analysis.Decisions {
			if len(items) == 3 {
				break
			}
			items = append(items, fmt.Sprintf("• %s...", truncateRunes(decision, 50)))
		}
	}
	preview := "プレビューなし"
	if len(items) > 0 {
		preview = strings.Join(items, "\n")
	}

	participants := analysis.Participants
	if len(participants) > 5 {
		participants = participants[:5]
	}

	return card.New("⚡ 実行確認", card.TemplateOrange).
		Markdown(fmt.Sprintf("**会議:** %s\n**参加者:** %s\n\n%s",
			analysis.Title, strings.Join(participants, ", "), description)).
		Markdown(fmt.Sprintf("**プレビュー:**\n%s", preview)).
		Divider().
		Actions(
			card.NewButton("✅ 実行する", card.StylePrimary, card.Confirmation(actionID, true)),
			card.NewButton("❌ キャンセル", card.StyleDanger, card.Confirmation(actionID, false)),
		)
}
