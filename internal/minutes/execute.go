package minutes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/soracane/larkbridge/internal/builder"
	"github.com/soracane/larkbridge/internal/model"
)

// ExecuteResult is the outcome envelope of one executed action. Only
// the members the action type produces are populated.
type ExecuteResult struct {
	Success    bool             `json:"success"`
	ActionType model.ActionType `json:"action_type"`
	Message    string           `json:"message,omitempty"`
	Error      string           `json:"error,omitempty"`

	Tasks     []model.TaskItem `json:"tasks,omitempty"`
	Decisions []string         `json:"decisions,omitempty"`
	KeyPoints []string         `json:"key_points,omitempty"`
	Summary   string           `json:"summary,omitempty"`

	Bitable *builder.BuildResult `json:"bitable,omitempty"`
	// BitableError carries a failed table build inside an otherwise
	// successful full analysis.
	BitableError string          `json:"bitable_error,omitempty"`
	Wiki         json.RawMessage `json:"wiki,omitempty"`
}

// Execute performs a confirmed action. analysis may be nil, in which
// case the transcript is fetched and analyzed first.
func (h *Handler) Execute(ctx context.Context, action model.PendingAction, analysis *model.MinuteAnalysis) ExecuteResult {
	if analysis == nil {
		data, err := h.MinuteData(ctx, action.MinuteToken)
		if err != nil {
			return ExecuteResult{ActionType: action.Type, Error: err.Error()}
		}
		a := AnalyzeTranscript(data.Transcript)
		analysis = &a
	}

	result := ExecuteResult{Success: true, ActionType: action.Type}

	switch action.Type {
	case model.ActionExtractTasks:
		result.Tasks = analysis.Tasks
		result.Message = fmt.Sprintf("📋 %d件のタスクを抽出しました", len(analysis.Tasks))

	case model.ActionExtractDecisions:
		result.Decisions = analysis.Decisions
		result.Message = fmt.Sprintf("✅ %d件の決定事項を抽出しました", len(analysis.Decisions))

	case model.ActionCreateSummaryBitable:
		if h.builder == nil {
			result.Message = "📊 Bitable作成機能は現在利用できません"
			break
		}
		build := h.builder.Build(ctx, meetingDesign(*analysis), "")
		if !build.Success {
			result.Success = false
			result.Error = build.Error
			break
		}
		result.Bitable = &build
		result.Message = "📊 議事録サマリーBitableを作成しました"

	case model.ActionArchiveToWiki:
		wiki, err := h.archiveToWiki(ctx, *analysis)
		if err != nil {
			result.Success = false
			result.Error = err.Error()
			break
		}
		result.Wiki = wiki
		result.Message = "📚 Wikiに保存しました"

	case model.ActionFullAnalysis:
		result.Tasks = analysis.Tasks
		result.Decisions = analysis.Decisions
		result.KeyPoints = analysis.KeyPoints
		result.Summary = analysis.Summary
		if h.builder != nil {
			build := h.builder.Build(ctx, meetingDesign(*analysis), "")
			if build.Success {
				result.Bitable = &build
			} else {
				result.BitableError = build.Error
			}
		}
		result.Message = fmt.Sprintf("🔍 フル分析完了: %dタスク, %d決定事項",
			len(analysis.Tasks), len(analysis.Decisions))

	default:
		result.Success = false
		result.Error = fmt.Sprintf("Unknown action type: %s", action.Type)
	}

	h.logger.Info("minute action executed",
		zap.String("action_id", action.ID),
		zap.String("action_type", string(action.Type)),
		zap.Bool("success", result.Success))
	return result
}

// meetingDesign is the fixed three-table layout of a minutes summary
// Bitable: meeting info, tasks, decisions.
func meetingDesign(analysis model.MinuteAnalysis) model.Design {
	return model.Design{
		Name: "議事録: " + analysis.Title,
		Tables: []model.TableDefinition{
			{
				Name: "会議情報",
				Fields: []model.FieldDefinition{
					{Name: "会議名", Type: model.FieldText},
					{Name: "参加者", Type: model.FieldText},
					{Name: "時間（分）", Type: model.FieldNumber},
					{Name: "サマリー", Type: model.FieldText},
				},
			},
			{
				Name: "タスク",
				Fields: []model.FieldDefinition{
					{Name: "タスク内容", Type: model.FieldText},
					{Name: "担当者", Type: model.FieldText},
					{Name: "期限", Type: model.FieldDate},
					{Name: "ステータス", Type: model.FieldSingleSelect},
				},
			},
			{
				Name: "決定事項",
				Fields: []model.FieldDefinition{
					{Name: "決定内容", Type: model.FieldText},
					{Name: "決定日", Type: model.FieldDate},
				},
			},
		},
	}
}

// archiveToWiki renders the analysis as a Markdown page and stores it
// in the configured wiki space.
func (h *Handler) archiveToWiki(ctx context.Context, analysis model.MinuteAnalysis) (json.RawMessage, error) {
	if h.wikiSpaceID == "" {
		return nil, errors.New("Wikiスペースが設定されていません")
	}
	return h.api.CreateWikiPage(ctx, h.wikiSpaceID, "議事録: "+analysis.Title, wikiContent(analysis), "")
}

// wikiContent renders the archival page: checklist tasks, bulleted
// decisions and key points.
func wikiContent(analysis model.MinuteAnalysis) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", analysis.Title)
	b.WriteString("## 会議情報\n")
	fmt.Fprintf(&b, "- **参加者**: %s\n", strings.Join(analysis.Participants, ", "))
	fmt.Fprintf(&b, "- **時間**: %d分\n\n", analysis.DurationSeconds/60)
	fmt.Fprintf(&b, "## サマリー\n%s\n\n", analysis.Summary)
	b.WriteString("## タスク\n")
	for _, task := range analysis.Tasks {
		fmt.Fprintf(&b, "- [ ] %s\n", task.Task)
	}
	b.WriteString("\n## 決定事項\n")
	for _, decision := range analysis.Decisions {
		fmt.Fprintf(&b, "- %s\n", decision)
	}
	b.WriteString("\n## キーポイント\n")
	for _, point := range analysis.KeyPoints {
		fmt.Fprintf(&b, "- %s\n", point)
	}
	return b.String()
}
