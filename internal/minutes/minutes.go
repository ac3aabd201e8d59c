// Package minutes runs the meeting-minutes workflow. A message that
// carries a minutes link gets an interactive card offering actions on
// the recording; a click fetches and analyzes the transcript and asks
// for confirmation; a confirm executes the action. Every offered
// action is a single-use PendingAction with a TTL.
package minutes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/soracane/larkbridge/internal/builder"
	"github.com/soracane/larkbridge/internal/card"
	"github.com/soracane/larkbridge/internal/model"
)

// API is the slice of the Lark client the workflow needs.
type API interface {
	GetMinute(ctx context.Context, minuteToken string) (json.RawMessage, error)
	GetMinuteTranscript(ctx context.Context, minuteToken string) (json.RawMessage, error)
	GetMinuteStatistics(ctx context.Context, minuteToken string) (json.RawMessage, error)
	CreateWikiPage(ctx context.Context, spaceID, title, content, parentPageID string) (json.RawMessage, error)
}

// Config holds the workflow settings.
type Config struct {
	// PendingTTL is how long an offered action stays claimable. Zero
	// means one hour.
	PendingTTL time.Duration
	// WikiSpaceID receives archived minutes pages. Archival fails with
	// an in-chat error when unset.
	WikiSpaceID string
}

// Handler owns the per-minute state machine.
type Handler struct {
	api         API
	builder     *builder.Builder
	store       *Store
	pendingTTL  time.Duration
	wikiSpaceID string
	logger      *zap.Logger

	newID func() string
	now   func() time.Time
}

// NewHandler wires the workflow. bld may be nil; the table-summary
// action then degrades to an unavailable notice.
func NewHandler(api API, bld *builder.Builder, store *Store, cfg Config, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	ttl := cfg.PendingTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Handler{
		api:         api,
		builder:     bld,
		store:       store,
		pendingTTL:  ttl,
		wikiSpaceID: cfg.WikiSpaceID,
		logger:      logger,
		newID:       func() string { return uuid.NewString()[:8] },
		now:         time.Now,
	}
}

// Minutes links come in the app's own URL form, the short /mm/ form,
// or as a bare token after a "minute_token" marker.
var minuteTokenPatterns = []*regexp.Regexp{
	regexp.MustCompile(`https?://[^/]+/minutes/([a-zA-Z0-9]+)`),
	regexp.MustCompile(`https?://[^/]+/mm/([a-zA-Z0-9]+)`),
	regexp.MustCompile(`minute[_\-]?token[=:]?\s*([a-zA-Z0-9]+)`),
}

// ExtractMinuteToken scans text for a minutes reference and returns the
// embedded token. Patterns are tried in order; the first hit wins.
func ExtractMinuteToken(text string) (string, bool) {
	for _, re := range minuteTokenPatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			return m[1], true
		}
	}
	return "", false
}

// intentKeywords maps each action to its trigger keywords. Order
// matters: the first group with a hit decides the intent.
var intentKeywords = []struct {
	action   model.ActionType
	keywords []string
}{
	{model.ActionExtractTasks, []string{
		"タスク", "task", "todo", "アクション", "action", "やること", "宿題", "アサイン", "assign",
	}},
	{model.ActionCreateSummaryBitable, []string{
		"テーブル", "table", "bitable", "ベース", "base", "まとめ", "summary", "データベース", "database",
	}},
	{model.ActionArchiveToWiki, []string{
		"wiki", "アーカイブ", "archive", "保存", "save", "ドキュメント", "document", "記録", "record",
	}},
	{model.ActionExtractDecisions, []string{
		"決定", "decision", "決まった", "結論", "conclusion", "合意", "agreement", "承認", "approve",
	}},
	{model.ActionFullAnalysis, []string{
		"分析", "analyze", "解析", "すべて", "all", "全部", "フル", "full", "完全",
	}},
}

// DetectIntent guesses what the user wants done with the minute from
// the words around the link.
func DetectIntent(text string) (model.ActionType, bool) {
	lower := strings.ToLower(text)
	for _, group := range intentKeywords {
		for _, kw := range group.keywords {
			if strings.Contains(lower, kw) {
				return group.action, true
			}
		}
	}
	return "", false
}

// Detection is what HandleMessage found in a message.
type Detection struct {
	MinuteToken string
	// Intent is set when the keyword scan recognized a goal.
	Intent             model.ActionType
	Card               *card.Card
	NeedsConfirmation  bool
	NeedsClarification bool
}

// HandleMessage checks text for a minutes link. Without one it returns
// nil and the caller proceeds with normal dispatch. With one it builds
// the next card: an action offer when the intent is recognizable, a
// clarification card otherwise.
func (h *Handler) HandleMessage(text, chatID, userID string) *Detection {
	token, ok := ExtractMinuteToken(text)
	if !ok {
		return nil
	}
	if n := h.store.Sweep(h.pendingTTL); n > 0 {
		h.logger.Debug("swept expired pending actions", zap.Int("removed", n))
	}

	if intent, ok := DetectIntent(text); ok {
		h.logger.Info("minutes link detected",
			zap.String("minute_token", token),
			zap.String("intent", string(intent)))
		c := h.ActionCard(token, chatID, userID, []model.ActionType{intent, model.ActionFullAnalysis}, "")
		return &Detection{
			MinuteToken:       token,
			Intent:            intent,
			Card:              c,
			NeedsConfirmation: true,
		}
	}

	h.logger.Info("minutes link detected without intent", zap.String("minute_token", token))
	return &Detection{
		MinuteToken:        token,
		Card:               h.ClarificationCard(token, chatID, userID),
		NeedsClarification: true,
	}
}

// Card action statuses reported back through the callback endpoint.
const (
	StatusExpired      = "action_expired"
	StatusConfirmation = "confirmation"
	StatusExecuted     = "executed"
	StatusCancelled    = "cancelled"
	StatusError        = "error"
)

// ErrActionNotFound reports a pending-action id that is unknown,
// expired, or already consumed.
var ErrActionNotFound = errors.New("pending action not found")

// Pending returns the live pending action for id without consuming it.
func (h *Handler) Pending(id string) (model.PendingAction, error) {
	action, ok := h.store.Get(id)
	if !ok {
		return model.PendingAction{}, fmt.Errorf("%w: %s", ErrActionNotFound, id)
	}
	return action, nil
}

// claim consumes the pending action for a confirm or cancel click.
func (h *Handler) claim(id string) (model.PendingAction, error) {
	action, ok := h.store.Take(id)
	if !ok {
		return model.PendingAction{}, fmt.Errorf("%w: %s", ErrActionNotFound, id)
	}
	return action, nil
}

// CardResponse is the outcome of one button click: a status, an
// optional replacement card, an optional chat reply, and the execution
// result when the click ran an action.
type CardResponse struct {
	Status string
	Card   *card.Card
	Reply  string
	Result *ExecuteResult
	// ChatID is the chat the pending action belongs to, for replies.
	ChatID string
}

// HandleCardAction advances the state machine for a clicked button.
// A selection click fetches and analyzes the transcript, then answers
// with a confirmation card. A confirm click executes and consumes the
// action; a cancel click just consumes it. Unknown or already consumed
// ids report StatusExpired and do nothing else.
func (h *Handler) HandleCardAction(ctx context.Context, value card.Value) CardResponse {
	if n := h.store.Sweep(h.pendingTTL); n > 0 {
		h.logger.Debug("swept expired pending actions", zap.Int("removed", n))
	}

	if value.Confirm == nil {
		action, err := h.Pending(value.ActionID)
		if errors.Is(err, ErrActionNotFound) {
			return expiredResponse()
		}
		data, err := h.MinuteData(ctx, action.MinuteToken)
		if err != nil {
			h.logger.Error("minute fetch failed",
				zap.String("minute_token", action.MinuteToken), zap.Error(err))
			return CardResponse{
				Status: StatusError,
				Reply:  fmt.Sprintf("エラーが発生しました: %v", err),
				ChatID: action.ChatID,
			}
		}
		analysis := AnalyzeTranscript(data.Transcript)
		return CardResponse{
			Status: StatusConfirmation,
			Card:   ConfirmationCard(action.ID, action.Type, analysis),
			ChatID: action.ChatID,
		}
	}

	action, err := h.claim(value.ActionID)
	if errors.Is(err, ErrActionNotFound) {
		return expiredResponse()
	}
	if !*value.Confirm {
		h.logger.Info("pending action cancelled",
			zap.String("action_id", action.ID), zap.String("action_type", string(action.Type)))
		return CardResponse{
			Status: StatusCancelled,
			Reply:  "❌ キャンセルしました。",
			ChatID: action.ChatID,
		}
	}

	result := h.Execute(ctx, action, nil)
	reply := result.Message
	if !result.Success {
		reply = fmt.Sprintf("エラーが発生しました: %s", result.Error)
	}
	return CardResponse{
		Status: StatusExecuted,
		Reply:  reply,
		Result: &result,
		ChatID: action.ChatID,
	}
}

func expiredResponse() CardResponse {
	return CardResponse{
		Status: StatusExpired,
		Reply:  "⏰ この操作は期限切れです。もう一度議事録リンクを送信してください。",
	}
}

// MinuteData bundles the three raw payloads of one recording.
type MinuteData struct {
	Metadata   json.RawMessage `json:"metadata"`
	Transcript json.RawMessage `json:"transcript"`
	Statistics json.RawMessage `json:"statistics"`
}

// MinuteData fetches metadata, transcript, and statistics for a minute.
// A statistics failure is tolerated and leaves that member empty.
func (h *Handler) MinuteData(ctx context.Context, minuteToken string) (MinuteData, error) {
	metadata, err := h.api.GetMinute(ctx, minuteToken)
	if err != nil {
		return MinuteData{}, fmt.Errorf("get minute %s: %w", minuteToken, err)
	}
	transcript, err := h.api.GetMinuteTranscript(ctx, minuteToken)
	if err != nil {
		return MinuteData{}, fmt.Errorf("get transcript %s: %w", minuteToken, err)
	}
	statistics, err := h.api.GetMinuteStatistics(ctx, minuteToken)
	if err != nil {
		h.logger.Debug("minute statistics unavailable",
			zap.String("minute_token", minuteToken), zap.Error(err))
		statistics = nil
	}
	return MinuteData{Metadata: metadata, Transcript: transcript, Statistics: statistics}, nil
}
