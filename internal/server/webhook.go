package server

import (
	"context"
	"encoding/json"
	"net/http"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/soracane/larkbridge/internal/card"
	"github.com/soracane/larkbridge/internal/config"
	"github.com/soracane/larkbridge/internal/minutes"
	"github.com/soracane/larkbridge/internal/model"
	"github.com/soracane/larkbridge/internal/webhook"
)

// Webhook event types delivered by Lark.
const (
	eventMessageReceive = "im.message.receive_v1"
	eventBotAdded       = "im.chat.member.bot.added_v1"
)

const welcomeMessage = `
🤖 **LarkBridge Bot** がチャットに参加しました！

私に@メンションして話しかけると、以下のことができます：

📊 **Bitable作成**
「顧客管理テーブルを作成して」
「プロジェクト管理用のベースを作って」

📚 **Wiki/ドキュメント**
「Wikiスペースを作成」
「ドキュメントを作成」

✅ **タスク**
「タスクを追加: レビュー依頼」

💡 **ヘルプ**
「ヘルプ」と入力すると詳しい使い方が見れます！

さっそく試してみてください！
`

// Dispatcher turns a chat message into a command result.
type Dispatcher interface {
	HandleMessage(ctx context.Context, message string) model.CommandResult
}

// Minutes runs the meeting-minutes detection and card state machine.
type Minutes interface {
	HandleMessage(text, chatID, userID string) *minutes.Detection
	HandleCardAction(ctx context.Context, value card.Value) minutes.CardResponse
}

// Messenger sends replies back into the chat.
type Messenger interface {
	SendMessage(ctx context.Context, chatID, message, messageType string) (json.RawMessage, error)
	SendCard(ctx context.Context, chatID string, card any) (json.RawMessage, error)
}

// Webhook handles the event and card callback endpoints Lark posts to.
type Webhook struct {
	cfg        config.WebhookConfig
	dispatcher Dispatcher
	minutes    Minutes
	messenger  Messenger
	ledger     *webhook.Ledger
	logger     *zap.Logger
}

// NewWebhook wires the webhook pipeline. All collaborators are
// required.
func NewWebhook(cfg config.WebhookConfig, dispatcher Dispatcher, mins Minutes, messenger Messenger, logger *zap.Logger) *Webhook {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Webhook{
		cfg:        cfg,
		dispatcher: dispatcher,
		minutes:    mins,
		messenger:  messenger,
		ledger:     webhook.NewLedger(cfg.DedupWindow()),
		logger:     logger,
	}
}

// eventBody covers both the verification handshake and event deliveries.
type eventBody struct {
	Type      string `json:"type"`
	Challenge string `json:"challenge"`
	Token     string `json:"token"`
	Header    struct {
		EventType string `json:"event_type"`
	} `json:"header"`
	Event struct {
		ChatID  string `json:"chat_id"`
		Message struct {
			MessageID   string `json:"message_id"`
			ChatID      string `json:"chat_id"`
			MessageType string `json:"message_type"`
			Content     string `json:"content"`
		} `json:"message"`
		Sender struct {
			SenderID struct {
				UserID string `json:"user_id"`
			} `json:"sender_id"`
			SenderType string `json:"sender_type"`
		} `json:"sender"`
	} `json:"event"`
}

func (wh *Webhook) handleEvent(w http.ResponseWriter, r *http.Request) {
	var body eventBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if body.Type == "url_verification" {
		if wh.cfg.VerificationToken != "" && body.Token != wh.cfg.VerificationToken {
			writeDetail(w, http.StatusUnauthorized, "Invalid verification token")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"challenge": body.Challenge})
		return
	}

	switch body.Header.EventType {
	case eventMessageReceive:
		writeJSON(w, http.StatusOK, wh.processMessage(r.Context(), body))
	case eventBotAdded:
		writeJSON(w, http.StatusOK, wh.welcome(r.Context(), body))
	default:
		writeJSON(w, http.StatusOK, map[string]any{
			"status":     "ignored",
			"event_type": body.Header.EventType,
		})
	}
}

// processMessage runs one chat message through dedup, filtering,
// minutes detection, and finally the command dispatcher.
func (wh *Webhook) processMessage(ctx context.Context, body eventBody) map[string]any {
	msg := body.Event.Message
	if wh.ledger.Seen(msg.MessageID) {
		return map[string]any{"status": "duplicate"}
	}
	if body.Event.Sender.SenderType == "app" {
		return map[string]any{"status": "ignored_self"}
	}
	if msg.MessageType != "text" {
		return map[string]any{"status": "ignored_non_text"}
	}

	text := extractText(msg.Content)
	if text == "" {
		return map[string]any{"status": "empty_message"}
	}

	chatID := msg.ChatID
	userID := body.Event.Sender.SenderID.UserID
	wh.logger.Info("message received",
		zap.String("chat_id", chatID), zap.String("text", text))

	if det := wh.minutes.HandleMessage(text, chatID, userID); det != nil {
		if _, err := wh.messenger.SendCard(ctx, chatID, det.Card); err != nil {
			wh.logger.Error("send minutes card failed", zap.Error(err))
			wh.sendErrorReply(ctx, chatID, err)
			return map[string]any{"status": "error", "error": err.Error()}
		}
		return map[string]any{
			"status":       "minutes_detected",
			"minute_token": det.MinuteToken,
		}
	}

	result := wh.dispatcher.HandleMessage(ctx, text)
	if result.Message != "" {
		if _, err := wh.messenger.SendMessage(ctx, chatID, result.Message, "text"); err != nil {
			wh.logger.Error("send reply failed", zap.Error(err))
			wh.sendErrorReply(ctx, chatID, err)
			return map[string]any{"status": "error", "error": err.Error()}
		}
	}
	return map[string]any{
		"status":       "processed",
		"command_type": result.Type,
		"success":      result.Success,
	}
}

func (wh *Webhook) welcome(ctx context.Context, body eventBody) map[string]any {
	chatID := body.Event.ChatID
	if _, err := wh.messenger.SendMessage(ctx, chatID, welcomeMessage, "text"); err != nil {
		wh.logger.Error("send welcome failed", zap.Error(err))
	}
	return map[string]any{"status": "welcomed", "chat_id": chatID}
}

func (wh *Webhook) sendErrorReply(ctx context.Context, chatID string, cause error) {
	reply := "エラーが発生しました: " + cause.Error() +
		"\n\n「ヘルプ」と入力すると使い方を確認できます。"
	if _, err := wh.messenger.SendMessage(ctx, chatID, reply, "text"); err != nil {
		wh.logger.Error("send error reply failed", zap.Error(err))
	}
}

var (
	mentionUserPattern = regexp.MustCompile(`@_user_\d+`)
	mentionPattern     = regexp.MustCompile(`@\S+`)
)

// extractText pulls the plain text out of a message content payload
// and strips bot mentions.
func extractText(content string) string {
	text := content
	var parsed struct {
		Text string `json:"text"`
	}
	if json.Unmarshal([]byte(content), &parsed) == nil {
		text = parsed.Text
	}
	text = mentionUserPattern.ReplaceAllString(text, "")
	text = mentionPattern.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

// cardBody is the action callback Lark posts when a button is clicked.
type cardBody struct {
	Type      string `json:"type"`
	Challenge string `json:"challenge"`
	Action    struct {
		Value json.RawMessage `json:"value"`
	} `json:"action"`
}

// handleCard advances the minutes card state machine. When the handler
// returns a replacement card it becomes the response body so Lark
// swaps the card in place; otherwise any reply goes out as a chat
// message and the response carries just the status.
func (wh *Webhook) handleCard(w http.ResponseWriter, r *http.Request) {
	var body cardBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if body.Type == "url_verification" {
		writeJSON(w, http.StatusOK, map[string]string{"challenge": body.Challenge})
		return
	}

	value, err := card.ParseValue(body.Action.Value)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid card action value")
		return
	}

	resp := wh.minutes.HandleCardAction(r.Context(), value)
	if resp.Card != nil {
		writeJSON(w, http.StatusOK, resp.Card)
		return
	}
	if resp.Reply != "" && resp.ChatID != "" {
		if _, err := wh.messenger.SendMessage(r.Context(), resp.ChatID, resp.Reply, "text"); err != nil {
			wh.logger.Error("send card reply failed", zap.Error(err))
		}
	}

	out := map[string]any{"status": resp.Status}
	if resp.ChatID == "" && resp.Reply != "" {
		out["message"] = resp.Reply
	}
	writeJSON(w, http.StatusOK, out)
}
