package minutes

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/soracane/larkbridge/internal/model"
)

const (
	maxTasks        = 10
	maxDecisions    = 5
	maxKeyPoints    = 5
	perPatternLimit = 5

	taskRuneLimit    = 100
	excerptRuneLimit = 150
	summaryRuneLimit = 500
)

var taskPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)([^。]+(?:してください|お願い|タスク|TODO|やる|確認する|対応する)[^。]*)`),
	regexp.MustCompile(`(?i)([^。]*(?:までに|期限|deadline)[^。]*)`),
}

var decisionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`([^。]*(?:決定|決まり|合意|承認|確定)[^。]*)`),
	regexp.MustCompile(`([^。]*(?:ということで|に決定|で行く)[^。]*)`),
}

var sentenceSplit = regexp.MustCompile(`[。.!?]`)

var importanceKeywords = []string{
	"重要", "大事", "ポイント", "注意", "課題", "問題",
	"提案", "検討", "必要", "important", "key", "issue",
}

// transcriptDocument is the subset of the transcript payload the
// analyzer reads.
type transcriptDocument struct {
	Title      string `json:"title"`
	Duration   int    `json:"duration"`
	Paragraphs []struct {
		Speaker struct {
			Username string `json:"username"`
		} `json:"speaker"`
		Sentences []struct {
			Text string `json:"text"`
		} `json:"sentences"`
	} `json:"paragraphs"`
}

// AnalyzeTranscript derives a MinuteAnalysis from a raw transcript
// payload using keyword and pattern heuristics. It never fails: an
// unreadable payload yields an empty analysis with the default title.
func AnalyzeTranscript(transcript json.RawMessage) model.MinuteAnalysis {
	var doc transcriptDocument
	if len(transcript) > 0 {
		_ = json.Unmarshal(transcript, &doc)
	}

	var fullText strings.Builder
	var participants []string
	seen := make(map[string]bool)
	for _, para := range doc.Paragraphs {
		speaker := para.Speaker.Username
		if speaker == "" {
			speaker = "Unknown"
		}
		if !seen[speaker] {
			seen[speaker] = true
			participants = append(participants, speaker)
		}
		for _, sentence := range para.Sentences {
			fullText.WriteString(sentence.Text)
			fullText.WriteString(" ")
		}
	}
	text := fullText.String()

	title := doc.Title
	if title == "" {
		title = "無題の会議"
	}

	return model.MinuteAnalysis{
		Title:           title,
		DurationSeconds: doc.Duration,
		Participants:    participants,
		Tasks:           extractTasks(text),
		Decisions:       extractDecisions(text),
		KeyPoints:       extractKeyPoints(text),
		Summary:         summarize(text),
	}
}

func extractTasks(text string) []model.TaskItem {
	var tasks []model.TaskItem
	for _, re := range taskPatterns {
		matches := re.FindAllStringSubmatch(text, -1)
		for i, m := range matches {
			if i >= perPatternLimit {
				break
			}
			tasks = append(tasks, model.TaskItem{
				Task: truncateRunes(strings.TrimSpace(m[1]), taskRuneLimit),
			})
		}
	}
	if len(tasks) > maxTasks {
		tasks = tasks[:maxTasks]
	}
	return tasks
}

func extractDecisions(text string) []string {
	var decisions []string
	for _, re := range decisionPatterns {
		matches := re.FindAllStringSubmatch(text, -1)
		for i, m := range matches {
			if i >= perPatternLimit {
				break
			}
			decisions = append(decisions, truncateRunes(strings.TrimSpace(m[1]), excerptRuneLimit))
		}
	}
	if len(decisions) > maxDecisions {
		decisions = decisions[:maxDecisions]
	}
	return decisions
}

func extractKeyPoints(text string) []string {
	var points []string
	for _, sentence := range sentenceSplit.Split(text, -1) {
		lower := strings.ToLower(sentence)
		important := false
		for _, kw := range importanceKeywords {
			if strings.Contains(lower, kw) {
				important = true
				break
			}
		}
		if !important {
			continue
		}
		trimmed := strings.TrimSpace(sentence)
		if len([]rune(trimmed)) <= 10 {
			continue
		}
		points = append(points, truncateRunes(trimmed, excerptRuneLimit))
		if len(points) == maxKeyPoints {
			break
		}
	}
	return points
}

func summarize(text string) string {
	if runes := []rune(text); len(runes) > summaryRuneLimit {
		return string(runes[:summaryRuneLimit]) + "..."
	}
	return text
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
