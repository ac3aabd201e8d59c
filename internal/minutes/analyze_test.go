package minutes

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyzeTranscript(t *testing.T) {
	a := AnalyzeTranscript(sampleTranscript())

	assert.Equal(t, "週次定例", a.Title)
	assert.Equal(t, 1800, a.DurationSeconds)
	assert.Equal(t, []string{"田中", "佐藤"}, a.Participants)

	// Both task patterns hit the same sentence, so it appears twice.
	require.Len(t, a.Tasks, 2)
	assert.Equal(t, "来週までに資料を確認してください", a.Tasks[0].Task)
	assert.Equal(t, "来週までに資料を確認してください", a.Tasks[1].Task)
	assert.Empty(t, a.Tasks[0].Assignee)
	assert.Empty(t, a.Tasks[0].Deadline)

	require.Len(t, a.Decisions, 2)
	assert.Equal(t, "予算は現行案で行くということで決定しました", a.Decisions[0])

	assert.Equal(t, []string{"重要な課題が残っています"}, a.KeyPoints)
	assert.Equal(t,
		"来週までに資料を確認してください。 重要な課題が残っています。 予算は現行案で行くということで決定しました。 ",
		a.Summary)
}

func TestAnalyzeTranscriptDefaults(t *testing.T) {
	a := AnalyzeTranscript(nil)
	assert.Equal(t, "無題の会議", a.Title)
	assert.Zero(t, a.DurationSeconds)
	assert.Empty(t, a.Participants)
	assert.Empty(t, a.Tasks)
	assert.Empty(t, a.Summary)

	a = AnalyzeTranscript(json.RawMessage(`not json`))
	assert.Equal(t, "無題の会議", a.Title)
}

func TestAnalyzeTranscriptUnknownSpeaker(t *testing.T) {
	a := AnalyzeTranscript(json.RawMessage(`{
		"title": "t",
		"paragraphs": [{"sentences": [{"text": "ok"}]}]
	}`))
	assert.Equal(t, []string{"Unknown"}, a.Participants)
}

func TestExtractTasksCaps(t *testing.T) {
	text := strings.Repeat("報告書を提出してください。", 7)
	tasks := extractTasks(text)
	assert.Len(t, tasks, 5)

	// Both patterns at their per-pattern limit reach the overall cap.
	text = strings.Repeat("報告書を提出してください。", 7) + strings.Repeat("金曜が期限です。", 7)
	tasks = extractTasks(text)
	assert.Len(t, tasks, 10)
}

func TestExtractTasksTruncates(t *testing.T) {
	text := strings.Repeat("あ", 120) + "してください。"
	tasks := extractTasks(text)
	require.Len(t, tasks, 1)
	assert.Equal(t, 100, utf8.RuneCountInString(tasks[0].Task))
}

func TestExtractDecisionsCaps(t *testing.T) {
	text := strings.Repeat("予算を承認しました。", 4) + strings.Repeat("現行案で行くことにした。", 4)
	decisions := extractDecisions(text)
	assert.Len(t, decisions, 5)
}

func TestExtractKeyPointsFiltersShortSentences(t *testing.T) {
	text := "重要です。これは重要な論点で長さも十分にあります。次の課題は予算の確保と人員のアサインです。"
	points := extractKeyPoints(text)
	require.Len(t, points, 2)
	assert.Equal(t, "これは重要な論点で長さも十分にあります", points[0])
	assert.Equal(t, "次の課題は予算の確保と人員のアサインです", points[1])
}

func TestSummarizeTruncatesLongText(t *testing.T) {
	long := strings.Repeat("あ", 600)
	transcript := json.RawMessage(fmt.Sprintf(
		`{"title":"t","paragraphs":[{"speaker":{"username":"u"},"sentences":[{"text":"%s"}]}]}`, long))

	a := AnalyzeTranscript(transcript)
	assert.Equal(t, 503, utf8.RuneCountInString(a.Summary))
	assert.True(t, strings.HasSuffix(a.Summary, "..."))
}
