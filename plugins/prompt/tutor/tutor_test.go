package tutor

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// UT-TUP-01: 评估提示词包含角色、评分标准、原文与摘要，顺序固定
func TestBuildAnalysis(t *testing.T) {
	got := BuildAnalysis("CHAPTER", "NOTES")
	assert.True(t, strings.HasPrefix(got, Role+"\n## Your Task\n"))
	iRubric := strings.Index(got, "## Grading Rubric (Total: 100 points)")
	iChapter := strings.Index(got, "## Original Chapter\nCHAPTER\n")
	iNotes := strings.Index(got, "## User's Summary\nNOTES\n")
	require.True(t, iRubric > 0 && iChapter > iRubric && iNotes > iChapter, "段落顺序错误")
	assert.True(t, strings.HasSuffix(got, "6. Focus feedback on understanding, not memorization"))
}

// UT-TUP-02: 再评估按次序列出历史尝试，整数分不带小数
func TestBuildReanalysis(t *testing.T) {
	got := BuildReanalysis("C", "now", []Attempt{
		{Notes: "first", Score: 40, Feedback: "add examples"},
		{Notes: "second", Score: 62.5, Feedback: "better"},
	})
	want := "## Previous Attempts\n" +
		"\n### Attempt 1 (Score: 40/100)\n\n**Notes:**\nfirst\n\n**Previous Feedback:**\nadd examples\n" +
		"\n" +
		"\n### Attempt 2 (Score: 62.5/100)\n\n**Notes:**\nsecond\n\n**Previous Feedback:**\nbetter\n" +
		"\n\n## Current Summary (Latest Attempt)\nnow\n"
	assert.Contains(t, got, want)
	assert.Contains(t, got, "6. Add a progress note comparing this attempt to previous ones")
}

// UT-TUP-03: 范例摘要两种版本；BuildIdeal 等同简版
func TestBuildIdeal(t *testing.T) {
	attempts := []string{"a1", "a2"}
	concise := BuildIdealConcise("C", attempts)
	assert.Contains(t, concise, "## User's Attempts (for context)\n### Attempt 1\na1\n\n### Attempt 2\na2\n\n\n## Final Reminders")
	assert.NotContains(t, concise, "Grading Rubric")
	assert.Equal(t, concise, BuildIdeal("C", attempts))

	ext := BuildIdealExtended("C", attempts)
	assert.Contains(t, ext, "Grading Rubric")
	assert.Contains(t, ext, "## User's Attempts (for context - identify what they missed)\n### Attempt 1\na1\n")
	assert.True(t, strings.HasSuffix(ext, "7. Quality examples > quantity of examples"))

	text := BuildIdealExtendedText("C", attempts)
	assert.Equal(t, ext+CompletionSuffix, text)
	assert.True(t, strings.HasSuffix(text, "DO NOT TRUNCATE."))
}

// UT-TUP-04: 问答提示词的历史格式
func TestBuildConversation(t *testing.T) {
	got := BuildConversation("C", "N", nil, "Why?")
	assert.Contains(t, got, "## Conversation History\nNo previous conversation.\n")
	assert.Contains(t, got, "## Current Question\nWhy?\n")

	got = BuildConversation("C", "N", []Turn{
		{Role: "user", Content: "q1"},
		{Role: "assistant", Content: "a1"},
	}, "q2")
	assert.Contains(t, got, "**Student:** q1\n\n**Tutor:** a1")
}

// UT-TUP-05: Schema 为合法 JSON，分数范围 0..100
func TestSchemas(t *testing.T) {
	for name, raw := range map[string]json.RawMessage{
		NameAnalysis:     AnalysisSchema(),
		NameReanalysis:   ReanalysisSchema(),
		NameIdealSummary: IdealSummarySchema(),
	} {
		var m map[string]any
		require.NoError(t, json.Unmarshal(raw, &m), name)
		assert.Equal(t, "object", m["type"], name)
	}
	var m struct {
		Properties map[string]struct {
			Minimum *float64 `json:"minimum"`
			Maximum *float64 `json:"maximum"`
		} `json:"properties"`
		Required []string `json:"required"`
	}
	require.NoError(t, json.Unmarshal(ReanalysisSchema(), &m))
	require.NotNil(t, m.Properties["score"].Maximum)
	assert.Equal(t, 0.0, *m.Properties["score"].Minimum)
	assert.Equal(t, 100.0, *m.Properties["score"].Maximum)
	assert.Contains(t, m.Required, "progressNote")
}

// UT-TUP-06: Reanalysis 的 JSON 字段扁平展开
func TestReanalysisJSON(t *testing.T) {
	var r Reanalysis
	require.NoError(t, json.Unmarshal([]byte(`{"score":70,"feedback":"f","strengths":["s"],"improvements":[],"progressNote":"p"}`), &r))
	assert.Equal(t, 70.0, r.Score)
	assert.Equal(t, "p", r.ProgressNote)
}
