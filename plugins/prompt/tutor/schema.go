package tutor

import "encoding/json"

// Analysis: 首次评估结果。
type Analysis struct {
	Score        float64  `json:"score"`
	Feedback     string   `json:"feedback"`
	Strengths    []string `json:"strengths"`
	Improvements []string `json:"improvements"`
}

// Reanalysis: 再评估结果，额外带进步说明。
type Reanalysis struct {
	Analysis
	ProgressNote string `json:"progressNote"`
}

// IdealSummary: 范例摘要。
type IdealSummary struct {
	IdealSummary string `json:"idealSummary"`
}

// Answer: 问答回复。
type Answer struct {
	Answer string `json:"answer"`
}

// Schema 名称（用于结构化输出的 response_format 命名）。
const (
	NameAnalysis     = "analysis"
	NameReanalysis   = "reanalysis"
	NameIdealSummary = "ideal_summary"
)

const analysisProps = `"score":{"type":"number","minimum":0,"maximum":100,"description":"Overall comprehension score (0-100)"},` +
	`"feedback":{"type":"string","description":"Qualitative feedback on the summary"},` +
	`"strengths":{"type":"array","items":{"type":"string"},"description":"What the user did well"},` +
	`"improvements":{"type":"array","items":{"type":"string"},"description":"Areas for improvement"}`

const (
	analysisSchema = `{"type":"object","additionalProperties":false,"properties":{` + analysisProps +
		`},"required":["score","feedback","strengths","improvements"]}`
	reanalysisSchema = `{"type":"object","additionalProperties":false,"properties":{` + analysisProps +
		`,"progressNote":{"type":"string","description":"Note on progress since last attempt"}` +
		`},"required":["score","feedback","strengths","improvements","progressNote"]}`
	idealSummarySchema = `{"type":"object","additionalProperties":false,"properties":{` +
		`"idealSummary":{"type":"string","description":"Example of a well-written summary"}},"required":["idealSummary"]}`
)

// AnalysisSchema 返回 Analysis 的 JSON Schema。
func AnalysisSchema() json.RawMessage { return json.RawMessage(analysisSchema) }

// ReanalysisSchema 返回 Reanalysis 的 JSON Schema。
func ReanalysisSchema() json.RawMessage { return json.RawMessage(reanalysisSchema) }

// IdealSummarySchema 返回 IdealSummary 的 JSON Schema。
func IdealSummarySchema() json.RawMessage { return json.RawMessage(idealSummarySchema) }
