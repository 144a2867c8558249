package config

import (
	"encoding/json"
)

// Config: 运行期只读配置（一次解析，运行期不变）。
// 键使用 snake_case；未知字段在解析期失败（JSON 与 YAML 同一规则）。
type Config struct {
	// Listen: HTTP 服务监听地址（serve 子命令）。
	Listen  string  `json:"listen"`
	Logging Logging `json:"logging"`

	// LLM Provider 选择与定义。
	LLM      string              `json:"llm"`
	Provider map[string]Provider `json:"provider"`

	Budget Budget `json:"budget"`
	Tweet  Tweet  `json:"tweet"`
	Tutor  Tutor  `json:"tutor"`
}

// Logging: 日志等级与轮转文件位置。Dir 为空时仅输出到 stderr。
type Logging struct {
	Level      string `json:"level"`
	Dir        string `json:"dir"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
	Compress   bool   `json:"compress"`
	Stderr     bool   `json:"stderr"`
}

// Provider: 命名 provider 定义（client 实现 + options + 限额）。
type Provider struct {
	Client  string          `json:"client"`
	Options json.RawMessage `json:"options"`
	Limits  Limits          `json:"limits"`
}

// Limits: 限流配置（仅承载；执行位于 rate.Gate）。
type Limits struct {
	RPM             int `json:"rpm"`
	TPM             int `json:"tpm"`
	MaxTokensPerReq int `json:"max_tokens_per_req"`
}

// Budget: 限流用的 token 估算参数。
type Budget struct {
	BytesPerToken int `json:"bytes_per_token"`
	// ReserveOutputTokens: 每次调用为输出预留的 token，计入 TPM 申请量。
	ReserveOutputTokens int `json:"reserve_output_tokens"`
}

// Tweet: 推文服务配置。
type Tweet struct {
	Builder            string `json:"builder"`
	MaxLength          int    `json:"max_length"`
	DefaultThreadCount int    `json:"default_thread_count"`
}

// Tutor: 阅读辅导服务配置。
type Tutor struct {
	ExtendedMaxTokens int `json:"extended_max_tokens"`
}
