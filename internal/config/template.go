package config

import "encoding/json"

// DefaultTemplateConfig 返回一个“可运行”的默认配置模板：
// 使用 mock LLM 与合理限额（本地/离线调试友好），同时列出 gemini/openai 的全部选项键。
func DefaultTemplateConfig() Config {
	cfg := Defaults()
	cfg.LLM = "mock"
	cfg.Logging.Dir = "logs"
	cfg.Budget.ReserveOutputTokens = 512
	cfg.Provider = map[string]Provider{
		"mock": {
			Client:  "mock",
			Options: json.RawMessage(`{"prefix":"","api_key":"","response_mode":"","text":""}`),
			Limits:  Limits{RPM: 60, TPM: 100000, MaxTokensPerReq: 32768},
		},
		"gemini": {
			Client: "gemini",
			Options: json.RawMessage(`{
  "model": "gemini-2.5-flash",
  "api_key_env": "GEMINI_API_KEY",
  "api_key": "",
  "base_url": "",
  "api_version": "",
  "timeout_seconds": 60,
  "max_output_tokens": 0,
  "temperature": null,
  "extra_headers": {}
}`),
			Limits: Limits{RPM: 10, TPM: 250000, MaxTokensPerReq: 0},
		},
		"openai": {
			Client: "openai",
			Options: json.RawMessage(`{
  "base_url": "",
  "model": "",
  "api_key_env": "OPENAI_API_KEY",
  "api_key": "",
  "timeout_seconds": 60,
  "temperature": null,
  "max_tokens": 0,
  "endpoint_path": "",
  "disable_default_auth": false,
  "extra_headers": {}
}`),
			Limits: Limits{},
		},
	}
	return cfg
}
