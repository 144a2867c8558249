package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// EnvPrefix: 环境变量覆盖的统一前缀。
const EnvPrefix = "INKWELL_"

// Defaults 返回带有安全默认值的 Config 雏形。
// 注意：LLM 不设默认（必须由文件/ENV/CLI 提供）。
func Defaults() Config {
	return Config{
		Listen:  "127.0.0.1:8080",
		Logging: Logging{Level: "info", MaxSizeMB: 10, MaxBackups: 5},
		Budget:  Budget{BytesPerToken: 4},
		Tweet:   Tweet{Builder: "default", MaxLength: 280, DefaultThreadCount: 5},
		Tutor:   Tutor{ExtendedMaxTokens: 8192},
	}
}

// LoadFile 按扩展名解析配置文件：.yaml/.yml 走 YAML，其余按 JSON。
func LoadFile(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("no config source provided")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return LoadYAML(raw)
	default:
		return LoadJSON("", raw)
	}
}

// LoadJSON 从文件路径或原始 JSON 解析 Config（严格拒绝未知字段）。
func LoadJSON(path string, raw []byte) (Config, error) {
	var cfg Config
	if len(raw) == 0 {
		if path == "" {
			return cfg, errors.New("no config source provided")
		}
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		raw = b
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// LoadYAML 将 YAML 转为通用结构后按 JSON 规则严格解码，
// 使 provider.options 等原样子树在两种格式下行为一致。
func LoadYAML(raw []byte) (Config, error) {
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return Config{}, fmt.Errorf("config yaml: %w", err)
	}
	if doc == nil {
		return Config{}, errors.New("config yaml: empty document")
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return Config{}, fmt.Errorf("config yaml: %w", err)
	}
	return LoadJSON("", b)
}

// Merge 按优先级合并（后者覆盖前者）。
// 仅标量/字符串/原样 JSON 为“替换”；不做深度合并。零值视为未覆盖。
func Merge(base, over Config) Config {
	out := base
	if s := strings.TrimSpace(over.Listen); s != "" {
		out.Listen = s
	}

	// Logging
	if s := strings.TrimSpace(over.Logging.Level); s != "" {
		out.Logging.Level = s
	}
	if over.Logging.Dir != "" {
		out.Logging.Dir = over.Logging.Dir
	}
	if over.Logging.MaxSizeMB != 0 {
		out.Logging.MaxSizeMB = over.Logging.MaxSizeMB
	}
	if over.Logging.MaxBackups != 0 {
		out.Logging.MaxBackups = over.Logging.MaxBackups
	}
	if over.Logging.MaxAgeDays != 0 {
		out.Logging.MaxAgeDays = over.Logging.MaxAgeDays
	}
	if over.Logging.Compress {
		out.Logging.Compress = true
	}
	if over.Logging.Stderr {
		out.Logging.Stderr = true
	}

	// Provider：按键逐字段覆盖（非零值生效）
	if len(over.Provider) > 0 {
		merged := make(map[string]Provider, len(out.Provider)+len(over.Provider))
		for k, v := range out.Provider {
			merged[k] = v
		}
		for k, v := range over.Provider {
			merged[k] = mergeProvider(merged[k], v)
		}
		out.Provider = merged
	}
	if s := strings.TrimSpace(over.LLM); s != "" {
		out.LLM = s
	}

	if over.Budget.BytesPerToken != 0 {
		out.Budget.BytesPerToken = over.Budget.BytesPerToken
	}
	if over.Budget.ReserveOutputTokens != 0 {
		out.Budget.ReserveOutputTokens = over.Budget.ReserveOutputTokens
	}
	if over.Tweet.Builder != "" {
		out.Tweet.Builder = over.Tweet.Builder
	}
	if over.Tweet.MaxLength != 0 {
		out.Tweet.MaxLength = over.Tweet.MaxLength
	}
	if over.Tweet.DefaultThreadCount != 0 {
		out.Tweet.DefaultThreadCount = over.Tweet.DefaultThreadCount
	}
	if over.Tutor.ExtendedMaxTokens != 0 {
		out.Tutor.ExtendedMaxTokens = over.Tutor.ExtendedMaxTokens
	}
	return out
}

// EnvOverlay 从环境变量构建一个 Config 覆盖（仅解析有限键集合，其余忽略）。
// 前缀 INKWELL_；支持：LISTEN, LLM, LOG_LEVEL, LOG_DIR, BYTES_PER_TOKEN,
// TWEET_MAX_LENGTH, TWEET_DEFAULT_THREAD_COUNT, TUTOR_EXTENDED_MAX_TOKENS，
// 以及 PROVIDER__<name>__CLIENT / PROVIDER__<name>__LIMITS_{RPM,TPM,MAX_TOKENS_PER_REQ} / PROVIDER__<name>__OPTIONS_JSON
func EnvOverlay(environ []string) (Config, error) {
	var over Config
	prov := map[string]Provider{}
	for _, kv := range environ {
		if !strings.HasPrefix(kv, EnvPrefix) {
			continue
		}
		eq := strings.IndexByte(kv, '=')
		if eq <= len(EnvPrefix) {
			continue
		}
		nk, val := kv[len(EnvPrefix):eq], kv[eq+1:]
		switch nk {
		case "LISTEN":
			over.Listen = strings.TrimSpace(val)
		case "LLM":
			over.LLM = strings.TrimSpace(val)
		case "LOG_LEVEL":
			over.Logging.Level = strings.TrimSpace(val)
		case "LOG_DIR":
			over.Logging.Dir = strings.TrimSpace(val)
		case "BYTES_PER_TOKEN":
			setInt(&over.Budget.BytesPerToken, val)
		case "TWEET_MAX_LENGTH":
			setInt(&over.Tweet.MaxLength, val)
		case "TWEET_DEFAULT_THREAD_COUNT":
			setInt(&over.Tweet.DefaultThreadCount, val)
		case "TUTOR_EXTENDED_MAX_TOKENS":
			setInt(&over.Tutor.ExtendedMaxTokens, val)
		default:
			// provider.* 路径：PROVIDER__name__FOO
			if !strings.HasPrefix(nk, "PROVIDER__") {
				continue
			}
			parts := strings.Split(nk, "__")
			if len(parts) < 3 {
				continue
			}
			name := strings.TrimSpace(parts[1])
			p := prov[name]
			changed := true
			switch strings.Join(parts[2:], "__") {
			case "CLIENT":
				p.Client = strings.TrimSpace(val)
				changed = p.Client != ""
			case "LIMITS_RPM":
				changed = setInt(&p.Limits.RPM, val)
			case "LIMITS_TPM":
				changed = setInt(&p.Limits.TPM, val)
			case "LIMITS_MAX_TOKENS_PER_REQ":
				changed = setInt(&p.Limits.MaxTokensPerReq, val)
			case "OPTIONS_JSON":
				// 空值视为未设置，避免清空现有配置
				if strings.TrimSpace(val) == "" {
					changed = false
					break
				}
				if !json.Valid([]byte(val)) {
					return Config{}, fmt.Errorf("config: %sPROVIDER__%s__OPTIONS_JSON is not valid JSON", EnvPrefix, name)
				}
				p.Options = json.RawMessage(val)
			default:
				changed = false
			}
			// 仅在发生有效变更时记录该 provider
			if changed {
				prov[name] = p
			}
		}
	}
	if len(prov) > 0 {
		over.Provider = prov
	}
	return over, nil
}

func mergeProvider(base, over Provider) Provider {
	out := base
	if over.Client != "" {
		out.Client = over.Client
	}
	if len(over.Options) > 0 {
		out.Options = cloneRaw(over.Options)
	}
	if over.Limits.RPM != 0 {
		out.Limits.RPM = over.Limits.RPM
	}
	if over.Limits.TPM != 0 {
		out.Limits.TPM = over.Limits.TPM
	}
	if over.Limits.MaxTokensPerReq != 0 {
		out.Limits.MaxTokensPerReq = over.Limits.MaxTokensPerReq
	}
	return out
}

// setInt: 解析成功时写入并返回 true。
func setInt(dst *int, s string) bool {
	v, err := atoi(s)
	if err != nil {
		return false
	}
	*dst = v
	return true
}

func cloneRaw(in json.RawMessage) json.RawMessage {
	if len(in) == 0 {
		return nil
	}
	out := make([]byte, len(in))
	copy(out, in)
	return out
}

func atoi(s string) (int, error) {
	var n int
	_, err := fmt.Sscanf(strings.TrimSpace(s), "%d", &n)
	if err != nil {
		return 0, err
	}
	return n, nil
}
