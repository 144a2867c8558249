package config

import (
	"errors"
	"fmt"
	"strings"

	"inkwell/internal/diag"
	"inkwell/internal/prompt"
	"inkwell/internal/rate"
	"inkwell/internal/tutor"
	"inkwell/internal/tweet"
	"inkwell/pkg/contract"
	"inkwell/pkg/registry"
)

// Validate 对最小必要边界做静态校验。
func Validate(cfg Config) error {
	if strings.TrimSpace(cfg.Listen) == "" {
		return errors.New("config: listen empty")
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Logging.Level)) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("config: logging.level %q invalid", cfg.Logging.Level)
	}
	if cfg.LLM == "" {
		return errors.New("config: llm not set")
	}
	prov, ok := cfg.Provider[cfg.LLM]
	if !ok {
		return fmt.Errorf("config: provider %q not found", cfg.LLM)
	}
	if prov.Client == "" {
		return fmt.Errorf("config: provider %q missing client", cfg.LLM)
	}
	if registry.LLMClient[prov.Client] == nil {
		return fmt.Errorf("config: llm client %q not registered (have %s)", prov.Client, strings.Join(registry.LLMClientNames(), ", "))
	}
	if l := prov.Limits; l.RPM < 0 || l.TPM < 0 || l.MaxTokensPerReq < 0 {
		return fmt.Errorf("config: provider %q limits must be >= 0", cfg.LLM)
	}
	if cfg.Budget.BytesPerToken < 0 || cfg.Budget.ReserveOutputTokens < 0 {
		return errors.New("config: budget values must be >= 0")
	}
	if name := effName(cfg.Tweet.Builder, Defaults().Tweet.Builder); registry.TweetBuilder[name] == nil {
		return fmt.Errorf("config: tweet builder %q not registered", name)
	}
	if cfg.Tweet.MaxLength < 1 {
		return errors.New("config: tweet.max_length must be >= 1")
	}
	if n := cfg.Tweet.DefaultThreadCount; n < tweet.MinThreadCount || n > tweet.MaxThreadCount {
		return fmt.Errorf("config: tweet.default_thread_count must be in [%d,%d]", tweet.MinThreadCount, tweet.MaxThreadCount)
	}
	if cfg.Tutor.ExtendedMaxTokens < 0 {
		return errors.New("config: tutor.extended_max_tokens must be >= 0")
	}
	return nil
}

// LoggerOptions 将日志配置映射为 diag.Options。
func LoggerOptions(cfg Config) diag.Options {
	l := cfg.Logging
	return diag.Options{
		Level:      l.Level,
		Dir:        l.Dir,
		MaxSizeMB:  l.MaxSizeMB,
		MaxBackups: l.MaxBackups,
		MaxAgeDays: l.MaxAgeDays,
		Compress:   l.Compress,
		Stderr:     l.Stderr,
	}
}

// App: 组合根产物。LLM 为单一共享实例（已套限流装饰）。
type App struct {
	LLM   contract.LLMClient
	Gate  rate.Gate
	Key   rate.LimitKey
	Tweet *tweet.Service
	Tutor *tutor.Service
}

// Assemble 构造 LLM 客户端、限流 Gate+Key 与各服务。
// 严格 Options 解析在 registry（工厂）层进行；此处只传 raw JSON。
func Assemble(cfg Config, logger *diag.Logger) (*App, error) {
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	prov := cfg.Provider[cfg.LLM]
	llm, err := registry.BuildLLMClient(prov.Client, prov.Options)
	if err != nil {
		return nil, fmt.Errorf("config: provider %q: %w", cfg.LLM, err)
	}
	builderOpts := fmt.Appendf(nil, `{"max_length":%d}`, cfg.Tweet.MaxLength)
	builder, err := registry.TweetBuilder[effName(cfg.Tweet.Builder, Defaults().Tweet.Builder)](builderOpts)
	if err != nil {
		return nil, err
	}

	// 限流分组键从 options 中派生 API Key；失败则退化为 provider 名称。
	key, derr := rate.DeriveKeyFromProviderOptions(prov.Client, prov.Options)
	if derr != nil {
		key = rate.LimitKey(cfg.LLM)
	}
	gate := rate.NewGate(map[rate.LimitKey]rate.Limits{
		key: {RPM: prov.Limits.RPM, TPM: prov.Limits.TPM, MaxTokensPerReq: prov.Limits.MaxTokensPerReq},
	}, nil)
	limited := rate.NewClient(llm, gate, key, prompt.MakePromptEstimator(cfg.Budget.BytesPerToken, cfg.Budget.ReserveOutputTokens))

	ts := tweet.New(limited, builder, logger)
	ts.DefaultThreadCount = cfg.Tweet.DefaultThreadCount
	tu := tutor.New(limited, logger)
	if cfg.Tutor.ExtendedMaxTokens > 0 {
		tu.ExtendedMaxTokens = cfg.Tutor.ExtendedMaxTokens
	}
	return &App{LLM: limited, Gate: gate, Key: key, Tweet: ts, Tutor: tu}, nil
}

func effName(got, def string) string {
	if got == "" {
		return def
	}
	return got
}
