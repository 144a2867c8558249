package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	cfgpkg "inkwell/internal/config"
	"inkwell/internal/diag"
	"inkwell/internal/fsio"
	"inkwell/internal/render"
)

// cli 持有全局旗标与惰性构造的依赖。
type cli struct {
	stdin          io.Reader
	stdout, stderr io.Writer
	corrID         string

	flagConfig   string
	flagLLM      string
	flagLogLevel string
	flagColor    string
	flagJSON     bool
	flagListen   string
	flagOut      string

	files  *fsio.Reader
	outBuf *bytes.Buffer
	logger *diag.Logger
}

func (c *cli) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "inkwell",
		Short:         "LLM-assisted tweet drafting and reading tutor",
		Long:          "inkwell drafts tweets while preserving locked phrases, and grades chapter summaries against a rubric.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
		// --out: 结果先写入缓冲，成功后原子替换目标文件。
		PersistentPreRunE: func(*cobra.Command, []string) error {
			if c.flagOut != "" {
				c.outBuf = &bytes.Buffer{}
				c.stdout = c.outBuf
			}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			if c.outBuf == nil {
				return nil
			}
			return fsio.WriteAtomic(cmd.Context(), c.flagOut, c.outBuf, 0o644)
		},
	}
	c.files = fsio.NewReader(&fsio.Options{ExcludeDirNames: []string{".git"}})
	pf := root.PersistentFlags()
	pf.StringVar(&c.flagConfig, "config", "", "配置文件路径（JSON/YAML）；缺省读取 ./config.json 或 ./config.yaml（若存在）")
	pf.StringVar(&c.flagLLM, "llm", "", "provider 名称（覆盖配置）")
	pf.StringVar(&c.flagLogLevel, "log-level", "", "日志等级 debug|info|warn|error（覆盖配置）")
	pf.StringVar(&c.flagColor, "color", "auto", "终端样式 auto|always|never")
	pf.BoolVar(&c.flagJSON, "json", false, "以 JSON 输出结果")
	pf.StringVar(&c.flagOut, "out", "", "将结果写入文件（原子替换）而非 stdout")

	root.AddCommand(
		c.serveCmd(),
		c.tweetCmd(),
		c.segmentsCmd(),
		c.tutorCmd(),
		c.initConfigCmd(),
	)
	return root
}

// mode: 写入 --out 文件时 auto 退化为纯文本。
func (c *cli) mode() render.Mode {
	m := render.ParseMode(c.flagColor)
	if m == render.Auto && c.outBuf != nil {
		return render.Plain
	}
	return m
}

// loadConfig: Defaults → 文件 → ENV(INKWELL_) → CLI → Validate。
func (c *cli) loadConfig() (cfgpkg.Config, error) {
	path := c.flagConfig
	if path == "" {
		path = os.Getenv(cfgpkg.EnvPrefix + "CONFIG_FILE")
	}
	if path == "" {
		for _, p := range []string{"config.json", "config.yaml", "config.yml"} {
			if _, err := os.Stat(p); err == nil {
				path = p
				break
			}
		}
	}

	cfg := cfgpkg.Defaults()
	if s := os.Getenv(cfgpkg.EnvPrefix + "CONFIG_JSON"); s != "" {
		base, err := cfgpkg.LoadJSON("", []byte(s))
		if err != nil {
			return cfg, configErr("配置解析失败: %w", err)
		}
		cfg = cfgpkg.Merge(cfg, base)
	} else if path != "" {
		base, err := cfgpkg.LoadFile(path)
		if err != nil {
			return cfg, configErr("配置解析失败: %w", err)
		}
		cfg = cfgpkg.Merge(cfg, base)
	}

	overEnv, err := cfgpkg.EnvOverlay(os.Environ())
	if err != nil {
		return cfg, configErr("环境变量解析失败: %w", err)
	}
	cfg = cfgpkg.Merge(cfg, overEnv)

	var overCLI cfgpkg.Config
	overCLI.LLM = c.flagLLM
	overCLI.Logging.Level = c.flagLogLevel
	overCLI.Listen = c.flagListen
	cfg = cfgpkg.Merge(cfg, overCLI)

	if err := cfgpkg.Validate(cfg); err != nil {
		c.dumpConfig(cfg)
		return cfg, configErr("配置校验失败: %w", err)
	}
	return cfg, nil
}

// assemble 加载配置、按最终日志配置构造 logger 并装配服务。
func (c *cli) assemble() (*cfgpkg.App, cfgpkg.Config, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, cfg, err
	}
	if err := preflightLogDir(cfg.Logging.Dir); err != nil {
		return nil, cfg, configErr("日志目录不可写或无法创建: %w", err)
	}
	c.logger = diag.NewLogger(c.corrID, cfgpkg.LoggerOptions(cfg))
	c.logEffective(cfg)
	app, err := cfgpkg.Assemble(cfg, c.logger)
	if err != nil {
		return nil, cfg, configErr("装配失败: %w", err)
	}
	return app, cfg, nil
}

// logEffective: debug 级输出运行时配置（不含密钥）。
func (c *cli) logEffective(cfg cfgpkg.Config) {
	if !c.logger.Enabled(diag.Debug) {
		return
	}
	kv := map[string]string{"llm": cfg.LLM, "listen": cfg.Listen}
	if p, ok := cfg.Provider[cfg.LLM]; ok {
		kv["provider_client"] = p.Client
		var s struct {
			BaseURL string `json:"base_url"`
			Model   string `json:"model"`
		}
		_ = json.Unmarshal(p.Options, &s)
		if s.BaseURL != "" {
			kv["base_url"] = s.BaseURL
		}
		if s.Model != "" {
			kv["model"] = s.Model
		}
	}
	c.logger.DebugStart("config", "effective", "", "", kv)
}

func (c *cli) dumpConfig(cfg cfgpkg.Config) {
	b, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return
	}
	fprintf(c.stderr, "有效配置:\n%s\n", b)
}

func (c *cli) printJSON(v any) error {
	enc := json.NewEncoder(c.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// readArg: "-" 读 stdin，"@path" 读文件，其余原样返回。
func (c *cli) readArg(s string) (string, error) {
	switch {
	case s == "-":
		b, err := io.ReadAll(c.stdin)
		return strings.TrimRight(string(b), "\n"), err
	case strings.HasPrefix(s, "@"):
		return c.files.ReadText(s[1:])
	default:
		return s, nil
	}
}
