package diag

import (
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// 级别定义
type Level int

const (
	Debug Level = iota
	Info
	Warn
	Error
)

func (l Level) String() string {
	switch l {
	case Debug:
		return "debug"
	case Info:
		return "info"
	case Warn:
		return "warn"
	case Error:
		return "error"
	default:
		return "info"
	}
}

func (l Level) zap() zapcore.Level {
	switch l {
	case Debug:
		return zapcore.DebugLevel
	case Warn:
		return zapcore.WarnLevel
	case Error:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// ParseLevel 解析级别名（大小写不敏感）；未知值按 info 处理。
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return Debug
	case "warn", "warning":
		return Warn
	case "error":
		return Error
	default:
		return Info
	}
}

// Options: 日志输出配置。
// - Dir 为空时仅写 stderr；否则写入 Dir/inkwell.log 并按 MaxSizeMB 轮转。
type Options struct {
	Level      string
	Dir        string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
	// Stderr 为 true 时在文件之外同时写 stderr。
	Stderr bool
}

func (o *Options) defaults() {
	if o.MaxSizeMB <= 0 {
		o.MaxSizeMB = 10
	}
	if o.MaxBackups <= 0 {
		o.MaxBackups = 5
	}
}

// LogFileName 为轮转日志的当前文件名。
const LogFileName = "inkwell.log"

// Logger 为结构化事件日志器：单行 JSON，每条事件带 corr_id。
// nil *Logger 上的所有方法均为 no-op。
type Logger struct {
	corrID string
	level  Level
	z      *zap.Logger
}

// NewLogger 按 Options 构造日志器。
func NewLogger(corrID string, opts Options) *Logger {
	opts.defaults()
	lvl := ParseLevel(opts.Level)
	var sinks []zapcore.WriteSyncer
	if opts.Dir != "" {
		sinks = append(sinks, zapcore.AddSync(&lumberjack.Logger{
			Filename:   filepath.Join(opts.Dir, LogFileName),
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			Compress:   opts.Compress,
		}))
	}
	if opts.Dir == "" || opts.Stderr {
		sinks = append(sinks, zapcore.Lock(os.Stderr))
	}
	return newLogger(corrID, lvl, zapcore.NewMultiWriteSyncer(sinks...))
}

// NewLoggerTo 将日志写入任意 io.Writer（测试与嵌入场景）。
func NewLoggerTo(corrID, level string, w io.Writer) *Logger {
	return newLogger(corrID, ParseLevel(level), zapcore.AddSync(w))
}

// Nop 返回丢弃一切输出的日志器。
func Nop() *Logger {
	return &Logger{level: Error, z: zap.NewNop()}
}

func newLogger(corrID string, lvl Level, ws zapcore.WriteSyncer) *Logger {
	enc := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		MessageKey:     "msg",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.RFC3339TimeEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
	}
	core := zapcore.NewCore(zapcore.NewJSONEncoder(enc), ws, zap.NewAtomicLevelAt(lvl.zap()))
	return &Logger{corrID: corrID, level: lvl, z: zap.New(core)}
}

// With 返回共享输出但 corr_id 不同的日志器（例如每个 HTTP 请求一个）。
func (l *Logger) With(corrID string) *Logger {
	if l == nil {
		return nil
	}
	return &Logger{corrID: corrID, level: l.level, z: l.z}
}

// CorrID 返回当前关联 ID。
func (l *Logger) CorrID() string {
	if l == nil {
		return ""
	}
	return l.corrID
}

// Enabled 报告给定级别是否会被输出。
func (l *Logger) Enabled(lv Level) bool { return l != nil && lv >= l.level }

// Sync 刷新底层缓冲。
func (l *Logger) Sync() error {
	if l == nil {
		return nil
	}
	return l.z.Sync()
}

// Event 为标准事件结构。
type Event struct {
	Comp    string
	Stage   string // start|finish|error
	Code    string
	DurMS   int64
	Count   int64
	ReqID   string
	Subject string
	Msg     string
	KV      map[string]string
}

// log 按级别写出事件。
func (l *Logger) log(lv Level, ev Event) {
	if l == nil || lv < l.level {
		return
	}
	fields := make([]zap.Field, 0, 9)
	fields = append(fields, zap.String("corr_id", l.corrID), zap.String("comp", ev.Comp), zap.String("stage", ev.Stage))
	if ev.Code != "" {
		fields = append(fields, zap.String("code", ev.Code))
	}
	if ev.DurMS != 0 {
		fields = append(fields, zap.Int64("dur_ms", ev.DurMS))
	}
	if ev.Count != 0 {
		fields = append(fields, zap.Int64("count", ev.Count))
	}
	if ev.ReqID != "" {
		fields = append(fields, zap.String("req_id", ev.ReqID))
	}
	if ev.Subject != "" {
		fields = append(fields, zap.String("subject", ev.Subject))
	}
	if len(ev.KV) > 0 {
		fields = append(fields, zap.Any("kv", ev.KV))
	}
	switch lv {
	case Debug:
		l.z.Debug(ev.Msg, fields...)
	case Warn:
		l.z.Warn(ev.Msg, fields...)
	case Error:
		l.z.Error(ev.Msg, fields...)
	default:
		l.z.Info(ev.Msg, fields...)
	}
}

// Start 记录 start 事件；返回计时器用于 Finish。
func (l *Logger) Start(comp, msg string) *Timer {
	l.log(Info, Event{Comp: comp, Stage: "start", Msg: msg})
	return &Timer{l: l, comp: comp, t0: time.Now()}
}

// StartWith 记录带 req_id/subject 的 start。
func (l *Logger) StartWith(comp, msg, reqID, subject string) *Timer {
	l.log(Info, Event{Comp: comp, Stage: "start", ReqID: reqID, Subject: subject, Msg: msg})
	return &Timer{l: l, comp: comp, reqID: reqID, subject: subject, t0: time.Now()}
}

// StartWithKV 记录带 req_id/subject 与键值的 start。
func (l *Logger) StartWithKV(comp, msg, reqID, subject string, kv map[string]string) *Timer {
	l.log(Info, Event{Comp: comp, Stage: "start", ReqID: reqID, Subject: subject, Msg: msg, KV: kv})
	return &Timer{l: l, comp: comp, reqID: reqID, subject: subject, t0: time.Now()}
}

// Error 记录 error 事件。
func (l *Logger) Error(comp, code, msg string, durSince *time.Time) {
	l.ErrorWithKV(comp, code, msg, durSince, "", "", nil)
}

// ErrorWith 支持 req_id/subject。
func (l *Logger) ErrorWith(comp, code, msg string, durSince *time.Time, reqID, subject string) {
	l.ErrorWithKV(comp, code, msg, durSince, reqID, subject, nil)
}

// ErrorWithKV 支持附带键值对（例如 HTTP 状态码、上游错误片段）。
func (l *Logger) ErrorWithKV(comp, code, msg string, durSince *time.Time, reqID, subject string, kv map[string]string) {
	var dur int64
	if durSince != nil {
		dur = time.Since(*durSince).Milliseconds()
	}
	l.log(Error, Event{Comp: comp, Stage: "error", Code: code, DurMS: dur, Msg: msg, ReqID: reqID, Subject: subject, KV: kv})
}

// Warn 记录 warn 事件（可恢复的异常，例如输出被截断）。
func (l *Logger) Warn(comp, msg string, kv map[string]string) {
	l.log(Warn, Event{Comp: comp, Stage: "warn", Msg: msg, KV: kv})
}

// InfoFinish 在已有起点的情况下记录 finish。
func (l *Logger) InfoFinish(comp, msg string, start time.Time, count int64) {
	l.log(Info, Event{Comp: comp, Stage: "finish", DurMS: time.Since(start).Milliseconds(), Count: count, Msg: msg})
}

// DebugStart 输出调试级别的“start”类事件（仅在 level=debug 时生效）。
func (l *Logger) DebugStart(comp, msg, reqID, subject string, kv map[string]string) {
	l.log(Debug, Event{Comp: comp, Stage: "start", ReqID: reqID, Subject: subject, Msg: msg, KV: kv})
}

// Timer 用于 start→finish 计时。
type Timer struct {
	l       *Logger
	comp    string
	reqID   string
	subject string
	t0      time.Time
}

// Finish 记录 finish；可选 count。同时累加 op 计数与耗时。
func (t *Timer) Finish(msg string, count int64) {
	if t == nil || t.l == nil {
		return
	}
	dur := time.Since(t.t0).Milliseconds()
	IncOp(t.comp, "finish", "success")
	ObserveDuration(t.comp, "finish", dur)
	t.l.log(Info, Event{Comp: t.comp, Stage: "finish", DurMS: dur, Count: count, ReqID: t.reqID, Subject: t.subject, Msg: msg})
}

// Fail 记录 error 并按 Classify 累加错误计数；返回分类码便于调用方复用。
func (t *Timer) Fail(msg string, err error) Code {
	code := Classify(err)
	if t == nil || t.l == nil {
		return code
	}
	IncOp(t.comp, "finish", "error")
	IncError(t.comp, string(code))
	kv := map[string]string{}
	if err != nil {
		kv["err"] = err.Error()
	}
	if st, m, ok := Upstream(err); ok {
		kv["http_status"] = strconv.Itoa(st)
		if m != "" {
			kv["upstream_msg"] = m
		}
	}
	t.l.ErrorWithKV(t.comp, string(code), msg, &t.t0, t.reqID, t.subject, kv)
	return code
}
