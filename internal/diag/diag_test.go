package diag

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"inkwell/pkg/contract"
)

type upErr struct{ st int }

func (e upErr) Error() string          { return fmt.Sprintf("upstream %d", e.st) }
func (e upErr) UpstreamStatus() int     { return e.st }
func (e upErr) UpstreamMessage() string { return "quota" }

func decodeLines(t *testing.T, b *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(b.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m), "每行应为 JSON: %s", line)
		out = append(out, m)
	}
	return out
}

// UT-DIAG-01: 事件字段与 start→finish 计时
func TestLoggerEvents(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerTo("corr-1", "info", &buf)
	tm := l.StartWith("tweet", "create", "req-9", "idea")
	tm.Finish("ok", 1)

	ev := decodeLines(t, &buf)
	require.Len(t, ev, 2)
	assert.Equal(t, "start", ev[0]["stage"])
	assert.Equal(t, "corr-1", ev[0]["corr_id"])
	assert.Equal(t, "req-9", ev[0]["req_id"])
	assert.Equal(t, "finish", ev[1]["stage"])
	assert.Equal(t, "tweet", ev[1]["comp"])
	assert.EqualValues(t, 1, ev[1]["count"])
	assert.Equal(t, "info", ev[1]["level"])
}

// UT-DIAG-02: 级别过滤与 With 派生
func TestLoggerLevelsAndWith(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerTo("c", "warn", &buf)
	l.Start("comp", "filtered").Finish("filtered", 0)
	l.DebugStart("comp", "filtered", "", "", nil)
	assert.Zero(t, buf.Len(), "warn 级别下 info/debug 应被过滤")

	l.With("c2").Error("comp", string(CodeNetwork), "boom", nil)
	ev := decodeLines(t, &buf)
	require.Len(t, ev, 1)
	assert.Equal(t, "c2", ev[0]["corr_id"])
	assert.Equal(t, "network", ev[0]["code"])
	assert.Equal(t, "c", l.CorrID())
	assert.True(t, l.Enabled(Error))
	assert.False(t, l.Enabled(Info))

	assert.Equal(t, Warn, ParseLevel("WARNING"))
	assert.Equal(t, Info, ParseLevel("bogus"))
	assert.Equal(t, "info", Level(12345).String())
}

// UT-DIAG-03: Fail 记录分类码与上游状态
func TestTimerFail(t *testing.T) {
	ResetMetrics()
	var buf bytes.Buffer
	l := NewLoggerTo("c", "info", &buf)
	start := time.Now().Add(-5 * time.Millisecond)
	tm := l.Start("gemini", "invoke")
	tm.t0 = start
	code := tm.Fail("invoke failed", fmt.Errorf("wrap: %w", upErr{st: 429}))
	assert.Equal(t, CodeBudget, code)

	ev := decodeLines(t, &buf)
	require.Len(t, ev, 2)
	kv, _ := ev[1]["kv"].(map[string]any)
	assert.Equal(t, "429", kv["http_status"])
	assert.Equal(t, "quota", kv["upstream_msg"])
	assert.Equal(t, int64(1), Snapshot()[key("error_total", "gemini", "budget")])
}

// UT-DIAG-04: nil 接收者全部 no-op
func TestNilLoggerNoop(t *testing.T) {
	var l *Logger
	l.Start("c", "m").Finish("m", 0)
	l.Error("c", "code", "m", nil)
	l.Warn("c", "m", nil)
	l.InfoFinish("c", "m", time.Now(), 1)
	assert.Nil(t, l.With("x"))
	assert.NoError(t, l.Sync())
	var tn *Timer
	tn.Finish("x", 0)
	assert.Equal(t, CodeUnknown, tn.Fail("x", nil))
	Nop().Error("c", "code", "m", nil)
}

// UT-DIAG-05: 文件轮转输出
func TestNewLoggerFile(t *testing.T) {
	dir := t.TempDir()
	l := NewLogger("corr", Options{Level: "debug", Dir: dir, MaxSizeMB: 1})
	l.Start("comp", "msg").Finish("ok", 1)
	require.NoError(t, l.Sync())
	b, err := os.ReadFile(filepath.Join(dir, LogFileName))
	require.NoError(t, err)
	assert.Contains(t, string(b), `"corr_id":"corr"`)
}

// 补充覆盖: 错误分类
func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want Code
	}{
		{contract.ErrResponseInvalid, CodeProtocol},
		{context.Canceled, CodeCancel},
		{&fs.PathError{Op: "open", Path: "/", Err: errors.New("x")}, CodeIO},
		{&net.DNSError{Err: "x"}, CodeNetwork},
		{contract.ErrBudgetExceeded, CodeBudget},
		{fmt.Errorf("x: %w", contract.ErrRateLimited), CodeBudget},
		{contract.ErrInvalidInput, CodeInvariant},
		{contract.ErrUpstream, CodeNetwork},
		{upErr{st: 503}, CodeNetwork},
		{upErr{st: 404}, CodeInvariant},
		{genai.APIError{Code: 429, Message: "slow down"}, CodeBudget},
		{fmt.Errorf("w: %w", genai.APIError{Code: 500}), CodeNetwork},
		{errors.New("other"), CodeUnknown},
		{nil, CodeUnknown},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Classify(c.err), "err=%v", c.err)
	}
}

// 补充覆盖: HTTP 状态映射
func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusOK, HTTPStatus(nil))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(fmt.Errorf("x: %w", contract.ErrInvalidInput)))
	assert.Equal(t, http.StatusTooManyRequests, HTTPStatus(contract.ErrRateLimited))
	assert.Equal(t, http.StatusRequestEntityTooLarge, HTTPStatus(contract.ErrBudgetExceeded))
	assert.Equal(t, http.StatusBadGateway, HTTPStatus(contract.ErrResponseInvalid))
	assert.Equal(t, http.StatusBadGateway, HTTPStatus(upErr{st: 502}))
	assert.Equal(t, http.StatusGatewayTimeout, HTTPStatus(context.DeadlineExceeded))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(contract.ErrInvariantViolation))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("x")))
}

// 补充覆盖: 计数器
func TestMetrics(t *testing.T) {
	ResetMetrics()
	IncOp("comp", "stage", "success")
	IncOp("comp", "stage", "success")
	IncError("comp", "io")
	ObserveDuration("comp", "stage", 7)
	snap := Snapshot()
	assert.Equal(t, int64(2), snap["op_total{comp,stage,success}"])
	assert.Equal(t, int64(1), snap["error_total{comp,io}"])
	assert.Equal(t, int64(7), snap["op_duration_ms_sum{comp,stage}"])
	assert.Len(t, SnapshotKeys(snap), 3)
	assert.NotEmpty(t, NowUTC())
}
