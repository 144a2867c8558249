package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cfgpkg "inkwell/internal/config"
)

// mockConfig 写出使用 mock LLM、日志仅写 stderr 的配置文件并返回路径。
func mockConfig(t *testing.T, dir string) string {
	t.Helper()
	cfg := cfgpkg.DefaultTemplateConfig()
	cfg.Logging.Dir = ""
	cfg.Logging.Level = "error"
	b, err := json.Marshal(cfg)
	require.NoError(t, err)
	path := filepath.Join(dir, "cfg.json")
	require.NoError(t, os.WriteFile(path, b, 0o644))
	return path
}

func runCLI(t *testing.T, stdin string, args ...string) (int, string, string) {
	t.Helper()
	var out, errb bytes.Buffer
	code := run(args, strings.NewReader(stdin), &out, &errb)
	return code, out.String(), errb.String()
}

// UT-CLI-01: .env 行解析：注释、export 前缀、引号与转义。
func TestParseDotEnvLine(t *testing.T) {
	cases := []struct {
		in       string
		key, val string
		ok       bool
	}{
		{"# comment", "", "", false},
		{"", "", "", false},
		{"=x", "", "", false},
		{"A=1", "A", "1", true},
		{"export B = two ", "B", "two", true},
		{`C="a\nb"`, "C", "a\nb", true},
		{`D='a\nb'`, "D", `a\nb`, true},
		{`E="x=y"`, "E", "x=y", true},
	}
	for _, c := range cases {
		k, v, ok := parseDotEnvLine(c.in)
		assert.Equal(t, c.ok, ok, "输入 %q", c.in)
		assert.Equal(t, c.key, k, "输入 %q", c.in)
		assert.Equal(t, c.val, v, "输入 %q", c.in)
	}
}

// UT-CLI-02: loadDotEnv 不覆盖已有环境变量；文件不存在不报错。
func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, loadDotEnv(filepath.Join(dir, "missing.env")))

	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("INKWELL_DOTENV_KEEP=file\nINKWELL_DOTENV_NEW=\"v\"\n"), 0o644))
	t.Setenv("INKWELL_DOTENV_KEEP", "env")
	t.Cleanup(func() { _ = os.Unsetenv("INKWELL_DOTENV_NEW") })

	require.NoError(t, loadDotEnv(path))
	assert.Equal(t, "env", os.Getenv("INKWELL_DOTENV_KEEP"))
	assert.Equal(t, "v", os.Getenv("INKWELL_DOTENV_NEW"))
}

// UT-CLI-03: writeConfig 不覆盖已存在文件；"-" 写 stdout。
func TestWriteConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "c.json")
	var out bytes.Buffer
	require.NoError(t, writeConfig(&out, path, cfgpkg.Defaults()))
	assert.Error(t, writeConfig(&out, path, cfgpkg.Defaults()), "已存在文件不应被覆盖")
	assert.Empty(t, out.String())

	require.NoError(t, writeConfig(&out, "-", cfgpkg.Defaults()))
	_, err := cfgpkg.LoadJSON("", out.Bytes())
	assert.NoError(t, err, "stdout 输出应可回读")
}

// UT-CLI-04: .env 模板列出 INKWELL_ 覆盖项与供应商密钥；已存在时跳过。
func TestWriteDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, writeDotEnv(path))
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	s := string(b)
	for _, want := range []string{"INKWELL_CONFIG_FILE=", "INKWELL_TWEET_MAX_LENGTH=", "INKWELL_PROVIDER__gemini__OPTIONS_JSON=", "GEMINI_API_KEY=", "OPENAI_API_KEY="} {
		assert.Contains(t, s, want)
	}
	require.NoError(t, os.WriteFile(path, []byte("X=1\n"), 0o644))
	require.NoError(t, writeDotEnv(path))
	b, _ = os.ReadFile(path)
	assert.Equal(t, "X=1\n", string(b))
}

// UT-CLI-05: init-config 生成可校验的配置；目标已存在时退出码 3。
func TestRunInitConfig(t *testing.T) {
	t.Chdir(t.TempDir())
	out := "out"

	code, _, stderr := runCLI(t, "", "init-config", out)
	require.Equal(t, exitOK, code, stderr)
	cfg, err := cfgpkg.LoadFile(filepath.Join(out, "config.json"))
	require.NoError(t, err)
	assert.NoError(t, cfgpkg.Validate(cfgpkg.Merge(cfgpkg.Defaults(), cfg)))
	assert.FileExists(t, filepath.Join(out, ".env"))

	code, _, _ = runCLI(t, "", "init-config", out)
	assert.Equal(t, exitConfig, code)
}

// UT-CLI-06: 配置错误映射为退出码 3。
func TestRunConfigErrors(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	cfg := mockConfig(t, dir)

	code, _, _ := runCLI(t, "", "--config", filepath.Join(dir, "nope.json"), "tweet", "create", "--idea", "x")
	assert.Equal(t, exitConfig, code, "配置文件不存在")

	code, _, stderr := runCLI(t, "", "--config", cfg, "--llm", "nope", "tweet", "create", "--idea", "x")
	assert.Equal(t, exitConfig, code)
	assert.Contains(t, stderr, "配置校验失败")

	t.Setenv("INKWELL_PROVIDER__mock__OPTIONS_JSON", "{bad")
	code, _, _ = runCLI(t, "", "--config", cfg, "tweet", "create", "--idea", "x")
	assert.Equal(t, exitConfig, code, "非法 ENV 覆盖")
}

// UT-CLI-07: tweet create 经 mock 生成并截断至上限，附计数。
func TestRunTweetCreate(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	cfg := mockConfig(t, dir)

	code, stdout, stderr := runCLI(t, "an idea from stdin\n", "--config", cfg, "--color", "never", "tweet", "create", "--idea", "-")
	require.Equal(t, exitOK, code, stderr)
	assert.Contains(t, stdout, "/280")
	assert.NotContains(t, stdout, "(over)")

	code, stdout, stderr = runCLI(t, "", "--config", cfg, "--json", "tweet", "create", "--idea", "hi")
	require.Equal(t, exitOK, code, stderr)
	var res struct {
		Tweet string `json:"tweet"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &res))
	assert.NotEmpty(t, res.Tweet)
}

// UT-CLI-08: 锁定片段须出现在草稿中，否则为运行期错误。
func TestRunTweetEditLocks(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	cfg := mockConfig(t, dir)

	code, _, stderr := runCLI(t, "", "--config", cfg, "tweet", "edit", "--draft", "hello world", "--lock", "absent")
	assert.Equal(t, exitRuntime, code)
	assert.NotEmpty(t, stderr)

	code, _, stderr = runCLI(t, "", "--config", cfg, "tweet", "target", "--draft", "hello world", "--target", "world", "--op", "explode")
	assert.Equal(t, exitRuntime, code, "未知操作")
	assert.NotEmpty(t, stderr)
}

// UT-CLI-09: segments 不需要配置；纯文本模式以 [[...]] 标出锁定片段。
func TestRunSegments(t *testing.T) {
	t.Chdir(t.TempDir())

	code, stdout, stderr := runCLI(t, "", "--color", "never", "segments", "--text", "hello big world", "--lock", "big")
	require.Equal(t, exitOK, code, stderr)
	assert.Equal(t, "hello [[big]] world\n", stdout)

	code, stdout, _ = runCLI(t, "", "--json", "segments", "--text", "ab", "--lock", "b")
	require.Equal(t, exitOK, code)
	assert.JSONEq(t, `[{"text":"a","locked":false},{"text":"b","locked":true}]`, stdout)
}

// UT-CLI-10: tutor analyze 多次笔记依次评估并输出历史。
func TestRunTutorAnalyze(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	cfg := mockConfig(t, dir)
	require.NoError(t, os.WriteFile("chapter.txt", []byte("The chapter."), 0o644))

	code, stdout, stderr := runCLI(t, "", "--config", cfg, "--json", "tutor", "analyze",
		"--chapter", "@chapter.txt", "--notes", "first try", "--notes", "second try")
	require.Equal(t, exitOK, code, stderr)
	var attempts []struct {
		Notes string  `json:"notes"`
		Score float64 `json:"score"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &attempts))
	require.Len(t, attempts, 2)
	assert.Equal(t, "first try", attempts[0].Notes)
	assert.Equal(t, float64(50), attempts[1].Score)

	code, _, _ = runCLI(t, "", "--config", cfg, "tutor", "analyze", "--chapter", "x")
	assert.Equal(t, exitRuntime, code, "缺少笔记")
}

// UT-CLI-11: readImage 生成 data URL；非图片文件被拒绝。
func TestReadImage(t *testing.T) {
	dir := t.TempDir()
	png := filepath.Join(dir, "a.png")
	require.NoError(t, os.WriteFile(png, []byte("\x89PNG\r\n\x1a\n0000"), 0o644))
	att, err := readImage(png)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(att.Data, "data:image/png;base64,"))
	assert.Equal(t, "a.png", att.Name)
	assert.NotEmpty(t, att.ID)

	txt := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(txt, []byte("plain"), 0o644))
	_, err = readImage(txt)
	assert.Error(t, err)
}

// UT-CLI-12: "@dir" 按字典序展开为多次尝试；--out 原子写出结果。
func TestRunNotesDirAndOut(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	cfg := mockConfig(t, dir)
	require.NoError(t, os.MkdirAll("attempts", 0o755))
	require.NoError(t, os.WriteFile(filepath.Join("attempts", "2.md"), []byte("second"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join("attempts", "1.md"), []byte("first"), 0o644))

	code, stdout, stderr := runCLI(t, "", "--config", cfg, "--json", "--out", filepath.Join("out", "history.json"),
		"tutor", "analyze", "--chapter", "The chapter.", "--notes", "@attempts")
	require.Equal(t, exitOK, code, stderr)
	assert.Empty(t, stdout, "--out 时不写 stdout")

	b, err := os.ReadFile(filepath.Join("out", "history.json"))
	require.NoError(t, err)
	var attempts []struct {
		Notes string `json:"notes"`
	}
	require.NoError(t, json.Unmarshal(b, &attempts))
	require.Len(t, attempts, 2)
	assert.Equal(t, "first", attempts[0].Notes)
	assert.Equal(t, "second", attempts[1].Notes)
}
