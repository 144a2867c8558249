package fsio

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inkwell/pkg/contract"
)

// TestCollectSingleFile 读取单文件并去除 BOM
func TestCollectSingleFile(t *testing.T) {
	dir := t.TempDir()
	fp := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(fp, append([]byte{0xEF, 0xBB, 0xBF}, "hello"...), 0o644))
	docs, err := NewReader(nil).Collect(context.Background(), fp)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "hello", docs[0].Text)
	assert.True(t, strings.HasSuffix(docs[0].Path, "a.txt"))
}

// TestCollectDirOrder 目录：子目录优先，同层按字典序；跳过隐藏文件与排除目录
func TestCollectDirOrder(t *testing.T) {
	dir := t.TempDir()
	write := func(rel, s string) {
		p := filepath.Join(dir, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(s), 0o644))
	}
	write("b.md", "2")
	write("a.md", "1")
	write(".hidden", "x")
	write("sub/c.md", "0")
	write("skip/d.md", "no")

	docs, err := NewReader(&Options{ExcludeDirNames: []string{"SKIP"}}).Collect(context.Background(), dir)
	require.NoError(t, err)
	var texts []string
	for _, d := range docs {
		texts = append(texts, d.Text)
	}
	assert.Equal(t, []string{"0", "1", "2"}, texts)
}

// TestCollectSymlink 指向常规文件的链接照常读取；指向目录的链接忽略
func TestCollectSymlink(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlink 需要额外权限")
	}
	dir := t.TempDir()
	src := filepath.Join(t.TempDir(), "t.txt")
	require.NoError(t, os.WriteFile(src, []byte("ok"), 0o644))
	require.NoError(t, os.Symlink(src, filepath.Join(dir, "l.txt")))
	require.NoError(t, os.Symlink(t.TempDir(), filepath.Join(dir, "ldir")))

	docs, err := NewReader(nil).Collect(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "ok", docs[0].Text)
}

// TestReadLimits 超限与非 UTF-8 均为 ErrInvalidInput
func TestReadLimits(t *testing.T) {
	dir := t.TempDir()
	big := filepath.Join(dir, "big.txt")
	require.NoError(t, os.WriteFile(big, bytes.Repeat([]byte("a"), 11), 0o644))
	r := NewReader(&Options{MaxBytes: 10})
	_, err := r.ReadText(big)
	assert.True(t, errors.Is(err, contract.ErrInvalidInput), "超限应失败: %v", err)

	bad := filepath.Join(dir, "bad.txt")
	require.NoError(t, os.WriteFile(bad, []byte{0xff, 0xfe}, 0o644))
	_, err = NewReader(nil).ReadText(bad)
	assert.True(t, errors.Is(err, contract.ErrInvalidInput), "非 UTF-8 应失败: %v", err)

	_, err = NewReader(nil).Collect(context.Background(), filepath.Join(dir, "missing"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

// TestCollectCanceled ctx 取消立即返回
func TestCollectCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewReader(nil).Collect(ctx, t.TempDir())
	assert.ErrorIs(t, err, context.Canceled)
}

// TestWriteAtomic 原子写入：替换已有内容，不残留临时文件
func TestWriteAtomic(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "nested", "out.txt")
	require.NoError(t, WriteAtomic(context.Background(), dest, strings.NewReader("v1"), 0))
	require.NoError(t, WriteAtomic(context.Background(), dest, strings.NewReader("v2"), 0o600))
	b, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "v2", string(b))

	entries, _ := os.ReadDir(filepath.Dir(dest))
	for _, e := range entries {
		assert.False(t, strings.HasPrefix(e.Name(), ".tmp-"), "临时文件未清理: %s", e.Name())
	}
}

// TestWriteAtomicCanceled 取消时目标保持原状
func TestWriteAtomicCanceled(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "out.txt")
	require.NoError(t, os.WriteFile(dest, []byte("keep"), 0o644))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := WriteAtomic(ctx, dest, strings.NewReader("new"), 0)
	assert.ErrorIs(t, err, context.Canceled)
	b, _ := os.ReadFile(dest)
	assert.Equal(t, "keep", string(b))
}
