package fsio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"inkwell/pkg/contract"
)

// Options 为读取的可选配置。
type Options struct {
	// MaxBytes: 单个文件的字节上限，默认 4 MiB。
	MaxBytes int64
	// ExcludeDirNames: 扫描目录时跳过的目录基名（大小写不敏感），例如 [".git"]。
	ExcludeDirNames []string
}

// Document 为读入的一份文本。
type Document struct {
	Path string
	Text string
}

// Reader 读取文本文件与目录；目录按字典序稳定展开。
type Reader struct {
	max        int64
	excludeDir map[string]struct{}
}

// NewReader 构造 Reader；opts 可为 nil。
func NewReader(opts *Options) *Reader {
	r := &Reader{max: 4 << 20, excludeDir: map[string]struct{}{}}
	if opts == nil {
		return r
	}
	if opts.MaxBytes > 0 {
		r.max = opts.MaxBytes
	}
	for _, name := range opts.ExcludeDirNames {
		if name != "" {
			r.excludeDir[strings.ToLower(name)] = struct{}{}
		}
	}
	return r
}

// Collect 读取 root：常规文件返回单个文档；目录先递归子目录、再按名读取文件。
// 目录符号链接不跟随；指向常规文件的符号链接照常读取；其余非常规文件跳过。
func (r *Reader) Collect(ctx context.Context, root string) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		var out []Document
		if err := r.walk(ctx, root, &out); err != nil {
			return nil, err
		}
		return out, nil
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%s: not a regular file: %w", root, contract.ErrInvalidInput)
	}
	d, err := r.readFile(root)
	if err != nil {
		return nil, err
	}
	return []Document{d}, nil
}

// ReadText 读取单个文件为文本。
func (r *Reader) ReadText(path string) (string, error) {
	d, err := r.readFile(path)
	return d.Text, err
}

func (r *Reader) walk(ctx context.Context, dir string, out *[]Document) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !e.IsDir() {
			continue
		}
		if _, skip := r.excludeDir[strings.ToLower(e.Name())]; skip {
			continue
		}
		if err := r.walk(ctx, filepath.Join(dir, e.Name()), out); err != nil {
			return err
		}
	}
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		p := filepath.Join(dir, e.Name())
		t, err := os.Stat(p)
		if err != nil {
			return err
		}
		if !t.Mode().IsRegular() {
			continue
		}
		d, err := r.readFile(p)
		if err != nil {
			return err
		}
		*out = append(*out, d)
	}
	return nil
}

var bom = []byte{0xEF, 0xBB, 0xBF}

// readFile 读取至多 max 字节；超限或非 UTF-8 返回 ErrInvalidInput。去除 BOM。
func (r *Reader) readFile(path string) (Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return Document{}, err
	}
	defer f.Close()
	b, err := io.ReadAll(io.LimitReader(f, r.max+1))
	if err != nil {
		return Document{}, err
	}
	if int64(len(b)) > r.max {
		return Document{}, fmt.Errorf("%s: larger than %d bytes: %w", path, r.max, contract.ErrInvalidInput)
	}
	b = bytes.TrimPrefix(b, bom)
	if !utf8.Valid(b) {
		return Document{}, fmt.Errorf("%s: not valid UTF-8: %w", path, contract.ErrInvalidInput)
	}
	return Document{Path: filepath.ToSlash(filepath.Clean(path)), Text: string(b)}, nil
}
