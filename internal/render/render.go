// Package render 将草稿切分、辅导反馈与历史记录渲染为终端输出。
package render

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/lipgloss"
	"github.com/olekukonko/tablewriter"
	"golang.org/x/term"

	"inkwell/internal/segment"
	"inkwell/internal/tutor"
	"inkwell/pkg/contract"
)

// Mode: 输出模式。
type Mode int

const (
	// Auto: 标准输出为终端时使用样式，否则纯文本。
	Auto Mode = iota
	Plain
	Styled
)

// ParseMode: "auto" | "plain" | "color"；未知值按 Auto。
func ParseMode(s string) Mode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "plain", "never", "none":
		return Plain
	case "color", "always", "styled":
		return Styled
	default:
		return Auto
	}
}

// IsTTY 报告 f 是否连接到终端。
func IsTTY(f *os.File) bool { return f != nil && term.IsTerminal(int(f.Fd())) }

func (m Mode) styled() bool {
	switch m {
	case Plain:
		return false
	case Styled:
		return true
	default:
		return IsTTY(os.Stdout)
	}
}

var lockedStyle = lipgloss.NewStyle().Bold(true).
	Foreground(lipgloss.Color("0")).
	Background(lipgloss.Color("#F5D76E"))

// Highlight 按锁定集合渲染草稿：样式模式下锁定片段加粗高亮；
// 纯文本模式下以 [[...]] 包裹锁定片段。
func Highlight(text string, locks []string, mode Mode) string {
	segs := segment.Compute(text, locks)
	styled := mode.styled()
	var sb strings.Builder
	for _, s := range segs {
		switch {
		case !s.Locked:
			sb.WriteString(s.Text)
		case styled:
			sb.WriteString(lockedStyle.Render(s.Text))
		default:
			sb.WriteString("[[")
			sb.WriteString(s.Text)
			sb.WriteString("]]")
		}
	}
	return sb.String()
}

// Counter 返回 "n/max" 字符计数，超限时追加提示。
func Counter(text string, max int) string {
	n := utf8.RuneCountInString(text)
	out := strconv.Itoa(n) + "/" + strconv.Itoa(max)
	if n > max {
		out += " (over)"
	}
	return out
}

// Markdown 渲染 Markdown；width<=0 时不折行。
func Markdown(md string, width int, mode Mode) (string, error) {
	style := styles.NoTTYStyle
	if mode.styled() {
		style = styles.DarkStyle
	}
	opts := []glamour.TermRendererOption{glamour.WithStandardStyle(style)}
	if width > 0 {
		opts = append(opts, glamour.WithWordWrap(width))
	}
	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	out, err := r.Render(md)
	if err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return out, nil
}

// Segments 以表格列出切分结果（调试用）。
func Segments(w io.Writer, segs []contract.Segment) {
	t := newTable(w, []string{"#", "Locked", "Text"})
	for i, s := range segs {
		t.Append([]string{strconv.Itoa(i + 1), strconv.FormatBool(s.Locked), strconv.Quote(s.Text)})
	}
	t.Render()
}

// Thread 以表格列出推文串，附字符计数。
func Thread(w io.Writer, tweets []string, max int) {
	t := newTable(w, []string{"#", "Tweet", "Chars"})
	for i, s := range tweets {
		t.Append([]string{strconv.Itoa(i+1) + "/" + strconv.Itoa(len(tweets)), s, Counter(s, max)})
	}
	t.Render()
}

// HistoryTable 列出评估历史：序号、分数、优点、改进项、时间。
func HistoryTable(w io.Writer, attempts []tutor.Attempt) {
	t := newTable(w, []string{"#", "Score", "Strengths", "Improvements", "Time"})
	for i, a := range attempts {
		t.Append([]string{
			strconv.Itoa(i + 1),
			scoreText(a.Score),
			strings.Join(a.Strengths, "; "),
			strings.Join(a.Improvements, "; "),
			a.Timestamp.UTC().Format("2006-01-02 15:04:05"),
		})
	}
	t.Render()
}

func scoreText(s float64) string { return strconv.FormatFloat(s, 'f', -1, 64) + "/100" }

func newTable(w io.Writer, header []string) *tablewriter.Table {
	t := tablewriter.NewWriter(w)
	t.SetHeader(header)
	t.SetAutoWrapText(false)
	t.SetAutoFormatHeaders(false)
	return t
}
