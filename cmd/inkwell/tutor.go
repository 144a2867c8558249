package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"inkwell/internal/render"
	"inkwell/internal/tutor"
	"inkwell/pkg/contract"
	ptu "inkwell/plugins/prompt/tutor"
)

// tutorFlags 为 tutor 子命令共享的输入旗标。
type tutorFlags struct {
	chapter string
	notes   []string
	images  []string
	width   int
}

func (f *tutorFlags) bind(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.chapter, "chapter", "", "章节原文（\"-\" 读 stdin，\"@path\" 读文件）")
	fl.StringArrayVar(&f.notes, "notes", nil, "笔记（可重复；按先后视为多次尝试；\"@dir\" 展开目录）")
	fl.StringArrayVar(&f.images, "image", nil, "随最后一次笔记附带的图片文件（可重复）")
	fl.IntVar(&f.width, "width", 80, "Markdown 渲染宽度（<=0 不折行）")
}

func (c *cli) tutorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tutor",
		Short: "Grade chapter summaries and answer questions about them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(c.tutorAnalyzeCmd(), c.tutorIdealCmd(), c.tutorAskCmd())
	return cmd
}

// inputs 读取章节与各次笔记；图片附在最后一次笔记上。
func (c *cli) inputs(ctx context.Context, f *tutorFlags) (string, []contract.UserNotes, error) {
	chapter, err := c.readArg(f.chapter)
	if err != nil {
		return "", nil, err
	}
	out := make([]contract.UserNotes, 0, len(f.notes))
	for _, n := range f.notes {
		// "@dir" 展开为目录下的全部文件，按路径字典序视为先后尝试。
		if path, ok := strings.CutPrefix(n, "@"); ok && isDir(path) {
			docs, err := c.files.Collect(ctx, path)
			if err != nil {
				return "", nil, err
			}
			for _, d := range docs {
				out = append(out, contract.TextOnly(d.Text))
			}
			continue
		}
		text, err := c.readArg(n)
		if err != nil {
			return "", nil, err
		}
		out = append(out, contract.TextOnly(text))
	}
	if len(f.images) == 0 {
		return chapter, out, nil
	}
	imgs := make([]contract.ImageAttachment, 0, len(f.images))
	for _, p := range f.images {
		att, err := readImage(p)
		if err != nil {
			return "", nil, err
		}
		imgs = append(imgs, att)
	}
	last := ""
	if len(out) > 0 {
		last = contract.NotesText(out[len(out)-1])
		out = out[:len(out)-1]
	}
	out = append(out, contract.TextWithImages{Text: last, Images: imgs})
	return chapter, out, nil
}

func isDir(path string) bool {
	st, err := os.Stat(path)
	return err == nil && st.IsDir()
}

// readImage 读取图片文件并编码为 data URL。
func readImage(path string) (contract.ImageAttachment, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return contract.ImageAttachment{}, err
	}
	mt := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if mt == "" {
		mt = http.DetectContentType(b)
	}
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = mt[:i]
	}
	if !strings.HasPrefix(mt, "image/") {
		return contract.ImageAttachment{}, fmt.Errorf("%s: not an image (%s): %w", path, mt, contract.ErrInvalidInput)
	}
	return contract.ImageAttachment{
		ID:   uuid.NewString(),
		Data: "data:" + mt + ";base64," + base64.StdEncoding.EncodeToString(b),
		Name: filepath.Base(path),
		Size: int64(len(b)),
	}, nil
}

func (c *cli) tutorAnalyzeCmd() *cobra.Command {
	var f tutorFlags
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Score one or more successive summary attempts",
		Long:  "The first --notes is analyzed; every later --notes is re-analyzed against the attempts before it.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, _, err := c.assemble()
			if err != nil {
				return err
			}
			chapter, notes, err := c.inputs(cmd.Context(), &f)
			if err != nil {
				return err
			}
			if len(notes) == 0 {
				return fmt.Errorf("tutor: --notes is required: %w", contract.ErrInvalidInput)
			}
			h := tutor.NewHistory(time.Now)
			progress, err := grade(cmd.Context(), app.Tutor, h, chapter, notes)
			if err != nil {
				return err
			}
			if c.flagJSON {
				return c.printJSON(h.Attempts())
			}
			latest, _ := h.Latest()
			md, err := render.Markdown(feedbackMarkdown(latest, progress), f.width, c.mode())
			if err != nil {
				return err
			}
			fprintf(c.stdout, "%s", md)
			if h.Len() > 1 {
				render.HistoryTable(c.stdout, h.Attempts())
			}
			return nil
		},
	}
	f.bind(cmd)
	return cmd
}

// grade 依次评估各次笔记并记入历史；返回最后一次再评估的进步说明。
func grade(ctx context.Context, svc *tutor.Service, h *tutor.History, chapter string, notes []contract.UserNotes) (string, error) {
	progress := ""
	for _, n := range notes {
		field := contract.NotesField{UserNotes: n}
		if h.Len() == 0 {
			a, err := svc.Analyze(ctx, tutor.AnalyzeInput{Chapter: chapter, Notes: field})
			if err != nil {
				return "", err
			}
			h.Add(n, a)
			continue
		}
		r, err := svc.Reanalyze(ctx, tutor.ReanalyzeInput{Chapter: chapter, Notes: field, Previous: h.Previous()})
		if err != nil {
			return "", err
		}
		h.Add(n, r.Analysis)
		progress = r.ProgressNote
	}
	return progress, nil
}

func feedbackMarkdown(a tutor.Attempt, progress string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Score: %s/100\n\n%s\n", ptu.FormatScore(a.Score), a.Feedback)
	list := func(title string, items []string) {
		if len(items) == 0 {
			return
		}
		fmt.Fprintf(&b, "\n### %s\n\n", title)
		for _, it := range items {
			fmt.Fprintf(&b, "- %s\n", it)
		}
	}
	list("Strengths", a.Strengths)
	list("Improvements", a.Improvements)
	if progress != "" {
		fmt.Fprintf(&b, "\n### Progress\n\n%s\n", progress)
	}
	return b.String()
}

func (c *cli) tutorIdealCmd() *cobra.Command {
	var f tutorFlags
	var variant string
	cmd := &cobra.Command{
		Use:   "ideal",
		Short: "Write a model summary informed by previous attempts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, _, err := c.assemble()
			if err != nil {
				return err
			}
			chapter, notes, err := c.inputs(cmd.Context(), &f)
			if err != nil {
				return err
			}
			attempts := make([]string, len(notes))
			for i, n := range notes {
				attempts[i] = contract.NotesText(n)
			}
			var md string
			if variant == "both" {
				pair, err := app.Tutor.IdealSummaries(cmd.Context(), chapter, attempts)
				if err != nil {
					return err
				}
				if c.flagJSON {
					return c.printJSON(pair)
				}
				md = "## Concise\n\n" + pair.Concise.IdealSummary + "\n\n## Extended\n\n" + pair.Extended.IdealSummary + "\n"
			} else {
				v, err := tutor.ParseVariant(variant)
				if err != nil {
					return err
				}
				res, err := app.Tutor.IdealSummary(cmd.Context(), tutor.IdealInput{Chapter: chapter, Attempts: attempts, Variant: v})
				if err != nil {
					return err
				}
				if c.flagJSON {
					return c.printJSON(res)
				}
				md = res.IdealSummary
			}
			out, err := render.Markdown(md, f.width, c.mode())
			if err != nil {
				return err
			}
			fprintf(c.stdout, "%s", out)
			return nil
		},
	}
	f.bind(cmd)
	cmd.Flags().StringVar(&variant, "variant", string(tutor.VariantConcise), "concise|extended|extended_text|both")
	return cmd
}

func (c *cli) tutorAskCmd() *cobra.Command {
	var f tutorFlags
	var question, history string
	cmd := &cobra.Command{
		Use:   "ask",
		Short: "Ask a question about the chapter and your notes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, _, err := c.assemble()
			if err != nil {
				return err
			}
			chapter, notes, err := c.inputs(cmd.Context(), &f)
			if err != nil {
				return err
			}
			var field contract.NotesField
			if len(notes) > 0 {
				field.UserNotes = notes[len(notes)-1]
			}
			turns, err := c.readTurns(history)
			if err != nil {
				return err
			}
			q, err := c.readArg(question)
			if err != nil {
				return err
			}
			res, err := app.Tutor.Answer(cmd.Context(), tutor.AnswerInput{Chapter: chapter, Notes: field, History: turns, Question: q})
			if err != nil {
				return err
			}
			if c.flagJSON {
				return c.printJSON(res)
			}
			out, err := render.Markdown(res.Answer, f.width, c.mode())
			if err != nil {
				return err
			}
			fprintf(c.stdout, "%s", out)
			return nil
		},
	}
	f.bind(cmd)
	fl := cmd.Flags()
	fl.StringVar(&question, "question", "", "问题")
	fl.StringVar(&history, "history", "", "既往对话：[{role,content}] JSON（\"@path\" 读文件）")
	return cmd
}

// readTurns 严格解析对话历史；空值返回 nil。
func (c *cli) readTurns(s string) ([]ptu.Turn, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	raw, err := c.readArg(s)
	if err != nil {
		return nil, err
	}
	var turns []ptu.Turn
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&turns); err != nil {
		return nil, fmt.Errorf("history: %v: %w", err, contract.ErrInvalidInput)
	}
	return turns, nil
}
