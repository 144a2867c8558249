package main

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"inkwell/internal/render"
	"inkwell/internal/tweet"
	"inkwell/pkg/contract"
)

func (c *cli) tweetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tweet",
		Short: "Draft, edit and thread tweets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(c.tweetCreateCmd(), c.tweetEditCmd(), c.tweetTargetCmd(), c.tweetThreadCmd())
	return cmd
}

// tweetRun 装配服务并在其上执行 fn。
func (c *cli) tweetRun(cmd *cobra.Command, fn func(ctx context.Context, svc *tweet.Service) error) error {
	app, _, err := c.assemble()
	if err != nil {
		return err
	}
	return fn(cmd.Context(), app.Tweet)
}

// printTweet 输出草稿：锁定片段高亮，末尾附字符计数。
func (c *cli) printTweet(res tweet.Result, locks []string, max int) error {
	if c.flagJSON {
		return c.printJSON(res)
	}
	fprintf(c.stdout, "%s\n%s\n", render.Highlight(res.Tweet, locks, c.mode()), render.Counter(res.Tweet, max))
	return nil
}

func (c *cli) tweetCreateCmd() *cobra.Command {
	var idea string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Write a new tweet from an idea",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.tweetRun(cmd, func(ctx context.Context, svc *tweet.Service) error {
				text, err := c.readArg(idea)
				if err != nil {
					return err
				}
				res, err := svc.Create(ctx, tweet.CreateInput{Idea: text})
				if err != nil {
					return err
				}
				return c.printTweet(res, nil, svc.MaxLength())
			})
		},
	}
	cmd.Flags().StringVar(&idea, "idea", "", "想法（\"-\" 读 stdin，\"@path\" 读文件）")
	return cmd
}

func (c *cli) tweetEditCmd() *cobra.Command {
	var draft, idea string
	var locks []string
	cmd := &cobra.Command{
		Use:   "edit",
		Short: "Rewrite a draft while keeping locked phrases verbatim",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.tweetRun(cmd, func(ctx context.Context, svc *tweet.Service) error {
				sess, err := c.session(svc, draft, locks)
				if err != nil {
					return err
				}
				text, err := c.readArg(idea)
				if err != nil {
					return err
				}
				res, err := sess.Submit(ctx, text)
				if err != nil {
					return err
				}
				return c.printTweet(res, sess.Locks(), svc.MaxLength())
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&draft, "draft", "", "当前草稿（\"-\" 读 stdin，\"@path\" 读文件）")
	f.StringArrayVar(&locks, "lock", nil, "锁定片段（可重复）")
	f.StringVar(&idea, "idea", "", "改写方向（可空）")
	return cmd
}

func (c *cli) tweetTargetCmd() *cobra.Command {
	var draft, target, op string
	var locks []string
	cmd := &cobra.Command{
		Use:   "target",
		Short: "Rephrase or condense one phrase of a draft",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.tweetRun(cmd, func(ctx context.Context, svc *tweet.Service) error {
				operation, err := contract.ParseOperation(op)
				if err != nil {
					return err
				}
				sess, err := c.session(svc, draft, locks)
				if err != nil {
					return err
				}
				res, err := sess.Operate(ctx, target, operation)
				if err != nil {
					return err
				}
				return c.printTweet(res, sess.Locks(), svc.MaxLength())
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&draft, "draft", "", "当前草稿（\"-\" 读 stdin，\"@path\" 读文件）")
	f.StringVar(&target, "target", "", "待改写片段（须出现在草稿中）")
	f.StringVar(&op, "op", string(contract.OpRephrase), "操作 rephrase|condense")
	f.StringArrayVar(&locks, "lock", nil, "锁定片段（可重复）")
	return cmd
}

func (c *cli) tweetThreadCmd() *cobra.Command {
	var idea, style string
	var count int
	cmd := &cobra.Command{
		Use:   "thread",
		Short: "Expand an idea into a numbered thread",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.tweetRun(cmd, func(ctx context.Context, svc *tweet.Service) error {
				text, err := c.readArg(idea)
				if err != nil {
					return err
				}
				res, err := svc.CreateThread(ctx, tweet.ThreadInput{Idea: text, Count: count, Style: style})
				if err != nil {
					return err
				}
				if c.flagJSON {
					return c.printJSON(res)
				}
				texts := make([]string, len(res.Tweets))
				for i, t := range res.Tweets {
					texts[i] = t.Text
				}
				render.Thread(c.stdout, texts, svc.MaxLength())
				return nil
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&idea, "idea", "", "想法（\"-\" 读 stdin，\"@path\" 读文件）")
	f.IntVar(&count, "count", 0, "推文条数（2..20；0 取配置默认）")
	f.StringVar(&style, "style", "", "风格提示（可空）")
	return cmd
}

// session 以草稿与锁定片段构造会话；锁定片段须出现在草稿中。
func (c *cli) session(svc *tweet.Service, draft string, locks []string) (*tweet.Session, error) {
	text, err := c.readArg(draft)
	if err != nil {
		return nil, err
	}
	sess := tweet.NewSession(svc)
	sess.SetDraft(strings.TrimRight(text, "\n"))
	for _, l := range locks {
		if err := sess.Lock(l); err != nil {
			return nil, err
		}
	}
	return sess, nil
}
