package main

import (
	"github.com/spf13/cobra"

	"inkwell/internal/render"
	"inkwell/internal/segment"
)

// segments 不调用 LLM，无需装配。
func (c *cli) segmentsCmd() *cobra.Command {
	var text string
	var locks []string
	var table bool
	cmd := &cobra.Command{
		Use:   "segments",
		Short: "Show how locked phrases split a draft",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			draft, err := c.readArg(text)
			if err != nil {
				return err
			}
			segs := segment.Compute(draft, locks)
			switch {
			case c.flagJSON:
				return c.printJSON(segs)
			case table:
				render.Segments(c.stdout, segs)
			default:
				fprintf(c.stdout, "%s\n", render.Highlight(draft, locks, c.mode()))
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&text, "text", "", "草稿（\"-\" 读 stdin，\"@path\" 读文件）")
	f.StringArrayVar(&locks, "lock", nil, "锁定片段（可重复）")
	f.BoolVar(&table, "table", false, "以表格列出切分结果")
	return cmd
}
