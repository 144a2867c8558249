// Package segment 按锁定子串集合将草稿切分为锁定/未锁定交替的片段。
//
// 纯函数、无状态；每次草稿或锁定集合变化时直接重算即可。
package segment

import (
	"sort"
	"strings"

	"inkwell/pkg/contract"
)

// Match: 某个锁定串在草稿中的一次出现（字节偏移，左闭右开）。
type Match struct {
	Start int
	End   int
	Text  string
}

// NormalizeLocks 去重并丢弃空串；保留首次出现的顺序。
func NormalizeLocks(locks []string) []string {
	if len(locks) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(locks))
	out := make([]string, 0, len(locks))
	for _, l := range locks {
		if l == "" {
			continue
		}
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	return out
}

// Matches 返回被接受的锁定区间，按起点升序、互不重叠。
// 规则：
//  1. 每个锁定串从左到右查找全部出现，游标每次前进整串长度（同串不自重叠）；
//  2. 全部匹配按起点升序排序，起点相同时终点降序（更长者优先）；
//  3. 贪心接受起点不早于上一个已接受终点的匹配，其余丢弃。
//
// 贪心策略不追求全局最优覆盖。
func Matches(text string, locks []string) []Match {
	if text == "" {
		return nil
	}
	uniq := NormalizeLocks(locks)
	if len(uniq) == 0 {
		return nil
	}
	var all []Match
	for _, l := range uniq {
		idx := 0
		for idx <= len(text) {
			found := strings.Index(text[idx:], l)
			if found < 0 {
				break
			}
			start := idx + found
			all = append(all, Match{Start: start, End: start + len(l), Text: l})
			idx = start + len(l)
		}
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].Start != all[j].Start {
			return all[i].Start < all[j].Start
		}
		return all[i].End > all[j].End
	})
	accepted := make([]Match, 0, len(all))
	lastEnd := -1
	for _, m := range all {
		if m.Start >= lastEnd {
			accepted = append(accepted, m)
			lastEnd = m.End
		}
	}
	return accepted
}

// Compute 将 text 切分为有序片段，片段拼接恒等于 text。
// 空 text 返回空结果；不产生零宽片段。
func Compute(text string, locks []string) []contract.Segment {
	if text == "" {
		return nil
	}
	accepted := Matches(text, locks)
	segs := make([]contract.Segment, 0, 2*len(accepted)+1)
	pos := 0
	for _, m := range accepted {
		if m.Start > pos {
			segs = append(segs, contract.Segment{Text: text[pos:m.Start], Locked: false})
		}
		segs = append(segs, contract.Segment{Text: text[m.Start:m.End], Locked: true})
		pos = m.End
	}
	if pos < len(text) {
		segs = append(segs, contract.Segment{Text: text[pos:], Locked: false})
	}
	return segs
}

// Join 按序拼接片段文本。
func Join(segs []contract.Segment) string {
	var sb strings.Builder
	for _, s := range segs {
		sb.WriteString(s.Text)
	}
	return sb.String()
}

// LockedTexts 返回被锁定片段的文本（按出现顺序，可重复）。
func LockedTexts(segs []contract.Segment) []string {
	var out []string
	for _, s := range segs {
		if s.Locked {
			out = append(out, s.Text)
		}
	}
	return out
}
