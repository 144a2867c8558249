package segment

import (
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"

	"inkwell/pkg/contract"
)

func seg(text string, locked bool) contract.Segment { return contract.Segment{Text: text, Locked: locked} }

// UT-SEG-01: 典型切分样例
func TestCompute(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		locks []string
		want  []contract.Segment
	}{
		{"空文本", "", []string{"a"}, nil},
		{"无锁定", "hello world", nil, []contract.Segment{seg("hello world", false)}},
		{"仅空串锁定", "hello", []string{""}, []contract.Segment{seg("hello", false)}},
		{"非重叠多次出现", "ab cd ab", []string{"ab"}, []contract.Segment{seg("ab", true), seg(" cd ", false), seg("ab", true)}},
		{"同起点取更长", "abcdef", []string{"abc", "ab"}, []contract.Segment{seg("abc", true), seg("def", false)}},
		{"重叠丢弃后者", "abcdef", []string{"abcd", "cdef"}, []contract.Segment{seg("abcd", true), seg("ef", false)}},
		{"未出现的锁定被忽略", "hello", []string{"zzz"}, []contract.Segment{seg("hello", false)}},
		{"重复锁定去重", "xaxa", []string{"a", "a", ""}, []contract.Segment{seg("x", false), seg("a", true), seg("x", false), seg("a", true)}},
		{"同串不自重叠", "aaa", []string{"aa"}, []contract.Segment{seg("aa", true), seg("a", false)}},
		{"相邻锁定", "abab", []string{"ab"}, []contract.Segment{seg("ab", true), seg("ab", true)}},
		{"整串锁定", "lock", []string{"lock"}, []contract.Segment{seg("lock", true)}},
		{"多字节文本", "你好，世界。你好", []string{"你好"}, []contract.Segment{seg("你好", true), seg("，世界。", false), seg("你好", true)}},
		{"后起的长串被前一个截断", "one two three", []string{"one t", "two three"}, []contract.Segment{seg("one t", true), seg("wo three", false)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Compute(tt.text, tt.locks)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("Compute(%q, %q) mismatch (-want +got):\n%s", tt.text, tt.locks, diff)
			}
		})
	}
}

// UT-SEG-02: 拼接恒等、无零宽片段、锁定片段必属锁定集合
func TestComputeInvariants(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	alphabet := []rune("ab c")
	randStr := func(n int) string {
		rs := make([]rune, n)
		for i := range rs {
			rs[i] = alphabet[r.Intn(len(alphabet))]
		}
		return string(rs)
	}
	for i := 0; i < 500; i++ {
		text := randStr(r.Intn(20))
		locks := make([]string, r.Intn(4))
		for j := range locks {
			locks[j] = randStr(r.Intn(4))
		}
		segs := Compute(text, locks)
		if Join(segs) != text {
			t.Fatalf("拼接不等于原文: text=%q locks=%q segs=%v", text, locks, segs)
		}
		if text == "" && len(segs) != 0 {
			t.Fatalf("空文本应返回空结果")
		}
		set := map[string]bool{}
		for _, l := range locks {
			set[l] = true
		}
		for k, s := range segs {
			if s.Text == "" {
				t.Fatalf("出现零宽片段: %v", segs)
			}
			if s.Locked && !set[s.Text] {
				t.Fatalf("锁定片段 %q 不在锁定集合 %q", s.Text, locks)
			}
			if k > 0 && !s.Locked && !segs[k-1].Locked {
				t.Fatalf("相邻未锁定片段应合并: %v", segs)
			}
		}
	}
}

// UT-SEG-03: 锁定顺序不影响结果
func TestComputeOrderIndependent(t *testing.T) {
	text := "the quick brown fox jumps over the lazy dog"
	a := Compute(text, []string{"quick brown", "the", "brown fox", "lazy"})
	b := Compute(text, []string{"lazy", "brown fox", "the", "quick brown"})
	if diff := cmp.Diff(a, b); diff != "" {
		t.Fatalf("锁定顺序影响了结果:\n%s", diff)
	}
}

// UT-SEG-04: Matches 暴露字节偏移
func TestMatches(t *testing.T) {
	got := Matches("ab cd ab", []string{"ab", "cd"})
	want := []Match{{0, 2, "ab"}, {3, 5, "cd"}, {6, 8, "ab"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Matches mismatch:\n%s", diff)
	}
	if Matches("abc", nil) != nil {
		t.Fatalf("无锁定应返回 nil")
	}
}

// 补充覆盖: NormalizeLocks 与 LockedTexts
func TestNormalizeLocksAndLockedTexts(t *testing.T) {
	got := NormalizeLocks([]string{"b", "", "a", "b"})
	if diff := cmp.Diff([]string{"b", "a"}, got); diff != "" {
		t.Fatalf("NormalizeLocks:\n%s", diff)
	}
	if NormalizeLocks(nil) != nil {
		t.Fatalf("nil 输入应返回 nil")
	}
	lt := LockedTexts(Compute("ab cd ab", []string{"ab"}))
	if diff := cmp.Diff([]string{"ab", "ab"}, lt); diff != "" {
		t.Fatalf("LockedTexts:\n%s", diff)
	}
}

func BenchmarkCompute(b *testing.B) {
	text := "Shipping small, reviewable changes beats heroic rewrites. Every time. Locks keep the good parts."
	locks := []string{"small, reviewable changes", "Every time.", "good parts", "changes beats"}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Compute(text, locks)
	}
}
