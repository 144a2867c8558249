package rate

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	xrate "golang.org/x/time/rate"

	"inkwell/pkg/contract"
)

// LimitKey: 限流分组键（client + api key 摘要，见 DeriveKeyFromProviderOptions）。
type LimitKey string

// Limits: 每分组的限额。0 表示该维度不启用。
type Limits struct {
	RPM             int // requests per minute
	TPM             int // tokens per minute
	MaxTokensPerReq int // 单次申请的 token 上限，0 表示不限制
}

// Ask: 一次放行申请。
type Ask struct {
	Key      LimitKey
	Requests int // 必须 >=1
	Tokens   int // 预计 token（>=0）
}

// Gate: 限流闸门（并发安全）。
type Gate interface {
	// Wait 阻塞直到两个维度同时有额度，或 ctx 结束。
	// 超出单请求上限、或申请量大于桶容量（永远无法放行）时立即返回 ErrBudgetExceeded。
	Wait(ctx context.Context, a Ask) error
	// Try 非阻塞；不足时返回 false 且不消耗额度。
	Try(a Ask) bool
}

// Snapshoter: 可选诊断接口。
type Snapshoter interface {
	Snapshot(key LimitKey) (rpmAvail, tpmAvail int)
}

// NewGate 从静态配置构造闸门；clk 为空则使用 time.Now。
// 每个维度是一只按分钟匀速补充、容量等于每分钟额度的令牌桶，初始为满。
func NewGate(m map[LimitKey]Limits, clk func() time.Time) Gate {
	if clk == nil {
		clk = time.Now
	}
	g := &gate{clk: clk, m: make(map[LimitKey]*entry, len(m))}
	for k, lim := range m {
		g.m[k] = newEntry(lim)
	}
	return g
}

type gate struct {
	clk func() time.Time
	mu  sync.RWMutex
	m   map[LimitKey]*entry
}

// entry 的 mu 保证两个维度的检查与扣减是一个原子步骤。
type entry struct {
	mu  sync.Mutex
	lim Limits
	req *xrate.Limiter // nil 表示不启用
	tok *xrate.Limiter
}

func newEntry(lim Limits) *entry {
	return &entry{lim: lim, req: perMinute(lim.RPM), tok: perMinute(lim.TPM)}
}

func perMinute(n int) *xrate.Limiter {
	if n <= 0 {
		return nil
	}
	return xrate.NewLimiter(xrate.Limit(float64(n)/60), n)
}

// need 返回在 now 时刻凑足 n 还需等待的时长；0 表示已足够。
func need(l *xrate.Limiter, now time.Time, n int) time.Duration {
	if l == nil || n <= 0 {
		return 0
	}
	deficit := float64(n) - l.TokensAt(now)
	if deficit <= 0 {
		return 0
	}
	return time.Duration(math.Ceil(deficit / float64(l.Limit()) * float64(time.Second)))
}

func over(l *xrate.Limiter, n int) bool { return l != nil && n > l.Burst() }

func take(l *xrate.Limiter, now time.Time, n int) {
	if l != nil && n > 0 {
		l.AllowN(now, n)
	}
}

// acquire 在两个维度都充足时一并扣减；否则返回需等待的最长时长。
func (e *entry) acquire(now time.Time, a Ask) (time.Duration, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	wait := max(need(e.req, now, a.Requests), need(e.tok, now, a.Tokens))
	if wait > 0 {
		return wait, false
	}
	take(e.req, now, a.Requests)
	take(e.tok, now, a.Tokens)
	return 0, true
}

func (g *gate) get(key LimitKey) *entry {
	g.mu.RLock()
	e := g.m[key]
	g.mu.RUnlock()
	if e != nil {
		return e
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if e = g.m[key]; e == nil {
		// 未配置的 key 视为不限额
		e = newEntry(Limits{})
		g.m[key] = e
	}
	return e
}

func (g *gate) check(a Ask) (*entry, error) {
	if a.Requests <= 0 || a.Tokens < 0 {
		return nil, fmt.Errorf("rate: requests=%d tokens=%d: %w", a.Requests, a.Tokens, contract.ErrInvalidInput)
	}
	e := g.get(a.Key)
	if e.lim.MaxTokensPerReq > 0 && a.Tokens > e.lim.MaxTokensPerReq {
		return nil, fmt.Errorf("rate: ask %d tokens over per-request cap %d: %w", a.Tokens, e.lim.MaxTokensPerReq, contract.ErrBudgetExceeded)
	}
	if over(e.req, a.Requests) || over(e.tok, a.Tokens) {
		return nil, fmt.Errorf("rate: ask exceeds per-minute capacity (%d req, %d tokens): %w", a.Requests, a.Tokens, contract.ErrBudgetExceeded)
	}
	return e, nil
}

func (g *gate) Try(a Ask) bool {
	e, err := g.check(a)
	if err != nil {
		return false
	}
	_, ok := e.acquire(g.clk(), a)
	return ok
}

func (g *gate) Wait(ctx context.Context, a Ask) error {
	e, err := g.check(a)
	if err != nil {
		return err
	}
	// 最小睡眠粒度，避免忙等
	const minSleep = 10 * time.Millisecond
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		wait, ok := e.acquire(g.clk(), a)
		if ok {
			return nil
		}
		if err := sleepCtx(ctx, max(wait, minSleep)); err != nil {
			return err
		}
	}
}

// sleepCtx 睡眠 d 或直到 ctx 结束。
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Snapshot 返回当前可用请求/令牌的向下取整估值（仅诊断）；关闭的维度返回 0。
func (g *gate) Snapshot(key LimitKey) (rpmAvail, tpmAvail int) {
	e := g.get(key)
	now := g.clk()
	e.mu.Lock()
	defer e.mu.Unlock()
	return avail(e.req, now), avail(e.tok, now)
}

func avail(l *xrate.Limiter, now time.Time) int {
	if l == nil {
		return 0
	}
	v := l.TokensAt(now)
	if v < 0 {
		return 0
	}
	return int(math.Min(v, float64(l.Burst())))
}

var _ Gate = (*gate)(nil)
var _ Snapshoter = (*gate)(nil)
