package tweet

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inkwell/internal/diag"
	"inkwell/pkg/contract"
	"inkwell/plugins/llmclient/flaky"
	"inkwell/plugins/llmclient/mock"
	ptw "inkwell/plugins/prompt/tweet"
)

// recorder 记录收到的提示词并返回固定文本。
type recorder struct {
	mu      sync.Mutex
	prompts []contract.Prompt
	reply   string
	err     error
}

func (r *recorder) Invoke(_ context.Context, p contract.Prompt) (contract.Raw, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prompts = append(r.prompts, p)
	if r.err != nil {
		return contract.Raw{}, r.err
	}
	return contract.Raw{Text: r.reply}, nil
}

func (r *recorder) last() contract.Prompt {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.prompts[len(r.prompts)-1]
}

func newSvc(llm contract.LLMClient) *Service { return New(llm, nil, diag.Nop()) }

// UT-TWS-01: 长度修正以字符计，不截断多字节序列
func TestEnforceLength(t *testing.T) {
	long := strings.Repeat("a", 300)
	got := EnforceLength(long, 280)
	assert.Len(t, got, 280)
	assert.Equal(t, long[:280], got)

	assert.Equal(t, "short", EnforceLength("short", 280))
	assert.Equal(t, strings.Repeat("b", 280), EnforceLength(strings.Repeat("b", 280), 280))

	cjk := strings.Repeat("字", 281)
	out := EnforceLength(cjk, 280)
	assert.True(t, utf8.ValidString(out))
	assert.Equal(t, 280, utf8.RuneCountInString(out))

	assert.Equal(t, "", EnforceLength("abc", 0))
}

// UT-TWS-02: 首稿使用首稿提示词，输出被截断到上限
func TestCreate(t *testing.T) {
	r := &recorder{reply: strings.Repeat("x", 300)}
	res, err := newSvc(r).Create(context.Background(), CreateInput{Idea: "Go"})
	require.NoError(t, err)
	assert.Len(t, res.Tweet, 280)
	assert.Equal(t, contract.TextPrompt(ptw.BuildInitial("Go")), r.last())
}

// UT-TWS-03: 必填字段缺失返回 ErrInvalidInput，且不调用 LLM
func TestValidation(t *testing.T) {
	r := &recorder{reply: "ok"}
	s := newSvc(r)
	ctx := context.Background()

	_, err := s.Create(ctx, CreateInput{Idea: "  "})
	assert.ErrorIs(t, err, contract.ErrInvalidInput)
	_, err = s.EditWithLocks(ctx, EditInput{})
	assert.ErrorIs(t, err, contract.ErrInvalidInput)
	_, err = s.OperateOnTarget(ctx, TargetInput{Previous: "p", Operation: contract.OpRephrase})
	assert.ErrorIs(t, err, contract.ErrInvalidInput)
	_, err = s.OperateOnTarget(ctx, TargetInput{Previous: "p", Target: "p", Operation: "shout"})
	assert.ErrorIs(t, err, contract.ErrInvalidInput)
	_, err = s.CreateThread(ctx, ThreadInput{Idea: "x", Count: 1})
	assert.ErrorIs(t, err, contract.ErrInvalidInput)
	_, err = s.CreateThread(ctx, ThreadInput{Idea: "x", Count: 21})
	assert.ErrorIs(t, err, contract.ErrInvalidInput)
	assert.Empty(t, r.prompts)
}

// UT-TWS-04: 改写与单目标操作的提示词来自构造器
func TestEditAndTarget(t *testing.T) {
	r := &recorder{reply: "new tweet"}
	s := newSvc(r)
	ctx := context.Background()

	res, err := s.EditWithLocks(ctx, EditInput{Previous: "old", Locked: []string{"old"}, Idea: "i"})
	require.NoError(t, err)
	assert.Equal(t, "new tweet", res.Tweet)
	assert.Equal(t, contract.TextPrompt(ptw.BuildEditWithLocks("old", []string{"old"}, "i")), r.last())

	_, err = s.OperateOnTarget(ctx, TargetInput{Previous: "a b", Target: "b", Operation: "CONDENSE"})
	require.NoError(t, err)
	assert.Equal(t, contract.TextPrompt(ptw.BuildTargetOperation("a b", "b", contract.OpCondense, nil, "")), r.last())
}

// UT-TWS-05: 生成失败原样上抛，不重试
func TestNoRetry(t *testing.T) {
	c, err := flaky.New(json.RawMessage(`{"failures":1}`))
	require.NoError(t, err)
	s := newSvc(c)

	_, err = s.Create(context.Background(), CreateInput{Idea: "x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, contract.ErrRateLimited)
	assert.Equal(t, 1, c.(*flaky.Client).Calls())

	res, err := s.Create(context.Background(), CreateInput{Idea: "x"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Tweet)
	assert.Equal(t, 2, c.(*flaky.Client).Calls())
}

// UT-TWS-06: 推文串默认 5 条请求，逐条截断，允许代码块包裹
func TestCreateThread(t *testing.T) {
	long := strings.Repeat("y", 290)
	r := &recorder{reply: "```json\n{\"tweets\":[{\"text\":\"one\"},{\"text\":\"" + long + "\"}]}\n```"}
	res, err := newSvc(r).CreateThread(context.Background(), ThreadInput{Idea: "Go"})
	require.NoError(t, err)
	require.Len(t, res.Tweets, 2)
	assert.Equal(t, "one", res.Tweets[0].Text)
	assert.Len(t, res.Tweets[1].Text, 280)

	sp, ok := r.last().(contract.StructuredPrompt)
	require.True(t, ok, "推文串应使用结构化提示词")
	assert.Contains(t, contract.PromptText(sp), "exactly 5 tweets")
}

// UT-TWS-07: 推文串响应不合法 → ErrResponseInvalid
func TestCreateThreadInvalid(t *testing.T) {
	for _, reply := range []string{
		"not json",
		`{"tweets":[]}`,
		`{"tweets":[{"text":"  "}]}`,
		`{"tweets":[{"text":"a","extra":1}]}`,
	} {
		r := &recorder{reply: reply}
		_, err := newSvc(r).CreateThread(context.Background(), ThreadInput{Idea: "x", Count: 2})
		assert.ErrorIs(t, err, contract.ErrResponseInvalid, reply)
	}
}

// UT-TWS-08: mock 客户端按 Schema 生成推文串桩数据
func TestCreateThreadWithMock(t *testing.T) {
	c, err := mock.New(nil)
	require.NoError(t, err)
	res, err := newSvc(c).CreateThread(context.Background(), ThreadInput{Idea: "x", Count: 3})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Tweets)
}

// UT-TWS-09: 会话锁定规则与切分
func TestSessionLocks(t *testing.T) {
	s := NewSession(nil)
	s.SetDraft("Ship it. Then iterate.")

	require.NoError(t, s.Lock("Ship it."))
	require.NoError(t, s.Lock("Ship it."))
	assert.ErrorIs(t, s.Lock("missing"), contract.ErrInvalidInput)
	assert.ErrorIs(t, s.Lock(""), contract.ErrInvalidInput)
	assert.Equal(t, []string{"Ship it."}, s.Locks())

	segs := s.Segments()
	require.Len(t, segs, 2)
	assert.Equal(t, contract.Segment{Text: "Ship it.", Locked: true}, segs[0])

	// 换稿保留锁定；缺失的锁定被忽略
	s.SetDraft("Something else")
	assert.Equal(t, []string{"Ship it."}, s.Locks())
	assert.Equal(t, []contract.Segment{{Text: "Something else"}}, s.Segments())

	s.Unlock("Ship it.")
	assert.Empty(t, s.Locks())

	s.Reset()
	assert.Equal(t, "", s.Draft())
	assert.Nil(t, s.Segments())
}

// UT-TWS-10: 提交时空白草稿走首稿，否则走锁定改写；单目标操作排除目标自身
func TestSessionFlow(t *testing.T) {
	r := &recorder{reply: "Ship it. Then iterate."}
	sess := NewSession(newSvc(r))
	ctx := context.Background()

	_, err := sess.Submit(ctx, "shipping")
	require.NoError(t, err)
	assert.Equal(t, contract.TextPrompt(ptw.BuildInitial("shipping")), r.last())
	assert.Equal(t, "Ship it. Then iterate.", sess.Draft())

	require.NoError(t, sess.Lock("Ship it."))
	require.NoError(t, sess.Lock("iterate"))
	r.reply = "Ship it. Then improve."
	_, err = sess.Submit(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, contract.TextPrompt(ptw.BuildEditWithLocks("Ship it. Then iterate.", []string{"Ship it.", "iterate"}, "")), r.last())

	_, err = sess.Operate(ctx, "Ship it.", contract.OpRephrase)
	require.NoError(t, err)
	want := ptw.BuildTargetOperation("Ship it. Then improve.", "Ship it.", contract.OpRephrase, []string{"iterate"}, "")
	assert.Equal(t, contract.TextPrompt(want), r.last())
}

// UT-TWS-11: 失败时草稿保持不变
func TestSessionFailureKeepsDraft(t *testing.T) {
	r := &recorder{err: errors.New("boom")}
	sess := NewSession(newSvc(r))
	sess.SetDraft("keep me")
	_, err := sess.Submit(context.Background(), "x")
	require.Error(t, err)
	assert.Equal(t, "keep me", sess.Draft())
}
