// Package server 以 HTTP JSON API 暴露推文与阅读辅导服务。
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"inkwell/internal/diag"
	"inkwell/internal/segment"
	"inkwell/internal/tutor"
	"inkwell/internal/tweet"
	"inkwell/pkg/contract"
)

// RequestIDHeader: 请求标识头；缺省时由服务端生成。
const RequestIDHeader = "X-Request-ID"

const comp = "server"

// Options: 服务配置。
type Options struct {
	Addr  string
	Tweet *tweet.Service
	Tutor *tutor.Service
	// Logger 为空时不记录。
	Logger *diag.Logger
	// MaxBodyBytes: 请求体上限（含内联图片），默认 20 MiB。
	MaxBodyBytes int64
	// ShutdownTimeout: 优雅关闭等待时长，默认 10 秒。
	ShutdownTimeout time.Duration
}

func (o *Options) defaults() {
	if o.MaxBodyBytes <= 0 {
		o.MaxBodyBytes = 20 << 20
	}
	if o.ShutdownTimeout <= 0 {
		o.ShutdownTimeout = 10 * time.Second
	}
}

// Server 持有路由与依赖；处理函数并发安全。
type Server struct {
	opts Options
	mux  *http.ServeMux
}

// New 构造服务并注册路由。
func New(opts Options) *Server {
	opts.defaults()
	s := &Server{opts: opts, mux: http.NewServeMux()}
	s.routes()
	return s
}

// Handler 返回根处理器。
func (s *Server) Handler() http.Handler { return s.mux }

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.healthz)
	s.mux.HandleFunc("POST /api/tweet/segments", s.handle("segments", s.segments))
	if s.opts.Tweet != nil {
		s.mux.HandleFunc("POST /api/tweet/create", s.handle("tweet.create", s.tweetCreate))
		s.mux.HandleFunc("POST /api/tweet/edit", s.handle("tweet.edit", s.tweetEdit))
		s.mux.HandleFunc("POST /api/tweet/target", s.handle("tweet.target", s.tweetTarget))
		s.mux.HandleFunc("POST /api/tweet/thread", s.handle("tweet.thread", s.tweetThread))
	}
	if s.opts.Tutor != nil {
		s.mux.HandleFunc("POST /api/tutor/analyze", s.handle("tutor.analyze", s.tutorAnalyze))
		s.mux.HandleFunc("POST /api/tutor/reanalyze", s.handle("tutor.reanalyze", s.tutorReanalyze))
		s.mux.HandleFunc("POST /api/tutor/ideal", s.handle("tutor.ideal", s.tutorIdeal))
		s.mux.HandleFunc("POST /api/tutor/answer", s.handle("tutor.answer", s.tutorAnswer))
	}
}

// Run 监听 Addr 并服务，直到 ctx 取消后优雅关闭。
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("server listen %s: %w", s.opts.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve 在给定 listener 上服务；ctx 取消触发 Shutdown，正常关闭返回 nil。
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	hs := &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	s.opts.Logger.InfoFinish(comp, "listening on "+ln.Addr().String(), time.Now(), 0)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := hs.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()
		if err := hs.Shutdown(sctx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})
	return g.Wait()
}

type handlerFunc func(ctx context.Context, body []byte) (any, error)

// handle: 读取请求体、分配请求标识、记录 start/finish，并按错误分类写回状态码。
func (s *Server) handle(name string, h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get(RequestIDHeader)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, reqID)
		tm := s.opts.Logger.StartWith(comp, r.Method+" "+r.URL.Path, reqID, name)

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes))
		if err != nil {
			err = fmt.Errorf("read body: %v: %w", err, contract.ErrInvalidInput)
			tm.Fail("bad request", err)
			writeError(w, err)
			return
		}
		out, err := h(r.Context(), body)
		if err != nil {
			tm.Fail(name+" failed", err)
			writeError(w, err)
			return
		}
		tm.Finish("ok", 0)
		writeJSON(w, http.StatusOK, out)
	}
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"time":    diag.NowUTC(),
		"metrics": diag.Snapshot(),
	})
}

// decode: 严格解码请求体；未知字段与尾随数据均视为输入错误。
func decode(body []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode request: %v: %w", err, contract.ErrInvalidInput)
	}
	if dec.More() {
		return fmt.Errorf("decode request: trailing data: %w", contract.ErrInvalidInput)
	}
	return nil
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, diag.HTTPStatus(err), errorBody{Error: err.Error(), Code: string(diag.Classify(err))})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// --- tweet ---

type segmentsRequest struct {
	Text  string   `json:"text"`
	Locks []string `json:"locks"`
}

type segmentsResponse struct {
	Segments []contract.Segment `json:"segments"`
}

func (s *Server) segments(_ context.Context, body []byte) (any, error) {
	var in segmentsRequest
	if err := decode(body, &in); err != nil {
		return nil, err
	}
	segs := segment.Compute(in.Text, in.Locks)
	if segs == nil {
		segs = []contract.Segment{}
	}
	return segmentsResponse{Segments: segs}, nil
}

func (s *Server) tweetCreate(ctx context.Context, body []byte) (any, error) {
	var in tweet.CreateInput
	if err := decode(body, &in); err != nil {
		return nil, err
	}
	return s.opts.Tweet.Create(ctx, in)
}

func (s *Server) tweetEdit(ctx context.Context, body []byte) (any, error) {
	var in tweet.EditInput
	if err := decode(body, &in); err != nil {
		return nil, err
	}
	return s.opts.Tweet.EditWithLocks(ctx, in)
}

func (s *Server) tweetTarget(ctx context.Context, body []byte) (any, error) {
	var in tweet.TargetInput
	if err := decode(body, &in); err != nil {
		return nil, err
	}
	return s.opts.Tweet.OperateOnTarget(ctx, in)
}

func (s *Server) tweetThread(ctx context.Context, body []byte) (any, error) {
	var in tweet.ThreadInput
	if err := decode(body, &in); err != nil {
		return nil, err
	}
	return s.opts.Tweet.CreateThread(ctx, in)
}

// --- tutor ---

func (s *Server) tutorAnalyze(ctx context.Context, body []byte) (any, error) {
	var in tutor.AnalyzeInput
	if err := decode(body, &in); err != nil {
		return nil, err
	}
	return s.opts.Tutor.Analyze(ctx, in)
}

func (s *Server) tutorReanalyze(ctx context.Context, body []byte) (any, error) {
	var in tutor.ReanalyzeInput
	if err := decode(body, &in); err != nil {
		return nil, err
	}
	return s.opts.Tutor.Reanalyze(ctx, in)
}

// variant 为 "both" 时并发返回两种版本。
func (s *Server) tutorIdeal(ctx context.Context, body []byte) (any, error) {
	var in tutor.IdealInput
	if err := decode(body, &in); err != nil {
		return nil, err
	}
	if in.Variant == "both" {
		return s.opts.Tutor.IdealSummaries(ctx, in.Chapter, in.Attempts)
	}
	return s.opts.Tutor.IdealSummary(ctx, in)
}

func (s *Server) tutorAnswer(ctx context.Context, body []byte) (any, error) {
	var in tutor.AnswerInput
	if err := decode(body, &in); err != nil {
		return nil, err
	}
	return s.opts.Tutor.Answer(ctx, in)
}
