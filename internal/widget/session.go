// Package widget 实现支持挂件背后的聊天会话：处理输入，一次只向对话服务发送一个请求，
// 维护聊天记录并控制危机提示横幅。
package widget

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/zhouzirui/careline/backend/internal/logger"
	"github.com/zhouzirui/careline/backend/internal/model/chat"
	"github.com/zhouzirui/careline/backend/internal/model/persona"
)

const (
	DefaultCrisisAlertDuration = 10 * time.Second
	DefaultNoticeDuration      = 5 * time.Second
)

const (
	FallbackErrorText = "Sorry, I encountered an issue. Please try again."
	ConnectivityText  = "I'm sorry, I'm having trouble connecting right now. Please try again in a moment, or contact campus support if you need immediate help."
	ResetPrompt       = "Are you sure you want to start a new conversation? This will clear your current chat history."
	ResetFailedText   = "Failed to reset conversation. Please refresh the page."
	NoticeText        = "Something went wrong. Please refresh the page or contact support if the problem continues."
)

// State 会话在一次收发周期中所处的状态
type State int

const (
	StateIdle State = iota
	StateAwaitingResponse
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingResponse:
		return "awaiting_response"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

type options struct {
	greeting       string
	scheduler      Scheduler
	crisisDuration time.Duration
	noticeDuration time.Duration
	logger         zerolog.Logger
}

// Option 配置Session
type Option func(*options)

// WithGreeting 设置启动和重置后显示的问候语
func WithGreeting(greeting string) Option {
	return func(o *options) {
		if strings.TrimSpace(greeting) != "" {
			o.greeting = greeting
		}
	}
}

// WithScheduler 替换危机提示和错误通知使用的计时器
func WithScheduler(s Scheduler) Option {
	return func(o *options) { o.scheduler = s }
}

// WithCrisisAlertDuration 设置危机提示的显示时长
func WithCrisisAlertDuration(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.crisisDuration = d
		}
	}
}

// WithNoticeDuration 设置错误通知的显示时长
func WithNoticeDuration(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.noticeDuration = d
		}
	}
}

// WithLogger 设置会话日志
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Session 持有聊天记录以及 Idle/AwaitingResponse 状态机。
// 所有状态变更和视图更新都在同一把锁下进行。
type Session struct {
	endpoint Endpoint
	view     View
	log      zerolog.Logger
	greeting string

	crisis *Banner
	notice *Banner

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.Mutex
	transcript []chat.Message
	input      string
	sessionID  string
	state      State
	generation uint64
	inflight   context.CancelFunc
}

type request struct {
	ctx        context.Context
	cancel     context.CancelFunc
	text       string
	sessionID  string
	generation uint64
}

// New 创建空闲会话，渲染问候语并绑定视图回调
func New(endpoint Endpoint, view View, opts ...Option) *Session {
	o := options{
		greeting:       persona.Seed()[0].Greeting,
		scheduler:      RealScheduler{},
		crisisDuration: DefaultCrisisAlertDuration,
		noticeDuration: DefaultNoticeDuration,
		logger:         logger.WithComponent("widget"),
	}
	for _, opt := range opts {
		opt(&o)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		endpoint:   endpoint,
		view:       view,
		log:        o.logger,
		greeting:   o.greeting,
		ctx:        ctx,
		cancel:     cancel,
		transcript: []chat.Message{chat.BotMessage(o.greeting)},
	}
	s.crisis = NewBanner(o.scheduler, o.crisisDuration, view.SetCrisisAlert)
	s.notice = NewBanner(o.scheduler, o.noticeDuration, func(visible bool) {
		if visible {
			view.SetNotice(NoticeText)
			return
		}
		view.SetNotice("")
	})

	view.ReplaceMessages(s.Transcript())
	view.SetCharCount(Stats(""))
	view.SetTyping(false)
	view.SetSendEnabled(false)
	view.Bind(Handlers{
		OnSubmit:      s.handleSubmit,
		OnReset:       s.handleReset,
		OnInputChange: s.SetInput,
	})
	return s
}

// CanSubmit 判断当前是否可以提交 raw
func (s *Session) CanSubmit(raw string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canSubmitLocked(raw)
}

// Submit 发送一条用户消息并阻塞到请求结束。
// 无法接受输入时返回 ErrBusy 或 ErrEmptyInput，聊天记录不变。
func (s *Session) Submit(ctx context.Context, raw string) error {
	req, err := s.begin(ctx, raw)
	if err != nil {
		return err
	}
	s.await(req)
	return nil
}

// Reset 请用户确认后把聊天记录恢复为只有问候语，并在后台通知服务端。
// 返回值表示是否真的重置了。
func (s *Session) Reset(ctx context.Context) bool {
	if !s.view.Confirm(ResetPrompt) {
		return false
	}
	s.resetLocal()

	s.spawn(func() {
		err := s.endpoint.Reset(ctx)
		switch {
		case err == nil:
		case errors.Is(err, context.Canceled):
			s.log.Debug().Err(err).Msg("reset notification cancelled")
		default:
			s.log.Warn().Err(err).Msg("reset notification failed")
			s.view.Alert(ResetFailedText)
		}
	})
	return true
}

// SetInput 记录输入内容并刷新字数统计和发送按钮
func (s *Session) SetInput(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.input = text
	s.view.SetCharCount(Stats(text))
	s.view.SetSendEnabled(s.canSubmitLocked(text))
}

// ReportError 把意外的运行时错误显示为临时通知
func (s *Session) ReportError(err error) {
	s.log.Error().Err(err).Msg("unexpected widget error")
	s.notice.Show()
}

// State 返回当前状态
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SessionID 返回服务端分配的会话ID，没有时为空
func (s *Session) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

// Input 返回当前输入内容
func (s *Session) Input() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.input
}

// Transcript 返回聊天记录的副本
func (s *Session) Transcript() []chat.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transcriptLocked()
}

// CrisisAlertVisible 危机提示是否正在显示
func (s *Session) CrisisAlertVisible() bool {
	return s.crisis.Visible()
}

// Wait 等待视图回调和 Reset 启动的后台任务结束
func (s *Session) Wait() {
	s.wg.Wait()
}

// Close 取消未完成的任务并等待其退出，被取消请求的结果不会渲染。
func (s *Session) Close() {
	s.mu.Lock()
	s.generation++
	if s.inflight != nil {
		s.inflight()
		s.inflight = nil
	}
	s.state = StateIdle
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	s.crisis.Hide()
	s.notice.Hide()
}

func (s *Session) handleSubmit() {
	req, err := s.begin(s.ctx, s.Input())
	if err != nil {
		return
	}
	s.spawn(func() { s.await(req) })
}

func (s *Session) handleReset() {
	s.spawn(func() { s.Reset(s.ctx) })
}

// begin 执行提交的同步部分：校验、追加用户消息、清空输入并进入 AwaitingResponse
func (s *Session) begin(ctx context.Context, raw string) (*request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateIdle {
		return nil, ErrBusy
	}
	text := strings.TrimSpace(raw)
	if text == "" {
		return nil, ErrEmptyInput
	}

	s.appendLocked(chat.UserMessage(text))
	s.input = ""
	s.view.SetInput("")
	s.view.SetCharCount(Stats(""))

	reqCtx, cancel := context.WithCancel(ctx)
	s.state = StateAwaitingResponse
	s.inflight = cancel
	s.view.SetTyping(true)
	s.view.SetSendEnabled(false)

	return &request{
		ctx:        reqCtx,
		cancel:     cancel,
		text:       text,
		sessionID:  s.sessionID,
		generation: s.generation,
	}, nil
}

func (s *Session) await(req *request) {
	defer req.cancel()

	reply, err := s.endpoint.Send(req.ctx, req.text, req.sessionID)
	s.settle(req, reply, err)
}

func (s *Session) settle(req *request, reply Reply, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if req.generation != s.generation {
		s.log.Debug().Err(err).Msg("dropping outcome of a request from before the last reset")
		return
	}
	defer s.finishLocked()

	if err == nil {
		if reply.SessionID != "" {
			s.sessionID = reply.SessionID
		}
		if reply.Crisis {
			s.log.Info().Str("session_id", s.sessionID).Msg("crisis flag raised")
			s.crisis.Show()
		}
		s.appendLocked(chat.BotMessage(reply.Text))
		return
	}

	var appErr *ApplicationError
	if errors.As(err, &appErr) {
		s.log.Warn().Int("status", appErr.Status).Str("error", appErr.Text).Msg("endpoint reported an error")
		text := appErr.Text
		if strings.TrimSpace(text) == "" {
			text = FallbackErrorText
		}
		s.appendLocked(chat.BotMessage(text))
		return
	}

	s.log.Error().Err(err).Msg("chat request failed")
	s.appendLocked(chat.BotMessage(ConnectivityText))
}

// finishLocked 请求结束后无条件回到 Idle
func (s *Session) finishLocked() {
	s.state = StateIdle
	s.inflight = nil
	s.view.SetTyping(false)
	s.view.SetSendEnabled(s.canSubmitLocked(s.input))
}

func (s *Session) resetLocal() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inflight != nil {
		s.inflight()
		s.inflight = nil
	}
	s.generation++
	s.transcript = []chat.Message{chat.BotMessage(s.greeting)}
	s.sessionID = ""
	s.state = StateIdle

	s.crisis.Hide()
	s.view.ReplaceMessages(s.transcriptLocked())
	s.view.SetTyping(false)
	s.view.SetSendEnabled(s.canSubmitLocked(s.input))
}

func (s *Session) appendLocked(msg chat.Message) {
	s.transcript = append(s.transcript, msg)
	s.view.AppendMessage(msg)
}

func (s *Session) transcriptLocked() []chat.Message {
	return append([]chat.Message(nil), s.transcript...)
}

func (s *Session) canSubmitLocked(raw string) bool {
	return s.state == StateIdle && strings.TrimSpace(raw) != ""
}

// spawn 在受跟踪的 goroutine 中运行 fn，panic 会转为错误通知
func (s *Session) spawn(fn func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				s.ReportError(fmt.Errorf("widget: panic: %v", r))
			}
		}()
		fn()
	}()
}
