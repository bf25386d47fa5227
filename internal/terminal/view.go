// Package terminal 在按行交互的终端中渲染挂件会话
package terminal

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/zhouzirui/careline/backend/internal/model/chat"
	"github.com/zhouzirui/careline/backend/internal/widget"
)

const helpText = "Type a message and press Enter. /reset starts over, /quit leaves."

// Options 配置View
type Options struct {
	BotName string
	// Plain 关闭 markdown 渲染和边框
	Plain bool
	Width int
}

type styles struct {
	user   lipgloss.Style
	bot    lipgloss.Style
	typing lipgloss.Style
	crisis lipgloss.Style
	notice lipgloss.Style
	alert  lipgloss.Style
	faint  lipgloss.Style
}

func newStyles(r *lipgloss.Renderer, plain bool) styles {
	s := styles{
		user:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("63")),
		bot:    r.NewStyle().Bold(true).Foreground(lipgloss.Color("205")),
		typing: r.NewStyle().Faint(true).Italic(true),
		crisis: r.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFDF5")).Background(lipgloss.Color("#C0392B")).Padding(0, 1),
		notice: r.NewStyle().Foreground(lipgloss.Color("220")),
		alert:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),
		faint:  r.NewStyle().Faint(true),
	}
	if !plain {
		s.crisis = s.crisis.Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#C0392B"))
	}
	return s
}

// View 基于 io.Writer 实现 widget.View，并用输入行驱动会话
type View struct {
	out      io.Writer
	botName  string
	markdown *glamour.TermRenderer
	styles   styles

	writeMu sync.Mutex

	mu       sync.Mutex
	handlers widget.Handlers
	idle     chan struct{} // 等待回复期间非nil
	replaced chan struct{}
	level    widget.Level

	asks     chan struct{}
	answers  chan bool
	done     chan struct{}
	doneOnce sync.Once
}

var _ widget.View = (*View)(nil)

// New 创建写入 out 的视图
func New(out io.Writer, opts Options) (*View, error) {
	if opts.BotName == "" {
		opts.BotName = "Careline"
	}
	if opts.Width <= 0 {
		opts.Width = 80
	}

	v := &View{
		out:     out,
		botName: opts.BotName,
		styles:  newStyles(lipgloss.NewRenderer(out), opts.Plain),
		level:   widget.LevelNormal,
		asks:    make(chan struct{}),
		answers: make(chan bool),
		done:    make(chan struct{}),
	}

	if !opts.Plain {
		renderer, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(opts.Width),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create markdown renderer: %w", err)
		}
		v.markdown = renderer
	}
	return v, nil
}

func (v *View) Bind(h widget.Handlers) {
	v.mu.Lock()
	v.handlers = h
	v.mu.Unlock()
}

func (v *View) AppendMessage(msg chat.Message) {
	v.printf("%s\n", v.renderMessage(msg))
}

func (v *View) ReplaceMessages(msgs []chat.Message) {
	var b strings.Builder
	b.WriteString(v.styles.faint.Render(strings.Repeat("─", 24)))
	b.WriteString("\n")
	for _, msg := range msgs {
		b.WriteString(v.renderMessage(msg))
		b.WriteString("\n")
	}
	v.printf("%s", b.String())

	v.mu.Lock()
	if v.replaced != nil {
		close(v.replaced)
		v.replaced = nil
	}
	v.mu.Unlock()
}

// SetInput 无操作，正在输入的行由终端管理
func (v *View) SetInput(string) {}

func (v *View) SetCharCount(stats widget.InputStats) {
	v.mu.Lock()
	changed := stats.Level != v.level
	v.level = stats.Level
	v.mu.Unlock()

	if !changed || stats.Level == widget.LevelNormal {
		return
	}
	v.printf("%s\n", v.styles.faint.Render(fmt.Sprintf("(%d characters, %s)", stats.Count, stats.Level)))
}

func (v *View) SetTyping(visible bool) {
	v.mu.Lock()
	switch {
	case visible && v.idle == nil:
		v.idle = make(chan struct{})
	case !visible && v.idle != nil:
		close(v.idle)
		v.idle = nil
	}
	v.mu.Unlock()

	if visible {
		v.printf("%s\n", v.styles.typing.Render(v.botName+" is typing..."))
	}
}

// SetSendEnabled 无操作，Run 会等回复到达后再读下一行
func (v *View) SetSendEnabled(bool) {}

func (v *View) SetCrisisAlert(visible bool) {
	if !visible {
		return
	}
	v.printf("%s\n", v.styles.crisis.Render("If you are in crisis, call or text 988, or text HOME to 741741. In an emergency call 911."))
}

func (v *View) SetNotice(text string) {
	if text == "" {
		return
	}
	v.printf("%s\n", v.styles.notice.Render(text))
}

func (v *View) Alert(text string) {
	v.printf("%s\n", v.styles.alert.Render("! "+text))
}

// Confirm 打印提示并把下一行输入作为回答
func (v *View) Confirm(prompt string) bool {
	v.printf("%s [y/N] ", prompt)

	select {
	case v.asks <- struct{}{}:
	case <-v.done:
		return false
	}
	select {
	case ok := <-v.answers:
		return ok
	case <-v.done:
		return false
	}
}

// Run 从 in 逐行读取，直到 EOF、"/quit" 或 ctx 结束
func (v *View) Run(ctx context.Context, in io.Reader) error {
	defer v.doneOnce.Do(func() { close(v.done) })

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-v.done:
				return
			}
		}
	}()

	v.printf("%s\n", v.styles.faint.Render(helpText))
	for {
		line, ok, err := next(ctx, lines)
		if !ok {
			return err
		}

		hooks := v.hooks()
		switch strings.TrimSpace(line) {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/help":
			v.printf("%s\n", v.styles.faint.Render(helpText))
		case "/reset":
			hooks.OnReset()
			if err := v.confirm(ctx, lines); err != nil {
				return err
			}
		default:
			hooks.OnInputChange(line)
			hooks.OnSubmit()
			v.waitIdle(ctx)
		}
	}
}

func (v *View) confirm(ctx context.Context, lines <-chan string) error {
	select {
	case <-v.asks:
	case <-ctx.Done():
		return ctx.Err()
	}

	line, ok, err := next(ctx, lines)
	if !ok {
		return err
	}
	yes := isYes(line)

	var replaced chan struct{}
	if yes {
		replaced = make(chan struct{})
		v.mu.Lock()
		v.replaced = replaced
		v.mu.Unlock()
	}

	select {
	case v.answers <- yes:
	case <-ctx.Done():
		return ctx.Err()
	}
	if replaced != nil {
		select {
		case <-replaced:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (v *View) waitIdle(ctx context.Context) {
	v.mu.Lock()
	idle := v.idle
	v.mu.Unlock()
	if idle == nil {
		return
	}
	select {
	case <-idle:
	case <-ctx.Done():
	}
}

func (v *View) hooks() widget.Handlers {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.handlers
}

func (v *View) renderMessage(msg chat.Message) string {
	if msg.Sender == chat.SenderUser {
		return v.styles.user.Render("You:") + " " + msg.Text
	}

	label := v.styles.bot.Render(v.botName + ":")
	if v.markdown == nil {
		return label + " " + msg.Text
	}
	rendered, err := v.markdown.Render(msg.Text)
	if err != nil {
		return label + " " + msg.Text
	}
	return label + "\n" + strings.TrimRight(rendered, "\n")
}

func (v *View) printf(format string, args ...any) {
	v.writeMu.Lock()
	defer v.writeMu.Unlock()
	_, _ = fmt.Fprintf(v.out, format, args...)
}

func next(ctx context.Context, lines <-chan string) (string, bool, error) {
	select {
	case line, ok := <-lines:
		return line, ok, nil
	case <-ctx.Done():
		return "", false, ctx.Err()
	}
}

func isYes(line string) bool {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}
