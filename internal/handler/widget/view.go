package widget

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/careline/backend/internal/model/chat"
	widgetcore "github.com/zhouzirui/careline/backend/internal/widget"
)

const writeWait = 10 * time.Second

type renderedMessage struct {
	Sender chat.Sender `json:"sender"`
	Text   string      `json:"text"`
	HTML   string      `json:"html"`
}

func render(msg chat.Message) renderedMessage {
	return renderedMessage{Sender: msg.Sender, Text: msg.Text, HTML: widgetcore.Format(msg.Text)}
}

type outboundFrame struct {
	Type     string                 `json:"type"`
	Message  *renderedMessage       `json:"message,omitempty"`
	Messages []renderedMessage      `json:"messages,omitempty"`
	Text     *string                `json:"text,omitempty"`
	Stats    *widgetcore.InputStats `json:"stats,omitempty"`
	Visible  *bool                  `json:"visible,omitempty"`
	Enabled  *bool                  `json:"enabled,omitempty"`
}

// connView 在一条websocket连接上以JSON帧渲染挂件会话
type connView struct {
	conn           *websocket.Conn
	done           <-chan struct{}
	confirmTimeout time.Duration
	log            zerolog.Logger

	writeMu sync.Mutex

	mu       sync.Mutex
	handlers widgetcore.Handlers
	pending  chan bool
}

var _ widgetcore.View = (*connView)(nil)

func newConnView(conn *websocket.Conn, done <-chan struct{}, confirmTimeout time.Duration, log zerolog.Logger) *connView {
	return &connView{conn: conn, done: done, confirmTimeout: confirmTimeout, log: log}
}

func (v *connView) Bind(h widgetcore.Handlers) {
	v.mu.Lock()
	v.handlers = h
	v.mu.Unlock()
}

func (v *connView) hooks() widgetcore.Handlers {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.handlers
}

func (v *connView) AppendMessage(msg chat.Message) {
	m := render(msg)
	v.send(outboundFrame{Type: "message", Message: &m})
}

func (v *connView) ReplaceMessages(msgs []chat.Message) {
	rendered := make([]renderedMessage, len(msgs))
	for i, msg := range msgs {
		rendered[i] = render(msg)
	}
	v.send(outboundFrame{Type: "messages", Messages: rendered})
}

func (v *connView) SetInput(text string) {
	v.send(outboundFrame{Type: "input", Text: &text})
}

func (v *connView) SetCharCount(stats widgetcore.InputStats) {
	v.send(outboundFrame{Type: "char_count", Stats: &stats})
}

func (v *connView) SetTyping(visible bool) {
	v.send(outboundFrame{Type: "typing", Visible: &visible})
}

func (v *connView) SetSendEnabled(enabled bool) {
	v.send(outboundFrame{Type: "send_enabled", Enabled: &enabled})
}

func (v *connView) SetCrisisAlert(visible bool) {
	v.send(outboundFrame{Type: "crisis", Visible: &visible})
}

func (v *connView) SetNotice(text string) {
	visible := text != ""
	v.send(outboundFrame{Type: "notice", Text: &text, Visible: &visible})
}

func (v *connView) Alert(text string) {
	v.send(outboundFrame{Type: "alert", Text: &text})
}

// Confirm 询问页面并等待回答，超时或连接关闭视为拒绝
func (v *connView) Confirm(prompt string) bool {
	answer := make(chan bool, 1)
	v.mu.Lock()
	v.pending = answer
	v.mu.Unlock()
	defer func() {
		v.mu.Lock()
		if v.pending == answer {
			v.pending = nil
		}
		v.mu.Unlock()
	}()

	v.send(outboundFrame{Type: "confirm", Text: &prompt})

	timer := time.NewTimer(v.confirmTimeout)
	defer timer.Stop()

	select {
	case ok := <-answer:
		return ok
	case <-timer.C:
		v.log.Debug().Msg("confirm timed out")
		return false
	case <-v.done:
		return false
	}
}

// answer 把页面的回答交给挂起的 Confirm，多余的回答直接丢弃
func (v *connView) answer(ok bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.pending == nil {
		return
	}
	select {
	case v.pending <- ok:
	default:
	}
}

func (v *connView) ready() {
	v.send(outboundFrame{Type: "ready"})
}

func (v *connView) send(frame outboundFrame) {
	v.writeMu.Lock()
	defer v.writeMu.Unlock()

	_ = v.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := v.conn.WriteJSON(frame); err != nil {
		v.log.Debug().Err(err).Str("frame", frame.Type).Msg("write failed")
	}
}
