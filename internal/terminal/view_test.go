package terminal

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/careline/backend/internal/widget"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type echoEndpoint struct {
	mu     sync.Mutex
	sent   []string
	resets int
}

func (e *echoEndpoint) Send(_ context.Context, message, _ string) (widget.Reply, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sent = append(e.sent, message)
	return widget.Reply{
		Text:      "You said: " + message,
		SessionID: "sess-1",
		Crisis:    strings.Contains(message, "hurt myself"),
	}, nil
}

func (e *echoEndpoint) Reset(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resets++
	return nil
}

func (e *echoEndpoint) snapshot() ([]string, int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.sent...), e.resets
}

func runScript(t *testing.T, script string) (string, *echoEndpoint, *widget.Session) {
	t.Helper()

	out := &syncBuffer{}
	view, err := New(out, Options{Plain: true})
	require.NoError(t, err)

	ep := &echoEndpoint{}
	sess := widget.New(ep, view, widget.WithGreeting("Hi, how are you feeling?"))
	t.Cleanup(sess.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, view.Run(ctx, strings.NewReader(script)))
	sess.Wait()

	return out.String(), ep, sess
}

func TestRunRendersGreetingAndReplies(t *testing.T) {
	out, ep, sess := runScript(t, "hello there\nsecond\n")

	sent, _ := ep.snapshot()
	assert.Equal(t, []string{"hello there", "second"}, sent)

	assert.Contains(t, out, "Careline: Hi, how are you feeling?")
	assert.Contains(t, out, "You: hello there")
	assert.Contains(t, out, "Careline is typing...")
	assert.Contains(t, out, "Careline: You said: hello there")
	assert.Contains(t, out, "Careline: You said: second")
	assert.Less(t, strings.Index(out, "You said: hello there"), strings.Index(out, "You: second"))

	assert.Equal(t, "sess-1", sess.SessionID())
	assert.Len(t, sess.Transcript(), 5)
}

func TestRunSkipsBlankLinesAndStopsOnQuit(t *testing.T) {
	out, ep, _ := runScript(t, "   \n/quit\nnever sent\n")

	sent, _ := ep.snapshot()
	assert.Empty(t, sent)
	assert.NotContains(t, out, "never sent")
}

func TestRunResetConfirmed(t *testing.T) {
	out, ep, sess := runScript(t, "hello\n/reset\ny\n")

	_, resets := ep.snapshot()
	assert.Equal(t, 1, resets)
	assert.Contains(t, out, widget.ResetPrompt+" [y/N]")
	assert.Len(t, sess.Transcript(), 1)
	assert.Empty(t, sess.SessionID())
}

func TestRunResetDeclined(t *testing.T) {
	out, ep, sess := runScript(t, "hello\n/reset\nno\n")

	_, resets := ep.snapshot()
	assert.Zero(t, resets)
	assert.Contains(t, out, widget.ResetPrompt)
	assert.Len(t, sess.Transcript(), 3)
}

func TestRunResetAnsweredByEOF(t *testing.T) {
	_, ep, sess := runScript(t, "/reset\n")

	_, resets := ep.snapshot()
	assert.Zero(t, resets)
	assert.Len(t, sess.Transcript(), 1)
}

func TestCrisisAlertPrinted(t *testing.T) {
	out, _, sess := runScript(t, "sometimes I want to hurt myself\n")

	assert.Contains(t, out, "call or text 988")
	assert.True(t, sess.CrisisAlertVisible())
}

func TestCharCountWarnsOncePerLevel(t *testing.T) {
	out := &syncBuffer{}
	view, err := New(out, Options{Plain: true})
	require.NoError(t, err)

	view.SetCharCount(widget.Stats(strings.Repeat("a", 850)))
	view.SetCharCount(widget.Stats(strings.Repeat("a", 851)))
	view.SetCharCount(widget.Stats(strings.Repeat("a", 950)))

	assert.Equal(t, 1, strings.Count(out.String(), "warning"))
	assert.Contains(t, out.String(), "(950 characters, limit)")
}

func TestAlertAndNotice(t *testing.T) {
	out := &syncBuffer{}
	view, err := New(out, Options{Plain: true, BotName: "Sam"})
	require.NoError(t, err)

	view.Alert(widget.ResetFailedText)
	view.SetNotice("")
	view.SetNotice(widget.NoticeText)

	assert.Contains(t, out.String(), "! "+widget.ResetFailedText)
	assert.Contains(t, out.String(), widget.NoticeText)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	view, err := New(&syncBuffer{}, Options{Plain: true})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	blocking, w := io.Pipe()
	defer w.Close()
	assert.ErrorIs(t, view.Run(ctx, blocking), context.Canceled)
}
