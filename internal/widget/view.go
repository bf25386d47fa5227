package widget

import (
	"unicode/utf8"

	"github.com/zhouzirui/careline/backend/internal/model/chat"
)

// Handlers 视图在用户操作时调用的回调
type Handlers struct {
	OnSubmit      func()
	OnReset       func()
	OnInputChange func(text string)
}

// View Session 渲染的展示层。
//
// 横幅计时器在独立的 goroutine 中触发，实现必须并发安全。
// Confirm 会阻塞到用户作答，不能在视图向会话投递事件的过程中调用。
type View interface {
	Bind(h Handlers)
	AppendMessage(msg chat.Message)
	ReplaceMessages(msgs []chat.Message)
	SetInput(text string)
	SetCharCount(stats InputStats)
	SetTyping(visible bool)
	SetSendEnabled(enabled bool)
	SetCrisisAlert(visible bool)
	// SetNotice 显示临时错误通知，空文本表示隐藏
	SetNotice(text string)
	Confirm(prompt string) bool
	Alert(text string)
}

// Level 输入长度接近上限的程度
type Level string

const (
	LevelNormal  Level = "normal"
	LevelWarning Level = "warning"
	LevelLimit   Level = "limit"
)

const (
	warningThreshold = 800
	limitThreshold   = 900
)

// InputStats 字数统计所需的输入信息
type InputStats struct {
	Count int   `json:"count"`
	Level Level `json:"level"`
}

// Stats 统计 text 的字数
func Stats(text string) InputStats {
	n := utf8.RuneCountInString(text)
	switch {
	case n > limitThreshold:
		return InputStats{Count: n, Level: LevelLimit}
	case n > warningThreshold:
		return InputStats{Count: n, Level: LevelWarning}
	default:
		return InputStats{Count: n, Level: LevelNormal}
	}
}
