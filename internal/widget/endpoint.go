package widget

import (
	"context"
	"errors"
)

var (
	// ErrEmptyInput 去掉空白后输入为空
	ErrEmptyInput = errors.New("widget: empty input")
	// ErrBusy 已有请求在进行中
	ErrBusy = errors.New("widget: awaiting response")
	// ErrTransport 无法连接对话服务或无法解析其响应
	ErrTransport = errors.New("widget: conversation endpoint unreachable")
)

// Reply 对话服务的成功响应
type Reply struct {
	Text      string
	SessionID string
	Crisis    bool
}

// ApplicationError 对话服务在可解析的响应体中返回的错误
type ApplicationError struct {
	Status int
	Text   string
}

func (e *ApplicationError) Error() string {
	if e.Text == "" {
		return "widget: endpoint reported an error"
	}
	return "widget: endpoint reported an error: " + e.Text
}

// Endpoint 会话所使用的远端对话服务
type Endpoint interface {
	// Send 发送一条用户消息，服务端分配ID之前 sessionID 为空
	Send(ctx context.Context, message, sessionID string) (Reply, error)
	// Reset 通知服务端清除会话，忽略响应体
	Reset(ctx context.Context) error
}
