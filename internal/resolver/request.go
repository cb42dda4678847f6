package resolver

import (
	"context"
	"fmt"
	"sync"
)

// RequestKind 区分发送给 fetch pool 的请求类型。
type RequestKind int

const (
	RequestPackage RequestKind = iota
	RequestDist
	RequestInstalled
)

func (k RequestKind) String() string {
	switch k {
	case RequestPackage:
		return "package"
	case RequestDist:
		return "dist"
	case RequestInstalled:
		return "installed"
	default:
		return fmt.Sprintf("RequestKind(%d)", int(k))
	}
}

// Request 为一次获取请求：Package 拉取版本表，Dist/Installed 拉取分发包元数据。
type Request struct {
	Kind    RequestKind
	Package string
	Dist    *Dist
}

func (r Request) String() string {
	if r.Dist != nil {
		return r.Kind.String() + " " + r.Dist.PackageID()
	}
	return r.Kind.String() + " " + r.Package
}

// RequestSender 为预取器发送请求的最小接口。
type RequestSender interface {
	Send(ctx context.Context, req Request) error
}

// RequestSink 是解析器与 fetch pool 之间的有界通道。Close 只关闭 done，
// 不关闭数据通道，因此并发 Send 不会 panic。
//
// Close 会等待进行中的 Send 结束后才关闭 done：done 关闭之后通道里不会再出现新请求，
// 消费方在 Done 之后排空一次即可看到全部已入队的请求。通道已满且无人消费时，
// Send 只能靠 ctx 取消返回，Close 也会随之等待。
type RequestSink struct {
	ch   chan Request
	done chan struct{}
	once sync.Once

	mu     sync.RWMutex
	closed bool
}

// NewRequestSink 创建容量为 buffer 的通道。
func NewRequestSink(buffer int) *RequestSink {
	if buffer < 0 {
		buffer = 0
	}
	return &RequestSink{
		ch:   make(chan Request, buffer),
		done: make(chan struct{}),
	}
}

// Send 投递请求；Close 之后返回 ErrSinkClosed，ctx 取消时返回 ctx.Err()。
func (s *RequestSink) Send(ctx context.Context, req Request) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrSinkClosed
	}
	select {
	case s.ch <- req:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Requests 返回供 worker 读取的通道。
func (s *RequestSink) Requests() <-chan Request { return s.ch }

// Done 在 Close 后关闭。
func (s *RequestSink) Done() <-chan struct{} { return s.done }

// Close 通知发送方与接收方停止，可重复调用。
func (s *RequestSink) Close() {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		close(s.done)
	})
}
