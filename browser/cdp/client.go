// Package cdp 基于 WebSocket 的 DevTools 协议客户端，以及用它实现的 browser.Page。
package cdp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/auto-blog/publisher/logutil"
)

// ErrClosed 连接已关闭
var ErrClosed = errors.New("cdp: connection closed")

// ProtocolError 协议层返回的错误
type ProtocolError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data,omitempty"`
}

func (e *ProtocolError) Error() string {
	if e.Data != "" {
		return fmt.Sprintf("cdp error %d: %s (%s)", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("cdp error %d: %s", e.Code, e.Message)
}

type request struct {
	ID     int64  `json:"id"`
	Method string `json:"method"`
	Params any    `json:"params,omitempty"`
}

// message 入站消息：带 id 的是响应，带 method 的是事件
type message struct {
	ID     int64           `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *ProtocolError  `json:"error,omitempty"`
}

type response struct {
	result json.RawMessage
	err    error
}

// EventHandler 事件回调，在读循环中同步调用，不能阻塞
type EventHandler func(params json.RawMessage)

type subscription struct {
	id int64
	fn EventHandler
}

// Client 一条 DevTools WebSocket 连接。每条命令携带递增 id，
// 响应按 id 投递到对应的等待者，无 id 的消息分发给事件订阅者。
type Client struct {
	conn    *websocket.Conn
	writeMu sync.Mutex

	nextID atomic.Int64
	subSeq atomic.Int64

	mu       sync.Mutex
	pending  map[int64]chan response
	handlers map[string][]subscription
	closed   bool
	closeErr error

	done chan struct{}
}

// Dial 连接调试目标的 WebSocket 地址
func Dial(ctx context.Context, wsURL string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", wsURL, err)
	}
	return newClient(conn), nil
}

func newClient(conn *websocket.Conn) *Client {
	c := &Client{
		conn:     conn,
		pending:  make(map[int64]chan response),
		handlers: make(map[string][]subscription),
		done:     make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// Send 发送一条命令并等待对应 id 的响应，out 非 nil 时解码 result
func (c *Client) Send(ctx context.Context, method string, params any, out any) error {
	id := c.nextID.Add(1)
	ch := make(chan response, 1)

	c.mu.Lock()
	if c.closed {
		err := c.closeErr
		c.mu.Unlock()
		return err
	}
	c.pending[id] = ch
	c.mu.Unlock()

	c.writeMu.Lock()
	err := c.conn.WriteJSON(request{ID: id, Method: method, Params: params})
	c.writeMu.Unlock()
	if err != nil {
		c.forget(id)
		return fmt.Errorf("%s: write: %w", method, err)
	}

	select {
	case resp := <-ch:
		if resp.err != nil {
			return fmt.Errorf("%s: %w", method, resp.err)
		}
		if out != nil && len(resp.result) > 0 {
			if err := json.Unmarshal(resp.result, out); err != nil {
				return fmt.Errorf("%s: decode result: %w", method, err)
			}
		}
		return nil
	case <-ctx.Done():
		c.forget(id)
		return fmt.Errorf("%s: %w", method, ctx.Err())
	}
}

// On 订阅事件，返回取消订阅函数
func (c *Client) On(event string, fn EventHandler) func() {
	sid := c.subSeq.Add(1)
	c.mu.Lock()
	c.handlers[event] = append(c.handlers[event], subscription{id: sid, fn: fn})
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		subs := c.handlers[event]
		for i, s := range subs {
			if s.id == sid {
				c.handlers[event] = append(subs[:i:i], subs[i+1:]...)
				break
			}
		}
	}
}

// Done 连接断开后关闭
func (c *Client) Done() <-chan struct{} { return c.done }

// Close 关闭连接，所有等待中的命令以 ErrClosed 返回
func (c *Client) Close() error {
	c.writeMu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	c.writeMu.Unlock()
	err := c.conn.Close()
	<-c.done
	return err
}

func (c *Client) forget(id int64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Client) readLoop() {
	defer close(c.done)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.shutdown(err)
			return
		}

		var msg message
		if err := json.Unmarshal(data, &msg); err != nil {
			logutil.Debugf("cdp: 丢弃无法解析的消息: %v", err)
			continue
		}

		if msg.ID != 0 {
			c.mu.Lock()
			ch, ok := c.pending[msg.ID]
			delete(c.pending, msg.ID)
			c.mu.Unlock()
			if !ok {
				continue
			}
			if msg.Error != nil {
				ch <- response{err: msg.Error}
			} else {
				ch <- response{result: msg.Result}
			}
			continue
		}

		if msg.Method != "" {
			c.dispatch(msg.Method, msg.Params)
		}
	}
}

func (c *Client) dispatch(method string, params json.RawMessage) {
	c.mu.Lock()
	subs := append([]subscription(nil), c.handlers[method]...)
	c.mu.Unlock()
	for _, s := range subs {
		s.fn(params)
	}
}

func (c *Client) shutdown(cause error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.closeErr = ErrClosed
	if cause != nil && !websocket.IsCloseError(cause, websocket.CloseNormalClosure) {
		c.closeErr = fmt.Errorf("%w: %v", ErrClosed, cause)
	}
	for id, ch := range c.pending {
		ch <- response{err: c.closeErr}
		delete(c.pending, id)
	}
}
