package browser

import (
	"errors"
	"net"
)

// AllocatePort 在回环地址上绑定 0 端口，取回系统分配的空闲端口后立即释放。
// 释放到浏览器真正监听之间存在竞争窗口，由启动阶段的失败处理兜底。
func AllocatePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer l.Close()

	addr, ok := l.Addr().(*net.TCPAddr)
	if !ok {
		return 0, errors.New("unexpected listener address type")
	}
	return addr.Port, nil
}
