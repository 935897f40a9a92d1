package platform

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Manager 平台管理器
type Manager struct {
	mu        sync.RWMutex
	platforms map[string]Platform
}

// NewManager 创建平台管理器
func NewManager(ps ...Platform) *Manager {
	m := &Manager{platforms: make(map[string]Platform)}
	for _, p := range ps {
		m.Register(p)
	}
	return m
}

// Register 注册平台，同名覆盖
func (m *Manager) Register(p Platform) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.platforms[strings.ToLower(p.Tag())] = p
}

// Get 按 tag 查找平台
func (m *Manager) Get(tag string) (Platform, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.platforms[strings.ToLower(tag)]
	if !ok {
		return nil, fmt.Errorf("unknown platform %q (available: %s)", tag, strings.Join(m.tagsLocked(), ", "))
	}
	return p, nil
}

// List 按 tag 排序返回所有平台
func (m *Manager) List() []Platform {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Platform, 0, len(m.platforms))
	for _, tag := range m.tagsLocked() {
		out = append(out, m.platforms[tag])
	}
	return out
}

func (m *Manager) tagsLocked() []string {
	tags := make([]string, 0, len(m.platforms))
	for t := range m.platforms {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags
}
