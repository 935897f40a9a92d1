// Package session 管理各平台的持久化浏览器 profile 目录。
package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/auto-blog/publisher/logutil"
)

// LeaseFile 本工具在 profile 目录中写入的占用标记
const LeaseFile = ".publisher.lock"

// singletonFiles Chrome 的单实例锁文件
var singletonFiles = []string{"SingletonLock", "SingletonSocket", "SingletonCookie"}

// Store profile 根目录
type Store struct {
	root string
}

// DefaultRoot 默认根目录 ~/.auto-blog/profiles
func DefaultRoot() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".auto-blog", "profiles"), nil
}

// NewStore 创建 Store，root 为空时使用 DefaultRoot
func NewStore(root string) (*Store, error) {
	if root == "" {
		var err error
		if root, err = DefaultRoot(); err != nil {
			return nil, err
		}
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	return &Store{root: abs}, nil
}

// Root 根目录
func (s *Store) Root() string { return s.root }

var unsafeTag = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// DefaultProfileDir 平台对应的 profile 目录，同样的输入总是得到同样的路径
func (s *Store) DefaultProfileDir(platformTag string) string {
	tag := unsafeTag.ReplaceAllString(strings.ToLower(strings.TrimSpace(platformTag)), "-")
	tag = strings.Trim(tag, "-.")
	if tag == "" {
		tag = "default"
	}
	return filepath.Join(s.root, tag)
}

// Resolve 显式目录优先，否则使用平台默认目录
func (s *Store) Resolve(explicit, platformTag string) (string, error) {
	if explicit != "" {
		return filepath.Abs(explicit)
	}
	return s.DefaultProfileDir(platformTag), nil
}

// ProfileInUseError profile 正被另一个进程使用
type ProfileInUseError struct {
	Dir  string
	PID  int
	Host string
}

func (e ProfileInUseError) Error() string {
	return fmt.Sprintf("profile %s is in use by pid %d on %s; close that browser or use --profile", e.Dir, e.PID, e.Host)
}

// Lease 一次运行对 profile 目录的独占
type Lease struct {
	Dir  string
	path string
}

// Release 释放占用标记
func (l *Lease) Release() error {
	if l == nil {
		return nil
	}
	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Acquire 创建目录并占用它。
// 另一个存活的进程持有本工具的占用标记或 Chrome 单实例锁时返回 ProfileInUseError；
// 锁已失效时，clearStale 为真会删掉残留的 Singleton* 文件。
func Acquire(dir string, clearStale bool) (*Lease, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create profile dir: %w", err)
	}
	host, _ := os.Hostname()

	leasePath := filepath.Join(dir, LeaseFile)
	if err := takeLease(dir, leasePath, host); err != nil {
		return nil, err
	}
	lease := &Lease{Dir: dir, path: leasePath}

	if lockHost, pid, ok := ReadSingletonLock(dir); ok {
		switch {
		case lockHost == host && processAlive(pid):
			_ = lease.Release()
			return nil, ProfileInUseError{Dir: dir, PID: pid, Host: lockHost}
		case clearStale:
			if err := ClearStaleLock(dir); err != nil {
				_ = lease.Release()
				return nil, err
			}
			logutil.Infof("已清理失效的浏览器锁 %s", dir)
		default:
			logutil.Warnf("profile %s 留有失效的浏览器锁 (pid %d@%s)，如启动失败请加 --clear-stale-lock", dir, pid, lockHost)
		}
	}
	return lease, nil
}

// takeLease 原子地创建占用标记。已存在且持有者存活时返回 ProfileInUseError，
// 持有者已退出时删掉旧标记再试一次。
func takeLease(dir, path, host string) error {
	for i := 0; i < 2; i++ {
		err := linkLease(path)
		if err == nil {
			return nil
		}
		if !errors.Is(err, os.ErrExist) {
			return fmt.Errorf("write profile lease: %w", err)
		}
		if pid, ok := readLease(path); ok && processAlive(pid) {
			return ProfileInUseError{Dir: dir, PID: pid, Host: host}
		}
		logutil.Debugf("删除失效的占用标记 %s", path)
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove stale lease: %w", err)
		}
	}
	pid, _ := readLease(path)
	return ProfileInUseError{Dir: dir, PID: pid, Host: host}
}

// linkLease 先把 pid 写进临时文件，再硬链接到目标路径。
// 链接在目标已存在时失败，其他进程读到的标记总是完整的。
func linkLease(path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), LeaseFile+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.WriteString(strconv.Itoa(os.Getpid())); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Link(tmp.Name(), path)
}

// ReadSingletonLock 解析 Chrome 的 SingletonLock（指向 "host-pid" 的符号链接）
func ReadSingletonLock(dir string) (host string, pid int, ok bool) {
	target, err := os.Readlink(filepath.Join(dir, "SingletonLock"))
	if err != nil {
		return "", 0, false
	}
	i := strings.LastIndex(target, "-")
	if i <= 0 {
		return "", 0, false
	}
	pid, err = strconv.Atoi(target[i+1:])
	if err != nil {
		return "", 0, false
	}
	return target[:i], pid, true
}

// ClearStaleLock 删除 Chrome 残留的单实例锁文件
func ClearStaleLock(dir string) error {
	var errs []error
	for _, name := range singletonFiles {
		if err := os.Remove(filepath.Join(dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func readLease(path string) (int, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, true
}
