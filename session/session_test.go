package session

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// deadPID 一个几乎不可能存活的 pid
const deadPID = 999999

func TestDefaultProfileDirIsDeterministic(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)

	a := s.DefaultProfileDir("xiaohongshu")
	b := s.DefaultProfileDir("xiaohongshu")
	assert.Equal(t, a, b)
	assert.Equal(t, filepath.Join(s.Root(), "xiaohongshu"), a)
	assert.NotEqual(t, a, s.DefaultProfileDir("x"))

	// 路径本身不应产生副作用
	_, err = os.Stat(a)
	assert.True(t, os.IsNotExist(err))
}

func TestDefaultProfileDirSanitizesTag(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(s.Root(), "x-twitter"), s.DefaultProfileDir(" X/Twitter "))
	assert.Equal(t, filepath.Join(s.Root(), "default"), s.DefaultProfileDir("../"))
}

func TestDefaultRootUnderHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)

	s, err := NewStore("")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".auto-blog", "profiles"), s.Root())
}

func TestResolvePrefersExplicit(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)

	explicit := filepath.Join(t.TempDir(), "mine")
	got, err := s.Resolve(explicit, "zhihu")
	require.NoError(t, err)
	assert.Equal(t, explicit, got)

	got, err = s.Resolve("", "zhihu")
	require.NoError(t, err)
	assert.Equal(t, s.DefaultProfileDir("zhihu"), got)
}

func TestAcquireAndRelease(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "x")
	lease, err := Acquire(dir, false)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, LeaseFile))
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), string(data))

	require.NoError(t, lease.Release())
	_, err = os.Stat(filepath.Join(dir, LeaseFile))
	assert.True(t, os.IsNotExist(err))
}

func TestAcquireIgnoresStaleLease(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, LeaseFile), []byte(strconv.Itoa(deadPID)), 0o600))

	lease, err := Acquire(dir, false)
	require.NoError(t, err)
	defer lease.Release()
}

func TestAcquireRefusesLiveSingletonLock(t *testing.T) {
	dir := t.TempDir()
	host, err := os.Hostname()
	require.NoError(t, err)
	// 当前测试进程本身是存活的
	require.NoError(t, os.Symlink(host+"-"+strconv.Itoa(os.Getpid()), filepath.Join(dir, "SingletonLock")))

	_, err = Acquire(dir, true)
	var inUse ProfileInUseError
	require.ErrorAs(t, err, &inUse)
	assert.Equal(t, os.Getpid(), inUse.PID)
	assert.NoFileExists(t, filepath.Join(dir, LeaseFile))
}

func TestAcquireClearsStaleSingletonLock(t *testing.T) {
	dir := t.TempDir()
	host, err := os.Hostname()
	require.NoError(t, err)
	require.NoError(t, os.Symlink(host+"-"+strconv.Itoa(deadPID), filepath.Join(dir, "SingletonLock")))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "SingletonCookie"), nil, 0o600))

	lease, err := Acquire(dir, true)
	require.NoError(t, err)
	defer lease.Release()

	_, _, ok := ReadSingletonLock(dir)
	assert.False(t, ok)
	_, err = os.Stat(filepath.Join(dir, "SingletonCookie"))
	assert.True(t, os.IsNotExist(err))
}

func TestAcquireKeepsStaleLockWithoutFlag(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Symlink("otherhost-"+strconv.Itoa(deadPID), filepath.Join(dir, "SingletonLock")))

	lease, err := Acquire(dir, false)
	require.NoError(t, err)
	defer lease.Release()

	host, pid, ok := ReadSingletonLock(dir)
	require.True(t, ok)
	assert.Equal(t, "otherhost", host)
	assert.Equal(t, deadPID, pid)
}

func TestReadSingletonLockParsesHyphenatedHost(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Symlink("build-box-01-4242", filepath.Join(dir, "SingletonLock")))

	host, pid, ok := ReadSingletonLock(dir)
	require.True(t, ok)
	assert.Equal(t, "build-box-01", host)
	assert.Equal(t, 4242, pid)
}

func TestAcquireRefusesLiveLease(t *testing.T) {
	dir := t.TempDir()
	// 父进程在测试期间一直存活
	require.NoError(t, os.WriteFile(filepath.Join(dir, LeaseFile), []byte(strconv.Itoa(os.Getppid())), 0o600))

	_, err := Acquire(dir, true)
	var inUse ProfileInUseError
	require.ErrorAs(t, err, &inUse)
	assert.Equal(t, os.Getppid(), inUse.PID)

	data, err := os.ReadFile(filepath.Join(dir, LeaseFile))
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getppid()), string(data))
}

func TestAcquireIsExclusive(t *testing.T) {
	dir := t.TempDir()
	const n = 8

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		leases []*Lease
		busy   int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lease, err := Acquire(dir, false)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				leases = append(leases, lease)
				return
			}
			if errors.As(err, new(ProfileInUseError)) {
				busy++
			}
		}()
	}
	wg.Wait()

	require.Len(t, leases, 1)
	assert.Equal(t, n-1, busy)
	require.NoError(t, leases[0].Release())

	lease, err := Acquire(dir, false)
	require.NoError(t, err)
	require.NoError(t, lease.Release())
}
