package publish

import (
	"context"

	"github.com/auto-blog/publisher/config"
	"github.com/auto-blog/publisher/logutil"
	"github.com/auto-blog/publisher/session"
)

// Login 只打开编辑页并等待人工登录，用于在无人值守运行之前准备 profile
func (o *Orchestrator) Login(ctx context.Context, profileDir string) error {
	o.state = StateInit
	r := &run{opts: config.NewPublishOptions(config.PublishOptions{
		ProfileDir:    profileDir,
		RetryAttempts: o.Config.Publish.RetryAttempts,
	})}
	r.policy = o.policy(r.opts.RetryAttempts)

	lease, err := session.Acquire(profileDir, o.ClearStaleLock)
	if err != nil {
		return err
	}
	r.lease = lease
	defer o.closeSession(r)

	if err := o.open(ctx, r); err != nil {
		o.enter(StateFailed)
		return err
	}
	o.saveState(r)
	logutil.Infof("[%s] ✅ 已登录，会话保存在 %s", o.Platform.Name(), profileDir)
	o.enter(StateDone)
	return nil
}
