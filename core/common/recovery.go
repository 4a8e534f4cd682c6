package common

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/gogf/gf/v2/frame/g"
)

// RecoverPanic 在 defer 中调用，记录 panic 与完整堆栈
func RecoverPanic(ctx context.Context, taskName string) {
	if r := recover(); r != nil {
		logPanic(ctx, taskName, r)
	}
}

func logPanic(ctx context.Context, taskName string, r any) {
	g.Log().Criticalf(ctx, "[PANIC RECOVERED] Task: %s\nError: %v\nStack Trace:\n%s", taskName, r, debug.Stack())
}

// SafeGo 启动后台任务，panic 只记录日志不影响进程。
// 字段分析与缓存失效监听都通过它启动。
func SafeGo(ctx context.Context, taskName string, fn func()) {
	go func() {
		defer RecoverPanic(ctx, taskName)
		fn()
	}()
}

// SafeRun 同步执行 fn，panic 转换为错误返回
func SafeRun(ctx context.Context, taskName string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logPanic(ctx, taskName, r)
			err = fmt.Errorf("panic in task %s: %v", taskName, r)
		}
	}()
	return fn()
}
