// 包 notify 提供监控循环的通知动作：
// - Log：逐条写日志（默认）
// - Webhook：以 JSON POST 到外部地址（如社交平台机器人）
package notify

import (
	"context"
	"fmt"

	"ski-run-open-bot/internal/detect"
	"ski-run-open-bot/internal/logx"
	"ski-run-open-bot/internal/model"
)

// Message 生成单条雪道开放的通知文本。
func Message(resort, name string, rec model.RunRecord) string {
	msg := fmt.Sprintf("%s (%s) has opened!", name, rec.Difficulty)
	if rec.Section != "" {
		msg = fmt.Sprintf("%s (%s, %s) has opened!", name, rec.Difficulty, rec.Section)
	}
	if resort != "" {
		msg += " #" + resort
	}
	return msg
}

// Log 把新开放的雪道写入日志。
type Log struct{}

func (Log) Notify(_ context.Context, resort string, opened map[string]model.RunRecord) error {
	for _, name := range detect.Names(opened) {
		logx.Infof("%s", Message(resort, name, opened[name]))
	}
	return nil
}

// Nop 不做任何事，用于仅记录快照的场景。
type Nop struct{}

func (Nop) Notify(context.Context, string, map[string]model.RunRecord) error { return nil }
