// 包 detect 比较前后两份雪道快照，找出新开放且难度达标的雪道。
package detect

import (
	"sort"

	"ski-run-open-bot/internal/model"
)

// DefaultMinDifficulty 为默认难度阈值。
const DefaultMinDifficulty = model.Black

// Opened 返回 current 中满足以下全部条件的雪道：
// - 当前状态为 Open
// - 上一次状态为 Closed（上一次缺失等同 Unknown，不会上报）
// - 当前难度 >= min
func Opened(current, previous map[string]model.RunRecord, min model.Difficulty) map[string]model.RunRecord {
	out := make(map[string]model.RunRecord)
	for name, run := range current {
		if run.Status != model.StatusOpen {
			continue
		}
		old, ok := previous[name]
		if !ok || old.Status != model.StatusClosed {
			continue
		}
		if run.Difficulty < min || !run.Difficulty.Valid() {
			continue
		}
		out[name] = run
	}
	return out
}

// Names 返回排序后的雪道名称，便于日志与导出保持稳定顺序。
func Names(runs map[string]model.RunRecord) []string {
	names := make([]string, 0, len(runs))
	for n := range runs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
