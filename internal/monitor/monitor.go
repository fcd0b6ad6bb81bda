// 包 monitor 负责主流程编排（单协程、顺序执行）：
// - 启动时加载上一次快照作为基线（不存在/损坏则以空基线开始）
// - 每轮：抓取 → 与基线比较 → 通知新开放雪道 → 持久化 → 休眠
// - 抓取失败跳过本轮且不覆盖基线；通知/持久化失败仅记录日志
package monitor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"ski-run-open-bot/internal/detect"
	"ski-run-open-bot/internal/export"
	"ski-run-open-bot/internal/logx"
	"ski-run-open-bot/internal/model"
	"ski-run-open-bot/internal/notify"
	"ski-run-open-bot/internal/store"
)

// Scraper 获取一份新的快照。
type Scraper interface {
	Scrape(ctx context.Context) (model.Snapshot, error)
}

// ScrapeFunc 让普通函数满足 Scraper。
type ScrapeFunc func(ctx context.Context) (model.Snapshot, error)

func (f ScrapeFunc) Scrape(ctx context.Context) (model.Snapshot, error) { return f(ctx) }

// Action 处理新开放的雪道（如发通知）；返回值仅用于记录日志。
type Action interface {
	Notify(ctx context.Context, resort string, opened map[string]model.RunRecord) error
}

// ActionFunc 让普通函数满足 Action。
type ActionFunc func(ctx context.Context, resort string, opened map[string]model.RunRecord) error

func (f ActionFunc) Notify(ctx context.Context, resort string, opened map[string]model.RunRecord) error {
	return f(ctx, resort, opened)
}

// ErrUnrecoverable 标记不应重试的抓取错误，Run 遇到后直接返回。
var ErrUnrecoverable = model.ErrUnrecoverable

// Unrecoverable 包装 err，使 errors.Is(err, ErrUnrecoverable) 为真。
func Unrecoverable(err error) error { return model.Unrecoverable(err) }

// ErrEmptySnapshot 表示抓取结果没有任何雪道，视为抓取失败。
var ErrEmptySnapshot = errors.New("scraped snapshot has no runs")

// Options 为监控参数。
type Options struct {
	Resort        string
	Interval      time.Duration
	MinDifficulty model.Difficulty
	// Export 非空时每轮结束后写入状态汇总
	Export string
}

// Monitor 持有存储、抓取与通知协作者，以及内存中的基线快照。
type Monitor struct {
	opts     Options
	store    store.Store
	scraper  Scraper
	action   Action
	baseline *model.Snapshot
	// sleep 可在测试中替换
	sleep func(ctx context.Context, d time.Duration) error
}

// New 创建 Monitor；action 为 nil 时不做任何通知。
func New(opts Options, st store.Store, sc Scraper, act Action) (*Monitor, error) {
	if opts.Resort == "" {
		return nil, errors.New("monitor: resort is required")
	}
	if opts.Interval <= 0 {
		return nil, fmt.Errorf("monitor: invalid interval %v", opts.Interval)
	}
	if opts.MinDifficulty == model.DifficultyNone {
		opts.MinDifficulty = detect.DefaultMinDifficulty
	}
	if act == nil {
		act = notify.Nop{}
	}
	return &Monitor{opts: opts, store: st, scraper: sc, action: act, sleep: sleepCtx}, nil
}

// Baseline 返回当前内存基线（无基线时为 nil）。
func (m *Monitor) Baseline() *model.Snapshot { return m.baseline }

// Bootstrap 加载上一次持久化的快照作为基线。
// 不存在属于首次运行的正常情况；文档损坏时记录错误并以空基线继续。
func (m *Monitor) Bootstrap(ctx context.Context) {
	snap, err := m.store.Load(ctx, m.opts.Resort)
	switch {
	case err == nil:
		m.baseline = &snap
		logx.Infof("已加载 %s 的基线快照：%d 条雪道", m.opts.Resort, len(snap.Runs))
	case errors.Is(err, store.ErrNotFound):
		logx.Infof("未找到 %s 的快照，将在首轮创建", m.opts.Resort)
	case errors.Is(err, store.ErrParse):
		logx.Errorf("基线快照损坏，以空基线重建：%v", err)
	default:
		logx.Errorf("读取基线快照失败，以空基线继续：%v", err)
	}
}

// RunOnce 执行一轮：抓取→比较→通知→持久化，返回本轮新开放的雪道。
// 抓取失败时返回错误，基线与持久化文档均保持不变。
func (m *Monitor) RunOnce(ctx context.Context) (map[string]model.RunRecord, error) {
	cycle := uuid.NewString()
	log := logx.With("cycle", cycle, "resort", m.opts.Resort)
	ctx = notify.WithCycleID(ctx, cycle)

	snap, err := m.scraper.Scrape(ctx)
	if err == nil && len(snap.Runs) == 0 {
		err = ErrEmptySnapshot
	}
	if err == nil {
		if snap.Resort == "" {
			snap.Resort = m.opts.Resort
		}
		err = snap.Validate()
	}
	if err != nil {
		log.Warn(fmt.Sprintf("抓取失败，跳过本轮：%v", err))
		return nil, fmt.Errorf("scrape: %w", err)
	}
	log.Debug(fmt.Sprintf("抓取到 %d 条雪道", len(snap.Runs)))

	opened := map[string]model.RunRecord{}
	if m.baseline != nil {
		opened = detect.Opened(snap.Runs, m.baseline.Runs, m.opts.MinDifficulty)
		if len(opened) > 0 {
			log.Debug(fmt.Sprintf("新开放雪道 %d 条：%s", len(opened), strings.Join(detect.Names(opened), ", ")))
			if err := m.action.Notify(ctx, m.opts.Resort, opened); err != nil {
				log.Error(fmt.Sprintf("通知失败：%v", err))
			}
		}
	} else {
		log.Info("无基线，本轮仅保存快照")
	}

	// 无论是否检测都持久化；失败时基线仍前移，下轮写入即重试
	if err := m.store.Save(ctx, snap); err != nil {
		log.Error(fmt.Sprintf("保存快照失败：%v", err))
	}
	m.baseline = &snap

	if m.opts.Export != "" {
		if err := export.ToJSON(snap, opened, m.opts.Export); err != nil {
			log.Warn(fmt.Sprintf("导出状态失败：%v", err))
		}
	}
	return opened, nil
}

// Run 加载基线后无限循环，直到 ctx 取消（返回 nil）或出现不可恢复的抓取错误。
func (m *Monitor) Run(ctx context.Context) error {
	m.Bootstrap(ctx)
	logx.Infof("开始监控 %s：间隔=%v 难度阈值=%s", m.opts.Resort, m.opts.Interval, m.opts.MinDifficulty)
	for {
		if _, err := m.RunOnce(ctx); err != nil {
			if errors.Is(err, ErrUnrecoverable) {
				return err
			}
			if ctx.Err() != nil {
				return nil
			}
		}
		if err := m.sleep(ctx, m.opts.Interval); err != nil {
			logx.Infof("监控已停止：%s", m.opts.Resort)
			return nil
		}
	}
}

// sleepCtx 休眠 d，ctx 取消时提前返回其错误。
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
