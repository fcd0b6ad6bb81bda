// 命令行入口：
// - 解析 flags 与 settings.yaml/rules.yaml/.env
// - 初始化日志、HTTP 客户端、快照存储、抓取与通知
// - 支持抓取调试（-discover）与单轮执行（-once）
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"ski-run-open-bot/internal/config"
	"ski-run-open-bot/internal/detect"
	"ski-run-open-bot/internal/fetch"
	"ski-run-open-bot/internal/logx"
	"ski-run-open-bot/internal/monitor"
	"ski-run-open-bot/internal/notify"
	"ski-run-open-bot/internal/rules"
	"ski-run-open-bot/internal/store"
	"ski-run-open-bot/internal/trails"
)

func main() {
	var (
		configPath = flag.String("config", "settings.yaml", "path to settings.yaml")
		rulesPath  = flag.String("rules", "rules.yaml", "path to rules.yaml (optional, overrides builtin presets)")
		envPath    = flag.String("env", ".env", "path to .env (optional)")
		discover   = flag.Bool("discover", false, "scrape once, print the parsed runs and exit")
		once       = flag.Bool("once", false, "run a single poll cycle and exit")
	)
	flag.Parse()

	// 1) 加载配置；配置错误是唯一允许终止进程的错误
	cfg, err := config.Load(*configPath, *envPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	rl := rules.Builtin()
	if *rulesPath != "" {
		if r, err := rules.Load(*rulesPath); err == nil {
			rl = rl.Merge(r)
		} else if !errors.Is(err, os.ErrNotExist) {
			log.Printf("load rules failed: %v", err)
		}
	}
	// 2) 初始化日志：级别/格式/语言/颜色
	logx.Init(cfg.LogLevel, cfg.LogFormat, cfg.LogLocale, cfg.LogColor)

	// 3) 初始化 HTTP 客户端（含代理与重试）
	cl, err := fetch.New(fetch.Options{
		ProxyHTTP:  cfg.Proxy.HTTP,
		ProxyHTTPS: cfg.Proxy.HTTPS,
		Timeout:    cfg.Timeout(),
		Retry:      cfg.Retry,
	})
	if err != nil {
		log.Fatalf("http client: %v", err)
	}

	scraper, err := newScraper(cfg, cl, rl)
	if err != nil {
		log.Fatalf("scraper: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *discover {
		// 4) 调试：仅抓取并打印结果后退出，不读写快照
		snap, err := scraper.Scrape(ctx)
		if err != nil {
			logx.Errorf("抓取失败：%v", err)
			os.Exit(1)
		}
		logx.Infof("%s 解析到 %d 条雪道", snap.Resort, len(snap.Runs))
		for _, name := range detect.Names(snap.Runs) {
			r := snap.Runs[name]
			logx.Infof("- 名称=%q 难度=%s 状态=%s 山区=%q", name, r.Difficulty, r.Status, r.Section)
		}
		if len(snap.Runs) == 0 {
			logx.Warnf("未解析到任何雪道，请检查 SOURCE.url 与 rules.yaml 选择器。")
		}
		return
	}

	// 5) 快照存储：json 文件（默认）或 sqlite
	st, closeStore, err := openStore(cfg)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer closeStore()
	if cfg.ResetOnStart {
		if err := st.Reset(ctx, cfg.Resort); err != nil {
			logx.Warnf("启动清除基线失败：%v", err)
		} else {
			logx.Infof("已清除 %s 的基线快照", cfg.Resort)
		}
	}

	// 6) 运行监控循环
	m, err := monitor.New(monitor.Options{
		Resort:        cfg.Resort,
		Interval:      cfg.Interval(),
		MinDifficulty: cfg.Threshold(),
		Export:        cfg.Export,
	}, st, scraper, newAction(cfg, cl))
	if err != nil {
		log.Fatalf("monitor: %v", err)
	}
	if *once {
		m.Bootstrap(ctx)
		if _, err := m.RunOnce(ctx); err != nil {
			logx.Errorf("运行失败：%v", err)
			os.Exit(1)
		}
		return
	}
	if err := m.Run(ctx); err != nil {
		logx.Errorf("运行失败：%v", err)
		os.Exit(1)
	}
}

// newScraper 按 SOURCE.type 构造抓取实现；预设缺失属于配置错误。
func newScraper(cfg *config.Config, cl *fetch.Client, rl *rules.Rules) (monitor.Scraper, error) {
	switch cfg.Source.Type {
	case "feed":
		return &trails.FeedScraper{Client: cl, URL: cfg.Source.URL, Resort: cfg.Resort}, nil
	default:
		preset, ok := rl.GetPreset(cfg.Source.Preset)
		if !ok || preset.TrailPage == nil {
			return nil, fmt.Errorf("no trail_page preset for %q", cfg.Source.Preset)
		}
		return &trails.PageScraper{Client: cl, URL: cfg.Source.URL, Resort: cfg.Resort, Preset: preset}, nil
	}
}

// openStore 打开快照存储，返回的关闭函数总是非 nil。
func openStore(cfg *config.Config) (store.Store, func(), error) {
	if cfg.Store.Type == "sqlite" {
		if !strings.HasPrefix(cfg.Store.DSN, "file:") && cfg.Store.DSN != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(cfg.Store.DSN), 0o755); err != nil {
				return nil, func() {}, fmt.Errorf("create db dir: %w", err)
			}
		}
		s, err := store.OpenSQLite(cfg.Store.DSN)
		if err != nil {
			return nil, func() {}, err
		}
		return s, func() { _ = s.Close() }, nil
	}
	return store.NewFile(cfg.Store.Dir, cfg.Store.Path), func() {}, nil
}

func newAction(cfg *config.Config, cl *fetch.Client) monitor.Action {
	switch cfg.Notify.Type {
	case "webhook":
		return &notify.Webhook{Client: cl, URL: cfg.Notify.URL, Token: cfg.Notify.Token}
	case "none":
		return notify.Nop{}
	default:
		return notify.Log{}
	}
}
