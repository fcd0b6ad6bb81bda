package trails

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/mmcdole/gofeed"

	"ski-run-open-bot/internal/fetch"
	"ski-run-open-bot/internal/logx"
	"ski-run-open-bot/internal/model"
)

// FeedScraper 读取雪道状态订阅：每个条目标题为雪道名称，
// 分类（category）携带难度/状态关键字，首个非关键字分类视为山区。
type FeedScraper struct {
	Client *fetch.Client
	URL    string
	Resort string
	Now    func() float64
}

// Scrape 拉取订阅并解析为新的快照。
func (s *FeedScraper) Scrape(ctx context.Context) (model.Snapshot, error) {
	// gofeed 不直接接收自定义 http.Client，因此先用自定义客户端抓取后再交给 gofeed 解析
	resp, err := s.Client.Get(ctx, s.URL)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("GET trail feed %s: %w", s.URL, err)
	}
	defer resp.Body.Close()
	runs, err := ParseTrailFeed(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("parse trail feed %s: %w", s.URL, err)
	}
	logx.Debugf("%s 订阅解析到 %d 条雪道", s.Resort, len(runs))
	return model.Snapshot{Timestamp: now(s.Now), Resort: s.Resort, Runs: runs}, nil
}

// ParseTrailFeed 使用 gofeed 解析 RSS/Atom/JSON Feed 并归一化为雪道记录。
func ParseTrailFeed(r io.Reader) (map[string]model.RunRecord, error) {
	feed, err := gofeed.NewParser().Parse(r)
	if err != nil {
		return nil, err
	}
	runs := make(map[string]model.RunRecord, len(feed.Items))
	for _, it := range feed.Items {
		name := strings.TrimSpace(it.Title)
		if name == "" {
			continue
		}
		rec := model.RunRecord{Status: model.StatusUnknown}
		for _, c := range it.Categories {
			c = strings.TrimSpace(c)
			if c == "" {
				continue
			}
			if st, ok := matchExact(c, statusKeywords); ok {
				rec.Status = st
				continue
			}
			if d, err := model.ParseDifficulty(c); err == nil {
				rec.Difficulty = d
				continue
			}
			if rec.Section == "" {
				rec.Section = c
			}
		}
		runs[name] = rec
	}
	return runs, nil
}

// matchExact 要求分类整体等于关键字（不区分大小写），
// 避免 "Open Bowl" 这类山区名被误判为状态。
func matchExact[T any](s string, kws []keyword[T]) (T, bool) {
	for _, kw := range kws {
		if strings.EqualFold(s, kw.word) {
			return kw.value, true
		}
	}
	var zero T
	return zero, false
}
