// 包 trails 提供雪道状态的抓取实现（监控循环的 Scraper）：
// - PageScraper：按 rules.yaml 的 CSS 选择器解析雪道状态页（goquery）
// - FeedScraper：解析以 RSS/Atom/JSON Feed 发布的雪道状态（gofeed）
// 难度与状态都通过 class/分类中的关键字识别（green/blue/black/double-black…，open/closed）。
package trails

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"ski-run-open-bot/internal/fetch"
	"ski-run-open-bot/internal/logx"
	"ski-run-open-bot/internal/model"
	"ski-run-open-bot/internal/rules"
)

// PageScraper 抓取雪道状态页并生成快照。
type PageScraper struct {
	Client *fetch.Client
	URL    string
	Resort string
	Preset rules.Preset
	// Now 返回快照时间戳，默认 model.NowTimestamp
	Now func() float64
}

// Scrape 拉取页面并解析为新的快照。
func (s *PageScraper) Scrape(ctx context.Context) (model.Snapshot, error) {
	if s.Preset.TrailPage == nil {
		return model.Snapshot{}, model.Unrecoverable(errors.New("preset has no trail_page selectors"))
	}
	resp, err := s.Client.Get(ctx, s.URL)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("GET trail page %s: %w", s.URL, err)
	}
	defer resp.Body.Close()
	runs, err := ParseTrailPage(io.LimitReader(resp.Body, 8<<20), s.Preset.TrailPage)
	if err != nil {
		return model.Snapshot{}, err
	}
	logx.Debugf("%s 页面解析到 %d 条雪道", s.Resort, len(runs))
	return model.Snapshot{Timestamp: now(s.Now), Resort: s.Resort, Runs: runs}, nil
}

// ParseTrailPage 从 HTML 中抽取雪道记录，键为雪道名称。
// area 选择器为空时整页视为一个无名山区。
func ParseTrailPage(r io.Reader, tp *rules.TrailPage) (map[string]model.RunRecord, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse trail page html: %w", err)
	}
	runs := make(map[string]model.RunRecord)
	areas := doc.Selection
	if tp.Area != "" {
		areas = doc.Find(tp.Area)
	}
	areas.Each(func(_ int, area *goquery.Selection) {
		section := ""
		if tp.AreaName != "" {
			section = strings.TrimSpace(area.Find(tp.AreaName).First().Text())
		}
		if section != "" && tp.Skip(section) {
			logx.Debugf("跳过山区：%s", section)
			return
		}
		area.Find(tp.Trail).Each(func(_ int, trail *goquery.Selection) {
			name := strings.TrimSpace(trail.Find(tp.Name).First().Text())
			if name == "" {
				return
			}
			tokens := classTokens(trail)
			rec := model.RunRecord{
				Difficulty: difficultyOf(tokens),
				Status:     statusOf(tokens),
				Section:    section,
			}
			if _, dup := runs[name]; dup {
				logx.Debugf("重复的雪道名称：%s（保留最后一次）", name)
			}
			logx.Debugf("解析雪道 %s：难度=%s 状态=%s", name, rec.Difficulty, rec.Status)
			runs[name] = rec
		})
	})
	return runs, nil
}

// classTokens 按文档顺序收集元素自身及后代元素的 class token。
func classTokens(s *goquery.Selection) []string {
	var tokens []string
	collect := func(_ int, el *goquery.Selection) {
		if c, ok := el.Attr("class"); ok {
			tokens = append(tokens, strings.Fields(c)...)
		}
	}
	collect(0, s)
	s.Find("*").Each(collect)
	return tokens
}

func now(fn func() float64) float64 {
	if fn != nil {
		return fn()
	}
	return model.NowTimestamp()
}
