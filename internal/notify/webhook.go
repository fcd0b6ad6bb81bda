package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"ski-run-open-bot/internal/detect"
	"ski-run-open-bot/internal/fetch"
	"ski-run-open-bot/internal/model"
)

type cycleIDKey struct{}

// WithCycleID 将本轮轮询的 ID 放入 ctx，Webhook 以其作为幂等键。
func WithCycleID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, cycleIDKey{}, id)
}

// CycleID 取出 ctx 中的轮询 ID，不存在时返回空串。
func CycleID(ctx context.Context) string {
	id, _ := ctx.Value(cycleIDKey{}).(string)
	return id
}

// Payload 为 Webhook 请求体。
type Payload struct {
	ID     string       `json:"id"`
	Resort string       `json:"resort"`
	Text   string       `json:"text"`
	Runs   []PayloadRun `json:"runs"`
}

// PayloadRun 为单条开放雪道。
type PayloadRun struct {
	Name       string `json:"name"`
	Difficulty string `json:"difficulty"`
	Status     string `json:"status"`
	Section    string `json:"section,omitempty"`
}

// Webhook 将新开放雪道 POST 到 URL；Token 非空时附带 Bearer 认证。
type Webhook struct {
	Client *fetch.Client
	URL    string
	Token  string
}

func (w *Webhook) Notify(ctx context.Context, resort string, opened map[string]model.RunRecord) error {
	if w.URL == "" {
		return errors.New("webhook url is empty")
	}
	p := BuildPayload(CycleID(ctx), resort, opened)
	headers := map[string]string{"Idempotency-Key": p.ID}
	if w.Token != "" {
		headers["Authorization"] = "Bearer " + w.Token
	}
	resp, err := w.Client.PostJSON(ctx, w.URL, p, headers)
	if err != nil {
		return fmt.Errorf("post webhook %s: %w", w.URL, err)
	}
	resp.Body.Close()
	return nil
}

// BuildPayload 组装请求体；id 为空时生成新的 UUID。
func BuildPayload(id, resort string, opened map[string]model.RunRecord) Payload {
	if id == "" {
		id = uuid.NewString()
	}
	p := Payload{ID: id, Resort: resort}
	for i, name := range detect.Names(opened) {
		rec := opened[name]
		p.Runs = append(p.Runs, PayloadRun{
			Name:       name,
			Difficulty: rec.Difficulty.String(),
			Status:     string(rec.Status),
			Section:    rec.Section,
		})
		if i > 0 {
			p.Text += "\n"
		}
		p.Text += Message(resort, name, rec)
	}
	return p
}
