// Package usage 跟踪 token 用量与估算成本。
// 统计按自然日与自然月滚动，换日/换月时自动清零。
package usage

import (
	"sync"
	"time"

	"github.com/BaSui01/llmgate/catalog"
	"github.com/BaSui01/llmgate/types"
)

// Tracker 累计每次补全的 token 用量与按目录单价估算的成本。
// 并发安全。
type Tracker struct {
	mu           sync.Mutex
	dailyTokens  int
	monthlyToken int
	totalCostUSD float64
	today        string
	month        string
	now          func() time.Time
}

// NewTracker 创建用量跟踪器。
func NewTracker() *Tracker {
	return &Tracker{now: time.Now}
}

// Track 记录一次补全的用量。未上报的字段按零处理。
func (t *Tracker) Track(model catalog.ModelDescriptor, u types.Usage) {
	input, output, reasoning := 0, 0, 0
	if u.InputTokens != nil {
		input = *u.InputTokens
	}
	if u.OutputTokens != nil {
		output = *u.OutputTokens
	}
	if u.ReasoningTokens != nil {
		reasoning = *u.ReasoningTokens
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.roll()

	total := input + output + reasoning
	t.dailyTokens += total
	t.monthlyToken += total
	t.totalCostUSD += Cost(model, input, output+reasoning)
}

// roll 在跨日/跨月时清零对应计数。调用方必须持有锁。
func (t *Tracker) roll() {
	now := t.now().UTC()
	today := now.Format("2006-01-02")
	month := now.Format("2006-01")

	if today != t.today {
		t.dailyTokens = 0
		t.today = today
	}
	if month != t.month {
		t.monthlyToken = 0
		t.month = month
	}
}

// DailyTokens 返回今日累计 token 数。
func (t *Tracker) DailyTokens() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.roll()
	return t.dailyTokens
}

// MonthlyTokens 返回本月累计 token 数。
func (t *Tracker) MonthlyTokens() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.roll()
	return t.monthlyToken
}

// TotalCostUSD 返回累计估算成本（USD），不随日月滚动清零。
func (t *Tracker) TotalCostUSD() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.totalCostUSD
}

// Cost 按目录单价估算一次补全的成本（USD）。
// 单价以每百万 token 计。
func Cost(model catalog.ModelDescriptor, inputTokens, outputTokens int) float64 {
	return float64(inputTokens)/1e6*model.InputPrice +
		float64(outputTokens)/1e6*model.OutputPrice
}
