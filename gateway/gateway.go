// Package gateway 是多 Provider 聊天补全网关的对外门面。
// 一个 Gateway 实例持有一份可变的生效配置（Provider、模型、生成参数）
// 与该实例独占的凭据表；配置写入不做并发保护，由调用方串行化
// （目录的并发读取永远安全）。一元调用与流式调用互不阻塞。
package gateway

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/BaSui01/llmgate/catalog"
	"github.com/BaSui01/llmgate/credentials"
	"github.com/BaSui01/llmgate/internal/metrics"
	"github.com/BaSui01/llmgate/providers"
	"github.com/BaSui01/llmgate/providers/anthropic"
	"github.com/BaSui01/llmgate/providers/gemini"
	"github.com/BaSui01/llmgate/providers/openaicompat"
	"github.com/BaSui01/llmgate/types"
	"github.com/BaSui01/llmgate/usage"
)

// Gateway 是多 Provider 聊天补全网关。
type Gateway struct {
	registry *providers.Registry
	store    credentials.Store
	creds    map[string]string

	cfg    ClientConfig
	active providers.Family

	client  *http.Client
	logger  *zap.Logger
	limiter *rate.Limiter
	metrics *metrics.Collector
	tracker *usage.Tracker
}

// Option 配置 Gateway。
type Option func(*Gateway)

// WithLogger 设置日志器（默认 Nop）。
func WithLogger(logger *zap.Logger) Option {
	return func(g *Gateway) { g.logger = logger }
}

// WithHTTPClient 替换底层 HTTP 客户端。客户端不应设置全局 Timeout，
// 一元路径的超时由请求 context 控制，流式路径没有整体超时。
func WithHTTPClient(client *http.Client) Option {
	return func(g *Gateway) { g.client = client }
}

// WithRateLimit 启用客户端侧的每分钟请求数上限。
func WithRateLimit(requestsPerMinute int) Option {
	return func(g *Gateway) {
		if requestsPerMinute > 0 {
			g.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), 1)
		}
	}
}

// WithMetrics 启用 prometheus 指标并注册到 reg。
func WithMetrics(reg prometheus.Registerer) Option {
	return func(g *Gateway) {
		g.metrics = metrics.NewCollector("llmgate", reg, g.logger)
	}
}

// WithUsageTracking 启用 token 用量与成本跟踪。
func WithUsageTracking() Option {
	return func(g *Gateway) { g.tracker = usage.NewTracker() }
}

// defaultRegistry 组装五个 Provider 的家族注册表。
// 家族在此解析一次，之后按配置解析 active 家族，不在每次调用时分派。
func defaultRegistry() *providers.Registry {
	r := providers.NewRegistry()
	r.Register("openai", openaicompat.New("openai"))
	r.Register("xai", openaicompat.New("xai"))
	r.Register("mistral", openaicompat.New("mistral"))
	r.Register("anthropic", anthropic.New())
	r.Register("gemini", gemini.New())
	return r
}

// New 创建网关。凭据从 store 读入；初始配置指向目录中首个 Provider
// 的默认模型。
func New(store credentials.Store, opts ...Option) (*Gateway, error) {
	g := &Gateway{
		registry: defaultRegistry(),
		store:    store,
		client:   &http.Client{},
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}

	creds, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("load credentials: %w", err)
	}
	g.creds = creds

	cfg, err := Resolve(catalog.IDs()[0], "")
	if err != nil {
		return nil, err
	}
	g.cfg = cfg
	g.active, _ = g.registry.Get(cfg.ProviderID)
	return g, nil
}

// Configure 切换生效的 Provider/模型，可同时设置该 Provider 的凭据。
// modelID 为空时使用该 Provider 的默认模型。校验失败时先前的配置
// 保持不变。凭据变更在内存生效后立即持久化。
func (g *Gateway) Configure(providerID, modelID, credential string) (Snapshot, error) {
	resolved, err := Resolve(providerID, modelID)
	if err != nil {
		return Snapshot{}, err
	}

	family, ok := g.registry.Get(resolved.ProviderID)
	if !ok {
		return Snapshot{}, types.NewError(types.ErrUnknownProvider,
			fmt.Sprintf("provider %q has no registered family", resolved.ProviderID))
	}

	// 生成参数跨切换保留；reasoning 档位在新模型不支持时清除
	resolved.Temperature = g.cfg.Temperature
	resolved.MaxTokens = g.cfg.MaxTokens
	resolved.Timeout = g.cfg.Timeout
	if model, ok := catalog.Model(resolved.ProviderID, resolved.ModelID); ok &&
		g.cfg.ReasoningEffort != "" && model.SupportsEffort(g.cfg.ReasoningEffort) {
		resolved.ReasoningEffort = g.cfg.ReasoningEffort
	}

	g.cfg = resolved
	g.active = family

	if credential != "" {
		if err := g.SetCredential(resolved.ProviderID, credential); err != nil {
			return Snapshot{}, err
		}
	}

	g.logger.Info("gateway configured",
		zap.String("provider", resolved.ProviderID),
		zap.String("model", resolved.ModelID))
	return snapshotOf(g.cfg), nil
}

// SetGenerationParams 调整生成参数。非正值保持原值不变。
func (g *Gateway) SetGenerationParams(temperature float32, maxTokens int, effort string, timeout time.Duration) {
	if temperature > 0 {
		g.cfg.Temperature = temperature
	}
	if maxTokens > 0 {
		g.cfg.MaxTokens = maxTokens
	}
	if timeout > 0 {
		g.cfg.Timeout = timeout
	}
	if model, ok := catalog.Model(g.cfg.ProviderID, g.cfg.ModelID); ok && model.SupportsEffort(effort) {
		g.cfg.ReasoningEffort = effort
	}
}

// SetCredential 设置 Provider 的凭据并立即持久化。
// 凭据内容不进入日志。
func (g *Gateway) SetCredential(providerID, secret string) error {
	if _, ok := catalog.Provider(providerID); !ok {
		return types.NewError(types.ErrUnknownProvider,
			fmt.Sprintf("unknown provider %q", providerID))
	}

	g.creds[providerID] = secret
	if err := g.store.Save(g.creds); err != nil {
		return fmt.Errorf("persist credentials: %w", err)
	}
	g.logger.Info("credential updated",
		zap.String("provider", providerID),
		zap.String("key", credentials.Masked(secret)))
	return nil
}

// HasCredential 报告 Provider 是否已配置凭据。
func (g *Gateway) HasCredential(providerID string) bool {
	return g.creds[providerID] != ""
}

// Config 返回当前配置的副本。
func (g *Gateway) Config() ClientConfig { return g.cfg }

// Snapshot 返回当前生效配置的快照。
func (g *Gateway) Snapshot() Snapshot { return snapshotOf(g.cfg) }

// ListProviders 返回目录中全部 Provider 及模型的展示信息。
func (g *Gateway) ListProviders() []catalog.ProviderListing { return catalog.List() }

// Usage 返回用量跟踪器；未启用跟踪时为 nil。
func (g *Gateway) Usage() *usage.Tracker { return g.tracker }
