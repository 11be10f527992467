package gateway

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/llmgate/catalog"
	"github.com/BaSui01/llmgate/providers"
	"github.com/BaSui01/llmgate/stream"
	"github.com/BaSui01/llmgate/types"
	"github.com/BaSui01/llmgate/usage"
)

// buildRequest 合并生效配置与单次调用覆盖项，产出交给家族翻译器的
// 归一化请求。opts 为 nil 表示完全使用配置值。
func (g *Gateway) buildRequest(messages []types.Message, opts *types.Options, streaming bool) (*providers.Request, catalog.ModelDescriptor) {
	model, _ := catalog.Model(g.cfg.ProviderID, g.cfg.ModelID)

	req := &providers.Request{
		Model:           model,
		Messages:        messages,
		Temperature:     g.cfg.Temperature,
		MaxTokens:       g.cfg.MaxTokens,
		ReasoningEffort: g.cfg.ReasoningEffort,
		Stream:          streaming,
	}
	if opts != nil {
		if opts.Temperature != nil {
			req.Temperature = *opts.Temperature
		}
		if opts.MaxTokens > 0 {
			req.MaxTokens = opts.MaxTokens
		}
		if opts.ReasoningEffort != "" {
			req.ReasoningEffort = opts.ReasoningEffort
		}
		req.Tools = opts.Tools
		req.WebSearch = opts.WebSearch
	}
	return req, model
}

// prepare 完成发送前的公共步骤：构造请求体、端点与认证头。
// 凭据缺失只记告警不阻断（部分 Provider 允许匿名/开发模式调用），
// AUTH 错误在上游实际拒绝时才出现。
func (g *Gateway) prepare(req *providers.Request, requestID string) (endpoint string, header http.Header, body []byte, err error) {
	provider, _ := catalog.Provider(g.cfg.ProviderID)

	body, err = g.active.BuildBody(req)
	if err != nil {
		return "", nil, nil, types.NewError(types.ErrParse, "encode request body").
			WithCause(err).WithProvider(g.cfg.ProviderID)
	}

	key := g.creds[g.cfg.ProviderID]
	if key == "" {
		g.logger.Warn("no credential configured for active provider",
			zap.String("provider", g.cfg.ProviderID),
			zap.String("request_id", requestID))
	}

	endpoint = g.active.Endpoint(provider.Endpoint, req.Model.ID, key, req.Stream)
	header = g.active.Headers(key)
	return endpoint, header, body, nil
}

// Complete 发起一元补全：发出请求后挂起，直到收到完整响应、超时或
// 出错。传输层成功（2xx）但响应不可解析时退化为空内容结果而不是
// 报错。
func (g *Gateway) Complete(ctx context.Context, messages []types.Message, opts *types.Options) (*types.Result, error) {
	req, model := g.buildRequest(messages, opts, false)
	requestID := uuid.NewString()

	endpoint, header, body, err := g.prepare(req, requestID)
	if err != nil {
		return nil, err
	}

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, types.NewError(types.ErrNetwork, "rate limiter wait").
				WithCause(err).WithProvider(g.cfg.ProviderID)
		}
	}

	g.logger.Debug("dispatching completion",
		zap.String("request_id", requestID),
		zap.String("provider", g.cfg.ProviderID),
		zap.String("model", model.ID))

	start := time.Now()
	raw, err := g.send(ctx, g.active, endpoint, header, body, g.cfg.Timeout)
	g.observe(model, start, err)
	if err != nil {
		return nil, err
	}

	result := g.active.ParseResponse(raw)
	g.track(model, result.Usage)
	return result, nil
}

// CompleteStream 发起流式补全，返回拉取式的 chunk 序列。
// 消费者通过 Recv 控制节奏；提前 Close 会取消底层传输读取而不是
// 拉完剩余数据。流式路径没有整体超时。
func (g *Gateway) CompleteStream(ctx context.Context, messages []types.Message, opts *types.Options) (*stream.Stream, error) {
	req, model := g.buildRequest(messages, opts, true)
	requestID := uuid.NewString()

	endpoint, header, body, err := g.prepare(req, requestID)
	if err != nil {
		return nil, err
	}

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, types.NewError(types.ErrNetwork, "rate limiter wait").
				WithCause(err).WithProvider(g.cfg.ProviderID)
		}
	}

	g.logger.Debug("opening completion stream",
		zap.String("request_id", requestID),
		zap.String("provider", g.cfg.ProviderID),
		zap.String("model", model.ID))

	start := time.Now()
	respBody, cancel, err := g.openStream(ctx, g.active, endpoint, header, body)
	g.observe(model, start, err)
	if err != nil {
		return nil, err
	}

	providerID := g.cfg.ProviderID
	streamOpts := []stream.Option{stream.WithLogger(g.logger)}
	if g.metrics != nil {
		streamOpts = append(streamOpts, stream.WithDropHook(func() {
			g.metrics.RecordDroppedFrame(providerID)
		}))
	}
	return stream.New(&cancelOnClose{rc: respBody, cancel: cancel},
		g.active.Sentinel(), g.active.ExtractChunk, streamOpts...), nil
}

// observe 上报请求指标。
func (g *Gateway) observe(model catalog.ModelDescriptor, start time.Time, err error) {
	if g.metrics == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = string(types.GetErrorCode(err))
	}
	g.metrics.RecordRequest(g.cfg.ProviderID, model.ID, status, time.Since(start))
}

// track 上报用量与成本。
func (g *Gateway) track(model catalog.ModelDescriptor, u types.Usage) {
	if g.tracker != nil {
		g.tracker.Track(model, u)
	}
	if g.metrics == nil {
		return
	}
	if u.InputTokens != nil {
		g.metrics.RecordTokens(g.cfg.ProviderID, model.ID, "input", *u.InputTokens)
	}
	if u.OutputTokens != nil {
		g.metrics.RecordTokens(g.cfg.ProviderID, model.ID, "output", *u.OutputTokens)
	}
	if u.ReasoningTokens != nil {
		g.metrics.RecordTokens(g.cfg.ProviderID, model.ID, "reasoning", *u.ReasoningTokens)
	}
	in, out := 0, 0
	if u.InputTokens != nil {
		in = *u.InputTokens
	}
	if u.OutputTokens != nil {
		out = *u.OutputTokens
	}
	g.metrics.RecordCost(g.cfg.ProviderID, model.ID, usage.Cost(model, in, out))
}

// cancelOnClose 在关闭响应体的同时取消请求 context，
// 保证弃读时在途连接被释放。
type cancelOnClose struct {
	rc     io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Read(p []byte) (int, error) { return c.rc.Read(p) }

func (c *cancelOnClose) Close() error {
	c.cancel()
	return c.rc.Close()
}
