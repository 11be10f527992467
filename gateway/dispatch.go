package gateway

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/BaSui01/llmgate/providers"
	"github.com/BaSui01/llmgate/types"
)

// send 执行一次一元调用：超时是自请求发起的硬截止时间，超时后通过
// context 取消中止在途请求。本层不做任何重试。
func (g *Gateway) send(ctx context.Context, family providers.Family, endpoint string, header http.Header, body []byte, timeout time.Duration) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, types.NewError(types.ErrNetwork, "build request").
			WithCause(err).WithProvider(family.ID())
	}
	req.Header = header

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, classifyTransport(err, family.ID())
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyTransport(err, family.ID())
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, mapHTTPError(resp.StatusCode, family.ErrorMessage(data), family.ID())
	}
	return data, nil
}

// openStream 发起流式调用并返回已打开的响应体。流式路径没有整体
// 截止时间（合法的流时长无上界），返回的 cancel 交由流的 Close
// 触发，实现弃读即断连。
func (g *Gateway) openStream(ctx context.Context, family providers.Family, endpoint string, header http.Header, body []byte) (io.ReadCloser, context.CancelFunc, error) {
	ctx, cancel := context.WithCancel(ctx)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		cancel()
		return nil, nil, types.NewError(types.ErrNetwork, "build request").
			WithCause(err).WithProvider(family.ID())
	}
	req.Header = header
	req.Header.Set("Accept", "text/event-stream")

	resp, err := g.client.Do(req)
	if err != nil {
		cancel()
		return nil, nil, classifyTransport(err, family.ID())
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		cancel()
		return nil, nil, mapHTTPError(resp.StatusCode, family.ErrorMessage(data), family.ID())
	}
	return resp.Body, cancel, nil
}

// classifyTransport 把传输层失败映射为类型化错误：
// 截止时间超出为 TIMEOUT，其余（DNS、连接重置等）为 NETWORK。
func classifyTransport(err error, provider string) *types.Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return types.NewError(types.ErrTimeout, "request timed out").
			WithCause(err).WithProvider(provider).WithRetryable(true)
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return types.NewError(types.ErrTimeout, "request timed out").
			WithCause(err).WithProvider(provider).WithRetryable(true)
	}
	return types.NewError(types.ErrNetwork, "transport failure").
		WithCause(err).WithProvider(provider).WithRetryable(true)
}

// mapHTTPError 把非 2xx 响应映射为类型化错误。401/403 归为 AUTH
// （凭据缺失或被拒，提示检查 API key），其余携带状态码与厂商消息。
func mapHTTPError(status int, msg, provider string) *types.Error {
	if msg == "" {
		msg = fmt.Sprintf("request failed with status %d", status)
	}
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return types.NewError(types.ErrAuth, msg).
			WithHTTPStatus(status).WithProvider(provider)
	default:
		return types.NewError(types.ErrHTTP, msg).
			WithHTTPStatus(status).WithProvider(provider).
			WithRetryable(status >= 500 || status == http.StatusTooManyRequests)
	}
}
