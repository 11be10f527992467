package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/llmgate/types"
)

// roundTripFunc 把函数适配成 http.RoundTripper，测试无需真实网络。
type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) { return f(req) }

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

// capturedRequest 记录发出的请求以便断言线上格式。
type capturedRequest struct {
	url    string
	header http.Header
	body   map[string]any
}

func testGateway(t *testing.T, rt roundTripFunc) (*Gateway, *memStore) {
	t.Helper()
	store := newMemStore()
	gw, err := New(store, WithHTTPClient(&http.Client{Transport: rt}))
	require.NoError(t, err)
	return gw, store
}

func capture(t *testing.T, dst *capturedRequest, response *http.Response) roundTripFunc {
	t.Helper()
	return func(req *http.Request) (*http.Response, error) {
		dst.url = req.URL.String()
		dst.header = req.Header.Clone()
		data, err := io.ReadAll(req.Body)
		require.NoError(t, err)
		if len(data) > 0 {
			require.NoError(t, json.Unmarshal(data, &dst.body))
		}
		return response, nil
	}
}

func TestComplete_OpenAIWireFormat(t *testing.T) {
	var got capturedRequest
	gw, _ := testGateway(t, capture(t, &got, jsonResponse(200, `{
		"choices":[{"message":{"content":"hi"},"finish_reason":"stop"}],
		"usage":{"prompt_tokens":5,"completion_tokens":1}
	}`)))
	require.NoError(t, gw.SetCredential("openai", "sk-test"))

	result, err := gw.Complete(context.Background(),
		[]types.Message{types.NewUserMessage("hello")}, nil)
	require.NoError(t, err)
	assert.Equal(t, "hi", result.Content)
	assert.Equal(t, "stop", result.FinishReason)
	require.NotNil(t, result.Usage.InputTokens)
	assert.Equal(t, 5, *result.Usage.InputTokens)

	assert.Equal(t, "https://api.openai.com/v1/chat/completions", got.url)
	assert.Equal(t, "Bearer sk-test", got.header.Get("Authorization"))
	assert.Equal(t, "gpt-4o", got.body["model"])
	assert.InDelta(t, 0.7, got.body["temperature"].(float64), 1e-6)
	assert.EqualValues(t, 8192, got.body["max_tokens"])
	assert.NotContains(t, got.body, "reasoning_effort")
	assert.NotContains(t, got.body, "stream")
}

func TestComplete_AnthropicWireFormat(t *testing.T) {
	var got capturedRequest
	gw, _ := testGateway(t, capture(t, &got, jsonResponse(200, `{
		"content":[{"type":"text","text":"ok"}],
		"stop_reason":"end_turn",
		"usage":{"input_tokens":8,"output_tokens":1}
	}`)))
	require.NoError(t, gw.SetCredential("anthropic", "sk-ant-test"))
	_, err := gw.Configure("anthropic", "", "")
	require.NoError(t, err)

	result, err := gw.Complete(context.Background(), []types.Message{
		types.NewSystemMessage("Be brief."),
		types.NewUserMessage("hello"),
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", result.Content)

	assert.Equal(t, "sk-ant-test", got.header.Get("x-api-key"))
	assert.NotEmpty(t, got.header.Get("anthropic-version"))
	assert.Empty(t, got.header.Get("Authorization"))
	assert.Equal(t, "Be brief.", got.body["system"])
	messages := got.body["messages"].([]any)
	require.Len(t, messages, 1)
	assert.Equal(t, "user", messages[0].(map[string]any)["role"])
}

func TestComplete_GeminiKeyInQuery(t *testing.T) {
	var got capturedRequest
	gw, _ := testGateway(t, capture(t, &got, jsonResponse(200, `{
		"candidates":[{"content":{"parts":[{"text":"ok"}]},"finishReason":"STOP"}]
	}`)))
	require.NoError(t, gw.SetCredential("gemini", "AIza-test"))
	_, err := gw.Configure("gemini", "", "")
	require.NoError(t, err)

	_, err = gw.Complete(context.Background(),
		[]types.Message{types.NewUserMessage("hello")}, nil)
	require.NoError(t, err)

	assert.Contains(t, got.url, ":generateContent")
	assert.Contains(t, got.url, "key=AIza-test")
	assert.Empty(t, got.header.Get("Authorization"))
	assert.Empty(t, got.header.Get("x-goog-api-key"))
}

func TestComplete_MissingCredentialStillDispatches(t *testing.T) {
	// 凭据缺失只告警不阻断，由上游以 401 拒绝
	var got capturedRequest
	gw, _ := testGateway(t, capture(t, &got,
		jsonResponse(401, `{"error":{"message":"Incorrect API key provided","type":"invalid_request_error"}}`)))

	_, err := gw.Complete(context.Background(),
		[]types.Message{types.NewUserMessage("hello")}, nil)
	require.Error(t, err)
	assert.Equal(t, types.ErrAuth, types.GetErrorCode(err))
	assert.True(t, types.IsAuth(err))
	assert.False(t, types.IsRetryable(err))
	assert.Contains(t, err.Error(), "Incorrect API key provided")
	assert.Empty(t, got.header.Get("Authorization"))
}

func TestComplete_ServerErrorRetryable(t *testing.T) {
	gw, _ := testGateway(t, func(req *http.Request) (*http.Response, error) {
		return jsonResponse(503, `{"error":{"message":"overloaded","type":"server_error"}}`), nil
	})

	_, err := gw.Complete(context.Background(),
		[]types.Message{types.NewUserMessage("hello")}, nil)
	require.Error(t, err)
	assert.Equal(t, types.ErrHTTP, types.GetErrorCode(err))
	assert.True(t, types.IsRetryable(err))
}

func TestComplete_TimeoutClassified(t *testing.T) {
	gw, _ := testGateway(t, func(req *http.Request) (*http.Response, error) {
		<-req.Context().Done()
		return nil, req.Context().Err()
	})
	gw.SetGenerationParams(0, 0, "", 20*time.Millisecond)

	start := time.Now()
	_, err := gw.Complete(context.Background(),
		[]types.Message{types.NewUserMessage("hello")}, nil)
	require.Error(t, err)
	assert.Equal(t, types.ErrTimeout, types.GetErrorCode(err))
	assert.True(t, types.IsTimeout(err))
	assert.True(t, types.IsRetryable(err))
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestComplete_UnparseableSuccessDegradesToEmpty(t *testing.T) {
	gw, _ := testGateway(t, func(req *http.Request) (*http.Response, error) {
		return jsonResponse(200, `<html>not json</html>`), nil
	})

	result, err := gw.Complete(context.Background(),
		[]types.Message{types.NewUserMessage("hello")}, nil)
	require.NoError(t, err)
	assert.Empty(t, result.Content)
	assert.Nil(t, result.Usage.InputTokens)
}

func TestComplete_PerCallOverrides(t *testing.T) {
	var got capturedRequest
	gw, _ := testGateway(t, capture(t, &got, jsonResponse(200, `{"choices":[{"message":{"content":"x"}}]}`)))
	_, err := gw.Configure("openai", "o3", "")
	require.NoError(t, err)

	temp := float32(0.1)
	_, err = gw.Complete(context.Background(),
		[]types.Message{types.NewUserMessage("hello")},
		&types.Options{Temperature: &temp, MaxTokens: 512, ReasoningEffort: "low"})
	require.NoError(t, err)

	assert.InDelta(t, 0.1, got.body["temperature"].(float64), 1e-6)
	assert.EqualValues(t, 512, got.body["max_tokens"])
	assert.Equal(t, "low", got.body["reasoning_effort"])
}

func TestComplete_UsageTracked(t *testing.T) {
	store := newMemStore()
	gw, err := New(store,
		WithHTTPClient(&http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			return jsonResponse(200, `{
				"choices":[{"message":{"content":"hi"},"finish_reason":"stop"}],
				"usage":{"prompt_tokens":100,"completion_tokens":50}
			}`), nil
		})}),
		WithUsageTracking())
	require.NoError(t, err)

	_, err = gw.Complete(context.Background(),
		[]types.Message{types.NewUserMessage("hello")}, nil)
	require.NoError(t, err)

	tracker := gw.Usage()
	require.NotNil(t, tracker)
	assert.Equal(t, 150, tracker.DailyTokens())
	assert.Greater(t, tracker.TotalCostUSD(), 0.0)
}

func TestCompleteStream_DeliversChunksThenEOF(t *testing.T) {
	sse := "data: {\"choices\":[{\"delta\":{\"content\":\"a\"}}]}\n\n" +
		"data: {\"choices\":[{\"delta\":{\"content\":\"b\"}}]}\n\n" +
		"data: {\"choices\":[{\"delta\":{\"content\":\"c\"},\"finish_reason\":\"stop\"}]}\n\n" +
		"data: [DONE]\n\n"

	var got capturedRequest
	gw, _ := testGateway(t, capture(t, &got, &http.Response{
		StatusCode: 200,
		Header:     http.Header{"Content-Type": []string{"text/event-stream"}},
		Body:       io.NopCloser(strings.NewReader(sse)),
	}))
	require.NoError(t, gw.SetCredential("openai", "sk-test"))

	s, err := gw.CompleteStream(context.Background(),
		[]types.Message{types.NewUserMessage("hello")}, nil)
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, true, got.body["stream"])
	assert.Equal(t, "text/event-stream", got.header.Get("Accept"))

	var deltas []string
	var finish string
	for {
		chunk, err := s.Recv()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		deltas = append(deltas, chunk.Delta)
		if chunk.FinishReason != "" {
			finish = chunk.FinishReason
		}
	}
	assert.Equal(t, []string{"a", "b", "c"}, deltas)
	assert.Equal(t, "stop", finish)
}

func TestCompleteStream_ErrorStatusBeforeStreaming(t *testing.T) {
	gw, _ := testGateway(t, func(req *http.Request) (*http.Response, error) {
		return jsonResponse(401, `{"error":{"message":"bad key","type":"invalid_request_error"}}`), nil
	})

	_, err := gw.CompleteStream(context.Background(),
		[]types.Message{types.NewUserMessage("hello")}, nil)
	require.Error(t, err)
	assert.Equal(t, types.ErrAuth, types.GetErrorCode(err))
}

// closeTracker 记录底层响应体是否被关闭。
type closeTracker struct {
	io.Reader
	closed bool
}

func (c *closeTracker) Close() error { c.closed = true; return nil }

func TestCompleteStream_CloseReleasesTransport(t *testing.T) {
	body := &closeTracker{Reader: strings.NewReader("data: [DONE]\n")}
	gw, _ := testGateway(t, func(req *http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: 200, Header: http.Header{}, Body: body}, nil
	})

	s, err := gw.CompleteStream(context.Background(),
		[]types.Message{types.NewUserMessage("hello")}, nil)
	require.NoError(t, err)

	require.NoError(t, s.Close())
	assert.True(t, body.closed)
}

func TestComplete_RateLimiterHonorsContext(t *testing.T) {
	gw, err := New(newMemStore(),
		WithHTTPClient(&http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			return jsonResponse(200, `{"choices":[{"message":{"content":"x"}}]}`), nil
		})}),
		WithRateLimit(1))
	require.NoError(t, err)

	// 首个请求消耗掉唯一令牌
	_, err = gw.Complete(context.Background(),
		[]types.Message{types.NewUserMessage("one")}, nil)
	require.NoError(t, err)

	// 第二个请求在已取消的 context 下等待令牌，立即失败
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = gw.Complete(ctx, []types.Message{types.NewUserMessage("two")}, nil)
	require.Error(t, err)
	assert.Equal(t, types.ErrNetwork, types.GetErrorCode(err))
}
