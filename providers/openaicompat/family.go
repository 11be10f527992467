// Package openaicompat 实现 OpenAI 兼容家族的翻译器，
// 覆盖 openai、xai、mistral 三个 Provider。
// 家族特征：
// 1. Bearer Token 认证（Authorization 请求头）
// 2. 固定路径 /chat/completions，模型放在请求体内
// 3. system 消息随消息列表内联传递
// 4. SSE 流式响应，以 data: [DONE] 哨兵结束
//
// 家族内各 Provider 的差异仅在可选扩展字段（xai 的 search_parameters）。
package openaicompat

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/BaSui01/llmgate/catalog"
	"github.com/BaSui01/llmgate/providers"
	"github.com/BaSui01/llmgate/types"
)

// Family 实现 providers.Family。一个实例服务一个 Provider id，
// liveSearch 只对 xai 打开。
type Family struct {
	id         string
	liveSearch bool
}

// New 创建指定 Provider id 的家族实例。
func New(id string) *Family {
	return &Family{id: id, liveSearch: id == "xai"}
}

func (f *Family) ID() string { return f.id }

// Endpoint 返回 chat/completions 端点；流式与一元共用路径。
func (f *Family) Endpoint(base, model, key string, stream bool) string {
	return fmt.Sprintf("%s/chat/completions", strings.TrimRight(base, "/"))
}

// Headers 构造 Bearer Token 认证头。
func (f *Family) Headers(key string) http.Header {
	h := http.Header{}
	if key != "" {
		h.Set("Authorization", "Bearer "+key)
	}
	h.Set("Content-Type", "application/json")
	h.Set("Accept", "application/json")
	return h
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatToolFunction struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters"`
}

type chatTool struct {
	Type     string           `json:"type"`
	Function chatToolFunction `json:"function"`
}

type searchParameters struct {
	Mode string `json:"mode"`
}

type chatRequest struct {
	Model            string            `json:"model"`
	Messages         []chatMessage     `json:"messages"`
	Temperature      float32           `json:"temperature"`
	MaxTokens        int               `json:"max_tokens"`
	Stream           bool              `json:"stream,omitempty"`
	ReasoningEffort  string            `json:"reasoning_effort,omitempty"`
	Tools            []chatTool        `json:"tools,omitempty"`
	SearchParameters *searchParameters `json:"search_parameters,omitempty"`
}

// BuildBody 构造请求体。reasoning_effort 仅在模型声明 reasoning 能力
// 且调用方给出档位时出现；能力缺失时整个字段省略，绝不发送无效默认值。
func (f *Family) BuildBody(req *providers.Request) ([]byte, error) {
	msgs := make([]chatMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		msgs = append(msgs, chatMessage{Role: string(m.Role), Content: m.Content})
	}

	body := chatRequest{
		Model:       req.Model.ID,
		Messages:    msgs,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stream:      req.Stream,
	}

	if req.ReasoningEffort != "" && req.Model.HasCapability(catalog.CapReasoning) &&
		req.Model.SupportsEffort(req.ReasoningEffort) {
		body.ReasoningEffort = req.ReasoningEffort
	}

	for _, t := range req.Tools {
		body.Tools = append(body.Tools, chatTool{
			Type: "function",
			Function: chatToolFunction{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}

	if f.liveSearch && req.WebSearch && req.Model.HasCapability(catalog.CapSearch) {
		body.SearchParameters = &searchParameters{Mode: "auto"}
	}

	return json.Marshal(body)
}

type chatUsage struct {
	PromptTokens     *int `json:"prompt_tokens"`
	CompletionTokens *int `json:"completion_tokens"`
	Details          *struct {
		ReasoningTokens *int `json:"reasoning_tokens"`
	} `json:"completion_tokens_details"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content          string `json:"content"`
			ReasoningContent string `json:"reasoning_content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *chatUsage `json:"usage"`
}

// ParseResponse 提取首个 choice 的消息内容。choices 为空或解析失败时
// 退化为空内容结果。
func (f *Family) ParseResponse(data []byte) *types.Result {
	var resp chatResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return &types.Result{}
	}

	out := &types.Result{}
	if len(resp.Choices) > 0 {
		out.Content = resp.Choices[0].Message.Content
		out.Reasoning = resp.Choices[0].Message.ReasoningContent
		out.FinishReason = resp.Choices[0].FinishReason
	}
	if resp.Usage != nil {
		out.Usage.InputTokens = resp.Usage.PromptTokens
		out.Usage.OutputTokens = resp.Usage.CompletionTokens
		if resp.Usage.Details != nil {
			out.Usage.ReasoningTokens = resp.Usage.Details.ReasoningTokens
		}
	}
	return out
}

type chatStreamFrame struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *chatUsage `json:"usage"`
}

// ExtractChunk 提取单帧增量。流结束由 data: [DONE] 哨兵表达，
// 本方法不产生 done 信号。
func (f *Family) ExtractChunk(frame []byte) (types.StreamChunk, bool, bool) {
	var ev chatStreamFrame
	if err := json.Unmarshal(frame, &ev); err != nil {
		return types.StreamChunk{}, false, false
	}

	chunk := types.StreamChunk{}
	if len(ev.Choices) > 0 {
		chunk.Delta = ev.Choices[0].Delta.Content
		chunk.FinishReason = ev.Choices[0].FinishReason
	}
	if ev.Usage != nil {
		chunk.Usage = &types.Usage{
			InputTokens:  ev.Usage.PromptTokens,
			OutputTokens: ev.Usage.CompletionTokens,
		}
	}
	return chunk, true, false
}

// Sentinel 返回 OpenAI 兼容流的结束哨兵。
func (f *Family) Sentinel() string { return "[DONE]" }

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// ErrorMessage 提取 {"error":{"message":...}} 形式的错误信息。
func (f *Family) ErrorMessage(body []byte) string {
	var er errorResponse
	if err := json.Unmarshal(body, &er); err == nil && er.Error.Message != "" {
		if er.Error.Type != "" {
			return fmt.Sprintf("%s (type: %s)", er.Error.Message, er.Error.Type)
		}
		return er.Error.Message
	}
	return string(body)
}
