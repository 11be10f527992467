// Package anthropic 实现 Anthropic Messages API 的翻译器。
// 与 OpenAI 兼容家族的关键差异：
// 1. 认证使用 x-api-key 请求头加固定的 anthropic-version 协议头
// 2. system 消息不入消息列表，单独放在顶层 system 字段
// 3. 扩展思考通过 thinking.budget_tokens 控制
// 4. SSE 流没有 [DONE] 哨兵，以 message_stop 事件结束
package anthropic

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/BaSui01/llmgate/catalog"
	"github.com/BaSui01/llmgate/providers"
	"github.com/BaSui01/llmgate/types"
)

// Version 是随每个请求发送的协议版本头。
const Version = "2023-06-01"

// 思考档位到 budget_tokens 的映射。
var effortBudgets = map[string]int{
	"low":    1024,
	"medium": 8192,
	"high":   24576,
}

// Family 实现 providers.Family。
type Family struct{}

// New 创建 anthropic 家族实例。
func New() *Family { return &Family{} }

func (f *Family) ID() string { return "anthropic" }

// Endpoint 返回 messages 端点；流式与一元共用路径。
func (f *Family) Endpoint(base, model, key string, stream bool) string {
	return fmt.Sprintf("%s/messages", strings.TrimRight(base, "/"))
}

// Headers 构造 x-api-key 认证头与协议版本头。
func (f *Family) Headers(key string) http.Header {
	h := http.Header{}
	if key != "" {
		h.Set("x-api-key", key)
	}
	h.Set("anthropic-version", Version)
	h.Set("Content-Type", "application/json")
	h.Set("Accept", "application/json")
	return h
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema"`
}

type thinkingConfig struct {
	Type         string `json:"type"`
	BudgetTokens int    `json:"budget_tokens"`
}

type request struct {
	Model       string          `json:"model"`
	Messages    []message       `json:"messages"`
	System      string          `json:"system,omitempty"`
	MaxTokens   int             `json:"max_tokens"`
	Temperature float32         `json:"temperature,omitempty"`
	Stream      bool            `json:"stream,omitempty"`
	Thinking    *thinkingConfig `json:"thinking,omitempty"`
	Tools       []tool          `json:"tools,omitempty"`
}

// BuildBody 构造请求体。system 消息全部提取到顶层 system 字段
// （多条时以空行拼接），其余消息保持原有顺序。thinking 仅在模型声明
// reasoning 能力且调用方给出档位时出现。
func (f *Family) BuildBody(req *providers.Request) ([]byte, error) {
	var systems []string
	msgs := make([]message, 0, len(req.Messages))
	for _, m := range req.Messages {
		if m.Role == types.RoleSystem {
			systems = append(systems, m.Content)
			continue
		}
		msgs = append(msgs, message{Role: string(m.Role), Content: m.Content})
	}

	body := request{
		Model:       req.Model.ID,
		Messages:    msgs,
		System:      strings.Join(systems, "\n\n"),
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Stream:      req.Stream,
	}

	if req.ReasoningEffort != "" && req.Model.HasCapability(catalog.CapReasoning) {
		if budget, ok := effortBudgets[req.ReasoningEffort]; ok {
			body.Thinking = &thinkingConfig{Type: "enabled", BudgetTokens: budget}
		}
	}

	for _, t := range req.Tools {
		body.Tools = append(body.Tools, tool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.Parameters,
		})
	}

	return json.Marshal(body)
}

type contentBlock struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	Thinking string `json:"thinking,omitempty"`
}

type usage struct {
	InputTokens  *int `json:"input_tokens"`
	OutputTokens *int `json:"output_tokens"`
}

type response struct {
	Content    []contentBlock `json:"content"`
	StopReason string         `json:"stop_reason"`
	Usage      *usage         `json:"usage"`
}

// ParseResponse 拼接全部 text 块为内容、thinking 块为推理文本。
// 内容块缺失时退化为空内容结果。
func (f *Family) ParseResponse(data []byte) *types.Result {
	var resp response
	if err := json.Unmarshal(data, &resp); err != nil {
		return &types.Result{}
	}

	out := &types.Result{FinishReason: resp.StopReason}
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			out.Content += block.Text
		case "thinking":
			out.Reasoning += block.Thinking
		}
	}
	if resp.Usage != nil {
		out.Usage.InputTokens = resp.Usage.InputTokens
		out.Usage.OutputTokens = resp.Usage.OutputTokens
	}
	return out
}

type streamEvent struct {
	Type  string `json:"type"`
	Delta *struct {
		Type       string `json:"type"`
		Text       string `json:"text,omitempty"`
		StopReason string `json:"stop_reason,omitempty"`
	} `json:"delta"`
	Usage *usage `json:"usage"`
}

// ExtractChunk 按事件类型分派：
// content_block_delta/text_delta 产生内容增量，message_delta 携带
// stop_reason 与输出用量，message_stop 是流结束信号。
// thinking_delta 等其余事件被丢弃。
func (f *Family) ExtractChunk(frame []byte) (types.StreamChunk, bool, bool) {
	var ev streamEvent
	if err := json.Unmarshal(frame, &ev); err != nil {
		return types.StreamChunk{}, false, false
	}

	switch ev.Type {
	case "content_block_delta":
		if ev.Delta != nil && ev.Delta.Type == "text_delta" {
			return types.StreamChunk{Delta: ev.Delta.Text}, true, false
		}
		return types.StreamChunk{}, false, false

	case "message_delta":
		chunk := types.StreamChunk{}
		if ev.Delta != nil {
			chunk.FinishReason = ev.Delta.StopReason
		}
		if ev.Usage != nil {
			chunk.Usage = &types.Usage{
				InputTokens:  ev.Usage.InputTokens,
				OutputTokens: ev.Usage.OutputTokens,
			}
		}
		return chunk, true, false

	case "message_stop":
		return types.StreamChunk{}, false, true

	default:
		return types.StreamChunk{}, false, false
	}
}

// Sentinel 返回空串：anthropic 流以 message_stop 事件结束。
func (f *Family) Sentinel() string { return "" }

type errorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// ErrorMessage 提取 anthropic 的结构化错误信息。
func (f *Family) ErrorMessage(body []byte) string {
	var er errorResponse
	if err := json.Unmarshal(body, &er); err == nil && er.Error.Message != "" {
		return fmt.Sprintf("%s (type: %s)", er.Error.Message, er.Error.Type)
	}
	return string(body)
}
