// Package gemini 实现 Google Gemini generateContent API 的翻译器。
// 与其他家族的关键差异：
// 1. 凭据作为 URL 查询参数（key=）传递，不走认证头
// 2. 模型 id 编码进 URL 路径，一元与流式使用不同的动作后缀
// 3. assistant 角色映射为 model，system 消息提取到 systemInstruction
// 4. SSE 流（alt=sse）没有结束哨兵，以 EOF 结束
package gemini

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/BaSui01/llmgate/catalog"
	"github.com/BaSui01/llmgate/providers"
	"github.com/BaSui01/llmgate/types"
)

// 思考档位到 thinkingBudget 的映射。
var effortBudgets = map[string]int{
	"low":    1024,
	"medium": 8192,
	"high":   24576,
}

// Family 实现 providers.Family。
type Family struct{}

// New 创建 gemini 家族实例。
func New() *Family { return &Family{} }

func (f *Family) ID() string { return "gemini" }

// Endpoint 把模型与密钥编码进 URL。流式走 streamGenerateContent 并
// 指定 alt=sse 以获得 data: 前缀的事件流帧。
func (f *Family) Endpoint(base, model, key string, stream bool) string {
	action := "generateContent"
	query := ""
	if stream {
		action = "streamGenerateContent"
		query = "alt=sse&"
	}
	return fmt.Sprintf("%s/models/%s:%s?%skey=%s",
		strings.TrimRight(base, "/"), model, action, query, url.QueryEscape(key))
}

// Headers 只设置内容类型；凭据在 URL 中。
func (f *Family) Headers(key string) http.Header {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	return h
}

type part struct {
	Text    string `json:"text,omitempty"`
	Thought bool   `json:"thought,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type functionDeclaration struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

type tool struct {
	FunctionDeclarations []functionDeclaration `json:"functionDeclarations,omitempty"`
	GoogleSearch         *struct{}             `json:"googleSearch,omitempty"`
}

type thinkingConfig struct {
	ThinkingBudget int `json:"thinkingBudget"`
}

type generationConfig struct {
	Temperature     float32         `json:"temperature,omitempty"`
	MaxOutputTokens int             `json:"maxOutputTokens,omitempty"`
	ThinkingConfig  *thinkingConfig `json:"thinkingConfig,omitempty"`
}

type request struct {
	Contents          []content         `json:"contents"`
	SystemInstruction *content          `json:"systemInstruction,omitempty"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
	Tools             []tool            `json:"tools,omitempty"`
}

// BuildBody 构造请求体。assistant 映射为 model；system 消息提取到
// systemInstruction（多条时以空行拼接）；thinkingConfig 仅在模型声明
// reasoning 能力且调用方给出档位时出现；googleSearch 工具仅在调用方
// 请求且模型声明 search 能力时附加。
func (f *Family) BuildBody(req *providers.Request) ([]byte, error) {
	var systems []string
	contents := make([]content, 0, len(req.Messages))
	for _, m := range req.Messages {
		if m.Role == types.RoleSystem {
			systems = append(systems, m.Content)
			continue
		}
		role := string(m.Role)
		if m.Role == types.RoleAssistant {
			role = "model"
		}
		contents = append(contents, content{Role: role, Parts: []part{{Text: m.Content}}})
	}

	body := request{
		Contents: contents,
		GenerationConfig: &generationConfig{
			Temperature:     req.Temperature,
			MaxOutputTokens: req.MaxTokens,
		},
	}
	if len(systems) > 0 {
		body.SystemInstruction = &content{Parts: []part{{Text: strings.Join(systems, "\n\n")}}}
	}

	if req.ReasoningEffort != "" && req.Model.HasCapability(catalog.CapReasoning) {
		if budget, ok := effortBudgets[req.ReasoningEffort]; ok {
			body.GenerationConfig.ThinkingConfig = &thinkingConfig{ThinkingBudget: budget}
		}
	}

	if len(req.Tools) > 0 {
		declarations := make([]functionDeclaration, 0, len(req.Tools))
		for _, t := range req.Tools {
			declarations = append(declarations, functionDeclaration{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			})
		}
		body.Tools = append(body.Tools, tool{FunctionDeclarations: declarations})
	}
	if req.WebSearch && req.Model.HasCapability(catalog.CapSearch) {
		body.Tools = append(body.Tools, tool{GoogleSearch: &struct{}{}})
	}

	return json.Marshal(body)
}

type usageMetadata struct {
	PromptTokenCount     *int `json:"promptTokenCount"`
	CandidatesTokenCount *int `json:"candidatesTokenCount"`
	ThoughtsTokenCount   *int `json:"thoughtsTokenCount"`
}

type candidate struct {
	Content      content `json:"content"`
	FinishReason string  `json:"finishReason"`
}

type response struct {
	Candidates    []candidate    `json:"candidates"`
	UsageMetadata *usageMetadata `json:"usageMetadata"`
}

// ParseResponse 拼接首个 candidate 的全部文本 parts；thought 标记的
// part 归入推理文本。candidates 缺失（如安全过滤）时退化为空内容结果。
func (f *Family) ParseResponse(data []byte) *types.Result {
	var resp response
	if err := json.Unmarshal(data, &resp); err != nil {
		return &types.Result{}
	}

	out := &types.Result{}
	if len(resp.Candidates) > 0 {
		c := resp.Candidates[0]
		out.FinishReason = c.FinishReason
		for _, p := range c.Content.Parts {
			if p.Thought {
				out.Reasoning += p.Text
			} else {
				out.Content += p.Text
			}
		}
	}
	if resp.UsageMetadata != nil {
		out.Usage.InputTokens = resp.UsageMetadata.PromptTokenCount
		out.Usage.OutputTokens = resp.UsageMetadata.CandidatesTokenCount
		out.Usage.ReasoningTokens = resp.UsageMetadata.ThoughtsTokenCount
	}
	return out
}

// ExtractChunk 提取单帧增量。帧结构与一元响应同形；流结束由 EOF 表达，
// 本方法不产生 done 信号。
func (f *Family) ExtractChunk(frame []byte) (types.StreamChunk, bool, bool) {
	var resp response
	if err := json.Unmarshal(frame, &resp); err != nil {
		return types.StreamChunk{}, false, false
	}

	chunk := types.StreamChunk{}
	if len(resp.Candidates) > 0 {
		c := resp.Candidates[0]
		chunk.FinishReason = c.FinishReason
		for _, p := range c.Content.Parts {
			if !p.Thought {
				chunk.Delta += p.Text
			}
		}
	}
	if resp.UsageMetadata != nil {
		chunk.Usage = &types.Usage{
			InputTokens:     resp.UsageMetadata.PromptTokenCount,
			OutputTokens:    resp.UsageMetadata.CandidatesTokenCount,
			ReasoningTokens: resp.UsageMetadata.ThoughtsTokenCount,
		}
	}
	return chunk, true, false
}

// Sentinel 返回空串：gemini 流以 EOF 结束。
func (f *Family) Sentinel() string { return "" }

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// ErrorMessage 提取 gemini 的结构化错误信息。
func (f *Family) ErrorMessage(body []byte) string {
	var er errorResponse
	if err := json.Unmarshal(body, &er); err == nil && er.Error.Message != "" {
		return fmt.Sprintf("%s (status: %s)", er.Error.Message, er.Error.Status)
	}
	return string(body)
}
