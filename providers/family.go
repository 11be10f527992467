// Package providers 定义 Provider 家族的翻译契约与注册表。
// 每个家族负责同一件事的四个面：请求体构造、认证头构造、响应解析、
// 流式增量提取。家族实现是无状态的纯翻译器，网络调度由 gateway 负责。
package providers

import (
	"net/http"

	"github.com/BaSui01/llmgate/catalog"
	"github.com/BaSui01/llmgate/types"
)

// Request 是交给家族翻译器的归一化请求。
// 字段已经过配置合并与能力校验前置处理；翻译器对不支持的可选项
// 采取静默忽略策略（无效的 Provider 选择在配置层已经失败）。
type Request struct {
	Model           catalog.ModelDescriptor
	Messages        []types.Message
	Temperature     float32
	MaxTokens       int
	ReasoningEffort string
	Tools           []types.ToolSchema
	WebSearch       bool
	Stream          bool
}

// Family 是单个 Provider 家族的翻译契约。
// 实现必须逐字节复刻对应厂商的请求线格式（字段名、嵌套结构），
// 响应侧则宽容解析：预期路径缺失时退化为空内容，而不是报错。
type Family interface {
	// ID 返回家族标识。
	ID() string

	// Endpoint 构造请求 URL。gemini 家族把模型与密钥编码进 URL，
	// 其余家族使用固定路径、模型放在请求体内。
	Endpoint(base, model, key string, stream bool) string

	// Headers 构造认证头。密钥走 URL 的家族返回的头中不含凭据。
	Headers(key string) http.Header

	// BuildBody 把归一化请求翻译为该家族的请求体。
	BuildBody(req *Request) ([]byte, error)

	// ParseResponse 从完整响应中提取归一化结果。永不返回错误：
	// 内容路径缺失（如安全过滤导致的空补全）是合法结果。
	// 未上报的用量字段保持未设置，以区分「零」与「未上报」。
	ParseResponse(data []byte) *types.Result

	// ExtractChunk 从单个流式帧提取增量。ok=false 表示丢弃该帧，
	// done=true 表示该帧是家族自身的流结束信号。
	ExtractChunk(frame []byte) (chunk types.StreamChunk, ok bool, done bool)

	// Sentinel 返回流结束哨兵载荷；空串表示该家族以 EOF 或
	// ExtractChunk 的 done 信号结束。
	Sentinel() string

	// ErrorMessage 尽力从非 2xx 响应体中提取厂商的结构化错误信息，
	// 解析失败时返回原始文本。
	ErrorMessage(body []byte) string
}
