package gateway

import (
	"fmt"
	"time"

	"github.com/BaSui01/llmgate/catalog"
	"github.com/BaSui01/llmgate/types"
)

// 生成参数默认值。
const (
	DefaultTemperature float32 = 0.7
	DefaultMaxTokens           = 8192
	DefaultTimeout             = 60 * time.Second
)

// ClientConfig 是网关当前生效的配置。
// 不变量：ModelID 必须存在于 ProviderID 的模型目录之下；
// 每次变更都经过 Resolve 校验，而不只是构造时。
type ClientConfig struct {
	ProviderID      string        `json:"provider_id"`
	ModelID         string        `json:"model_id"`
	Temperature     float32       `json:"temperature"`
	MaxTokens       int           `json:"max_tokens"`
	ReasoningEffort string        `json:"reasoning_effort,omitempty"`
	Timeout         time.Duration `json:"timeout"`
}

// Resolve 校验 provider/model 组合并返回带默认生成参数的配置。
// modelID 为空时选择该 Provider 的默认模型；切换 Provider 而不指定
// 模型时绝不沿用上一个 Provider 的模型 id（跨 Provider 模型 id 不可
// 互换）。
func Resolve(providerID, modelID string) (ClientConfig, error) {
	p, ok := catalog.Provider(providerID)
	if !ok {
		return ClientConfig{}, types.NewError(types.ErrUnknownProvider,
			fmt.Sprintf("unknown provider %q", providerID))
	}

	var model catalog.ModelDescriptor
	if modelID == "" {
		model = p.DefaultModel()
	} else {
		model, ok = p.Model(modelID)
		if !ok {
			return ClientConfig{}, types.NewError(types.ErrUnknownModel,
				fmt.Sprintf("unknown model %q for provider %q", modelID, providerID)).WithProvider(providerID)
		}
	}

	return ClientConfig{
		ProviderID:  p.ID,
		ModelID:     model.ID,
		Temperature: DefaultTemperature,
		MaxTokens:   DefaultMaxTokens,
		Timeout:     DefaultTimeout,
	}, nil
}

// Snapshot 是 Configure 返回的生效配置快照，供调用方渲染选择界面。
type Snapshot struct {
	ProviderID    string               `json:"provider_id"`
	ProviderName  string               `json:"provider_name"`
	ModelID       string               `json:"model_id"`
	ModelName     string               `json:"model_name"`
	ContextWindow int                  `json:"context_window"`
	MaxOutput     int                  `json:"max_output"`
	Capabilities  []catalog.Capability `json:"capabilities"`
	InputPrice    float64              `json:"input_price"`
	OutputPrice   float64              `json:"output_price"`
	Temperature   float32              `json:"temperature"`
	MaxTokens     int                  `json:"max_tokens"`
	Timeout       time.Duration        `json:"timeout"`
}

func snapshotOf(cfg ClientConfig) Snapshot {
	p, _ := catalog.Provider(cfg.ProviderID)
	m, _ := p.Model(cfg.ModelID)
	return Snapshot{
		ProviderID:    p.ID,
		ProviderName:  p.Name,
		ModelID:       m.ID,
		ModelName:     m.Name,
		ContextWindow: m.ContextWindow,
		MaxOutput:     m.MaxOutput,
		Capabilities:  m.Capabilities,
		InputPrice:    m.InputPrice,
		OutputPrice:   m.OutputPrice,
		Temperature:   cfg.Temperature,
		MaxTokens:     cfg.MaxTokens,
		Timeout:       cfg.Timeout,
	}
}
