// Package catalog 提供内置的 Provider/模型注册表。
// 目录在进程启动时从内嵌 YAML 加载一次，运行期只读，并发读取安全。
package catalog

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Capability 是模型声明的能力标签，用于门控可选请求字段。
type Capability string

const (
	CapVision    Capability = "vision"
	CapTools     Capability = "tools"
	CapReasoning Capability = "reasoning"
	CapCaching   Capability = "caching"
	CapSearch    Capability = "search"
)

// ModelDescriptor 描述一个 Provider 下的具体模型。
type ModelDescriptor struct {
	ID               string       `yaml:"id"`
	Name             string       `yaml:"name"`
	ContextWindow    int          `yaml:"context_window"`
	MaxOutput        int          `yaml:"max_output"`
	InputPrice       float64      `yaml:"input_price"`  // USD / 1M tokens
	OutputPrice      float64      `yaml:"output_price"` // USD / 1M tokens
	Capabilities     []Capability `yaml:"capabilities"`
	ReasoningEfforts []string     `yaml:"reasoning_efforts"`
	Default          bool         `yaml:"default"`
}

// HasCapability 判断模型是否声明了指定能力。
func (m ModelDescriptor) HasCapability(c Capability) bool {
	for _, cap := range m.Capabilities {
		if cap == c {
			return true
		}
	}
	return false
}

// SupportsEffort 判断模型是否接受指定的 reasoning 档位。
func (m ModelDescriptor) SupportsEffort(effort string) bool {
	for _, e := range m.ReasoningEfforts {
		if e == effort {
			return true
		}
	}
	return false
}

// ProviderDescriptor 描述一个 Provider 及其模型列表（保持声明顺序）。
type ProviderDescriptor struct {
	ID       string            `yaml:"id"`
	Name     string            `yaml:"name"`
	Endpoint string            `yaml:"endpoint"`
	Models   []ModelDescriptor `yaml:"models"`
}

// Model 按 id 查找模型。
func (p ProviderDescriptor) Model(id string) (ModelDescriptor, bool) {
	for _, m := range p.Models {
		if m.ID == id {
			return m, true
		}
	}
	return ModelDescriptor{}, false
}

// DefaultModel 返回标记为 default 的模型；没有标记时回退到首个声明的模型。
func (p ProviderDescriptor) DefaultModel() ModelDescriptor {
	for _, m := range p.Models {
		if m.Default {
			return m
		}
	}
	return p.Models[0]
}

//go:embed catalog.yaml
var catalogYAML []byte

type document struct {
	Providers []ProviderDescriptor `yaml:"providers"`
}

var (
	ordered []ProviderDescriptor
	byID    map[string]ProviderDescriptor
)

func init() {
	var doc document
	if err := yaml.Unmarshal(catalogYAML, &doc); err != nil {
		panic(fmt.Sprintf("catalog: invalid embedded catalog.yaml: %v", err))
	}
	byID = make(map[string]ProviderDescriptor, len(doc.Providers))
	for _, p := range doc.Providers {
		if len(p.Models) == 0 {
			panic(fmt.Sprintf("catalog: provider %q declares no models", p.ID))
		}
		byID[p.ID] = p
	}
	ordered = doc.Providers
}

// Provider 按 id 查找 Provider。
func Provider(id string) (ProviderDescriptor, bool) {
	p, ok := byID[id]
	return p, ok
}

// Model 按 Provider id 与模型 id 查找模型。
func Model(providerID, modelID string) (ModelDescriptor, bool) {
	p, ok := byID[providerID]
	if !ok {
		return ModelDescriptor{}, false
	}
	return p.Model(modelID)
}

// DefaultModel 返回 Provider 的默认模型。
func DefaultModel(providerID string) (ModelDescriptor, bool) {
	p, ok := byID[providerID]
	if !ok {
		return ModelDescriptor{}, false
	}
	return p.DefaultModel(), true
}

// ModelListing 是 List 输出中的单个模型条目。
type ModelListing struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	ContextWindow int          `json:"context_window"`
	Capabilities  []Capability `json:"capabilities"`
	IsDefault     bool         `json:"is_default"`
}

// ProviderListing 是 List 输出中的单个 Provider 条目。
type ProviderListing struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Models []ModelListing `json:"models"`
}

// List 返回全部 Provider 及模型的展示信息，供选择界面使用。
// 输出只含目录元数据，不含任何凭据。
func List() []ProviderListing {
	out := make([]ProviderListing, 0, len(ordered))
	for _, p := range ordered {
		def := p.DefaultModel()
		models := make([]ModelListing, 0, len(p.Models))
		for _, m := range p.Models {
			models = append(models, ModelListing{
				ID:            m.ID,
				Name:          m.Name,
				ContextWindow: m.ContextWindow,
				Capabilities:  m.Capabilities,
				IsDefault:     m.ID == def.ID,
			})
		}
		out = append(out, ProviderListing{ID: p.ID, Name: p.Name, Models: models})
	}
	return out
}

// IDs 返回全部 Provider id（声明顺序）。
func IDs() []string {
	ids := make([]string, 0, len(ordered))
	for _, p := range ordered {
		ids = append(ids, p.ID)
	}
	return ids
}
