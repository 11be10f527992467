package usage

import (
	"github.com/pkoukk/tiktoken-go"

	"github.com/BaSui01/llmgate/types"
)

// estimateEncoding 是跨 Provider 预估时使用的统一编码。
// 各家 tokenizer 并不一致，预估只求量级正确。
const estimateEncoding = "cl100k_base"

// EstimateTokens 预估消息列表的输入 token 数，用于发送前的成本预览。
// tokenizer 不可用时回退到 len/4 的字符估算。
func EstimateTokens(messages []types.Message) int {
	enc, err := tiktoken.GetEncoding(estimateEncoding)
	if err != nil {
		total := 0
		for _, m := range messages {
			total += len(m.Content) / 4
		}
		return total
	}

	total := 0
	for _, m := range messages {
		// 每条消息的角色与分隔符开销按 4 token 计
		total += len(enc.Encode(m.Content, nil, nil)) + 4
	}
	return total
}
