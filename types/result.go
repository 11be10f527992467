package types

// Usage reports token consumption for a single completion. Each field is a
// pointer because providers report different subsets; an unset field means
// "not reported", which is distinct from a reported zero.
type Usage struct {
	InputTokens     *int `json:"input_tokens,omitempty"`
	OutputTokens    *int `json:"output_tokens,omitempty"`
	ReasoningTokens *int `json:"reasoning_tokens,omitempty"`
}

// Tokens is a convenience constructor for a reported token count.
func Tokens(n int) *int { return &n }

// Result is the normalized outcome of a unary completion.
// Content may legitimately be empty (safety filtering, empty completions);
// an empty Content is a valid result, not an error. FinishReason is the
// provider-supplied token verbatim and is not enumerated cross-provider.
type Result struct {
	Content      string `json:"content"`
	Reasoning    string `json:"reasoning,omitempty"`
	Usage        Usage  `json:"usage"`
	FinishReason string `json:"finish_reason,omitempty"`
}

// StreamChunk is one increment of a streaming completion. Delta may be
// empty; FinishReason and Usage are set only on the frames that carry them.
// A stream is a finite, forward-only, non-restartable sequence of chunks.
type StreamChunk struct {
	Delta        string `json:"delta"`
	FinishReason string `json:"finish_reason,omitempty"`
	Usage        *Usage `json:"usage,omitempty"`
}
