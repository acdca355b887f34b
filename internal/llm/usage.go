package llm

// Usage accounts for token consumption on a single Response. Every field is
// optional because not every provider reports every figure; addition is
// field-wise with None-preserving semantics: two unset fields stay unset,
// otherwise missing is treated as zero.
type Usage struct {
	InputTokens  *int `json:"input_tokens,omitempty"`
	OutputTokens *int `json:"output_tokens,omitempty"`
	TotalTokens  *int `json:"total_tokens,omitempty"`

	ReasoningTokens *int `json:"reasoning_tokens,omitempty"`
	CacheReadTokens  *int `json:"cache_read_tokens,omitempty"`
	CacheWriteTokens *int `json:"cache_write_tokens,omitempty"`
}

func addPtr(a, b *int) *int {
	if a == nil && b == nil {
		return nil
	}
	av, bv := 0, 0
	if a != nil {
		av = *a
	}
	if b != nil {
		bv = *b
	}
	sum := av + bv
	return &sum
}

// Add returns the field-wise sum of u and other. Associative and
// commutative: (a+b)+c == a+(b+c), and u+Usage{} == u.
func (u Usage) Add(other Usage) Usage {
	return Usage{
		InputTokens:      addPtr(u.InputTokens, other.InputTokens),
		OutputTokens:     addPtr(u.OutputTokens, other.OutputTokens),
		TotalTokens:      addPtr(u.TotalTokens, other.TotalTokens),
		ReasoningTokens:  addPtr(u.ReasoningTokens, other.ReasoningTokens),
		CacheReadTokens:  addPtr(u.CacheReadTokens, other.CacheReadTokens),
		CacheWriteTokens: addPtr(u.CacheWriteTokens, other.CacheWriteTokens),
	}
}

// IntOr returns the pointer's value, or the default if nil.
func IntOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

// IntPtr is a convenience constructor for the pointer-typed Usage fields.
func IntPtr(v int) *int { return &v }
