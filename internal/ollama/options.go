package ollama

// Options are the inference parameters sent with every chat call.
type Options struct {
	NumPredict    int     `json:"num_predict"`
	Temperature   float64 `json:"temperature"`
	TopP          float64 `json:"top_p"`
	TopK          int     `json:"top_k"`
	RepeatPenalty float64 `json:"repeat_penalty"`
	NumCtx        int     `json:"num_ctx"`
}

// FastOptions returns the low-latency inference preset. Output length,
// sampling pool, and context window are all cut down to trade quality
// for speed on small local models.
func FastOptions() Options {
	return Options{
		NumPredict:    384,
		Temperature:   0.5,
		TopP:          0.7,
		TopK:          20,
		RepeatPenalty: 1.1,
		NumCtx:        1024,
	}
}

// NormalOptions returns the balanced inference preset.
func NormalOptions() Options {
	return Options{
		NumPredict:    640,
		Temperature:   0.6,
		TopP:          0.8,
		TopK:          30,
		RepeatPenalty: 1.1,
		NumCtx:        2048,
	}
}

// DefaultOptions returns the preset matching the fast-mode flag.
func DefaultOptions(fastMode bool) Options {
	if fastMode {
		return FastOptions()
	}
	return NormalOptions()
}

// WithMaxTokens returns a copy of o with the output budget replaced.
// Non-positive values leave the budget unchanged.
func (o Options) WithMaxTokens(n int) Options {
	if n > 0 {
		o.NumPredict = n
	}
	return o
}

// WithTemperature returns a copy of o with the temperature replaced.
func (o Options) WithTemperature(t float64) Options {
	o.Temperature = t
	return o
}
