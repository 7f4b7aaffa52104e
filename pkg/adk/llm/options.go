package llm

// Options configures a provider transport
type Options struct {
	Model       string
	BaseURL     string
	MaxTokens   int
	Temperature *float64
}
