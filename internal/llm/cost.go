package llm

// costPerToken stores per-1K-token pricing for the vision models we route to.
// Prices in USD per 1K tokens: [input, output].
var costPerToken = map[string][2]float64{
	// OpenAI
	"gpt-4o":      {0.0025, 0.01},
	"gpt-4o-mini": {0.00015, 0.0006},
	"gpt-4.1":     {0.002, 0.008},

	// Gemini (OpenAI-compatible endpoint)
	"gemini-2.5-flash": {0.0003, 0.0025},
	"gemini-2.5-pro":   {0.00125, 0.01},

	// Anthropic
	"claude-3-haiku-20240307":  {0.00025, 0.00125},
	"claude-sonnet-4-20250514": {0.003, 0.015},
	"claude-opus-4-20250514":   {0.015, 0.075},
}

func CalculateCost(model string, inputTokens, outputTokens int) float64 {
	prices, ok := costPerToken[model]
	if !ok {
		return 0
	}
	inputCost := float64(inputTokens) / 1000.0 * prices[0]
	outputCost := float64(outputTokens) / 1000.0 * prices[1]
	return inputCost + outputCost
}
