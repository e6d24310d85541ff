package request

// ModelSpec describes a batch-capable model: the reasoning efforts it
// accepts and its Batch API pricing per 1M tokens.
type ModelSpec struct {
	Efforts     []string
	InputPer1M  float64
	OutputPer1M float64
}

// DefaultModel is used when no model is configured or passed.
const DefaultModel = "gpt-5.2-pro"

// Models is the set of models this tool knows how to submit reasoning
// parameters and estimate costs for. Unknown models can still be
// submitted, but reasoning is omitted and cost estimation is skipped.
var Models = map[string]ModelSpec{
	"gpt-5.2":     {Efforts: []string{"low", "medium", "high"}, InputPer1M: 0.875, OutputPer1M: 7.00},
	"o3-pro":      {Efforts: []string{"low", "medium", "high"}, InputPer1M: 10.00, OutputPer1M: 40.00},
	"gpt-5.2-pro": {Efforts: []string{"low", "medium", "high", "xhigh"}, InputPer1M: 10.50, OutputPer1M: 84.00},
}

func (m ModelSpec) supportsEffort(effort string) bool {
	for _, e := range m.Efforts {
		if e == effort {
			return true
		}
	}
	return false
}

// EstimateCost returns the estimated USD cost of a completed job from
// its token usage. ok is false when the model has no known pricing.
func EstimateCost(model string, inputTokens, outputTokens int64) (inputCost, outputCost, totalCost float64, ok bool) {
	spec, found := Models[model]
	if !found {
		return 0, 0, 0, false
	}
	inputCost = float64(inputTokens) / 1_000_000 * spec.InputPer1M
	outputCost = float64(outputTokens) / 1_000_000 * spec.OutputPer1M
	return inputCost, outputCost, inputCost + outputCost, true
}
