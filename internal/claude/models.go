// ABOUTME: Static catalog of Claude models supported by the Claude Code CLI
// ABOUTME: Provides lookup, validation with default fallback, and pricing metadata

package claude

// ModelInfo describes one supported Claude model.
type ModelInfo struct {
	ID              string
	Name            string
	Description     string
	MaxTokens       int
	InputCostPer1K  float64
	OutputCostPer1K float64
}

// Model identifiers matching the models the Claude Code CLI accepts.
const (
	ModelOpus4    = "claude-opus-4-20250514"
	ModelSonnet4  = "claude-sonnet-4-20250514"
	ModelSonnet37 = "claude-3-7-sonnet-20250219"
	ModelHaiku35  = "claude-3-5-haiku-20241022"
)

// DefaultModel is used when a request omits the model or names an unknown one.
const DefaultModel = ModelHaiku35

var catalog = []ModelInfo{
	{
		ID:              ModelOpus4,
		Name:            "Claude Opus 4",
		Description:     "Most powerful Claude model for complex reasoning",
		MaxTokens:       500000,
		InputCostPer1K:  15.0,
		OutputCostPer1K: 75.0,
	},
	{
		ID:              ModelSonnet4,
		Name:            "Claude Sonnet 4",
		Description:     "Latest Sonnet model with enhanced capabilities",
		MaxTokens:       500000,
		InputCostPer1K:  3.0,
		OutputCostPer1K: 15.0,
	},
	{
		ID:              ModelSonnet37,
		Name:            "Claude Sonnet 3.7",
		Description:     "Advanced Sonnet model for complex tasks",
		MaxTokens:       200000,
		InputCostPer1K:  3.0,
		OutputCostPer1K: 15.0,
	},
	{
		ID:              ModelHaiku35,
		Name:            "Claude Haiku 3.5",
		Description:     "Fast and cost-effective model for quick tasks",
		MaxTokens:       200000,
		InputCostPer1K:  0.25,
		OutputCostPer1K: 1.25,
	},
}

// AvailableModels returns the catalog of supported models.
func AvailableModels() []ModelInfo {
	models := make([]ModelInfo, len(catalog))
	copy(models, catalog)
	return models
}

// LookupModel returns the catalog entry for the given id.
func LookupModel(id string) (ModelInfo, bool) {
	for _, m := range catalog {
		if m.ID == id {
			return m, true
		}
	}
	return ModelInfo{}, false
}

// ValidateModel normalizes a requested model name. Unknown models fall back
// to the default rather than failing the request.
func ValidateModel(id string) string {
	if _, ok := LookupModel(id); ok {
		return id
	}
	return DefaultModel
}
