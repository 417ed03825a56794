// Package grok implements the Grok provider adapter: SSO token ranking,
// Statsig fingerprint headers, proxy-rotated retries, media caching, and
// background quota refresh, per the orchestration engine's Grok adapter
// design.
package grok

// ModelInfo binds a public model id to the upstream grokModel/modelMode
// pair, its rate-limit model id, a cost multiplier, and whether it requires
// an ssoSuper token.
type ModelInfo struct {
	ModelID        string
	GrokModel      string
	ModelMode      string
	RateLimitModel string
	CostMultiplier float64
	RequiresSuper  bool
}

// HeavyModelID is the sole model gated to ssoSuper tokens.
const HeavyModelID = "grok-4-heavy"

// ImageModelID is the image/video generation model.
const ImageModelID = "grok-imagine-0.9"

// Models is the abbreviated model table: seven text/reasoning models plus
// the image/video model.
var Models = []ModelInfo{
	{ModelID: "grok-3", GrokModel: "grok-3", ModelMode: "MODEL_MODE_GROK_3", RateLimitModel: "grok-3", CostMultiplier: 1},
	{ModelID: "grok-3-thinking", GrokModel: "grok-3", ModelMode: "MODEL_MODE_REASONING", RateLimitModel: "grok-3", CostMultiplier: 1},
	{ModelID: "grok-3-deepsearch", GrokModel: "grok-3", ModelMode: "MODEL_MODE_DEEPSEARCH", RateLimitModel: "grok-3", CostMultiplier: 2},
	{ModelID: "grok-4", GrokModel: "grok-4", ModelMode: "MODEL_MODE_GROK_4", RateLimitModel: "grok-4", CostMultiplier: 2},
	{ModelID: "grok-4-fast", GrokModel: "grok-4-fast", ModelMode: "MODEL_MODE_GROK_4", RateLimitModel: "grok-4-fast", CostMultiplier: 1},
	{ModelID: "grok-4-heavy", GrokModel: "grok-4-heavy", ModelMode: "MODEL_MODE_HEAVY", RateLimitModel: "grok-4-heavy", CostMultiplier: 5, RequiresSuper: true},
	{ModelID: "grok-4-expert", GrokModel: "grok-4", ModelMode: "MODEL_MODE_EXPERT", RateLimitModel: "grok-4", CostMultiplier: 3},
	{ModelID: ImageModelID, GrokModel: "grok-3", ModelMode: "MODEL_MODE_GROK_3", RateLimitModel: "grok-3", CostMultiplier: 1},
}

func lookupModel(modelID string) (ModelInfo, bool) {
	for _, m := range Models {
		if m.ModelID == modelID {
			return m, true
		}
	}
	return ModelInfo{}, false
}

// ModelIDs lists every public model id this adapter serves.
func ModelIDs() []string {
	ids := make([]string, len(Models))
	for i, m := range Models {
		ids[i] = m.ModelID
	}
	return ids
}
