package plan

// Entitlement keys known to the dashboard.
const (
	EntSearchCompare = "search.compare"
	EntEvidenceDiff  = "evidence.diff"
	EntNewsSentiment = "news.sentiment"
	EntFilingsExport = "filings.export"
	EntAlertRules    = "alerts.rules"
	EntRAGChat       = "rag.chat"
	EntChatMemory    = "memory.chat"
)

// TierPreset describes what a tier unlocks; used for local upgrade previews.
type TierPreset struct {
	Tier         Tier            `json:"tier"`
	Entitlements []string        `json:"entitlements"`
	FeatureFlags map[string]bool `json:"featureFlags"`
	MemoryFlags  map[string]bool `json:"memoryFlags"`
	Quota        Quota           `json:"quota"`
}

// DefaultPresets returns the built-in tier preset table, lowest tier first.
func DefaultPresets() []TierPreset {
	chatFree := 25
	exportFree := 500
	chatStarter := 200
	exportStarter := 5000
	chatPro := 1000
	exportPro := 50000

	return []TierPreset{
		{
			Tier:         TierFree,
			Entitlements: []string{},
			FeatureFlags: map[string]bool{},
			MemoryFlags:  map[string]bool{},
			Quota: Quota{
				ChatRequestsPerDay: &chatFree,
				RAGTopK:            4,
				ExportRowLimit:     &exportFree,
			},
		},
		{
			Tier:         TierStarter,
			Entitlements: []string{EntSearchCompare, EntNewsSentiment},
			FeatureFlags: map[string]bool{"searchCompare": true, "newsSentiment": true},
			MemoryFlags:  map[string]bool{"watchlistSync": true},
			Quota: Quota{
				ChatRequestsPerDay: &chatStarter,
				RAGTopK:            8,
				ExportRowLimit:     &exportStarter,
			},
		},
		{
			Tier: TierPro,
			Entitlements: []string{
				EntSearchCompare, EntNewsSentiment, EntEvidenceDiff,
				EntFilingsExport, EntAlertRules, EntRAGChat,
			},
			FeatureFlags: map[string]bool{
				"searchCompare": true, "newsSentiment": true, "evidenceDiff": true,
				"filingsExport": true, "alertRules": true,
			},
			MemoryFlags: map[string]bool{"chatMemory": true, "watchlistSync": true},
			Quota: Quota{
				ChatRequestsPerDay: &chatPro,
				RAGTopK:            16,
				SelfCheckEnabled:   true,
				ExportRowLimit:     &exportPro,
			},
		},
		{
			Tier: TierEnterprise,
			Entitlements: []string{
				EntSearchCompare, EntNewsSentiment, EntEvidenceDiff,
				EntFilingsExport, EntAlertRules, EntRAGChat, EntChatMemory,
			},
			FeatureFlags: map[string]bool{
				"searchCompare": true, "newsSentiment": true, "evidenceDiff": true,
				"filingsExport": true, "alertRules": true,
			},
			MemoryFlags: map[string]bool{
				"chatMemory": true, "watchlistSync": true, "preferenceRecall": true,
			},
			Quota: Quota{
				RAGTopK:          32,
				SelfCheckEnabled: true,
			},
		},
	}
}

// PresetFor returns the preset for a tier, defaulting to the free preset
// for unknown tiers.
func PresetFor(tier Tier) TierPreset {
	presets := DefaultPresets()
	for _, preset := range presets {
		if preset.Tier == tier {
			return preset
		}
	}
	return presets[0]
}
