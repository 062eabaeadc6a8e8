package types

// Tier identifies one independent retrieval source
type Tier string

const (
	TierPastQA     Tier = "past_qa"
	TierGeneral    Tier = "general"
	TierHistorical Tier = "historical"
	TierCognitive  Tier = "cognitive"
)

// AllTiers returns every tier in assembly order
func AllTiers() []Tier {
	return []Tier{
		TierPastQA,
		TierGeneral,
		TierHistorical,
		TierCognitive,
	}
}

// ContextTiers returns the tiers rendered into the system context block, in render order
func ContextTiers() []Tier {
	return []Tier{
		TierGeneral,
		TierHistorical,
		TierCognitive,
	}
}

// IsValid checks if the tier is valid
func (t Tier) IsValid() bool {
	switch t {
	case TierPastQA,
		TierGeneral,
		TierHistorical,
		TierCognitive:
		return true
	default:
		return false
	}
}

// Heading returns the section heading used when the tier is rendered into a prompt
func (t Tier) Heading() string {
	switch t {
	case TierPastQA:
		return "Past Questions and Answers"
	case TierGeneral:
		return "General Knowledge"
	case TierHistorical:
		return "Historical Context"
	case TierCognitive:
		return "Cognitive Knowledge"
	default:
		return string(t)
	}
}

// String returns the string representation of the tier
func (t Tier) String() string {
	return string(t)
}
