package enums

import "fmt"

// PlanTier names a rung on the fixed plan ladder. The ladder is a total
// order and is the only authority for upgrade/downgrade decisions; rank is
// never inferred from price, which may diverge during promotions.
type PlanTier string

const (
	PlanTierFree       PlanTier = "free"
	PlanTierBasic      PlanTier = "basic"
	PlanTierPro        PlanTier = "pro"
	PlanTierEnterprise PlanTier = "enterprise"
)

var validPlanTiers = []PlanTier{
	PlanTierFree,
	PlanTierBasic,
	PlanTierPro,
	PlanTierEnterprise,
}

var planTierLevels = map[PlanTier]int{
	PlanTierFree:       0,
	PlanTierBasic:      1,
	PlanTierPro:        2,
	PlanTierEnterprise: 3,
}

// String implements fmt.Stringer.
func (p PlanTier) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PlanTier.
func (p PlanTier) IsValid() bool {
	for _, candidate := range validPlanTiers {
		if candidate == p {
			return true
		}
	}
	return false
}

// Level returns the tier's rank on the ladder. Unrecognized names rank as
// free.
func (p PlanTier) Level() int {
	if level, ok := planTierLevels[p]; ok {
		return level
	}
	return 0
}

// ParsePlanTier converts raw input into a PlanTier.
func ParsePlanTier(value string) (PlanTier, error) {
	for _, candidate := range validPlanTiers {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid plan tier %q", value)
}
