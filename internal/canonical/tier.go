package canonical

// Client tier thresholds. Lower tier number means larger client. The
// employee thresholds intentionally bottom out at 50, above the parser
// floor of 20: a 30-person company is a valid record but carries no tier.
var (
	tierEmployeeThresholds = []int{2000, 1000, 500, 200, 50}
	tierRevenueThresholds  = []float64{500e6, 200e6, 50e6, 20e6, 10e6}
)

// ClientTier computes min(tier_emp, tier_rev), treating a missing dimension
// as +∞. Returns nil when both dimensions are below threshold or absent.
func ClientTier(employees *int, revenueEUR *float64) *int {
	empTier := 0
	if employees != nil {
		for i, threshold := range tierEmployeeThresholds {
			if *employees >= threshold {
				empTier = i + 1
				break
			}
		}
	}

	revTier := 0
	if revenueEUR != nil {
		for i, threshold := range tierRevenueThresholds {
			if *revenueEUR >= threshold {
				revTier = i + 1
				break
			}
		}
	}

	switch {
	case empTier == 0 && revTier == 0:
		return nil
	case empTier == 0:
		return &revTier
	case revTier == 0:
		return &empTier
	case empTier < revTier:
		return &empTier
	default:
		return &revTier
	}
}
