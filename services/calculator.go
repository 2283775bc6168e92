package services

import "math"

// Reward calculation constants. Users earn the full base rate plus a
// level-scaled bonus capped at 50%; processing managers earn a flat 10% of
// the base rate plus a level-scaled bonus capped at 25%.
const (
	PointsPerLevel = 100

	userBonusPerLevel = 0.10
	userBonusCap      = 0.50

	managerBaseShare     = 0.10
	managerBonusPerLevel = 0.05
	managerBonusCap      = 0.25
)

// RewardCalculation is the result of the pure points computation for a single
// disposal or processing event.
type RewardCalculation struct {
	BasePoints  int  `json:"base_points"`
	BonusPoints int  `json:"bonus_points"`
	TotalPoints int  `json:"total_points"`
	LevelUp     bool `json:"level_up"`
	NewLevel    int  `json:"new_level"`
}

// LevelForPoints derives the level that corresponds to a point balance:
// floor(points/100) + 1.
func LevelForPoints(points int) int {
	if points < 0 {
		points = 0
	}
	return points/PointsPerLevel + 1
}

// CalculateUserReward computes the points a disposing user earns.
func CalculateUserReward(pointsPerUnit, quantity float64, currentPoints, currentLevel int) RewardCalculation {
	base := int(math.Floor(pointsPerUnit * quantity))
	multiplier := math.Min(float64(currentLevel)*userBonusPerLevel, userBonusCap)
	return applyBonus(base, multiplier, currentPoints, currentLevel)
}

// CalculateManagerReward computes the points a processing manager earns:
// a flat share of the base rate, then the manager bonus curve on top.
func CalculateManagerReward(pointsPerUnit, quantity float64, currentPoints, currentLevel int) RewardCalculation {
	base := int(math.Floor(pointsPerUnit * quantity * managerBaseShare))
	multiplier := math.Min(float64(currentLevel)*managerBonusPerLevel, managerBonusCap)
	return applyBonus(base, multiplier, currentPoints, currentLevel)
}

func applyBonus(basePoints int, multiplier float64, currentPoints, currentLevel int) RewardCalculation {
	bonus := int(math.Floor(float64(basePoints) * multiplier))
	total := basePoints + bonus
	newLevel := LevelForPoints(currentPoints + total)
	return RewardCalculation{
		BasePoints:  basePoints,
		BonusPoints: bonus,
		TotalPoints: total,
		LevelUp:     newLevel > currentLevel,
		NewLevel:    newLevel,
	}
}
