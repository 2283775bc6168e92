package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevelForPoints(t *testing.T) {
	cases := []struct {
		points int
		level  int
	}{
		{0, 1},
		{99, 1},
		{100, 2},
		{199, 2},
		{250, 3},
		{1000, 11},
		{-5, 1},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.level, LevelForPoints(tc.points), "points=%d", tc.points)
	}
}

func TestCalculateUserReward(t *testing.T) {
	// 5 kg of plastic at 10 points/kg for a level-3 user:
	// base 50, bonus 50*0.30 = 15.
	calc := CalculateUserReward(10, 5, 200, 3)
	assert.Equal(t, 50, calc.BasePoints)
	assert.Equal(t, 15, calc.BonusPoints)
	assert.Equal(t, 65, calc.TotalPoints)
	assert.False(t, calc.LevelUp)
	assert.Equal(t, 3, calc.NewLevel)
}

func TestCalculateUserRewardBonusCap(t *testing.T) {
	// Level 10 would give 100% but the user multiplier caps at 50%.
	calc := CalculateUserReward(10, 10, 0, 10)
	assert.Equal(t, 100, calc.BasePoints)
	assert.Equal(t, 50, calc.BonusPoints)
	assert.Equal(t, 150, calc.TotalPoints)
}

func TestCalculateUserRewardLevelUp(t *testing.T) {
	// 95 points at level 1; earning 10 crosses the 100-point boundary.
	calc := CalculateUserReward(10, 1, 95, 1)
	assert.Equal(t, 10, calc.TotalPoints)
	assert.True(t, calc.LevelUp)
	assert.Equal(t, 2, calc.NewLevel)
}

func TestCalculateUserRewardFloorsFractionalBase(t *testing.T) {
	// 1.5 kg at 5 points/kg = 7.5, floored to 7.
	calc := CalculateUserReward(5, 1.5, 0, 1)
	assert.Equal(t, 7, calc.BasePoints)
	assert.Equal(t, 0, calc.BonusPoints) // floor(7*0.10)
	assert.Equal(t, 7, calc.TotalPoints)
}

func TestCalculateUserRewardZeroQuantity(t *testing.T) {
	calc := CalculateUserReward(10, 0, 50, 1)
	assert.Equal(t, 0, calc.BasePoints)
	assert.Equal(t, 0, calc.TotalPoints)
	assert.False(t, calc.LevelUp)
}

func TestCalculateManagerReward(t *testing.T) {
	// Manager share is 10% of the base rate: floor(10*5*0.10) = 5.
	// Level 10 would give 50% but the manager multiplier caps at 25%.
	calc := CalculateManagerReward(10, 5, 900, 10)
	assert.Equal(t, 5, calc.BasePoints)
	assert.Equal(t, 1, calc.BonusPoints) // floor(5*0.25)
	assert.Equal(t, 6, calc.TotalPoints)
	assert.False(t, calc.LevelUp)
	assert.Equal(t, 10, calc.NewLevel)
}

func TestCalculateManagerRewardLowLevel(t *testing.T) {
	// Level 2 manager: multiplier 0.10 on a base of 5.
	calc := CalculateManagerReward(10, 5, 100, 2)
	assert.Equal(t, 5, calc.BasePoints)
	assert.Equal(t, 0, calc.BonusPoints)
	assert.Equal(t, 5, calc.TotalPoints)
}
