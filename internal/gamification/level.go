package gamification

// LevelCost returns the points needed to go from level k to k+1.
func LevelCost(k int) int {
	return 100 + (k-1)*50
}

// LevelFromPoints maps a point balance onto the level curve.
// Level 1 covers 0-99, level 2 starts at 100, level 3 at 250, level 4 at 450.
// Balances below zero stay at level 1.
func LevelFromPoints(points int) int {
	level := 1
	remaining := points
	for remaining >= LevelCost(level) {
		remaining -= LevelCost(level)
		level++
	}
	return level
}

// LevelThreshold returns the minimum balance for the given level.
func LevelThreshold(level int) int {
	total := 0
	for k := 1; k < level; k++ {
		total += LevelCost(k)
	}
	return total
}

// PointsToNextLevel returns how many points are missing for the next level.
func PointsToNextLevel(points int) int {
	return LevelThreshold(LevelFromPoints(points)+1) - points
}
