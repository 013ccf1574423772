package gamification

// Point values for each rule. All arithmetic is integer.
const (
	PointsPerMinute     = 5
	EarlyEndPenalty     = 25
	CorrectAnswerPoints = 5
	WrongAnswerPenalty  = 1
	CoinCost            = 10
	MaxCoinsPerQuiz     = 3
	PowerUpCost         = 100
	LevelUpBonus        = 100
	DoublePointsFactor  = 2

	// Input bounds keep every delta far from int overflow.
	MaxSessionMinutes = 1440
	MaxQuizAnswers    = 500
	MaxQuestDelta     = 1000
)

// SessionPoints returns the delta for a finished study session.
// An early end is a flat penalty and the studied minutes earn nothing.
func SessionPoints(minutes int, endedEarly, doublePoints bool) int {
	if endedEarly {
		return -EarlyEndPenalty
	}
	delta := minutes * PointsPerMinute
	if doublePoints {
		delta *= DoublePointsFactor
	}
	return delta
}

// QuizPoints returns the delta for a submitted quiz. Double points never apply here.
func QuizPoints(correct, wrong, coinsUsed int) int {
	return correct*CorrectAnswerPoints - wrong*WrongAnswerPenalty - coinsUsed*CoinCost
}

// QuizScore returns the percentage of correct answers, rounded down.
func QuizScore(correct, wrong int) int {
	total := correct + wrong
	if total == 0 {
		return 0
	}
	return correct * 100 / total
}
