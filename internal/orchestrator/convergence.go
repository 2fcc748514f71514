package orchestrator

// convergence tracks the best solution across rounds and decides when
// the loop stops. Best-solution updates require strict improvement so
// ties never churn the stored text. The plateau rule compares each
// round's post-score to the previous round's, not to the running best:
// a session can plateau while best_score still creeps upward, which
// bounds wall-clock cost.
type convergence struct {
	maxIterations  int
	minImprovement float64

	bestScore    float64
	bestSolution string
	history      []RoundResult
}

func newConvergence(maxIterations int, minImprovement float64) *convergence {
	return &convergence{
		maxIterations:  maxIterations,
		minImprovement: minImprovement,
	}
}

// observe appends a finished round and updates the running best.
func (c *convergence) observe(round RoundResult) {
	c.history = append(c.history, round)
	if round.Score > c.bestScore {
		c.bestScore = round.Score
		c.bestSolution = round.AgniOutput
	}
}

// decision is the controller's verdict after a round.
type decision struct {
	stop        bool
	reason      StopReason
	improvement float64
}

// decide evaluates the stop rules for the most recent round. A bad
// first round never short-circuits the loop, and a degraded round is
// exempt from the plateau comparison; the improver may still rescue the
// session in later rounds.
func (c *convergence) decide() decision {
	n := len(c.history)
	current := c.history[n-1]

	if current.Iteration >= c.maxIterations {
		return decision{stop: true, reason: StopMaxIterations}
	}
	if n > 1 && !current.Failed {
		improvement := current.Score - c.history[n-2].Score
		if improvement < c.minImprovement {
			return decision{stop: true, reason: StopPlateau, improvement: improvement}
		}
	}
	return decision{}
}
