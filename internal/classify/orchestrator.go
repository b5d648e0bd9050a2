// Package classify wires rule evaluation, the competition resolver and the
// quality pipeline into the two engine entry points: pattern selection and
// hit-quality scoring. Both walk the same stage machine
// (idle, rule-evaluated, scores-adjusted, ranked, done) and always return a
// complete result; malformed configuration degrades a stage to a no-op and
// assertion failures land in the trace without aborting anything.
package classify

import (
	"log/slog"

	"gyeokguk/internal/competition"
	"gyeokguk/internal/facts"
	"gyeokguk/internal/logging"
	"gyeokguk/internal/policy"
	"gyeokguk/internal/quality"
	"gyeokguk/internal/rules"
)

// Stage names for the shared orchestrator state machine.
const (
	StageIdle           = "idle"
	StageRuleEvaluated  = "rule-evaluated"
	StageScoresAdjusted = "scores-adjusted"
	StageRanked         = "ranked"
	StageDone           = "done"
)

// Trace makes every number in a result attributable: which rules matched,
// which assertions failed, what the competition pass did, and which stages
// actually ran.
type Trace struct {
	Stages           []string                 `json:"stages"`
	MatchedRules     []string                 `json:"matched_rules,omitempty"`
	AssertionsFailed []rules.AssertionFailure `json:"assertions_failed,omitempty"`
	Competition      *competition.Outcome     `json:"competition,omitempty"`
}

func (t *Trace) enter(stage string) {
	t.Stages = append(t.Stages, stage)
}

// PatternResult ranks the candidate pattern keys for one chart.
type PatternResult struct {
	PolicyVersion string         `json:"policy_version"`
	Best          string         `json:"best,omitempty"`
	BestScore     float64        `json:"best_score,omitempty"`
	Ranking       []RankedKey    `json:"ranking"`
	Scores        rules.ScoreMap `json:"scores"`
	Trace         Trace          `json:"trace"`
}

// PatternEngine selects the dominant pattern for a chart.
type PatternEngine struct {
	policy *policy.Policy
	eval   rules.Evaluator
	log    *slog.Logger
}

// NewPatternEngine builds a pattern-selection engine. A nil evaluator gets
// the expr reference evaluator.
func NewPatternEngine(p *policy.Policy, eval rules.Evaluator) *PatternEngine {
	if eval == nil {
		eval = rules.NewExprEvaluator()
	}
	return &PatternEngine{policy: p, eval: eval, log: logging.New("classify")}
}

// Run classifies one chart: evaluate the pattern rules, resolve competition
// between candidate groups when the policy enables it, rank, and pick the
// best key only if its score is positive.
func (e *PatternEngine) Run(chart *facts.Chart) *PatternResult {
	res := &PatternResult{PolicyVersion: e.policy.Version}
	res.Trace.enter(StageIdle)

	eval := e.eval.Evaluate(e.policy.Patterns, chart, nil)
	res.Scores = eval.Scores
	res.Trace.MatchedRules = eval.Matches
	res.Trace.AssertionsFailed = eval.AssertionsFailed
	res.Trace.enter(StageRuleEvaluated)

	if e.policy.Competition.Enabled {
		outcome := competition.Apply(e.policy.Competition, res.Scores, func(m competition.Method) float64 {
			return selectorFor(m.Signal)(chart)
		})
		res.Trace.Competition = outcome
		if outcome.Applied {
			res.Trace.enter(StageScoresAdjusted)
		}
	}

	res.Ranking = Rank(res.Scores, e.policy.Priority)
	res.Trace.enter(StageRanked)

	if len(res.Ranking) > 0 && res.Ranking[0].Score > 0 {
		res.Best = res.Ranking[0].Key
		res.BestScore = res.Ranking[0].Score
	}
	res.Trace.enter(StageDone)

	e.log.Debug("pattern selection done",
		"best", res.Best, "candidates", len(res.Ranking),
		"competition", res.Trace.Competition != nil && res.Trace.Competition.Applied)
	return res
}

// HitResult reports every detection with its quality fields and the
// per-name accumulated contributions. There is no single winner.
type HitResult struct {
	PolicyVersion string              `json:"policy_version"`
	Detections    []quality.Detection `json:"detections"`
	NameScores    map[string]float64  `json:"name_scores"`
	Trace         Trace               `json:"trace"`
}

// HitEngine scores the quality of every detection found on a chart.
type HitEngine struct {
	policy *policy.Policy
	eval   rules.Evaluator
	scorer *quality.Scorer
	log    *slog.Logger
}

// NewHitEngine builds a hit-quality engine. A nil evaluator gets the expr
// reference evaluator; it is used both for the detection pass and,
// re-entrantly, for per-detection penalty sub-evaluations.
func NewHitEngine(p *policy.Policy, eval rules.Evaluator) *HitEngine {
	if eval == nil {
		eval = rules.NewExprEvaluator()
	}
	return &HitEngine{
		policy: p,
		eval:   eval,
		scorer: quality.NewScorer(p.Quality, eval, p.Penalties),
		log:    logging.New("classify"),
	}
}

// Run expands every rule emission into detections, attaches quality fields
// to each, and accumulates per-name contributions additively.
func (e *HitEngine) Run(chart *facts.Chart) *HitResult {
	res := &HitResult{
		PolicyVersion: e.policy.Version,
		NameScores:    make(map[string]float64),
	}
	res.Trace.enter(StageIdle)

	eval := e.eval.Evaluate(e.policy.Patterns, chart, nil)
	res.Trace.MatchedRules = eval.Matches
	res.Trace.AssertionsFailed = eval.AssertionsFailed
	res.Trace.enter(StageRuleEvaluated)

	for _, emission := range eval.Emits {
		res.Detections = append(res.Detections, quality.Expand(emission)...)
	}
	for i := range res.Detections {
		d := &res.Detections[i]
		e.scorer.Score(chart, d)
		res.NameScores[d.Name] += d.Contribution
	}
	if len(res.Detections) > 0 {
		res.Trace.enter(StageScoresAdjusted)
	}

	res.Trace.enter(StageRanked)
	res.Trace.enter(StageDone)

	e.log.Debug("hit scoring done", "detections", len(res.Detections))
	return res
}
