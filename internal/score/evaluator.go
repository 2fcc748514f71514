// Package score evaluates solution quality with cheap static heuristics.
// No model call is involved, so scoring adds no latency to the
// refinement loop. Scores land in [0,1] and only need to be comparable
// across rounds of the same session, not absolutely calibrated.
package score

import (
	"regexp"
	"strings"

	"github.com/AP2611/Chakra-final/internal/agent"
)

var (
	reComments      = regexp.MustCompile(`(?s)#.*|//.*|/\*.*?\*/`)
	reDocstrings    = regexp.MustCompile(`(?s)""".*?"""|'''.*?'''`)
	reErrorHandling = regexp.MustCompile(`try:|except:|catch\s*\(`)
	reTypeHints     = regexp.MustCompile(`def\s+\w+\s*\([^)]*:\s*\w+`)
	reImports       = regexp.MustCompile(`(?m)^import\s+|^from\s+`)
	reCitations     = regexp.MustCompile(`\[.*?\]|\(.*?\)|source|document|according`)
	reMarkdown      = regexp.MustCompile(`\*\*.*?\*\*|#+\s+`)
)

var codePatterns = []*regexp.Regexp{
	reComments,
	reDocstrings,
	reErrorHandling,
	reTypeHints,
}

// Evaluator implements agent.Scorer with regex heuristics: structure
// and best-practice markers for code, lexical grounding overlap and
// formatting for prose answers.
type Evaluator struct{}

// NewEvaluator creates an Evaluator.
func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

// Score evaluates a solution. Code and prose use different dimension
// sets and weights.
func (e *Evaluator) Score(task, output string, isCode bool, ragChunks []string) agent.Scores {
	if isCode {
		return e.scoreCode(output)
	}
	return e.scoreAnswer(output, ragChunks)
}

func (e *Evaluator) scoreCode(code string) agent.Scores {
	correctness := 0.5
	quality := 0.5
	completeness := 0.5

	if strings.Contains(code, "def ") || strings.Contains(code, "function ") || strings.Contains(code, "class ") {
		completeness += 0.2
	}

	for _, pattern := range codePatterns {
		if pattern.MatchString(code) {
			quality += 0.1
		}
	}
	if reImports.MatchString(code) {
		quality += 0.1
	}

	correctness = clamp(correctness)
	quality = clamp(quality)
	completeness = clamp(completeness)

	return agent.Scores{
		Dimensions: map[string]float64{
			"correctness":  correctness,
			"quality":      quality,
			"completeness": completeness,
		},
		Total: correctness*0.4 + quality*0.3 + completeness*0.3,
	}
}

func (e *Evaluator) scoreAnswer(answer string, ragChunks []string) agent.Scores {
	grounding := 0.5
	clarity := 0.5
	completeness := 0.5

	if len(ragChunks) == 0 {
		return agent.Scores{
			Dimensions: map[string]float64{
				"grounding":    grounding,
				"clarity":      clarity,
				"completeness": completeness,
			},
			Total: 0.5,
		}
	}

	lower := strings.ToLower(answer)
	answerWords := wordSet(lower)
	chunkWords := wordSet(strings.ToLower(strings.Join(ragChunks, " ")))

	overlap := 0
	for w := range answerWords {
		if _, ok := chunkWords[w]; ok {
			overlap++
		}
	}
	totalUnique := len(answerWords) + len(chunkWords) - overlap
	if totalUnique > 0 {
		// Jaccard overlap, scaled up so moderate overlap reaches a
		// meaningful score.
		grounding = clamp(float64(overlap) / float64(totalUnique) * 2)
	}

	if reCitations.MatchString(lower) {
		grounding += 0.2
	}

	if len(strings.Split(answer, "\n")) > 3 {
		clarity += 0.2
	}
	if reMarkdown.MatchString(answer) {
		clarity += 0.1
	}

	grounding = clamp(grounding)
	clarity = clamp(clarity)
	completeness = clamp(completeness)

	return agent.Scores{
		Dimensions: map[string]float64{
			"grounding":    grounding,
			"clarity":      clarity,
			"completeness": completeness,
		},
		Total: grounding*0.5 + clarity*0.3 + completeness*0.2,
	}
}

func wordSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(s) {
		set[w] = struct{}{}
	}
	return set
}

func clamp(v float64) float64 {
	if v > 1.0 {
		return 1.0
	}
	return v
}
