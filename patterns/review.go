package patterns

import (
	"context"
	"strings"
	"time"

	"github.com/itsneelabh/gomind-orchestrate/core"
)

const defaultReviewRounds = 1

// ReviewRound is one round's creator artefact plus reviewer critiques.
type ReviewRound struct {
	Round    int
	Artefact string
	Reviews  []PerAgentResult
	Accepted bool
}

// ReviewData is Result.Data's shape for the Review pattern.
type ReviewData struct {
	FinalArtefact string
	Rounds        []ReviewRound
	Accepted      bool
}

// acceptedMarker is the creator-output convention signalling the artefact
// is accepted as-is: the final line of output equals this marker.
const acceptedMarker = "ACCEPTED"

// Review implements the creator/reviewers critique-and-revise pattern
// (spec.md §4.9.4). Agents[0] is the creator unless Creator is set
// explicitly; all others are reviewers.
type Review struct {
	Resolver AgentResolver
	Driver   core.AgentDriver
	Rounds   int
	Creator  string // agent ID; defaults to the first entry in agentIDs
}

func (r *Review) rounds() int {
	if r.Rounds > 0 {
		return r.Rounds
	}
	return defaultReviewRounds
}

// Execute implements Executor.
func (r *Review) Execute(ctx context.Context, agentIDs []string, task interface{}, opts Options) Result {
	start := time.Now()

	if len(agentIDs) == 0 {
		return Result{Success: false, Failures: []Failure{{Err: "review requires at least one agent"}}}
	}

	creatorID := r.Creator
	if creatorID == "" {
		creatorID = agentIDs[0]
	}

	agents, err := resolveAgents(r.Resolver, agentIDs)
	if err != nil {
		return Result{Success: false, Failures: []Failure{{Err: err.Error()}}}
	}

	agentByID := make(map[string]core.AgentDefinition, len(agents))
	for _, a := range agents {
		agentByID[a.Name] = a
	}
	creator, ok := agentByID[creatorID]
	if !ok {
		return Result{Success: false, Failures: []Failure{{AgentID: creatorID, Err: "creator not found among agents", Indispensable: true}}}
	}

	var reviewers []core.AgentDefinition
	for _, a := range agents {
		if a.Name != creatorID {
			reviewers = append(reviewers, a)
		}
	}

	var allPerAgent []PerAgentResult
	var history []ReviewRound
	var artefact string
	accepted := false

	for round := 1; round <= r.rounds(); round++ {
		var creatorTask interface{}
		if round == 1 {
			creatorTask = task
		} else {
			creatorTask = map[string]interface{}{"task": task, "artefact": artefact, "round": round}
		}

		creatorResult := invokeWithRetry(ctx, r.Driver, creator, creatorTask, opts.MemoryContext, opts.Retry)
		allPerAgent = append(allPerAgent, creatorResult)
		if creatorResult.Err != nil {
			return Result{
				Success:    false,
				PerAgent:   allPerAgent,
				DurationMs: time.Since(start).Milliseconds(),
				Tokens:     sumTokens(allPerAgent),
				Failures:   []Failure{{AgentID: creatorID, Err: creatorResult.Err.Error(), Indispensable: true}},
			}
		}
		artefact = creatorResult.Output

		if isAccepted(artefact) {
			accepted = true
			history = append(history, ReviewRound{Round: round, Artefact: artefact, Accepted: true})
			break
		}

		var reviews []PerAgentResult
		if round < r.rounds() && len(reviewers) > 0 {
			reviews = critiqueRound(ctx, r.Driver, reviewers, artefact, opts)
			allPerAgent = append(allPerAgent, reviews...)
		}
		history = append(history, ReviewRound{Round: round, Artefact: artefact, Reviews: reviews})

		if len(reviews) == 0 {
			break
		}
	}

	var failures []Failure
	for _, pa := range allPerAgent {
		if pa.Err != nil {
			failures = append(failures, Failure{AgentID: pa.AgentID, Err: pa.Err.Error()})
		}
	}

	return Result{
		Success:    true,
		Data:       ReviewData{FinalArtefact: artefact, Rounds: history, Accepted: accepted},
		PerAgent:   allPerAgent,
		DurationMs: time.Since(start).Milliseconds(),
		Tokens:     sumTokens(allPerAgent),
		Failures:   failures,
	}
}

func isAccepted(artefact string) bool {
	trimmed := strings.TrimRight(artefact, "\r\n")
	lastLine := trimmed[strings.LastIndex(trimmed, "\n")+1:]
	return strings.TrimSpace(lastLine) == acceptedMarker
}
