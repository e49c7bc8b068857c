package app

import (
	"time"

	"concord/engine/internal/store"
)

// Consensus verdicts derived from the vote tally.
const (
	VerdictPositive = "positive"
	VerdictNegative = "negative"
	VerdictNone     = "none"
)

type VoteTally struct {
	Upvotes   int `json:"upvotes"`
	Downvotes int `json:"downvotes"`
}

// TallyVotes reduces a suggestion's collaboration log to per-agent votes.
// Only the latest vote-type event per agent counts; earlier votes from the
// same agent are superseded, and endorse/comment events are ignored. Events
// must be supplied in (timestamp, seq) ascending order, which is how the
// store returns them, so a plain overwrite yields last-writer-wins.
//
// When frozenAt is set, events stamped after it are excluded. The service
// passes the suggestion's termination time here, which freezes consensus at
// the moment of the terminal decision while still allowing audit appends.
func TallyVotes(events []store.CollaborationEvent, frozenAt *time.Time) VoteTally {
	latest := make(map[string]store.CollaborationEvent)
	for _, event := range events {
		if !event.IsVote() {
			continue
		}
		if frozenAt != nil && event.CreatedAt.After(*frozenAt) {
			continue
		}
		latest[event.AgentID] = event
	}

	var tally VoteTally
	for _, event := range latest {
		switch event.Action {
		case store.ActionVoteUp, store.ActionApplyVote:
			tally.Upvotes++
		case store.ActionVoteDown, store.ActionRejectVote:
			tally.Downvotes++
		}
	}
	return tally
}

// Verdict applies the majority rule. Ties, including zero votes, are none.
func Verdict(tally VoteTally) string {
	switch {
	case tally.Upvotes > tally.Downvotes:
		return VerdictPositive
	case tally.Downvotes > tally.Upvotes:
		return VerdictNegative
	default:
		return VerdictNone
	}
}
