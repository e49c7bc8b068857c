package app

import (
	"testing"
	"time"

	"concord/engine/internal/store"
)

func voteEvent(agentID, action string, at time.Time) store.CollaborationEvent {
	return store.CollaborationEvent{
		ID:        "evt-" + agentID + "-" + action,
		AgentID:   agentID,
		Action:    action,
		CreatedAt: at,
	}
}

func TestTallyVotesCountsLatestVotePerAgent(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	events := []store.CollaborationEvent{
		voteEvent("agent-a", store.ActionVoteUp, base),
		voteEvent("agent-b", store.ActionVoteUp, base.Add(time.Minute)),
		voteEvent("agent-c", store.ActionVoteDown, base.Add(2*time.Minute)),
	}

	tally := TallyVotes(events, nil)
	if tally.Upvotes != 2 || tally.Downvotes != 1 {
		t.Fatalf("expected 2 up / 1 down, got %d up / %d down", tally.Upvotes, tally.Downvotes)
	}
	if verdict := Verdict(tally); verdict != VerdictPositive {
		t.Fatalf("expected verdict positive, got %s", verdict)
	}
}

func TestTallyVotesSupersedesEarlierVoteFromSameAgent(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	events := []store.CollaborationEvent{
		voteEvent("agent-a", store.ActionVoteUp, base),
		voteEvent("agent-a", store.ActionVoteDown, base.Add(time.Minute)),
	}

	tally := TallyVotes(events, nil)
	if tally.Upvotes != 0 || tally.Downvotes != 1 {
		t.Fatalf("expected 0 up / 1 down after supersede, got %d up / %d down", tally.Upvotes, tally.Downvotes)
	}
	if verdict := Verdict(tally); verdict != VerdictNegative {
		t.Fatalf("expected verdict negative, got %s", verdict)
	}
}

func TestTallyVotesIgnoresCommentary(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	events := []store.CollaborationEvent{
		voteEvent("agent-a", store.ActionEndorse, base),
		voteEvent("agent-b", store.ActionComment, base.Add(time.Minute)),
	}

	tally := TallyVotes(events, nil)
	if tally.Upvotes != 0 || tally.Downvotes != 0 {
		t.Fatalf("expected empty tally, got %d up / %d down", tally.Upvotes, tally.Downvotes)
	}
}

func TestRejectAndApplyVotesCountAsDownAndUp(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	events := []store.CollaborationEvent{
		voteEvent("agent-a", store.ActionApplyVote, base),
		voteEvent("agent-b", store.ActionRejectVote, base.Add(time.Minute)),
	}

	tally := TallyVotes(events, nil)
	if tally.Upvotes != 1 || tally.Downvotes != 1 {
		t.Fatalf("expected 1 up / 1 down, got %d up / %d down", tally.Upvotes, tally.Downvotes)
	}
}

func TestVerdictTieIsNone(t *testing.T) {
	if verdict := Verdict(VoteTally{Upvotes: 2, Downvotes: 2}); verdict != VerdictNone {
		t.Fatalf("expected tie verdict none, got %s", verdict)
	}
	if verdict := Verdict(VoteTally{}); verdict != VerdictNone {
		t.Fatalf("expected zero-vote verdict none, got %s", verdict)
	}
}

func TestTallyVotesFrozenAtExcludesLaterEvents(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	frozenAt := base.Add(5 * time.Minute)
	events := []store.CollaborationEvent{
		voteEvent("agent-a", store.ActionVoteUp, base),
		voteEvent("agent-b", store.ActionVoteUp, base.Add(time.Minute)),
		voteEvent("agent-c", store.ActionVoteDown, base.Add(10*time.Minute)),
		voteEvent("agent-a", store.ActionVoteDown, base.Add(11*time.Minute)),
	}

	tally := TallyVotes(events, &frozenAt)
	if tally.Upvotes != 2 || tally.Downvotes != 0 {
		t.Fatalf("expected frozen tally 2 up / 0 down, got %d up / %d down", tally.Upvotes, tally.Downvotes)
	}
	if verdict := Verdict(tally); verdict != VerdictPositive {
		t.Fatalf("expected frozen verdict positive, got %s", verdict)
	}

	live := TallyVotes(events, nil)
	if live.Upvotes != 1 || live.Downvotes != 2 {
		t.Fatalf("expected live tally 1 up / 2 down, got %d up / %d down", live.Upvotes, live.Downvotes)
	}
}
