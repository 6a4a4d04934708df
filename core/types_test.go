package core

import "testing"

func TestValidPattern(t *testing.T) {
	valid := []Pattern{PatternParallel, PatternConsensus, PatternDebate, PatternReview, PatternEnsemble}
	for _, p := range valid {
		if !ValidPattern(p) {
			t.Errorf("ValidPattern(%q) = false, want true", p)
		}
	}
	if ValidPattern("bogus") {
		t.Error("ValidPattern(bogus) = true, want false")
	}
}

func TestValidObservationType(t *testing.T) {
	valid := []ObservationType{ObservationDecision, ObservationBugfix, ObservationFeature,
		ObservationPatternUsage, ObservationDiscovery, ObservationRefactor}
	for _, ot := range valid {
		if !ValidObservationType(ot) {
			t.Errorf("ValidObservationType(%q) = false, want true", ot)
		}
	}
	if ValidObservationType("bogus") {
		t.Error("ValidObservationType(bogus) = true, want false")
	}
}

func TestClampImportance(t *testing.T) {
	cases := map[int]int{-5: 1, 0: 1, 1: 1, 5: 5, 10: 10, 11: 10, 999: 10}
	for in, want := range cases {
		if got := ClampImportance(in); got != want {
			t.Errorf("ClampImportance(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestComparePriority(t *testing.T) {
	if ComparePriority(PriorityHigh, PriorityMedium) <= 0 {
		t.Error("high should outrank medium")
	}
	if ComparePriority(PriorityMedium, PriorityLow) <= 0 {
		t.Error("medium should outrank low")
	}
	if ComparePriority(PriorityLow, PriorityLow) != 0 {
		t.Error("equal priorities should compare equal")
	}
}

func TestTokenUsageTotal(t *testing.T) {
	tu := TokenUsage{Input: 10, Output: 20, CacheCreate: 5, CacheRead: 3}
	if tu.Total() != 38 {
		t.Errorf("Total() = %d, want 38", tu.Total())
	}
}
