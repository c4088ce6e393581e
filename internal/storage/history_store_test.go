package storage

import (
	"fmt"
	"testing"
)

func TestReputationHistory(t *testing.T) {
	db := testDB(t)
	seedAgents(t, db, "a")

	for i := 0; i < 3; i++ {
		h := &ReputationHistory{
			ID:        fmt.Sprintf("h%d", i),
			AgentID:   "a",
			Score:     10 * (i + 1),
			Breakdown: `{"total":` + fmt.Sprint(10*(i+1)) + `}`,
			Trigger:   TriggerTask,
			CreatedAt: int64(1000 * (i + 1)),
		}
		if err := db.AppendReputationHistory(h); err != nil {
			t.Fatalf("AppendReputationHistory #%d: %v", i, err)
		}
	}

	got, err := db.ListReputationHistory("a", 10)
	if err != nil {
		t.Fatalf("ListReputationHistory: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d entries, want 3", len(got))
	}
	// Newest first.
	if got[0].Score != 30 {
		t.Errorf("got[0].Score = %d, want 30", got[0].Score)
	}
	if got[2].Score != 10 {
		t.Errorf("got[2].Score = %d, want 10", got[2].Score)
	}
}

func TestReputationHistory_Limit(t *testing.T) {
	db := testDB(t)
	seedAgents(t, db, "a")

	for i := 0; i < 5; i++ {
		h := &ReputationHistory{
			ID:        fmt.Sprintf("h%d", i),
			AgentID:   "a",
			Score:     i,
			Breakdown: "{}",
			Trigger:   TriggerVouch,
			CreatedAt: int64(i),
		}
		if err := db.AppendReputationHistory(h); err != nil {
			t.Fatalf("AppendReputationHistory #%d: %v", i, err)
		}
	}

	got, err := db.ListReputationHistory("a", 2)
	if err != nil {
		t.Fatalf("ListReputationHistory: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("got %d entries, want 2", len(got))
	}
}
