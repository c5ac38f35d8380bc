package economy

import (
	"strings"
	"testing"
)

func TestFinalScore(t *testing.T) {
	s := NewScoreboard("rider")
	s.RecordDelivery(100, false)
	s.RecordDelivery(80, true)
	s.RecordLost()

	// 180 money + 700 rep + 2*50 - 25 - 50 = 905
	if got := s.FinalScore(70); got != 905 {
		t.Fatalf("final score %.0f, want 905", got)
	}
}

func TestFinalScoreFloorsAtZero(t *testing.T) {
	s := NewScoreboard("rider")
	for i := 0; i < 10; i++ {
		s.RecordLost()
	}
	if got := s.FinalScore(1); got != 0 {
		t.Fatalf("final score %.0f, want floor 0", got)
	}
}

func TestRankThresholds(t *testing.T) {
	cases := []struct {
		score float64
		want  string
	}{
		{2000, "S"}, {1999, "A"}, {1500, "A"}, {1499, "B"},
		{1000, "B"}, {999, "C"}, {500, "C"}, {499, "D"}, {0, "D"},
	}
	for _, c := range cases {
		if got := Rank(c.score); got != c.want {
			t.Fatalf("rank(%.0f) = %s, want %s", c.score, got, c.want)
		}
	}
}

func TestSummaryMentionsRank(t *testing.T) {
	s := NewScoreboard("rider")
	s.RecordDelivery(1500, false)
	got := s.Summary(90)
	if !strings.Contains(got, "rank S") {
		t.Fatalf("summary missing rank: %q", got)
	}
	if !strings.Contains(got, "1 delivery") {
		t.Fatalf("summary miscounts deliveries: %q", got)
	}
}
