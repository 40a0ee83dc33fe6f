package presence

import "testing"

func TestStatsLastStateDefaultsOnline(t *testing.T) {
	s := NewStats()
	if got := s.LastState(42); got != Online {
		t.Fatalf("LastState on unseen id = %v, want ONLINE (zero value)", got)
	}
	if got := s.LastStateSwitch(42); got != 0 {
		t.Fatalf("LastStateSwitch on unseen id = %v, want 0", got)
	}
}

func TestStatsAddStateSwitchOverwrites(t *testing.T) {
	s := NewStats()
	s.AddStateSwitch(1, 10, Online)
	s.AddStateSwitch(1, 20, Offline)

	if got := s.LastState(1); got != Offline {
		t.Fatalf("LastState(1) = %v, want OFFLINE", got)
	}
	if got := s.LastStateSwitch(1); got != 20 {
		t.Fatalf("LastStateSwitch(1) = %v, want 20", got)
	}
}

func TestStatsAveragesZeroWhenEmpty(t *testing.T) {
	s := NewStats()
	if got := s.AverageConvergenceTime(); got != 0 {
		t.Fatalf("AverageConvergenceTime on empty stats = %d, want 0", got)
	}
	if got := s.AverageSleepTime(); got != 0 {
		t.Fatalf("AverageSleepTime on empty stats = %d, want 0", got)
	}
	if got := s.AccuracyRate(); got != 0 {
		t.Fatalf("AccuracyRate on empty stats = %v, want 0", got)
	}
	if got := s.MessagesPerSecond(0); got != 0 {
		t.Fatalf("MessagesPerSecond(0) = %v, want 0", got)
	}
}

func TestStatsAveragesComputeCorrectly(t *testing.T) {
	s := NewStats()
	s.IncrementPresenceUpdates()
	s.IncrementPresenceUpdates()
	s.AddConvergenceTime(10)
	s.AddConvergenceTime(20)
	if got := s.AverageConvergenceTime(); got != 15 {
		t.Fatalf("AverageConvergenceTime = %d, want 15", got)
	}

	s.IncrementSleepStates()
	s.IncrementSleepStates()
	s.AddSleepTime(4)
	s.AddSleepTime(6)
	if got := s.AverageSleepTime(); got != 5 {
		t.Fatalf("AverageSleepTime = %d, want 5", got)
	}

	s.IncrementTotalBuddyRecords()
	s.IncrementTotalBuddyRecords()
	s.IncrementTotalBuddyRecords()
	s.IncrementTotalCorrectBuddyRecords()
	s.IncrementTotalCorrectBuddyRecords()
	if got := s.AccuracyRate(); got != 2.0/3.0 {
		t.Fatalf("AccuracyRate = %v, want 2/3", got)
	}

	s.IncrementMessagesSent()
	s.IncrementMessagesSent()
	if got := s.MessagesPerSecond(2); got != 1 {
		t.Fatalf("MessagesPerSecond(2) = %v, want 1", got)
	}
}
