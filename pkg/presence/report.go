package presence

import (
	"fmt"
	"io"
)

// Report is the snapshot spec.md §6 specifies for the stdout output,
// captured once after the main phase and again after convergence.
type Report struct {
	PresenceUpdates       uint32
	MessagesSent          uint32
	MessagesDropped       uint32
	MessagesPerSecond     float64
	AverageConvergenceMs  uint32
	AverageSleepTime      uint32
	TotalBuddyRecords     uint32
	TotalCorrectRecords   uint32
	AccuracyRate          float64
}

// report snapshots the live stats after elapsed virtual seconds of the main
// phase (buddy-record fields are left at zero: they are only meaningful
// once VerifyState has run at the end of convergence).
func (s *Simulator) report(elapsed Tick) Report {
	return Report{
		PresenceUpdates:      s.stats.PresenceUpdates,
		MessagesSent:         s.stats.MessagesSent,
		MessagesDropped:      s.stats.MessagesDropped,
		MessagesPerSecond:    s.stats.MessagesPerSecond(elapsed),
		AverageConvergenceMs: s.stats.AverageConvergenceTime(),
		AverageSleepTime:     s.stats.AverageSleepTime(),
	}
}

// reportConverged snapshots the full report after the convergence phase,
// including the buddy-record accuracy fields VerifyState has by then
// populated.
func (s *Simulator) reportConverged() Report {
	r := s.report(s.cfg.Seconds)
	r.TotalBuddyRecords = s.stats.TotalBuddyRecords
	r.TotalCorrectRecords = s.stats.TotalCorrectBuddyRecs
	r.AccuracyRate = s.stats.AccuracyRate()
	return r
}

// WriteTo renders the report in the exact field order and labels spec.md §6
// specifies.
func (r Report) WriteTo(w io.Writer) (int64, error) {
	n, err := fmt.Fprintf(w,
		"Total Presence Updates: %d\n"+
			"Total Messages Sent:    %d\n"+
			"Total Messages Dropped: %d\n"+
			"Messages / Second:      %.4f\n"+
			"Average Time to Converge: %d\n"+
			"Average Sleep Time:       %d\n"+
			"Total Buddy Records:          %d\n"+
			"Total Correct Buddy Records:  %d\n"+
			"Accuracy Rate:                %.4f\n",
		r.PresenceUpdates, r.MessagesSent, r.MessagesDropped, r.MessagesPerSecond,
		r.AverageConvergenceMs, r.AverageSleepTime, r.TotalBuddyRecords, r.TotalCorrectRecords, r.AccuracyRate,
	)
	return int64(n), err
}
