package uploader

import "time"

// Outcome labels a settled batch for metrics.
type Outcome string

const (
	OutcomeSuccess          Outcome = "success"
	OutcomeContentFailure   Outcome = "content_failure"
	OutcomeTransportFailure Outcome = "transport_failure"
)

// Recorder receives run metrics. Calls are serialised by the run.
type Recorder interface {
	BatchSettled(outcome Outcome, items int, d time.Duration)
	RunFinished(c Counters, d time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) BatchSettled(Outcome, int, time.Duration) {}
func (nopRecorder) RunFinished(Counters, time.Duration)      {}
