package metrics

import "strconv"

// Recorder feeds the domain counters. It satisfies keycache.Recorder,
// verifier.Recorder and gate.Recorder.
type Recorder struct{}

func ProvideRecorder() Recorder { return Recorder{} }

func (Recorder) JWKSResolved(source string) { jwksResolves.WithLabelValues(source).Inc() }

func (Recorder) VerificationFinished(outcome string) { verifications.WithLabelValues(outcome).Inc() }

func (Recorder) GateDecided(required bool) {
	gateDecisions.WithLabelValues(strconv.FormatBool(required)).Inc()
}
