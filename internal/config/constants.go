package config

import "time"

type JobKind string

type JobState string

const (
	KindCertificate  JobKind = "certificate"
	KindEmail        JobKind = "email"
	KindNotification JobKind = "notification"
	KindVideo        JobKind = "video"
)

const (
	StateWaiting   JobState = "waiting"
	StateActive    JobState = "active"
	StateRetrying  JobState = "retrying"
	StateCompleted JobState = "completed"
	StateDead      JobState = "dead"
)

var AllowedKinds = []JobKind{KindCertificate, KindEmail, KindNotification, KindVideo}

const (
	DefaultMaxAttempts = 3
	DefaultBackoffBase = 1000 * time.Millisecond
	MaxBackoffDelay    = 5 * time.Minute

	// CertNumberPrefix is the leading segment of every certificate number.
	CertNumberPrefix = "CERT"
)

// IsTerminal reports whether a job in state s admits no further transition.
func IsTerminal(s JobState) bool {
	return s == StateCompleted || s == StateDead
}
