package escalation

import (
	"time"

	"warden/internal/strikes"
)

const (
	DefaultThreshold    = 3
	DefaultMuteDuration = 30 * time.Minute
)

// Ledger is the part of strikes.Ledger the policy needs.
type Ledger interface {
	Get(userID string) strikes.Record
	Reset(userID string)
}

type Decision struct {
	ShouldAutoMute bool
	MuteDuration   time.Duration
}

type Policy struct {
	Threshold    int
	MuteDuration time.Duration
}

func NewPolicy(threshold int, mute time.Duration) Policy {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if mute <= 0 {
		mute = DefaultMuteDuration
	}
	return Policy{Threshold: threshold, MuteDuration: mute}
}

// OnStrike is called right after a strike lands. Reaching the threshold
// resets the user's count and asks for a mute.
func (p Policy) OnStrike(userID string, ledger Ledger) Decision {
	if ledger.Get(userID).Count < p.Threshold {
		return Decision{}
	}
	ledger.Reset(userID)
	return Decision{ShouldAutoMute: true, MuteDuration: p.MuteDuration}
}
