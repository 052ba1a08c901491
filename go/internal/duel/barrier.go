package duel

// ReadyBarrier is the two-party handshake gating the start of a duel:
// each fighter's client must acknowledge scene load before the cinematic
// timer may start, so neither player sees the draw cue before their
// renderer is up.
type ReadyBarrier struct {
	pending map[string]bool
}

// NewReadyBarrier arms a barrier for the given party ids.
func NewReadyBarrier(ids ...string) *ReadyBarrier {
	pending := make(map[string]bool, len(ids))
	for _, id := range ids {
		pending[id] = true
	}
	return &ReadyBarrier{pending: pending}
}

// Signal marks one party ready. It returns true when this signal newly
// completed the barrier; repeated or unknown signals return false.
func (b *ReadyBarrier) Signal(id string) bool {
	if !b.pending[id] {
		return false
	}
	delete(b.pending, id)
	return len(b.pending) == 0
}

// Complete reports whether every party has signalled.
func (b *ReadyBarrier) Complete() bool {
	return len(b.pending) == 0
}
