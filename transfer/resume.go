package transfer

// ResumeMode selects how a get or put picks its starting offset.
type ResumeMode int

const (
	// NoResume starts at offset 0 and overwrites the destination.
	NoResume ResumeMode = iota
	// ResumeIfPossible continues a partial destination when its size is
	// consistent with the source.
	ResumeIfPossible
	// ForceRestart discards any partial destination and starts at 0.
	ForceRestart
)

func (m ResumeMode) String() string {
	switch m {
	case NoResume:
		return "no-resume"
	case ResumeIfPossible:
		return "resume"
	case ForceRestart:
		return "restart"
	}
	return "unknown"
}

func (m ResumeMode) valid() bool {
	return m >= NoResume && m <= ForceRestart
}

// resumePlan is the outcome of offset resolution.
type resumePlan struct {
	offset   int64
	complete bool // destination already holds the whole source
}

// planResume compares the bytes already at the destination (partial)
// with the full source size. sourceKnown is false when the source size
// could not be queried, which disables resuming.
func planResume(mode ResumeMode, partial, source int64, sourceKnown bool) resumePlan {
	if mode != ResumeIfPossible || partial <= 0 || !sourceKnown {
		return resumePlan{}
	}
	switch {
	case partial < source:
		return resumePlan{offset: partial}
	case partial == source:
		return resumePlan{offset: partial, complete: true}
	default:
		// Destination is larger than the source: it is not a prefix.
		return resumePlan{}
	}
}
