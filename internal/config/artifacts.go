package config

// ArtifactMode decides when a screenshot, trace or video is produced.
type ArtifactMode string

const (
	ModeOff             ArtifactMode = "off"
	ModeOn              ArtifactMode = "on"
	ModeOnlyOnFailure   ArtifactMode = "only-on-failure"
	ModeOnFirstRetry    ArtifactMode = "on-first-retry"
	ModeRetainOnFailure ArtifactMode = "retain-on-failure"
)

func (m ArtifactMode) Valid() bool {
	switch m {
	case ModeOff, ModeOn, ModeOnlyOnFailure, ModeOnFirstRetry, ModeRetainOnFailure:
		return true
	}
	return false
}

// Record reports whether recording must start for the given attempt
// (0 is the first run, 1 the first retry).
func (m ArtifactMode) Record(attempt int) bool {
	switch m {
	case ModeOn, ModeRetainOnFailure:
		return true
	case ModeOnFirstRetry:
		return attempt == 1
	}
	return false
}

// Keep reports whether a recorded artifact survives the end of the test.
func (m ArtifactMode) Keep(failed bool, attempt int) bool {
	switch m {
	case ModeOn:
		return true
	case ModeRetainOnFailure, ModeOnlyOnFailure:
		return failed
	case ModeOnFirstRetry:
		return attempt == 1
	}
	return false
}

// Capture is for artifacts taken at the end of a test rather than recorded
// throughout it, such as the failure screenshot.
func (m ArtifactMode) Capture(failed bool, attempt int) bool {
	switch m {
	case ModeOn:
		return true
	case ModeOnlyOnFailure, ModeRetainOnFailure:
		return failed
	case ModeOnFirstRetry:
		return attempt == 1
	}
	return false
}
