package recorder

// InterruptionKind distinguishes the start and end of a system interruption,
// such as an incoming call taking the audio session.
type InterruptionKind int

const (
	InterruptionBegan InterruptionKind = iota + 1
	InterruptionEnded
)

type Interruption struct {
	Kind InterruptionKind
	// ShouldResume is the platform's resume hint on InterruptionEnded.
	ShouldResume bool
}

// RouteChangeReason says why the audio route changed.
type RouteChangeReason int

const (
	RouteNewDeviceAvailable RouteChangeReason = iota + 1
	RouteOldDeviceUnavailable
	RouteOther
)

type RouteChange struct {
	Reason RouteChangeReason
}
