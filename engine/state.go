package engine

// State is a run's position in the collection lifecycle.
//
//	Idle → Loading → Extracting → (Paginating → Loading) | Auditing → Done
//
// Failed is reachable from Loading, Extracting and Paginating.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateExtracting
	StatePaginating
	StateAuditing
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateExtracting:
		return "extracting"
	case StatePaginating:
		return "paginating"
	case StateAuditing:
		return "auditing"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
