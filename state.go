package freestyle

// State is the position of a canvas in its draw cycle.
type State int

// The draw cycle runs Idle → PreDraw → Executing → Compositing → PostDraw → Idle.
const (
	Idle State = iota
	PreDraw
	Executing
	Compositing
	PostDraw
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case PreDraw:
		return "pre-draw"
	case Executing:
		return "executing"
	case Compositing:
		return "compositing"
	case PostDraw:
		return "post-draw"
	}
	return "unknown"
}
