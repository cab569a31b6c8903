package freestyle

import "errors"

var (
	// ErrIndexOutOfRange is returned by stack edits addressing a missing position.
	ErrIndexOutOfRange = errors.New("style module index out of range")
	// ErrStackBusy is returned by structural stack edits attempted during a draw.
	ErrStackBusy = errors.New("style module stack is being drawn")
	// ErrDrawInProgress is returned when Draw is called from within a draw.
	ErrDrawInProgress = errors.New("draw already in progress")
	// ErrNilModule is returned when a nil style module is pushed or inserted.
	ErrNilModule = errors.New("nil style module")
	// ErrNoBackend is returned by NewCanvas without a backend.
	ErrNoBackend = errors.New("canvas requires a backend")
)
