package take

import (
	"time"

	"github.com/abhisek/gauge/internal/placement"
)

// startedMsg carries the session the screen runs, new or resumed.
type startedMsg struct {
	Res     *placement.StartResult
	Resumed bool
	Err     error
}

// answeredMsg carries the engine's verdict on one answer.
type answeredMsg struct {
	Res *placement.SubmitResult
	Err error
}

// resultsMsg is sent once results of a completed session are loaded.
type resultsMsg struct {
	Res *placement.Results
	Err error
}

// cancelledMsg is sent after the session has been cancelled.
type cancelledMsg struct {
	Err error
}

// timerTickMsg is sent every second to refresh the question timer.
type timerTickMsg time.Time
