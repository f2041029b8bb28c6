package zonepromise

import "sync/atomic"

// loopState is the run state of a [Loop].
//
//	StateAwake (0)    -> StateRunning (1)     [New]
//	StateRunning (1)  -> StateTerminating (2) [Loop.Shutdown]
//	StateTerminating (2) -> StateTerminated (3)
type loopState uint32

const (
	stateAwake loopState = iota
	stateRunning
	stateTerminating
	stateTerminated
)

func (s loopState) String() string {
	switch s {
	case stateAwake:
		return "awake"
	case stateRunning:
		return "running"
	case stateTerminating:
		return "terminating"
	case stateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// fastState is a lock-free state register, used in place of a mutex for the
// loop's run state: only ever read/CAS'd, never taken as a lock.
type fastState struct {
	v atomic.Uint32
}

func newFastState() *fastState {
	s := &fastState{}
	s.v.Store(uint32(stateAwake))
	return s
}

func (s *fastState) Load() loopState { return loopState(s.v.Load()) }

func (s *fastState) TryTransition(from, to loopState) bool {
	return s.v.CompareAndSwap(uint32(from), uint32(to))
}

func (s *fastState) CanAcceptWork() bool {
	switch s.Load() {
	case stateAwake, stateRunning:
		return true
	default:
		return false
	}
}
