// Package auth holds the session/auth lifecycle: a single state machine per
// application session, fed by the session store and the API client, and the
// route guard that consumes its state.
package auth

import "github.com/trezcool/kazi/core/user"

// Status is the state machine's discriminant.
type Status int

const (
	// StatusLoading is the transient phase between issuing a credential
	// exchange or verification and observing its outcome; never a steady state.
	StatusLoading Status = iota
	StatusUnauthenticated
	StatusAuthenticated
	// StatusErrored routes like StatusUnauthenticated; it only adds a
	// message for display.
	StatusErrored
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusUnauthenticated:
		return "unauthenticated"
	case StatusAuthenticated:
		return "authenticated"
	case StatusErrored:
		return "errored"
	}
	return "unknown"
}

// State is a tagged union of the four lifecycle states: User and Credential
// are set iff Status is StatusAuthenticated, Err iff StatusErrored. The
// discriminant makes contradictory flag combinations unrepresentable.
type State struct {
	Status     Status
	User       *user.User
	Credential string
	Err        string
}

func (s State) IsLoading() bool {
	return s.Status == StatusLoading
}

func (s State) IsAuthenticated() bool {
	return s.Status == StatusAuthenticated
}

func loading() State {
	return State{Status: StatusLoading}
}

func unauthenticated() State {
	return State{Status: StatusUnauthenticated}
}

func authenticated(usr user.User, credential string) State {
	return State{Status: StatusAuthenticated, User: &usr, Credential: credential}
}

func errored(msg string) State {
	return State{Status: StatusErrored, Err: msg}
}
