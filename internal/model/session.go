package model

// #region session-state
// SessionState is the controller lifecycle.
type SessionState string

const (
	SessionInitializing SessionState = "INITIALIZING"
	SessionActive       SessionState = "ACTIVE"
	SessionTerminating  SessionState = "TERMINATING"
	SessionTerminated   SessionState = "TERMINATED"
)
// #endregion session-state
