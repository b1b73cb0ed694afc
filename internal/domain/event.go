package domain

import "time"

// Event names carried on the in-process bus and mirrored to other
// contexts by the broadcaster.
const (
	EventTokenCreated = "token.created"
	EventTokenUpdated = "token.updated"
	EventTokenDeleted = "token.deleted"
	EventLoginChanged = "login.changed"

	// EventTokensCleared stays in-process; it is not fanned out to other
	// contexts.
	EventTokensCleared = "token.cleared"
)

type LoginAction string

const (
	LoginActionLogin   LoginAction = "login"
	LoginActionLogout  LoginAction = "logout"
	LoginActionRestore LoginAction = "restore"
)

// LoginChange is the payload of EventLoginChanged. User is nil on logout.
type LoginChange struct {
	User   *User       `json:"user"`
	Action LoginAction `json:"action"`
}

// TokenDeleted is the payload of EventTokenDeleted.
type TokenDeleted struct {
	Hash string `json:"hash"`
}

// SyncEvent is the envelope sent to other contexts and appended to the
// audit log. Source identifies the emitting process so receivers can
// drop their own echoes.
type SyncEvent struct {
	Type      string    `json:"type"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
}
