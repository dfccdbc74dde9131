package model

type Permission string

const (
	PermissionUnset   Permission = ""
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
)

type RouteState string

const (
	StateIdle            RouteState = "idle"
	StatePendingClassify RouteState = "pending_classify"
	StateAwaitingConsent RouteState = "awaiting_consent"
	StateForcedWeb       RouteState = "forced_web"
	StateAnswered        RouteState = "answered"
	StateCancelled       RouteState = "cancelled"
)

// Session is the per-user routing record persisted between invocations.
type Session struct {
	ID            string     `json:"id"`
	PendingQuery  string     `json:"pending_query"`
	WebPermission Permission `json:"web_permission"`
	ForceWeb      bool       `json:"force_web"`
	LastSeenQuery string     `json:"last_seen_query"`
	State         RouteState `json:"state"`
	Category      Category   `json:"category"`
	Ctime         int64      `json:"ctime"`
	Mtime         int64      `json:"mtime"`
}

func NewSession(id string, now int64) *Session {
	return &Session{ID: id, State: StateIdle, Ctime: now, Mtime: now}
}
