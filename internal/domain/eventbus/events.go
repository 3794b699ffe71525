package eventbus

import "time"

const (
	EventAdminLogin       = "auth:admin_login"
	EventPortalLogin      = "auth:portal_login"
	EventPasswordUpgraded = "auth:password_upgraded"
	EventPasswordSet      = "auth:password_set"
	EventRateLimited      = "auth:rate_limited"
)

// AuthTopics lists every auth audit topic.
var AuthTopics = []string{
	EventAdminLogin,
	EventPortalLogin,
	EventPasswordUpgraded,
	EventPasswordSet,
	EventRateLimited,
}

// Outcomes carried by AuthEvent.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeDenied  = "denied"
	OutcomeError   = "error"
)

// AuthEvent is an audit record. It never carries passwords or tokens.
type AuthEvent struct {
	Topic   string    `json:"topic"`
	Outcome string    `json:"outcome"`
	Client  string    `json:"client,omitempty"`
	Subject string    `json:"subject,omitempty"`
	Reason  string    `json:"reason,omitempty"`
	At      time.Time `json:"at"`
}
