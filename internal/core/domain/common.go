package domain

import "time"

// AuditFields holds standard audit information for domain entities.
type AuditFields struct {
	CreatedAt     time.Time `json:"createdAt"`
	CreatedBy     string    `json:"createdBy"` // UserID Reference
	LastUpdatedAt time.Time `json:"lastUpdatedAt"`
	LastUpdatedBy string    `json:"lastUpdatedBy"` // UserID Reference
}

// SystemActorID is recorded as the acting user for time-driven transitions.
const SystemActorID = "system"

// Actor identifies who is calling an operation.
type Actor struct {
	UserID  string `json:"userID"`
	IsAdmin bool   `json:"isAdmin"`
}

// SystemActor is used by the dispute window sweep.
func SystemActor() Actor {
	return Actor{UserID: SystemActorID, IsAdmin: true}
}

// Clock returns the current time. Services take one so tests can move time.
type Clock func() time.Time

// UTCNow is the production clock.
func UTCNow() time.Time {
	return time.Now().UTC()
}

func timePtr(t time.Time) *time.Time {
	return &t
}

func int64Ptr(v int64) *int64 {
	return &v
}
