// pdp/model/request.go
package model

import "time"

// ActorAttributes describe the requesting principal. Attribute structs are
// supplied fully materialized by the caller; the engine never mutates them.
type ActorAttributes struct {
	ID         string `json:"id" validate:"required,max=128"`
	TrustLevel string `json:"trust_level" validate:"omitempty,oneof=trusted standard low"`
	IsMinor    bool   `json:"is_minor"`
	Relation   string `json:"relation,omitempty"`
	AuthMethod string `json:"auth_method" validate:"omitempty,oneof=password mfa mtls"`
	SessionID  string `json:"session_id,omitempty"`
}

// DeviceAttributes describe the device the request originates from.
type DeviceAttributes struct {
	ID               string `json:"id" validate:"required,max=128"`
	Trust            string `json:"trust" validate:"omitempty,oneof=trusted managed untrusted"`
	RootedJailbroken bool   `json:"rooted_jailbroken"`
	ScreenLocked     bool   `json:"screen_locked"`
	NetworkType      string `json:"network_type" validate:"omitempty,oneof=private public untrusted"`
	BatteryLow       bool   `json:"battery_low"`
	CPUThrottled     bool   `json:"cpu_throttled"`
}

// EnvironmentAttributes describe the ambient conditions of the request.
type EnvironmentAttributes struct {
	TimeOfDayHours   float64 `json:"time_of_day_hours" validate:"gte=0,lte=24"`
	GeofenceZone     string  `json:"geofence_zone,omitempty"`
	Location         string  `json:"location,omitempty"`
	LocationVerified bool    `json:"location_verified"`
	Arousal          float64 `json:"arousal" validate:"gte=0,lte=1"`
	SafetyPressure   float64 `json:"safety_pressure" validate:"gte=0,lte=1"`
	CurfewStartHour  float64 `json:"curfew_start_hour" validate:"gte=0,lte=24"`
	CurfewEndHour    float64 `json:"curfew_end_hour" validate:"gte=0,lte=24"`
	SleepTime        bool    `json:"sleep_time"`
	FamilyPresent    bool    `json:"family_present"`
	SecureGroup      bool    `json:"secure_group"`
	MinimumBand      Band    `json:"minimum_band"`
}

// RequestMetadata carries the opaque request-scoped signals consumed by the
// scorer overrides and the conflict resolver.
type RequestMetadata struct {
	RequestID          string `json:"request_id,omitempty"`
	Urgency            string `json:"urgency,omitempty" validate:"omitempty,oneof=normal high emergency"`
	SecurityAlertLevel string `json:"security_alert_level,omitempty" validate:"omitempty,oneof=none elevated critical"`
	MaintenanceMode    bool   `json:"maintenance_mode"`
}

// PolicyContext aggregates everything one evaluation needs. It is created
// once per call and treated as read-only for the lifetime of that call.
type PolicyContext struct {
	Action      string                `json:"action" validate:"required"`
	Actor       ActorAttributes       `json:"actor"`
	Device      DeviceAttributes      `json:"device"`
	Environment EnvironmentAttributes `json:"environment"`
	Metadata    RequestMetadata       `json:"metadata"`
	Timestamp   time.Time             `json:"timestamp"`
}

// HistoricalContext feeds the behavior-pattern component of the scorer.
type HistoricalContext struct {
	BehaviorScore float64 `json:"behavior_score" validate:"gte=0,lte=1"`
	RecentDenials int     `json:"recent_denials" validate:"gte=0"`
}

// RealtimeContext feeds the operational component of the scorer.
type RealtimeContext struct {
	SystemLoad float64 `json:"system_load" validate:"gte=0,lte=1"`
}

// riskyActions is the fixed set of operations that tighten every guard.
var riskyActions = map[string]struct{}{
	"memory.project": {},
	"memory.detach":  {},
	"tools.run":      {},
	"sharing.export": {},
	"privacy.undo":   {},
	"system.admin":   {},
	"policy.modify":  {},
}

// IsRiskyAction reports whether the action belongs to the fixed risky set.
func IsRiskyAction(action string) bool {
	_, ok := riskyActions[action]
	return ok
}
