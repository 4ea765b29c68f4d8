package securitas

import "time"

// RequestCode is the vendor's arm/disarm request identifier.
type RequestCode string

const (
	RequestArm          RequestCode = "ARM1"
	RequestArmDay       RequestCode = "ARMDAY1"
	RequestArmNight     RequestCode = "ARMNIGHT1"
	RequestArmPerimeter RequestCode = "PERI1"
	RequestArmTotal     RequestCode = "ARM1PERI1"
	RequestDisarm       RequestCode = "DARM1"
	RequestDisarmTotal  RequestCode = "DARM1DARMPERI"
)

// perimetral returns whether the request needs an exterior zone.
func (r RequestCode) perimetral() bool {
	switch r {
	case RequestArmPerimeter, RequestArmTotal, RequestDisarmTotal:
		return true
	}
	return false
}

// disarm returns whether the request is a disarm variant, which selects
// the xSDisarmPanel mutation and DisarmStatus poll.
func (r RequestCode) disarm() bool {
	switch r {
	case RequestDisarm, RequestDisarmTotal:
		return true
	}
	return false
}

// AlarmState is an alarm mode as seen on the vendor app.
type AlarmState int

const (
	InteriorPartial AlarmState = iota + 1
	InteriorTotal
	InteriorDisarmed
	NightArmed
	ExteriorArmed
	ExteriorDisarmed
	TotalArmed
	TotalDisarmed
)

// stdCommands maps states to requests for installations without exterior
// sensors.
var stdCommands = map[AlarmState]RequestCode{
	ExteriorArmed:   RequestArmPerimeter,
	InteriorPartial: RequestArmDay,
	InteriorTotal:   RequestArm,
	NightArmed:      RequestArmNight,
	TotalArmed:      RequestArm,
	TotalDisarmed:   RequestDisarm,
}

// periCommands maps states to requests for installations with exterior
// (perimetral) sensors.
var periCommands = map[AlarmState]RequestCode{
	ExteriorArmed:    RequestArmPerimeter,
	ExteriorDisarmed: RequestDisarm,
	InteriorPartial:  RequestArmDay,
	InteriorTotal:    RequestArm,
	InteriorDisarmed: RequestDisarm,
	NightArmed:       RequestArmNight,
	TotalArmed:       RequestArmTotal,
	TotalDisarmed:    RequestDisarmTotal,
}

// Request maps an alarm state to the request code valid for the given
// installation, honoring its perimetral capability.
func (i Installation) Request(state AlarmState) (RequestCode, error) {
	commands := stdCommands
	if i.Perimetral {
		commands = periCommands
	}
	req, ok := commands[state]
	if !ok {
		return "", &CapabilityError{Installation: i.Number}
	}
	return req, nil
}

// ProtomState translates a protomResponse code into a readable alarm
// state. The letter codes are the panel's own vocabulary: D disarmed,
// T total, Q night, P partial (day), and the E/B/C/A family exterior
// or mixed modes.
func ProtomState(code string) string {
	switch code {
	case "D":
		return "disarmed"
	case "T":
		return "armed_total"
	case "Q":
		return "armed_night"
	case "P":
		return "armed_day"
	case "E", "B", "C", "A":
		return "armed_exterior"
	default:
		return "unknown"
	}
}

// Installation is a customer's physical site. It is immutable once
// resolved; re-resolve to pick up backend changes.
type Installation struct {
	Number     string
	Alias      string
	Panel      string
	Type       string
	Name       string
	Surname    string
	Address    string
	City       string
	PostalCode string
	Province   string
	Email      string
	Phone      string

	// Perimetral is true when an active service carries an exterior
	// request code, meaning PERI arming modes are valid.
	Perimetral bool
	Services   []Service
	Sentinels  []Service
}

// Service is a vendor service attached to an installation (alarm zones,
// Sentinel sensors, and so on).
type Service struct {
	ID      int
	Active  bool
	Visible bool
	Premium bool
	Request string

	Attributes []Attribute
}

// Attribute is a service attribute (for Sentinels, the zone binding).
type Attribute struct {
	Name   string
	Value  string
	Active bool
}

// Zone returns the zone a Sentinel service is bound to, or "".
func (s Service) Zone() string {
	for _, attr := range s.Attributes {
		if len(s.Attributes) == 1 || attr.Name == "zone" {
			return attr.Value
		}
	}
	return ""
}

// Sentinel carries the last readings of an environmental sensor.
type Sentinel struct {
	Alias       string
	Temperature int
	Humidity    int
	ReadAt      time.Time
}

// AirQuality is the current air quality reading of a Sentinel.
type AirQuality struct {
	Current int
	Message string
	ReadAt  time.Time
}

// AlarmStatus is the payload of the arm/disarm/check status operations.
type AlarmStatus struct {
	Res                string          `json:"res"`
	Msg                string          `json:"msg"`
	Status             string          `json:"status"`
	Numinst            string          `json:"numinst"`
	ProtomResponse     string          `json:"protomResponse"`
	ProtomResponseDate string          `json:"protomResponseDate"`
	RequestID          string          `json:"requestId"`
	Error              *OperationError `json:"error"`
}

// OperationError is the structured error of a KO status response.
type OperationError struct {
	Code             string `json:"code"`
	Type             string `json:"type"`
	AllowForcing     bool   `json:"allowForcing"`
	ExceptionsNumber int    `json:"exceptionsNumber"`
	ReferenceID      string `json:"referenceId"`
}

// GeneralStatus is the lightweight last-known panel state, used when the
// caller skips the poll-driven panel check.
type GeneralStatus struct {
	Status          string      `json:"status"`
	TimestampUpdate string      `json:"timestampUpdate"`
	Exceptions      []Exception `json:"exceptions"`
}

// Exception is a device blocking the panel (an open door, for example).
type Exception struct {
	Status     string `json:"status"`
	DeviceType string `json:"deviceType"`
	Alias      string `json:"alias"`
}

// OTPPhone is a phone number the backend can send the OTP code to.
type OTPPhone struct {
	ID    int    `json:"id"`
	Phone string `json:"phone"`
}

// AuthChallenge is returned by Login when the backend requires a second
// factor before issuing a session.
type AuthChallenge struct {
	OTPHash string
	Phones  []OTPPhone
}

// Session is an authenticated session. Values are immutable; renewal
// produces a new Session that replaces the shared one.
type Session struct {
	Token          string
	RefreshToken   string
	IssuedAt       time.Time
	ExpiresAt      time.Time
	LoginTimestamp int64
}

// validFor reports whether the session still has at least d of validity
// left by the local expiry estimate.
func (s *Session) validFor(d time.Duration) bool {
	if s == nil || s.Token == "" {
		return false
	}
	if s.ExpiresAt.IsZero() {
		return true
	}
	return time.Now().Add(d).Before(s.ExpiresAt)
}
