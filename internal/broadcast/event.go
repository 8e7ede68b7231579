package broadcast

// Event types delivered to live subscribers.
const (
	TypeModeStatus         = "mode_status"
	TypeRegistrationPrompt = "registration_prompt"
	TypeNewAttendance      = "new_attendance"
	TypeUpdateAttendance   = "update_attendance"
)

// Event is the JSON payload pushed to every subscriber.
type Event struct {
	Type               string `json:"type"`
	IsRegistrationMode *bool  `json:"isRegistrationMode,omitempty"`
	UID                string `json:"uid,omitempty"`
	Data               any    `json:"data,omitempty"`
}

// ModeStatus reports the current registration mode.
func ModeStatus(enabled bool) Event {
	return Event{Type: TypeModeStatus, IsRegistrationMode: &enabled}
}

// RegistrationPrompt asks the dashboard to register an unknown uid.
func RegistrationPrompt(uid string) Event {
	return Event{Type: TypeRegistrationPrompt, UID: uid}
}

// NewAttendance announces a record created by a tap.
func NewAttendance(record any) Event {
	return Event{Type: TypeNewAttendance, Data: record}
}

// UpdateAttendance announces a record written by staff or the finalizer.
func UpdateAttendance(record any) Event {
	return Event{Type: TypeUpdateAttendance, Data: record}
}
