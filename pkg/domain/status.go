package domain

// Severity classifies a ServerStatus.
type Severity string

const (
	SeverityFatal   Severity = "FATAL"
	SeverityError   Severity = "ERROR"
	SeverityWarning Severity = "WARNING"
	SeverityInfo    Severity = "INFO"
	SeverityOK      Severity = "OK"

	// SeverityNone clears the status on the client.
	SeverityNone Severity = "NONE"
)

// ServerStatus is shown by the client as a status popup.
type ServerStatus struct {
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// StatusAction converts a status into the action sent to the client.
// A nil status produces an action that clears the popup.
func StatusAction(status *ServerStatus) *ServerStatusAction {
	if status == nil {
		return &ServerStatusAction{Severity: SeverityNone}
	}
	return &ServerStatusAction{Severity: status.Severity, Message: status.Message}
}
