package ipc

import "screencap/internal/api"

// DependencyStatus mirrors api.DependencyStatus for RPC consumers.
type DependencyStatus = api.DependencyStatus

// Session mirrors api.Session for RPC consumers.
type Session = api.Session

// Recording mirrors api.Recording for RPC consumers.
type Recording = api.Recording

// StatusRequest requests daemon status.
type StatusRequest struct{}

// StatusResponse contains daemon status.
type StatusResponse struct {
	api.DaemonStatus
	LogPath string `json:"log_path"`
}

// SessionStartRequest begins a recording session.
type SessionStartRequest struct {
	Microphone bool `json:"microphone"`
}

// SessionRequest addresses the current session. It carries no fields.
type SessionRequest struct{}

// SessionResponse returns the session after an operation.
type SessionResponse struct {
	Session Session `json:"session"`
}

// SaveRequest writes the stopped session's recording to disk.
type SaveRequest struct {
	Converted bool   `json:"converted"`
	Output    string `json:"output"`
	Name      string `json:"name"`
}

// SaveResponse describes the written file.
type SaveResponse struct {
	Recording Recording `json:"recording"`
}

// ListRequest lists saved recordings.
type ListRequest struct {
	Limit int `json:"limit"`
}

// ListResponse contains saved recordings, newest first.
type ListResponse struct {
	Items []Recording `json:"items"`
}

// RemoveRequest drops a saved recording from the catalog.
type RemoveRequest struct {
	ID       string `json:"id"`
	KeepFile bool   `json:"keep_file"`
}

// RemoveResponse describes the removed entry.
type RemoveResponse struct {
	Recording Recording `json:"recording"`
}

// ShutdownRequest asks the daemon to exit.
type ShutdownRequest struct{}

// ShutdownResponse acknowledges a shutdown request.
type ShutdownResponse struct {
	Stopping bool `json:"stopping"`
}

// TestNotificationRequest triggers a test notification.
type TestNotificationRequest struct{}

// TestNotificationResponse reports whether the notification was sent.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}
