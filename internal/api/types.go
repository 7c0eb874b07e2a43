package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Session describes the recording session in a transport-friendly format.
type Session struct {
	ID                string `json:"id,omitempty"`
	Status            string `json:"status"`
	ElapsedSeconds    int    `json:"elapsedSeconds"`
	Elapsed           string `json:"elapsed"`
	DurationSeconds   int    `json:"durationSeconds,omitempty"`
	Microphone        bool   `json:"microphone"`
	StartedAt         string `json:"startedAt,omitempty"`
	StopTrigger       string `json:"stopTrigger,omitempty"`
	Finalizing        bool   `json:"finalizing,omitempty"`
	CorrectionApplied bool   `json:"correctionApplied,omitempty"`
	RecordedURL       string `json:"recordedUrl,omitempty"`
	RecordedPath      string `json:"recordedPath,omitempty"`
	TranscodedURL     string `json:"transcodedUrl,omitempty"`
	TranscodedPath    string `json:"transcodedPath,omitempty"`
	Converting        bool   `json:"converting,omitempty"`
	TranscodeError    string `json:"transcodeError,omitempty"`
	RecordingError    string `json:"recordingError,omitempty"`
	Unsupported       bool   `json:"unsupported,omitempty"`
}

// Recording describes a saved recording file.
type Recording struct {
	ID              string `json:"id"`
	SessionID       string `json:"sessionId,omitempty"`
	Kind            string `json:"kind"`
	Path            string `json:"path"`
	MimeType        string `json:"mimeType"`
	DurationSeconds int    `json:"durationSeconds"`
	Duration        string `json:"duration"`
	SizeBytes       int64  `json:"sizeBytes"`
	Microphone      bool   `json:"microphone"`
	CreatedAt       string `json:"createdAt,omitempty"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
	Severity    string `json:"severity,omitempty"`
}

// DependencySummary aggregates dependency readiness for status output.
type DependencySummary struct {
	Total           int    `json:"total"`
	Available       int    `json:"available"`
	MissingRequired int    `json:"missingRequired"`
	MissingOptional int    `json:"missingOptional"`
	Severity        string `json:"severity"`
	Detail          string `json:"detail"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running          bool               `json:"running"`
	PID              int                `json:"pid"`
	LockFilePath     string             `json:"lockFilePath"`
	LibraryDBPath    string             `json:"libraryDbPath,omitempty"`
	TranscodeEnabled bool               `json:"transcodeEnabled"`
	TranscodeReady   bool               `json:"transcodeReady"`
	DisplayMonitor   bool               `json:"displayMonitor"`
	Session          Session            `json:"session"`
	Dependencies     []DependencyStatus `json:"dependencies"`
}

// SessionResponse wraps a session snapshot.
type SessionResponse struct {
	Session Session `json:"session"`
}

// RecordingListResponse wraps saved recordings, newest first.
type RecordingListResponse struct {
	Items []Recording `json:"items"`
}

// ErrorResponse is the body of every non-2xx HTTP response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// StatusLine is one labelled readiness line in status output.
type StatusLine struct {
	Label    string `json:"label"`
	Severity string `json:"severity"`
	Detail   string `json:"detail"`
}
