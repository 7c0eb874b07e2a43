package services

import (
	"errors"
	"fmt"
	"strings"
)

// Session-facing failure markers. Callers classify with errors.Is.
var (
	ErrAcquisitionDenied    = errors.New("acquisition denied")
	ErrMicrophoneDenied     = errors.New("microphone denied")
	ErrUnsupportedDevice    = errors.New("unsupported device")
	ErrFinalizeCorrection   = errors.New("finalize correction failure")
	ErrTranscodeFailure     = errors.New("transcode failure")
	ErrConversionInProgress = errors.New("conversion in progress")
	ErrInvalidState         = errors.New("invalid session state")
)

// Infrastructure markers.
var (
	ErrExternalTool  = errors.New("external tool error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker. The marker should be one of the exported
// sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Code returns a stable short identifier for the marker carried by err. It is
// used on the wire (IPC and HTTP) so clients can branch without string parsing.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAcquisitionDenied):
		return "acquisition_denied"
	case errors.Is(err, ErrMicrophoneDenied):
		return "microphone_denied"
	case errors.Is(err, ErrUnsupportedDevice):
		return "unsupported_device"
	case errors.Is(err, ErrFinalizeCorrection):
		return "finalize_correction_failure"
	case errors.Is(err, ErrTranscodeFailure):
		return "transcode_failure"
	case errors.Is(err, ErrConversionInProgress):
		return "conversion_in_progress"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrExternalTool):
		return "external_tool"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	default:
		return "internal"
	}
}

var codeMarkers = map[string]error{
	"acquisition_denied":          ErrAcquisitionDenied,
	"microphone_denied":           ErrMicrophoneDenied,
	"unsupported_device":          ErrUnsupportedDevice,
	"finalize_correction_failure": ErrFinalizeCorrection,
	"transcode_failure":           ErrTranscodeFailure,
	"conversion_in_progress":      ErrConversionInProgress,
	"invalid_state":               ErrInvalidState,
	"not_found":                   ErrNotFound,
	"configuration":               ErrConfiguration,
	"external_tool":               ErrExternalTool,
	"timeout":                     ErrTimeout,
}

// MarkerForCode is the inverse of Code. Unknown codes map to ErrTransient.
func MarkerForCode(code string) error {
	if marker, ok := codeMarkers[code]; ok {
		return marker
	}
	return ErrTransient
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
