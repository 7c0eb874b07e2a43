package metrics

// Statuses lists every session status label exported by SessionStatus.
var Statuses = []string{"idle", "acquiring_media", "recording", "paused", "stopped"}

// InitializeMetrics pre-populates label combinations so every series is
// exported from the first scrape.
func InitializeMetrics() {
	for _, status := range Statuses {
		SessionTransitionsTotal.WithLabelValues(status)
		SessionStatus.WithLabelValues(status)
	}
	for _, trigger := range []string{"user", "host"} {
		RecordingsTotal.WithLabelValues(trigger)
	}
	for _, kind := range []string{"display", "microphone"} {
		AcquisitionFailuresTotal.WithLabelValues(kind)
	}
	for _, result := range []string{"success", "failure"} {
		TranscodeTotal.WithLabelValues(result)
	}
	for _, kind := range []string{"original", "converted"} {
		SavedRecordingsTotal.WithLabelValues(kind)
	}
	SetSessionStatus("idle")
}

// SetSessionStatus marks status as the current one.
func SetSessionStatus(status string) {
	for _, s := range Statuses {
		value := 0.0
		if s == status {
			value = 1
		}
		SessionStatus.WithLabelValues(s).Set(value)
	}
}
