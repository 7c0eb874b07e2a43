package transcode

import (
	"context"
	"sync"

	"screencap/internal/blob"
	"screencap/internal/services"
)

// Job is one session's conversion of its recorded blob. At most one run is in
// progress and a successful output is kept for the life of the job.
type Job struct {
	mu         sync.Mutex
	input      blob.Blob
	output     blob.Blob
	done       bool
	inProgress bool
	lastErr    error
}

// NewJob prepares a conversion of input.
func NewJob(input blob.Blob) *Job {
	return &Job{input: input}
}

// Input returns the source blob.
func (j *Job) Input() blob.Blob {
	return j.input
}

// Output returns the converted blob once available.
func (j *Job) Output() (blob.Blob, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.output, j.done
}

// InProgress reports whether a conversion is running.
func (j *Job) InProgress() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.inProgress
}

// Err returns the error of the last failed run, cleared when a run starts.
func (j *Job) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.lastErr
}

// Convert runs the job through p. A completed job returns its cached output;
// a job already running returns ErrConversionInProgress.
func (p *Pipeline) Convert(ctx context.Context, job *Job) (blob.Blob, error) {
	job.mu.Lock()
	if job.done {
		out := job.output
		job.mu.Unlock()
		return out, nil
	}
	if job.inProgress {
		job.mu.Unlock()
		return blob.Blob{}, services.Wrap(services.ErrConversionInProgress, "transcode", "convert", "conversion already running", nil)
	}
	job.inProgress = true
	job.lastErr = nil
	job.mu.Unlock()

	out, err := p.Remux(ctx, job.input)

	job.mu.Lock()
	defer job.mu.Unlock()
	job.inProgress = false
	if err != nil {
		job.lastErr = err
		return blob.Blob{}, err
	}
	job.output = out
	job.done = true
	return out, nil
}
