package dictation

import "fmt"

// CaptureError means the microphone could not be opened. Nothing is typed.
type CaptureError struct {
	Err error
}

func (e *CaptureError) Error() string { return "capture: " + e.Err.Error() }
func (e *CaptureError) Unwrap() error { return e.Err }

// TranscriptionError is a failed remote transcription call.
type TranscriptionError struct {
	Provider string
	Err      error
}

func (e *TranscriptionError) Error() string {
	return fmt.Sprintf("transcription (%s): %v", e.Provider, e.Err)
}
func (e *TranscriptionError) Unwrap() error { return e.Err }

// FormattingError is a failed remote formatting call. Tokens streamed
// before the failure have already been typed into the focused window and
// are not taken back, so the user may see a partial transcript. The cycle
// still fails and nothing is added to history.
type FormattingError struct {
	Provider string
	Err      error
}

func (e *FormattingError) Error() string {
	return fmt.Sprintf("formatting (%s): %v", e.Provider, e.Err)
}
func (e *FormattingError) Unwrap() error { return e.Err }

// InjectionError is reported on a completed cycle; it never fails it.
type InjectionError struct {
	Err error
}

func (e *InjectionError) Error() string { return "injection: " + e.Err.Error() }
func (e *InjectionError) Unwrap() error { return e.Err }

// stage names the pipeline step an error came from, for logs and metrics.
func stage(err error) string {
	switch err.(type) {
	case *CaptureError:
		return "capture"
	case *TranscriptionError:
		return "transcribe"
	case *FormattingError:
		return "format"
	case *InjectionError:
		return "inject"
	}
	return "internal"
}
