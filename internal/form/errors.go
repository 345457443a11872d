package form

import "errors"

// Pipeline failure taxonomy. Each stage maps its failures onto exactly one of
// these so the HTTP layer can answer with a stable message.
var (
	// ErrUnresolved means the URL matches no known provider pattern.
	// Terminal; retrying the same URL cannot succeed.
	ErrUnresolved = errors.New("unsupported form provider")

	// ErrNotFound means no persisted form matches the identity.
	ErrNotFound = errors.New("form not found")

	// ErrDuplicateForm means an insert lost the first-extraction race to a
	// concurrent request. Benign; the caller retries the lookup.
	ErrDuplicateForm = errors.New("form already persisted")

	// ErrPersistence is any other store failure. Fatal for the request.
	ErrPersistence = errors.New("form persistence failed")

	// ErrExtractionTimeout means a bounded DOM wait elapsed during
	// extraction. Retryable by the caller with backoff.
	ErrExtractionTimeout = errors.New("form extraction timed out")

	// ErrSubmissionTimeout means a bounded DOM wait elapsed while applying
	// answers. Retryable by the caller with backoff.
	ErrSubmissionTimeout = errors.New("form submission timed out")

	// ErrSubmissionFailed means the submit control or success marker never
	// appeared, or an answer's control could not be located. Fatal; remote
	// forms are not idempotent to blind resubmission.
	ErrSubmissionFailed = errors.New("form submission failed")

	// ErrAnswerSynthesis means the generative call failed or produced
	// unparsable output. Fatal for the answer path only.
	ErrAnswerSynthesis = errors.New("answer synthesis failed")
)
