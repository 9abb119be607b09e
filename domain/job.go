package domain

import "time"

type JobStatus int

const (
	StatusIdle            JobStatus = 0
	StatusSubmitted       JobStatus = 1
	StatusPaymentRequired JobStatus = 2
	StatusPaying          JobStatus = 3
	StatusProcessing      JobStatus = 4
	StatusCompleted       JobStatus = 5
	StatusError           JobStatus = 6
)

var (
	JobStatusToString = map[JobStatus]string{
		StatusIdle:            "idle",
		StatusSubmitted:       "submitted",
		StatusPaymentRequired: "payment_required",
		StatusPaying:          "paying",
		StatusProcessing:      "processing",
		StatusCompleted:       "completed",
		StatusError:           "error",
	}
)

func (s JobStatus) String() string {
	if str, ok := JobStatusToString[s]; ok {
		return str
	}

	return "unknown"
}

// Terminal reports whether no further feedback or result may change a job in
// this status.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// Feedback status tokens as they appear in the "status" tag of kind 7000 events.
const (
	FeedbackSubmitted       = "submitted"
	FeedbackPaymentRequired = "payment-required"
	FeedbackProcessing      = "processing"
	FeedbackError           = "error"
	FeedbackSuccess         = "success"
	FeedbackPartial         = "partial"
)

type JobRequest struct {
	Kind      int
	Input     string
	Params    map[string]string
	CreatedAt time.Time
}

type PaymentInfo struct {
	Invoice     string
	AmountMsats int64
}

// Sats rounds the amount up to whole satoshis.
func (p PaymentInfo) Sats() int64 {
	return (p.AmountMsats + 999) / 1000
}

type Feedback struct {
	Status  string
	Payment *PaymentInfo
	Content string
}

type JobResult struct {
	EventID   string
	Content   string
	Kind      int
	Timestamp int64
}

// State is a read-only snapshot of a job as seen by the caller.
type State struct {
	JobID           string
	Status          JobStatus
	Payment         *PaymentInfo
	Result          *JobResult
	Error           string
	PaymentTimedOut bool
}
