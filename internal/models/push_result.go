package models

// PushResult captures the delivery outcome per subscription endpoint.
type PushResult struct {
	Endpoint   string `json:"endpoint"`
	Provider   string `json:"provider"`
	Status     string `json:"status"`
	StatusCode int    `json:"status_code,omitempty"`
	Error      string `json:"error,omitempty"`
}

const (
	// ResultDelivered indicates the push service accepted the message.
	ResultDelivered = "delivered"
	// ResultFailed indicates a failure that may be retried.
	ResultFailed = "failed"
	// ResultGone indicates the endpoint no longer exists (404/410) and must be dropped.
	ResultGone = "gone"
)
