package detection

import "context"

// Client is the capability contract for the detection service. Any
// implementation satisfying it (REST client, local stub, mock) can drive
// the pipeline.
type Client interface {
	// Submit starts an asynchronous detection job and returns its handle.
	Submit(ctx context.Context, req SubmitRequest) (Handle, error)
	// Poll reports the job's current state without blocking on completion.
	Poll(ctx context.Context, handle Handle) (*Poll, error)
}
