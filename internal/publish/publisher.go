package publish

import (
	"context"

	"go.uber.org/multierr"

	"github.com/yegors/birdnest/internal/report"
)

// Publisher delivers a finished report somewhere
type Publisher interface {
	Publish(ctx context.Context, rep *report.Report) error
}

// PublishError wraps a failure of one sink
type PublishError struct {
	Sink string
	Err  error
}

func (e *PublishError) Error() string {
	return "publish to " + e.Sink + ": " + e.Err.Error()
}

func (e *PublishError) Unwrap() error {
	return e.Err
}

// Fanout publishes to every sink in order. A failing sink does not stop the
// rest; all failures are combined into the returned error.
type Fanout []Publisher

// Publish implements Publisher
func (f Fanout) Publish(ctx context.Context, rep *report.Report) error {
	var err error
	for _, p := range f {
		err = multierr.Append(err, p.Publish(ctx, rep))
	}
	return err
}

// Errors splits a Fanout error into its parts
func Errors(err error) []error {
	return multierr.Errors(err)
}
