package notifier

import (
	"context"
	"errors"

	"github.com/ibeloyar/payrelay/internal/model"
)

type Publisher interface {
	Publish(ctx context.Context, event model.PaymentConfirmed) error
}

// Fanout publishes to every backend and joins their errors.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, event model.PaymentConfirmed) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
