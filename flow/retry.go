package flow

import (
	"errors"
	"time"

	"context"

	"github.com/sirupsen/logrus"

	"xdao.co/txfin/tx"
)

// withRetry runs fn up to MaxAttempts times, pausing RetryBackoff between
// attempts. Structured protocol errors are terminal on first sight: a
// refusal, violation or double spend never changes on resubmission. Only
// transport-level and Internal errors are retried.
func (n *Node) withRetry(ctx context.Context, log logrus.FieldLogger, fn func() error) error {
	var err error
	for attempt := 1; ; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if terminal(err) || attempt >= n.opts.MaxAttempts {
			return err
		}
		log.WithError(err).WithField("attempt", attempt).Warn("retrying")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(n.opts.RetryBackoff):
		}
	}
}

func terminal(err error) bool {
	var e *tx.Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind != tx.KindInternal
}
