package job

import (
	"context"
	"sync"

	goNostr "github.com/nbd-wtf/go-nostr"
	"github.com/sebdeveloper6952/dvmjob/domain"
	"github.com/sebdeveloper6952/dvmjob/nostr"
	"github.com/sirupsen/logrus"
)

// CancelFunc detaches a listener and returns once its callback is no longer running, so
// it must not be called from the callback or while holding a lock the callback takes.
// Calls after the first are no-ops.
type CancelFunc func()

// ListenFeedback calls onFeedback for every kind 7000 event that references jobID.
func ListenFeedback(
	ctx context.Context,
	t nostr.Transport,
	jobID string,
	log *logrus.Logger,
	onFeedback func(*domain.Feedback),
) (CancelFunc, error) {
	return listen(ctx, t, nostr.FeedbackFilter(jobID), func(e *goNostr.Event) {
		feedback := nostr.FeedbackFromEvent(e)
		log.Tracef("[job] feedback %s for %s", feedback.Status, jobID)
		onFeedback(feedback)
	})
}

// ListenResult calls onResult for every result event that references jobID. Duplicates
// are passed through.
func ListenResult(
	ctx context.Context,
	t nostr.Transport,
	jobID string,
	resultKind int,
	log *logrus.Logger,
	onResult func(*domain.JobResult),
) (CancelFunc, error) {
	return listen(ctx, t, nostr.ResultFilter(jobID, resultKind), func(e *goNostr.Event) {
		log.Tracef("[job] result %s for %s", e.ID, jobID)
		onResult(nostr.JobResultFromEvent(e))
	})
}

func listen(
	ctx context.Context,
	t nostr.Transport,
	filter goNostr.Filter,
	handle func(*goNostr.Event),
) (CancelFunc, error) {
	sub, err := t.Subscribe(ctx, filter)
	if err != nil {
		return nil, err
	}

	done := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)

		for {
			select {
			case e, ok := <-sub.Events:
				if !ok {
					return
				}
				// done may have been closed while this event was waiting
				select {
				case <-done:
					return
				default:
				}
				handle(e)
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			sub.Close()
			<-exited
		})
	}, nil
}
