package event

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/openboard/modkit/internal/infra"
)

type worker struct {
	subscriptions []func(event *ModerationAction)
}

var (
	instance = &worker{}
	l        = log.WithField("context", "audit_worker")
)

// Subscribe registers a consumer for every published moderation action.
// Must be called before RunWorker.
func Subscribe(fn func(event *ModerationAction)) {
	instance.subscriptions = append(instance.subscriptions, fn)
}

func RunWorker() context.CancelFunc {
	ctx, cancelFunc := context.WithCancel(context.Background())
	instance.Run(ctx)
	return cancelFunc
}

func (w *worker) Run(ctx context.Context) {
	done := ctx.Done()

	go infra.GoRecoverable(-1, "audit_worker", func() {
		l.Trace("audit runner go")
		for {
			select {
			case <-done:
				l.Info("shutting down audit worker by cancelled context")
				return
			default:
				time.Sleep(1 * time.Millisecond)
				e := Bus.dq()
				if e == nil {
					continue
				}

				l.WithFields(log.Fields{
					"action": e.Action,
					"actor":  e.Actor,
					"target": e.TargetKind + ":" + e.Target,
					"code":   e.Code,
				}).Info("moderation action")

				for _, sub := range w.subscriptions {
					sub(e)
				}
			}
		}
	})
}
