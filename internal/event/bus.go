package event

import (
	"time"

	log "github.com/sirupsen/logrus"
)

type (
	bus struct {
		q chan *ModerationAction
	}

	// ModerationAction is the audit record of one moderation operation,
	// published by the services and consumed asynchronously.
	ModerationAction struct {
		At         time.Time
		Action     string
		Actor      string
		TargetKind string
		Target     string
		Code       string
	}
)

var Bus = &bus{q: make(chan *ModerationAction, 10000)}

func (b *bus) Enqueue(e *ModerationAction) {
	select {
	case b.q <- e:
	default:
		log.WithField("action", e.Action).Warn("audit queue full, dropping event")
	}
}

func (b *bus) dq() *ModerationAction {
	select {
	case e := <-b.q:
		return e
	default:
		return nil
	}
}
