package metrics

import (
	"github.com/cisco7507/LangId-mr/pkg/types"
)

// EventType identifies a worker metric event.
type EventType int

const (
	EventJobFinished EventType = iota
	EventJobRunningInc
	EventJobRunningDec
	EventProcessingSeconds
	EventAudioSeconds
	EventGateDecision
	EventGateAccept
	EventGateReject
	EventFallbackUsed
	EventTranslate
)

// Event is a single metric observation produced by a worker. Events travel
// over a bounded queue to a single consumer that owns all counter
// increments, so workers never touch the registry directly.
type Event struct {
	Type      EventType
	Status    string // terminal job status for EventJobFinished
	Direction string // "en2fr" or "fr2en" for EventTranslate
	Seconds   float64
	Gate      *types.GateResult
}

const queueCapacity = 1024

// Queue is a bounded producer/consumer channel for metric events.
type Queue struct {
	ch   chan Event
	done chan struct{}
}

// NewQueue creates a queue with the default capacity.
func NewQueue() *Queue {
	return &Queue{
		ch:   make(chan Event, queueCapacity),
		done: make(chan struct{}),
	}
}

// Publish enqueues an event without blocking. When the queue is full the
// event is dropped and the drop counter incremented; a worker must never
// stall on metrics.
func (q *Queue) Publish(e Event) {
	select {
	case q.ch <- e:
	default:
		EventsDropped.Inc()
	}
}

// Run consumes events until Close is called, applying each to the registry.
// It is started as a single goroutine next to the HTTP server.
func (q *Queue) Run() {
	for {
		select {
		case e := <-q.ch:
			apply(e)
		case <-q.done:
			// Drain what is left so terminal-status counts are not lost.
			for {
				select {
				case e := <-q.ch:
					apply(e)
				default:
					return
				}
			}
		}
	}
}

// Close stops the consumer after draining pending events.
func (q *Queue) Close() {
	close(q.done)
}

func apply(e Event) {
	switch e.Type {
	case EventJobFinished:
		JobsTotal.WithLabelValues(e.Status).Inc()
		recordJobFinishedLocal(e.Status)
	case EventJobRunningInc:
		JobsRunning.Inc()
	case EventJobRunningDec:
		JobsRunning.Dec()
	case EventProcessingSeconds:
		ProcessingSeconds.Observe(e.Seconds)
	case EventAudioSeconds:
		AudioSeconds.Observe(e.Seconds)
	case EventGateDecision:
		RecordGatePath(e.Gate)
	case EventGateAccept:
		AutodetectAccept.Inc()
	case EventGateReject:
		AutodetectReject.Inc()
	case EventFallbackUsed:
		FallbackUsed.Inc()
	case EventTranslate:
		switch e.Direction {
		case "en2fr":
			TranslateEnToFr.Inc()
		case "fr2en":
			TranslateFrToEn.Inc()
		}
	}
}
