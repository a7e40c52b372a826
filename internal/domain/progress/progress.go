// Package progress defines the events a migration emits while it runs and
// the observer contract any UI consumes them through.
package progress

import (
	"fmt"

	"golang.org/x/time/rate"
)

// Event is a single progress notification for one stage.
type Event struct {
	// Stage is the name of the running stage.
	Stage string `json:"stage"`
	// Item is a human-readable description of the current item.
	Item string `json:"item"`
	// Index is the 1-based position of the current item. Zero before the first item.
	Index int `json:"index"`
	// Total is the number of items in the stage. Zero means not yet known.
	Total int `json:"total"`
}

// Percentage returns Index/Total*100, or 0 when Total is unknown.
func (e Event) Percentage() float64 {
	if e.Total <= 0 {
		return 0
	}
	return float64(e.Index) / float64(e.Total) * 100
}

// String returns a one-line summary of the event.
func (e Event) String() string {
	if e.Total <= 0 {
		return fmt.Sprintf("[%s] %s", e.Stage, e.Item)
	}
	return fmt.Sprintf("[%s] %.1f%% (%d/%d) %s", e.Stage, e.Percentage(), e.Index, e.Total, e.Item)
}

// Observer receives progress events. OnProgress is called synchronously on
// the goroutine running the stage; implementations that drive a UI must hand
// the event over to their own event loop.
type Observer interface {
	OnProgress(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

// OnProgress calls f(e).
func (f ObserverFunc) OnProgress(e Event) {
	f(e)
}

// Multi fans events out to several observers in order. Nil entries are ignored.
func Multi(observers ...Observer) Observer {
	var list []Observer
	for _, o := range observers {
		if o != nil {
			list = append(list, o)
		}
	}
	return ObserverFunc(func(e Event) {
		for _, o := range list {
			o.OnProgress(e)
		}
	})
}

// Discard is an observer that drops every event.
var Discard Observer = ObserverFunc(func(Event) {})

// Reporter emits the event sequence of one stage: a start event, a count
// event, throttled item events and a completion event.
type Reporter struct {
	stage     string
	total     int
	last      int
	observer  Observer
	sometimes *rate.Sometimes
}

// NewReporter creates a reporter for stage. Item events are forwarded for the
// first item and then every `every` items; every <= 1 forwards all of them.
func NewReporter(stage string, observer Observer, every int) *Reporter {
	if observer == nil {
		observer = Discard
	}
	if every < 1 {
		every = 1
	}
	return &Reporter{
		stage:     stage,
		observer:  observer,
		sometimes: &rate.Sometimes{Every: every},
	}
}

// Stage returns the stage name.
func (r *Reporter) Stage() string {
	return r.stage
}

// Start reports that the stage has begun (index 0, total 0).
func (r *Reporter) Start(message string) {
	r.emit(Event{Stage: r.stage, Item: message})
}

// SetTotal reports that the source count is known (index 0, total n).
func (r *Reporter) SetTotal(n int, message string) {
	r.total = n
	r.last = 0
	r.emit(Event{Stage: r.stage, Item: message, Total: n})
}

// Message reports free text without moving the index.
func (r *Reporter) Message(message string) {
	r.emit(Event{Stage: r.stage, Item: message, Index: r.last, Total: r.total})
}

// Step reports item index (1-based). Indices lower than one already
// reported are ignored so the sequence never goes backwards.
func (r *Reporter) Step(index int, item string) {
	if index < r.last {
		return
	}
	r.sometimes.Do(func() {
		r.last = index
		r.emit(Event{Stage: r.stage, Item: item, Index: index, Total: r.total})
	})
}

// Complete reports index == total.
func (r *Reporter) Complete(message string) {
	r.last = r.total
	r.emit(Event{Stage: r.stage, Item: message, Index: r.total, Total: r.total})
}

func (r *Reporter) emit(e Event) {
	r.observer.OnProgress(e)
}
