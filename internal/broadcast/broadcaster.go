package broadcast

import "sync"

// Log channel names carried as event names to the UI.
const (
	ChannelAppLog     = "app-log"
	ChannelProcessLog = "process-log"
)

// Surface is the live UI that displays log events.
// Emit must not block for long; it is called from the log append path.
type Surface interface {
	Emit(event string, payload any)
}

// Sink relays log entries to a secondary destination.
type Sink interface {
	Relay(channel, entry string) error
}

// Logger defines the logging interface for the broadcaster.
type Logger interface {
	Debug(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}

// relayQueueSize is the number of entries buffered for the sinks. Entries
// beyond it are dropped.
const relayQueueSize = 1024

type relayItem struct {
	channel string
	entry   string
}

// Broadcaster delivers log entries to the registered surface and sinks.
// The surface is called inline; sinks are fed from a queue by a single
// dispatcher goroutine, in notification order.
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
type Broadcaster struct {
	logger Logger

	surfaceMu sync.Mutex
	surface   Surface

	sinksMu sync.RWMutex
	sinks   []Sink

	queue     chan relayItem
	startOnce sync.Once
	started   bool
	stop      chan struct{}
	stopOnce  sync.Once
	drained   chan struct{}
}

// New creates a Broadcaster with no surface registered.
func New() *Broadcaster {
	return &Broadcaster{
		logger:  noopLogger{},
		queue:   make(chan relayItem, relayQueueSize),
		stop:    make(chan struct{}),
		drained: make(chan struct{}),
	}
}

// SetLogger sets the logger used for dropped deliveries.
func (b *Broadcaster) SetLogger(logger Logger) {
	b.logger = logger
}

// SetSurface registers the UI surface. Only the first call has an effect;
// it reports whether s was registered.
func (b *Broadcaster) SetSurface(s Surface) bool {
	if s == nil {
		return false
	}
	b.surfaceMu.Lock()
	defer b.surfaceMu.Unlock()
	if b.surface != nil {
		return false
	}
	b.surface = s
	return true
}

// HasSurface reports whether a UI surface has been registered.
func (b *Broadcaster) HasSurface() bool {
	b.surfaceMu.Lock()
	defer b.surfaceMu.Unlock()
	return b.surface != nil
}

// AddSink registers an additional relay destination. The first sink
// starts the dispatcher.
func (b *Broadcaster) AddSink(s Sink) {
	if s == nil {
		return
	}
	b.sinksMu.Lock()
	b.sinks = append(b.sinks, s)
	b.sinksMu.Unlock()

	b.startOnce.Do(func() {
		b.sinksMu.Lock()
		b.started = true
		b.sinksMu.Unlock()
		go b.dispatch()
	})
}

// Notify emits entry on channel to the surface, if one is registered,
// and queues it for every sink. It never fails and never waits on a sink.
func (b *Broadcaster) Notify(channel, entry string) {
	// The surface lock covers the reference read and the emit call only.
	b.surfaceMu.Lock()
	if b.surface != nil {
		b.surface.Emit(channel, entry)
	}
	b.surfaceMu.Unlock()

	b.sinksMu.RLock()
	hasSinks := len(b.sinks) > 0
	b.sinksMu.RUnlock()
	if !hasSinks {
		return
	}

	select {
	case b.queue <- relayItem{channel: channel, entry: entry}:
	default:
		b.logger.Debug("log relay queue full, entry dropped", "channel", channel)
	}
}

// Close delivers what is already queued and stops the dispatcher. Entries
// notified afterwards are not relayed.
func (b *Broadcaster) Close() {
	b.stopOnce.Do(func() { close(b.stop) })

	b.sinksMu.RLock()
	started := b.started
	b.sinksMu.RUnlock()
	if started {
		<-b.drained
	}
}

func (b *Broadcaster) dispatch() {
	defer close(b.drained)
	for {
		select {
		case item := <-b.queue:
			b.relay(item)
		case <-b.stop:
			for {
				select {
				case item := <-b.queue:
					b.relay(item)
				default:
					return
				}
			}
		}
	}
}

func (b *Broadcaster) relay(item relayItem) {
	b.sinksMu.RLock()
	sinks := b.sinks
	b.sinksMu.RUnlock()

	for _, sink := range sinks {
		if err := sink.Relay(item.channel, item.entry); err != nil {
			b.logger.Debug("log relay dropped entry", "channel", item.channel, "error", err)
		}
	}
}
