// Package refresh keeps the latest reading of one selected device up to date
// by polling the query service on a fixed interval.
package refresh

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/afroash/corrosion-monitor/internal/models"
)

// DefaultInterval is the polling period of the dashboard
const DefaultInterval = 10 * time.Second

// Fetcher issues a "latest reading" query.
// query.Service and client.APIClient both implement it.
type Fetcher interface {
	GetLatest(ctx context.Context, deviceID int) (*models.Reading, error)
}

var errEmptyResponse = errors.New("fetcher returned no reading")

// State is the lifecycle state of a Scheduler
type State int

const (
	StateIdle State = iota
	StateRunning
)

func (s State) String() string {
	if s == StateRunning {
		return "running"
	}
	return "idle"
}

// Update is delivered to subscribers once per completed fetch.
// Exactly one of Reading and Err is set.
type Update struct {
	DeviceID int
	Reading  *models.Reading
	Err      error
	Seq      uint64
	At       time.Time
}

// Scheduler polls Fetcher for the latest reading of a single device.
//
// Start fetches immediately and then every interval until Stop. SetDevice
// stops the current timer and starts over for the new device. Fetch errors
// are reported to subscribers and the timer keeps running. Results from a
// superseded device or a stopped run are discarded.
type Scheduler struct {
	fetcher  Fetcher
	interval time.Duration
	logger   zerolog.Logger

	// lifecycle serializes Start/SetDevice/Stop; mu guards the fields below
	lifecycle sync.Mutex
	mu        sync.Mutex
	state     State
	deviceID  int
	gen       uint64
	seq       uint64
	cancel    context.CancelFunc
	done      chan struct{}
	latest    *models.Reading
	lastErr   error
	subs      map[uint64]chan Update
	nextSubID uint64
}

// NewScheduler creates an idle scheduler. A non-positive interval means DefaultInterval.
func NewScheduler(fetcher Fetcher, interval time.Duration, logger zerolog.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{
		fetcher:  fetcher,
		interval: interval,
		logger:   logger,
		subs:     make(map[uint64]chan Update),
	}
}

// Start begins polling deviceID. Calling Start while running retargets the
// scheduler exactly like SetDevice.
func (s *Scheduler) Start(deviceID int) {
	s.SetDevice(deviceID)
}

// SetDevice cancels any pending timer, clears the held reading and starts
// polling deviceID.
func (s *Scheduler) SetDevice(deviceID int) {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	s.stop()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.state = StateRunning
	s.deviceID = deviceID
	s.cancel = cancel
	s.done = done
	s.latest = nil
	s.lastErr = nil
	s.mu.Unlock()

	s.logger.Debug().Int("device_id", deviceID).Dur("interval", s.interval).Msg("Refresh started")

	go s.run(ctx, gen, deviceID, done)
}

// Stop cancels the timer. No fetch is issued and no update is delivered
// after Stop returns. Stopping an idle scheduler is a no-op.
func (s *Scheduler) Stop() {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	s.stop()
}

func (s *Scheduler) stop() {
	s.mu.Lock()
	if s.state == StateIdle {
		s.mu.Unlock()
		return
	}
	s.gen++
	s.state = StateIdle
	cancel, done, deviceID := s.cancel, s.done, s.deviceID
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	cancel()
	<-done

	s.logger.Debug().Int("device_id", deviceID).Msg("Refresh stopped")
}

// State returns the lifecycle state and, when running, the polled device
func (s *Scheduler) State() (State, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.deviceID
}

// Latest returns the newest reading received for the current device and the
// error of the most recent fetch, if it failed.
func (s *Scheduler) Latest() (*models.Reading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest.Copy(), s.lastErr
}

// Subscribe returns a channel receiving updates. The channel holds only the
// newest undelivered update. The returned func unsubscribes and closes it.
func (s *Scheduler) Subscribe() (<-chan Update, func()) {
	ch := make(chan Update, 1)

	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subs[id] = ch
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
			close(ch)
		})
	}
}

// run polls until ctx is cancelled
func (s *Scheduler) run(ctx context.Context, gen uint64, deviceID int, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.tick(ctx, gen, deviceID)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx, gen, deviceID)
		}
	}
}

// tick performs one fetch and delivers its result
func (s *Scheduler) tick(ctx context.Context, gen uint64, deviceID int) {
	if ctx.Err() != nil {
		return
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.interval)
	reading, err := s.fetcher.GetLatest(fetchCtx, deviceID)
	cancel()

	if err == nil && reading == nil {
		err = errEmptyResponse
	}
	if err != nil && ctx.Err() == nil {
		s.logger.Warn().Err(err).Int("device_id", deviceID).Msg("Refresh fetch failed")
	}

	s.deliver(gen, deviceID, reading, err)
}

// deliver publishes a fetch result unless the run that issued it was superseded
func (s *Scheduler) deliver(gen uint64, deviceID int, reading *models.Reading, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen {
		s.logger.Debug().Int("device_id", deviceID).Msg("Discarding stale refresh result")
		return
	}

	s.seq++
	update := Update{
		DeviceID: deviceID,
		Err:      err,
		Seq:      s.seq,
		At:       time.Now(),
	}
	if err == nil {
		s.latest = reading.Copy()
		update.Reading = reading.Copy()
	}
	s.lastErr = err

	for _, ch := range s.subs {
		publish(ch, update)
	}
}

// publish replaces any undelivered update in ch with u
func publish(ch chan Update, u Update) {
	select {
	case ch <- u:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- u:
	default:
	}
}
