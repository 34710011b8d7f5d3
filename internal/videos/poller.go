package videos

import (
	"context"
	"time"

	"github.com/v2t/web/internal/gateway"
	"github.com/v2t/web/internal/logging"
	"github.com/v2t/web/internal/models"
)

// State is the position of a polling run.
type State string

const (
	StatePolling   State = "polling"
	StateDone      State = "done"
	StateFailed    State = "failed"
	StateTimedOut  State = "timed_out"
	StateCancelled State = "cancelled"
)

// Terminal reports whether no further updates follow.
func (s State) Terminal() bool {
	return s != StatePolling
}

// StatusFallback is shown when a status fetch fails without a usable detail.
const StatusFallback = "Failed to fetch video status"

const processingFailedMessage = "Video processing failed"

// StatusFetcher retrieves one status observation.
type StatusFetcher interface {
	Status(ctx context.Context, videoID string) (models.VideoStatus, error)
}

// PollerConfig tunes a Poller. Zero values select the defaults.
type PollerConfig struct {
	Interval       time.Duration
	RequestTimeout time.Duration
	MaxDuration    time.Duration

	// SkipInitialFetch delays the first request by one interval, for callers
	// that already hold a fresh status.
	SkipInitialFetch bool
}

const (
	DefaultPollInterval       = 3 * time.Second
	DefaultPollRequestTimeout = 10 * time.Second
	DefaultPollMaxDuration    = 30 * time.Minute
)

// PollUpdate is delivered after every completed fetch and once more when the
// run ends without a fetch (cancellation or timeout).
type PollUpdate struct {
	VideoID string
	State   State
	Status  models.VideoStatus
	Err     error
	Attempt int
}

// Message renders the update for display.
func (u PollUpdate) Message() string {
	switch u.State {
	case StateFailed:
		if u.Err != nil {
			return gateway.Message(u.Err, StatusFallback)
		}
		if u.Status.ErrorMessage != "" {
			return u.Status.ErrorMessage
		}
		return processingFailedMessage
	case StateTimedOut:
		return "Stopped waiting for processing to finish"
	case StateCancelled:
		return "Status updates stopped"
	default:
		return u.Status.Message
	}
}

// Poller drives the status state machine for one video at a time.
type Poller struct {
	fetcher StatusFetcher
	cfg     PollerConfig
}

// NewPoller constructs a Poller over fetcher.
func NewPoller(fetcher StatusFetcher, cfg PollerConfig) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultPollInterval
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultPollRequestTimeout
	}
	if cfg.MaxDuration <= 0 {
		cfg.MaxDuration = DefaultPollMaxDuration
	}
	return &Poller{fetcher: fetcher, cfg: cfg}
}

type fetchResult struct {
	status models.VideoStatus
	err    error
}

// Run fetches immediately (or after one interval with SkipInitialFetch) and
// then on every interval tick until a terminal state. At most one request is
// outstanding; ticks that fire meanwhile are dropped. onUpdate is called from the Run goroutine. The final update is
// returned.
func (p *Poller) Run(ctx context.Context, videoID string, onUpdate func(PollUpdate)) PollUpdate {
	if onUpdate == nil {
		onUpdate = func(PollUpdate) {}
	}
	logger := logging.FromContext(ctx).With("video_id", videoID)

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()
	deadline := time.NewTimer(p.cfg.MaxDuration)
	defer deadline.Stop()

	results := make(chan fetchResult, 1)
	var (
		attempts int
		inFlight bool
		last     models.VideoStatus
	)

	fetch := func() {
		inFlight = true
		attempts++
		go func() {
			reqCtx, cancel := context.WithTimeout(runCtx, p.cfg.RequestTimeout)
			defer cancel()
			status, err := p.fetcher.Status(reqCtx, videoID)
			results <- fetchResult{status: status, err: err}
		}()
	}

	finish := func(update PollUpdate) PollUpdate {
		cancelRun()
		logger.Debug("status polling finished", "state", update.State, "attempts", update.Attempt)
		onUpdate(update)
		return update
	}

	if !p.cfg.SkipInitialFetch {
		fetch()
	}
	for {
		select {
		case <-ctx.Done():
			return finish(PollUpdate{VideoID: videoID, State: StateCancelled, Status: last, Err: ctx.Err(), Attempt: attempts})
		case <-deadline.C:
			return finish(PollUpdate{VideoID: videoID, State: StateTimedOut, Status: last, Attempt: attempts})
		case <-ticker.C:
			if ctx.Err() != nil {
				continue
			}
			if inFlight {
				logger.Debug("skipping status tick while a request is in flight")
				continue
			}
			fetch()
		case res := <-results:
			inFlight = false
			if res.err != nil && ctx.Err() != nil {
				return finish(PollUpdate{VideoID: videoID, State: StateCancelled, Status: last, Err: ctx.Err(), Attempt: attempts})
			}

			update := classify(videoID, res, attempts)
			if res.err == nil {
				last = update.Status
			}
			if update.State.Terminal() {
				return finish(update)
			}
			onUpdate(update)
		}
	}
}

func classify(videoID string, res fetchResult, attempt int) PollUpdate {
	update := PollUpdate{VideoID: videoID, Attempt: attempt, Status: res.status}
	if res.err != nil {
		update.State = StateFailed
		update.Err = res.err
		return update
	}

	update.Status.Progress = ClampProgress(update.Status.Progress)
	switch NormalizeStatus(res.status.Status) {
	case models.StatusCompleted:
		update.State = StateDone
	case models.StatusFailed:
		update.State = StateFailed
	default:
		update.State = StatePolling
	}
	return update
}
