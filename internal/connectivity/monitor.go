package connectivity

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/prowessninja/smsctl/internal/constants"
	"github.com/prowessninja/smsctl/internal/events"
	"github.com/prowessninja/smsctl/internal/http"
)

// Pinger checks that the API host is reachable. *api.Client satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Monitor probes the API host and publishes online/offline transitions.
// On every offline → online transition it resumes the deferred action.
type Monitor struct {
	pinger   Pinger
	resumer  *Resumer
	eventBus *events.EventBus
	interval time.Duration
	timeout  time.Duration

	mu       sync.Mutex
	online   bool
	failures int
}

// NewMonitor creates a Monitor. The host is assumed online until a probe or
// ReportFailure says otherwise. interval <= 0 means constants.ProbeInterval.
func NewMonitor(pinger Pinger, resumer *Resumer, eventBus *events.EventBus, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = constants.ProbeInterval
	}
	timeout := constants.ProbeTimeout
	if timeout > interval {
		timeout = interval
	}
	return &Monitor{
		pinger:   pinger,
		resumer:  resumer,
		eventBus: eventBus,
		interval: interval,
		timeout:  timeout,
		online:   true,
	}
}

// Online reports the last known reachability.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Run probes until ctx is done. While offline the delay between probes
// grows with jittered backoff up to constants.OfflineProbeMaxDelay.
func (m *Monitor) Run(ctx context.Context) error {
	for {
		m.Probe(ctx)

		if err := sleepCtx(ctx, m.nextDelay()); err != nil {
			return err
		}
	}
}

func (m *Monitor) nextDelay() time.Duration {
	m.mu.Lock()
	failures := m.failures
	m.mu.Unlock()

	if failures == 0 {
		return m.interval
	}
	if failures > 16 {
		failures = 16
	}
	return m.interval + http.CalculateBackoff(failures, m.interval, constants.OfflineProbeMaxDelay)
}

// Probe runs one reachability check and applies the result.
func (m *Monitor) Probe(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	err := m.pinger.Ping(probeCtx)
	if ctx.Err() != nil {
		return m.Online()
	}
	if err != nil {
		m.ReportFailure(err)
		return false
	}
	m.reportSuccess()
	return true
}

// ReportFailure marks the host offline. Callers that saw a transport error
// on a regular request use it to switch to offline without waiting for the
// next probe.
func (m *Monitor) ReportFailure(err error) {
	m.mu.Lock()
	m.failures++
	wasOnline := m.online
	m.online = false
	m.mu.Unlock()

	if wasOnline {
		log.Warn().Err(err).Msg("API unreachable, switching to offline mode")
		if m.eventBus != nil {
			m.eventBus.PublishConnectivity(false, err)
		}
	}
}

func (m *Monitor) reportSuccess() {
	m.mu.Lock()
	wasOnline := m.online
	m.online = true
	m.failures = 0
	m.mu.Unlock()

	if wasOnline {
		return
	}
	log.Info().Msg("API reachable again")
	if m.eventBus != nil {
		m.eventBus.PublishConnectivity(true, nil)
	}
	if m.resumer != nil {
		m.resumer.Resume()
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
