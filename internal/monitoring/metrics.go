package monitoring

import (
	"sync"
	"time"

	"github.com/tr1v3r/pkg/log"
)

// Metrics tracks basic link and player metrics
type Metrics struct {
	mu sync.RWMutex

	// Link metrics
	LinksOpenedTotal   int64
	LinksClosedTotal   int64
	CommandsSentTotal  int64
	SendErrorsTotal    int64
	ResultsTotal       int64
	ResultErrorsTotal  int64
	ReceiveErrorsTotal int64
	EventsTotal        int64

	// Player metrics
	PlayerSessionsTotal int64
	PlayerErrorsTotal   int64

	startTime time.Time
}

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// GetMetrics returns the global metrics instance
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{startTime: time.Now()}
	})
	return globalMetrics
}

func (m *Metrics) add(counter *int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	*counter++
}

func (m *Metrics) RecordLinkOpened()   { m.add(&m.LinksOpenedTotal) }
func (m *Metrics) RecordLinkClosed()   { m.add(&m.LinksClosedTotal) }
func (m *Metrics) RecordCommandSent()  { m.add(&m.CommandsSentTotal) }
func (m *Metrics) RecordSendError()    { m.add(&m.SendErrorsTotal) }
func (m *Metrics) RecordResult()       { m.add(&m.ResultsTotal) }
func (m *Metrics) RecordResultError()  { m.add(&m.ResultErrorsTotal) }
func (m *Metrics) RecordReceiveError() { m.add(&m.ReceiveErrorsTotal) }
func (m *Metrics) RecordEvent()        { m.add(&m.EventsTotal) }

// RecordPlayerSession records a player session
func (m *Metrics) RecordPlayerSession() { m.add(&m.PlayerSessionsTotal) }

// RecordPlayerError records a player error
func (m *Metrics) RecordPlayerError() { m.add(&m.PlayerErrorsTotal) }

// Snapshot returns a copy of the counters.
func (m *Metrics) Snapshot() Metrics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return Metrics{
		LinksOpenedTotal:    m.LinksOpenedTotal,
		LinksClosedTotal:    m.LinksClosedTotal,
		CommandsSentTotal:   m.CommandsSentTotal,
		SendErrorsTotal:     m.SendErrorsTotal,
		ResultsTotal:        m.ResultsTotal,
		ResultErrorsTotal:   m.ResultErrorsTotal,
		ReceiveErrorsTotal:  m.ReceiveErrorsTotal,
		EventsTotal:         m.EventsTotal,
		PlayerSessionsTotal: m.PlayerSessionsTotal,
		PlayerErrorsTotal:   m.PlayerErrorsTotal,
		startTime:           m.startTime,
	}
}

// GetUptime returns the application uptime
func (m *Metrics) GetUptime() time.Duration {
	return time.Since(m.startTime)
}

// LogMetrics logs current metrics
func (m *Metrics) LogMetrics() {
	s := m.Snapshot()

	log.Info("Link metrics uptime=%s links_opened=%d links_closed=%d commands_sent=%d send_errors=%d results=%d result_errors=%d receive_errors=%d events=%d player_sessions=%d player_errors=%d",
		s.GetUptime().String(),
		s.LinksOpenedTotal,
		s.LinksClosedTotal,
		s.CommandsSentTotal,
		s.SendErrorsTotal,
		s.ResultsTotal,
		s.ResultErrorsTotal,
		s.ReceiveErrorsTotal,
		s.EventsTotal,
		s.PlayerSessionsTotal,
		s.PlayerErrorsTotal)
}
