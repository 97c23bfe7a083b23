package observability

import (
	"log/slog"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/process"
)

// MonitoringStats is the snapshot served on /stats
type MonitoringStats struct {
	ActiveSessions    int64  `json:"active_sessions"`
	SessionsOpened    uint64 `json:"sessions_opened"`
	AuthFailures      uint64 `json:"auth_failures"`
	FramesReceived    uint64 `json:"frames_received"`
	FramesRejected    uint64 `json:"frames_rejected"`
	MessagesPersisted uint64 `json:"messages_persisted"`
	PersistFailures   uint64 `json:"persist_failures"`
	PublishFailures   uint64 `json:"publish_failures"`
	Delivered         uint64 `json:"delivered"`
	OnlineUsers       int    `json:"online_users"`
	Connections       int    `json:"connections"`

	// --- SYSTEM METRICS ---
	CPUPercent float64   `json:"cpu_percent"`
	RAMPercent float32   `json:"ram_percent"`
	AllocMemMb uint64    `json:"alloc_mem_mb"`
	NumGC      uint32    `json:"num_gc"`
	Goroutines int       `json:"goroutines"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Presence reports who is connected to this process.
type Presence interface {
	Users() int
	Connections() int
}

// MonitoringManager holds the counters shared by every session.
type MonitoringManager struct {
	log *slog.Logger

	activeSessions    int64
	sessionsOpened    uint64
	authFailures      uint64
	framesReceived    uint64
	framesRejected    uint64
	messagesPersisted uint64
	persistFailures   uint64
	publishFailures   uint64
	delivered         uint64

	mu       sync.RWMutex
	system   MonitoringStats
	proc     *process.Process
	presence Presence
}

func NewMonitoringManager(log *slog.Logger) *MonitoringManager {
	mm := &MonitoringManager{log: log}
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		log.Warn("Process metrics unavailable", "error", err)
	} else {
		mm.proc = proc
	}
	return mm
}

// WithPresence adds the connected users and connections to the snapshot.
func (mm *MonitoringManager) WithPresence(presence Presence) *MonitoringManager {
	mm.mu.Lock()
	mm.presence = presence
	mm.mu.Unlock()
	return mm
}

func (mm *MonitoringManager) SessionOpened() {
	atomic.AddInt64(&mm.activeSessions, 1)
	atomic.AddUint64(&mm.sessionsOpened, 1)
}

func (mm *MonitoringManager) SessionClosed() {
	atomic.AddInt64(&mm.activeSessions, -1)
}

func (mm *MonitoringManager) IncrAuthFailures() {
	atomic.AddUint64(&mm.authFailures, 1)
}

func (mm *MonitoringManager) IncrFramesReceived() {
	atomic.AddUint64(&mm.framesReceived, 1)
}

func (mm *MonitoringManager) IncrFramesRejected() {
	atomic.AddUint64(&mm.framesRejected, 1)
}

func (mm *MonitoringManager) IncrMessagesPersisted() {
	atomic.AddUint64(&mm.messagesPersisted, 1)
}

func (mm *MonitoringManager) IncrPersistFailures() {
	atomic.AddUint64(&mm.persistFailures, 1)
}

func (mm *MonitoringManager) IncrPublishFailures() {
	atomic.AddUint64(&mm.publishFailures, 1)
}

func (mm *MonitoringManager) AddDelivered(n int) {
	atomic.AddUint64(&mm.delivered, uint64(n))
}

// Refresh samples process and Go runtime metrics.
func (mm *MonitoringManager) Refresh() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	stats := MonitoringStats{
		AllocMemMb: m.Alloc / 1024 / 1024,
		NumGC:      m.NumGC,
		Goroutines: runtime.NumGoroutine(),
		UpdatedAt:  time.Now().UTC(),
	}
	if mm.proc != nil {
		if cpu, err := mm.proc.CPUPercent(); err == nil {
			stats.CPUPercent = cpu
		} else {
			mm.log.Debug("Error while finding process cpu usage", "error", err)
		}
		if ram, err := mm.proc.MemoryPercent(); err == nil {
			stats.RAMPercent = ram
		} else {
			mm.log.Debug("Error while finding process ram usage", "error", err)
		}
	}

	mm.mu.Lock()
	mm.system = stats
	mm.mu.Unlock()

	mm.log.Debug("📊 Stats updated",
		"cpu", stats.CPUPercent,
		"ram", stats.RAMPercent,
		"mem_mb", stats.AllocMemMb,
		"goroutines", stats.Goroutines,
		"active_sessions", atomic.LoadInt64(&mm.activeSessions),
	)
}

func (mm *MonitoringManager) GetLatest() MonitoringStats {
	mm.mu.RLock()
	stats := mm.system
	presence := mm.presence
	mm.mu.RUnlock()

	if presence != nil {
		stats.OnlineUsers = presence.Users()
		stats.Connections = presence.Connections()
	}

	stats.ActiveSessions = atomic.LoadInt64(&mm.activeSessions)
	stats.SessionsOpened = atomic.LoadUint64(&mm.sessionsOpened)
	stats.AuthFailures = atomic.LoadUint64(&mm.authFailures)
	stats.FramesReceived = atomic.LoadUint64(&mm.framesReceived)
	stats.FramesRejected = atomic.LoadUint64(&mm.framesRejected)
	stats.MessagesPersisted = atomic.LoadUint64(&mm.messagesPersisted)
	stats.PersistFailures = atomic.LoadUint64(&mm.persistFailures)
	stats.PublishFailures = atomic.LoadUint64(&mm.publishFailures)
	stats.Delivered = atomic.LoadUint64(&mm.delivered)
	return stats
}
