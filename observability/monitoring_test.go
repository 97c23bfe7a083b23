package observability

import (
	"log/slog"
	"sync"
	"testing"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func TestMonitoringManager_Counters(t *testing.T) {
	req := require.New(t)
	mm := NewMonitoringManager(logs.GetLoggerFromLevel(slog.LevelDebug))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			mm.SessionOpened()
			mm.IncrFramesReceived()
			mm.AddDelivered(2)
		}()
	}
	wg.Wait()
	mm.SessionClosed()
	mm.IncrFramesRejected()
	mm.IncrAuthFailures()
	mm.IncrMessagesPersisted()
	mm.IncrPersistFailures()
	mm.IncrPublishFailures()

	stats := mm.GetLatest()
	req.Equal(int64(9), stats.ActiveSessions)
	req.Equal(uint64(10), stats.SessionsOpened)
	req.Equal(uint64(10), stats.FramesReceived)
	req.Equal(uint64(20), stats.Delivered)
	req.Equal(uint64(1), stats.FramesRejected)
	req.Equal(uint64(1), stats.AuthFailures)
	req.Equal(uint64(1), stats.MessagesPersisted)
	req.Equal(uint64(1), stats.PersistFailures)
	req.Equal(uint64(1), stats.PublishFailures)
}

func TestMonitoringManager_Refresh(t *testing.T) {
	req := require.New(t)
	mm := NewMonitoringManager(logs.GetLoggerFromLevel(slog.LevelDebug))

	req.True(mm.GetLatest().UpdatedAt.IsZero())
	mm.Refresh()

	stats := mm.GetLatest()
	req.False(stats.UpdatedAt.IsZero())
	req.Positive(stats.Goroutines)
}

type presence struct{ users, connections int }

func (p presence) Users() int       { return p.users }
func (p presence) Connections() int { return p.connections }

func TestMonitoringManager_Presence(t *testing.T) {
	req := require.New(t)
	mm := NewMonitoringManager(logs.GetLoggerFromLevel(slog.LevelDebug))

	// Given no presence source
	req.Zero(mm.GetLatest().OnlineUsers)

	// When the registry is attached
	mm.WithPresence(presence{users: 2, connections: 3})

	// Then the snapshot reports it
	stats := mm.GetLatest()
	req.Equal(2, stats.OnlineUsers)
	req.Equal(3, stats.Connections)
}
