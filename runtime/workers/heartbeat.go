package workers

import (
	"bizlink/contract"
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/shirou/gopsutil/process"
)

// Heartbeat is one sample of the process health.
type Heartbeat struct {
	At          time.Time
	RamBytes    uint64
	CpuPercent  float64
	PidStatus   string
	Connections int
}

// HeartbeatWorker samples the process and the number of connected users
// every interval and logs it.
type HeartbeatWorker struct {
	log      *slog.Logger
	registry contract.IRegistry
	interval time.Duration

	mu     sync.RWMutex
	latest Heartbeat
}

func NewHeartbeatWorker(log *slog.Logger, registry contract.IRegistry, interval time.Duration) *HeartbeatWorker {
	return &HeartbeatWorker{log: log, registry: registry, interval: interval}
}

func (w *HeartbeatWorker) Run(ctx context.Context) error {
	w.log.Info("Starting heartbeat worker", "interval", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case at := <-ticker.C:
			heartbeat, err := w.sample(p, at)
			if err != nil {
				w.log.Error("Failed to collect self stats", "err", err)
				continue
			}
			w.mu.Lock()
			w.latest = heartbeat
			w.mu.Unlock()
			w.log.Info("Heartbeat",
				"connections", heartbeat.Connections,
				"ram_bytes", heartbeat.RamBytes,
				"cpu_percent", heartbeat.CpuPercent,
				"pid_status", heartbeat.PidStatus)
		}
	}
}

// Latest returns the last sample, zero before the first tick.
func (w *HeartbeatWorker) Latest() Heartbeat {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.latest
}

func (w *HeartbeatWorker) sample(p *process.Process, at time.Time) (Heartbeat, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return Heartbeat{}, err
	}
	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return Heartbeat{}, err
	}
	status, err := p.Status()
	if err != nil {
		return Heartbeat{}, err
	}
	return Heartbeat{
		At:          at,
		RamBytes:    memInfo.RSS,
		CpuPercent:  cpuPercent,
		PidStatus:   status,
		Connections: w.registry.Count(),
	}, nil
}
