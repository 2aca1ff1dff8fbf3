package api

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/process"
)

// ServerMetrics содержит метрики процесса сервера
type ServerMetrics struct {
	StartTime time.Time
	proc      *process.Process
}

// RuntimeStats - снимок метрик процесса для /api/stats
type RuntimeStats struct {
	Uptime        string  `json:"uptime"`
	UptimeSeconds int64   `json:"uptime_seconds"`
	MemoryMB      float64 `json:"memory_mb"`
	HeapSysMB     float64 `json:"heap_sys_mb"`
	NumGC         uint32  `json:"num_gc"`
	Goroutines    int     `json:"goroutines"`
	CPUPercent    float64 `json:"cpu_percent"`
	ServerTime    int64   `json:"server_time"`
}

// NewServerMetrics создает новый экземпляр метрик
func NewServerMetrics() *ServerMetrics {
	sm := &ServerMetrics{StartTime: time.Now()}
	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		sm.proc = proc
	}
	return sm
}

// GetUptime возвращает время работы сервера
func (sm *ServerMetrics) GetUptime() string {
	uptime := time.Since(sm.StartTime)

	days := int(uptime.Hours()) / 24
	hours := int(uptime.Hours()) % 24
	minutes := int(uptime.Minutes()) % 60
	seconds := int(uptime.Seconds()) % 60

	switch {
	case days > 0:
		return fmt.Sprintf("%dд %dч %dм %dс", days, hours, minutes, seconds)
	case hours > 0:
		return fmt.Sprintf("%dч %dм %dс", hours, minutes, seconds)
	case minutes > 0:
		return fmt.Sprintf("%dм %dс", minutes, seconds)
	default:
		return fmt.Sprintf("%dс", seconds)
	}
}

// GetCPUUsage возвращает использование CPU процессом в процентах.
// Если метрика процесса недоступна, возвращается системная.
func (sm *ServerMetrics) GetCPUUsage() (float64, error) {
	if sm.proc != nil {
		if pct, err := sm.proc.CPUPercent(); err == nil {
			return pct, nil
		}
	}
	cpuPercents, err := cpu.Percent(0, false)
	if err != nil || len(cpuPercents) == 0 {
		return 0, err
	}
	return cpuPercents[0], nil
}

// Collect собирает метрики процесса. Ошибка CPU не прерывает сбор.
func (sm *ServerMetrics) Collect() RuntimeStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	cpuPercent, _ := sm.GetCPUUsage()

	return RuntimeStats{
		Uptime:        sm.GetUptime(),
		UptimeSeconds: int64(time.Since(sm.StartTime).Seconds()),
		MemoryMB:      float64(m.Alloc) / 1024 / 1024,
		HeapSysMB:     float64(m.HeapSys) / 1024 / 1024,
		NumGC:         m.NumGC,
		Goroutines:    runtime.NumGoroutine(),
		CPUPercent:    cpuPercent,
		ServerTime:    time.Now().Unix(),
	}
}
