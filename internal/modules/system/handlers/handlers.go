// Package handlers provides HTTP handlers for system monitoring endpoints.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/cbottock-ai/VeraScore/internal/database"
)

// Handler handles system monitoring HTTP requests.
type Handler struct {
	appDB     *database.DB
	cacheDB   *database.DB
	startTime time.Time
	log       zerolog.Logger
}

// NewHandler creates a new system handler.
func NewHandler(appDB, cacheDB *database.DB, log zerolog.Logger) *Handler {
	return &Handler{
		appDB:     appDB,
		cacheDB:   cacheDB,
		startTime: time.Now(),
		log:       log.With().Str("handler", "system").Logger(),
	}
}

// RegisterRoutes registers all system routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/system", func(r chi.Router) {
		r.Get("/health", h.HandleHealth)
		r.Get("/status", h.HandleStatus)
	})
}

// HealthResponse reports per-database health.
type HealthResponse struct {
	Status    string            `json:"status"`
	Databases map[string]string `json:"databases"`
}

// HandleHealth checks database connectivity.
// GET /api/system/health
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	response := HealthResponse{
		Status:    "ok",
		Databases: map[string]string{},
	}

	for _, db := range []*database.DB{h.appDB, h.cacheDB} {
		if err := db.QuickCheck(ctx); err != nil {
			h.log.Error().Err(err).Str("database", db.Name()).Msg("Database health check failed")
			response.Databases[db.Name()] = err.Error()
			response.Status = "degraded"
			continue
		}
		response.Databases[db.Name()] = "ok"
	}

	status := http.StatusOK
	if response.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	h.writeJSON(w, status, response)
}

// StatusResponse reports runtime statistics for the running process.
type StatusResponse struct {
	UptimeSeconds int64              `json:"uptime_seconds"`
	GoVersion     string             `json:"go_version"`
	Goroutines    int                `json:"goroutines"`
	CPUPercent    float64            `json:"cpu_percent"`
	MemoryPercent float64            `json:"memory_percent"`
	Databases     map[string]float64 `json:"database_sizes_mb"`
}

// HandleStatus returns process and host runtime statistics.
// GET /api/system/status
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	cpuPercent, memPercent := h.systemStats()

	response := StatusResponse{
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		GoVersion:     runtime.Version(),
		Goroutines:    runtime.NumGoroutine(),
		CPUPercent:    cpuPercent,
		MemoryPercent: memPercent,
		Databases: map[string]float64{
			h.appDB.Name():   fileSizeMB(h.appDB.Path()),
			h.cacheDB.Name(): fileSizeMB(h.cacheDB.Path()),
		},
	}

	h.writeJSON(w, http.StatusOK, response)
}

// systemStats samples CPU and RAM usage percentages. The 100ms CPU sample
// keeps the endpoint responsive for dashboard polling.
func (h *Handler) systemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	return cpuAvg, memStat.UsedPercent
}

func fileSizeMB(path string) float64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return float64(info.Size()) / 1024 / 1024
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode response")
	}
}
