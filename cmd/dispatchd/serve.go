package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cuemby/dispatchd/pkg/cluster"
	"github.com/cuemby/dispatchd/pkg/dispatch"
	"github.com/cuemby/dispatchd/pkg/ha"
	"github.com/cuemby/dispatchd/pkg/log"
	"github.com/cuemby/dispatchd/pkg/metrics"
	"github.com/cuemby/dispatchd/pkg/payload"
	"github.com/cuemby/dispatchd/pkg/router"
	"github.com/cuemby/dispatchd/pkg/timer"
	"github.com/cuemby/dispatchd/pkg/types"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Dispatch Engine",
	Long: `Run the Dispatch Engine with an in-memory ResourceCluster and Gateway,
a Prometheus metrics/health admin server, and (optionally) Raft-backed
leader election across replicas.

The engine's real inbound API is plain Go method calls (Submit/Cancel),
not a network service; the /submit and /cancel admin endpoints this
command exposes exist only for local testing.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("config", "", "path to a YAML config file")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	broker := router.NewBroker()
	broker.Start()
	defer broker.Stop()

	events := broker.Subscribe()
	defer broker.Unsubscribe(events)
	go logRoutedEvents(events)

	resourceCluster := cluster.NewInMemory()
	engine := dispatch.New(cfg.Dispatch.toDispatchConfig(), resourceCluster, broker, payload.NewDefault(), timer.NewWallClock())

	var elector *ha.RaftElector
	if cfg.HA.Enabled {
		elector, err = ha.NewRaftElector(ha.Config{
			NodeID:   cfg.HA.NodeID,
			BindAddr: cfg.HA.BindAddr,
			DataDir:  cfg.HA.DataDir,
		})
		if err != nil {
			return fmt.Errorf("create ha elector: %w", err)
		}
		if err := elector.Bootstrap(); err != nil {
			return fmt.Errorf("bootstrap ha elector: %w", err)
		}
		engine.SetElector(elector)
		go reportLeadership(elector)
	}

	go engine.Run()
	defer engine.Stop()

	metrics.SetVersion(Version)
	metrics.RegisterComponent("mailbox", true, "running")
	metrics.RegisterComponent("resource_cluster", true, "in-memory")

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/health", metrics.HealthHandler())
	mux.HandleFunc("/ready", metrics.ReadyHandler())
	mux.HandleFunc("/live", metrics.LivenessHandler())
	mux.HandleFunc("/submit", submitHandler(engine))
	mux.HandleFunc("/cancel", cancelHandler(engine))

	server := &http.Server{Addr: cfg.Admin.ListenAddr, Handler: mux}
	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("admin server error: %w", err)
		}
	}()
	log.WithComponent("dispatchd").Info().Str("addr", cfg.Admin.ListenAddr).Msg("admin server listening")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		log.WithComponent("dispatchd").Info().Msg("shutting down")
	case err := <-errCh:
		log.WithComponent("dispatchd").Error().Err(err).Msg("admin server failed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
	if elector != nil {
		_ = elector.Shutdown()
	}
	return nil
}

func logRoutedEvents(events router.Subscription) {
	for envelope := range events {
		switch e := envelope.Event.(type) {
		case types.WorkerLaunched:
			log.WithWorkerID(e.WorkerID).Info().Str("hostname", e.Hostname).Msg("worker launched")
		case types.WorkerLaunchFailed:
			log.WithWorkerID(e.WorkerID).Warn().Str("cause", e.CauseString).Msg("worker launch failed")
		}
	}
}

func reportLeadership(elector *ha.RaftElector) {
	leadership := elector.WaitForLeadership(context.Background())
	for isLeader := range leadership {
		if isLeader {
			metrics.RaftLeader.Set(1)
		} else {
			metrics.RaftLeader.Set(0)
		}
		log.WithComponent("ha").Info().Bool("leader", isLeader).Msg("leadership changed")
	}
}

// submitRequest is the wire shape accepted by the local-testing /submit
// endpoint; cpu_cores and memory_mb fill types.MachineDefinition.
type submitRequest struct {
	WorkerID string            `json:"worker_id"`
	JobID    string            `json:"job_id"`
	StageNum int               `json:"stage_num"`
	CPUCores float64           `json:"cpu_cores"`
	MemoryMB int64             `json:"memory_mb"`
	Payload  map[string]string `json:"payload"`
}

func submitHandler(engine *dispatch.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req submitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.WorkerID == "" {
			http.Error(w, "worker_id is required", http.StatusBadRequest)
			return
		}

		engine.Submit(types.ScheduleRequest{
			WorkerID: req.WorkerID,
			JobID:    req.JobID,
			StageNum: req.StageNum,
			MachineDefinition: types.MachineDefinition{
				CPUCores:    req.CPUCores,
				MemoryBytes: req.MemoryMB * 1024 * 1024,
			},
			Payload: req.Payload,
		})

		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "submitted"})
	}
}

type cancelRequest struct {
	WorkerID string `json:"worker_id"`
	HostName string `json:"host_name"`
}

func cancelHandler(engine *dispatch.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req cancelRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.WorkerID == "" || req.HostName == "" {
			http.Error(w, "worker_id and host_name are required", http.StatusBadRequest)
			return
		}

		engine.Cancel(req.WorkerID, req.HostName)

		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "cancel requested"})
	}
}

// registerExecutorCmd prints guidance for local testing; it registers no
// executor, so the in-memory ResourceCluster stays empty.
var registerExecutorCmd = &cobra.Command{
	Use:   "register-executor",
	Short: "Print guidance on populating the ResourceCluster (dev convenience)",
	Long: `The serve command's in-memory ResourceCluster starts empty. There is
no remote registration API by design (§6) — wire a real ResourceCluster
implementation for production use. This command only prints guidance for
local testing.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("the in-memory ResourceCluster used by `dispatchd serve` has no executors")
		fmt.Println("registered at startup; implement cluster.ResourceCluster against your")
		fmt.Println("real executor fleet and wire it in place of cluster.NewInMemory in serve.go")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(registerExecutorCmd)
}
