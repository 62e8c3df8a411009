package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
)

// ServiceStatus represents the health status of a mining service
type ServiceStatus struct {
	ServiceName  string        `json:"service_name"`
	Status       string        `json:"status"`
	LastActivity time.Time     `json:"last_activity"`
	Capabilities []string      `json:"capabilities"`
	Endpoint     string        `json:"endpoint"`
	NATSTopic    string        `json:"nats_topic"`
	Version      string        `json:"version"`
	LastSeen     time.Time     `json:"last_seen"`
	RTT          time.Duration `json:"rtt,omitempty"`
	FirstSeen    time.Time     `json:"first_seen"`
	Uptime       time.Duration `json:"uptime"`
	Backpressure *Backpressure `json:"backpressure,omitempty"`
}

// Backpressure mirrors the reports published by running services
type Backpressure struct {
	ServiceName      string    `json:"service_name"`
	PendingMessages  int64     `json:"pending_messages"`
	ActiveProcessing int64     `json:"active_processing"`
	Timestamp        time.Time `json:"timestamp"`
	WorkerCount      int       `json:"worker_count"`
	QueueCapacity    int       `json:"queue_capacity"`
	Status           string    `json:"status"`
}

// MonitorService tracks mining services via heartbeats and backpressure reports
type MonitorService struct {
	nats     *nats.Conn
	services map[string]*ServiceStatus
	mu       sync.RWMutex
}

func NewMonitorService(natsURL string) (*MonitorService, error) {
	nc, err := nats.Connect(natsURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &MonitorService{
		nats:     nc,
		services: make(map[string]*ServiceStatus),
	}, nil
}

func (m *MonitorService) Start(ctx context.Context) error {
	// Subscribe to heartbeats from all mining services
	_, err := m.nats.Subscribe("services.*.heartbeat", func(msg *nats.Msg) {
		var status ServiceStatus
		if err := json.Unmarshal(msg.Data, &status); err != nil {
			log.Printf("Failed to parse heartbeat from %s: %v", msg.Subject, err)
			return
		}

		now := time.Now()
		status.LastSeen = now

		m.mu.Lock()
		// Track first seen time for uptime calculation
		if existing, exists := m.services[status.ServiceName]; exists {
			status.FirstSeen = existing.FirstSeen
			status.Backpressure = existing.Backpressure
		} else {
			status.FirstSeen = now
			log.Printf("Discovered service: %s", status.ServiceName)
		}
		status.Uptime = now.Sub(status.FirstSeen)
		m.services[status.ServiceName] = &status
		m.mu.Unlock()
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to heartbeats: %w", err)
	}

	// Subscribe to backpressure reports
	_, err = m.nats.Subscribe("monitoring.services.backpressure.*", func(msg *nats.Msg) {
		var report Backpressure
		if err := json.Unmarshal(msg.Data, &report); err != nil {
			log.Printf("Failed to parse backpressure report from %s: %v", msg.Subject, err)
			return
		}

		m.mu.Lock()
		if service, exists := m.services[report.ServiceName]; exists {
			service.Backpressure = &report
		}
		m.mu.Unlock()
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to backpressure reports: %w", err)
	}

	log.Println("Monitor service started, listening for heartbeats...")

	// Mark stale services offline
	go m.cleanupStaleServices(ctx)

	return nil
}

func (m *MonitorService) cleanupStaleServices(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.mu.Lock()
			now := time.Now()
			for name, service := range m.services {
				if now.Sub(service.LastSeen) > 2*time.Minute && service.Status != "offline" {
					service.Status = "offline"
					log.Printf("Marked service as offline: %s", name)
				}
			}
			m.mu.Unlock()
		}
	}
}

func (m *MonitorService) GetServices() []ServiceStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var services []ServiceStatus
	for _, service := range m.services {
		services = append(services, *service)
	}

	sort.Slice(services, func(i, j int) bool {
		return services[i].ServiceName < services[j].ServiceName
	})

	return services
}

func (m *MonitorService) QueryHealth(serviceName string) (*ServiceStatus, error) {
	healthTopic := fmt.Sprintf("services.%s.health", serviceName)

	start := time.Now()
	resp, err := m.nats.Request(healthTopic, []byte("{}"), 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("health check failed: %w", err)
	}
	rtt := time.Since(start)

	var status ServiceStatus
	if err := json.Unmarshal(resp.Data, &status); err != nil {
		return nil, fmt.Errorf("failed to parse health response: %w", err)
	}

	status.RTT = rtt
	status.LastSeen = time.Now()

	return &status, nil
}

func (m *MonitorService) Close() {
	if m.nats != nil {
		m.nats.Close()
	}
}

func main() {
	var (
		natsURL  = flag.String("nats", "nats://127.0.0.1:4222", "NATS server URL")
		httpAddr = flag.String("http", ":5880", "HTTP server address")
		onceMode = flag.Bool("once", false, "Query once and exit")
	)
	flag.Parse()

	monitor, err := NewMonitorService(*natsURL)
	if err != nil {
		log.Fatalf("Failed to create monitor service: %v", err)
	}
	defer monitor.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := monitor.Start(ctx); err != nil {
		log.Fatalf("Failed to start monitor service: %v", err)
	}

	if *onceMode {
		// Wait for initial heartbeats, then print and exit
		time.Sleep(2 * time.Second)
		printServices(monitor.GetServices())
		return
	}

	runHTTPServer(ctx, monitor, *httpAddr)
}

func printServices(services []ServiceStatus) {
	if len(services) == 0 {
		fmt.Println("No mining services found")
		return
	}

	fmt.Printf("Found %d mining services:\n\n", len(services))

	for _, service := range services {
		fmt.Printf("%s\n", service.ServiceName)
		fmt.Printf("   Status: %s\n", service.Status)
		fmt.Printf("   Capabilities: %s\n", strings.Join(service.Capabilities, ", "))
		fmt.Printf("   Endpoint: %s\n", service.Endpoint)
		fmt.Printf("   NATS Topic: %s\n", service.NATSTopic)
		if service.Backpressure != nil {
			fmt.Printf("   Queue: %d pending, %d active (%s)\n",
				service.Backpressure.PendingMessages,
				service.Backpressure.ActiveProcessing,
				service.Backpressure.Status)
		}
		fmt.Printf("   Last Seen: %v ago\n", time.Since(service.LastSeen).Truncate(time.Second))
		fmt.Println()
	}
}

func runHTTPServer(ctx context.Context, monitor *MonitorService, addr string) {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/services", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(monitor.GetServices())
	})

	mux.HandleFunc("/api/services/", func(w http.ResponseWriter, r *http.Request) {
		serviceName := strings.TrimPrefix(r.URL.Path, "/api/services/")
		if serviceName == "" {
			http.Error(w, "Service name required", http.StatusBadRequest)
			return
		}

		status, err := monitor.QueryHealth(serviceName)
		if err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(status)
	})

	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	log.Printf("Starting HTTP monitor server on %s", addr)
	log.Printf("API: http://localhost%s/api/services", addr)

	go func() {
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("HTTP server error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-ctx.Done():
	case <-sigCh:
	}

	log.Println("Shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	server.Shutdown(shutdownCtx)
}
