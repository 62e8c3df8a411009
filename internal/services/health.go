package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/grammarkit/mining-service/internal/config"
)

type HealthService struct {
	nats   *nats.Conn
	config *config.Config
}

type HealthStatus struct {
	ServiceName  string    `json:"service_name"`
	Status       string    `json:"status"` // online, offline, busy
	LastActivity time.Time `json:"last_activity"`
	Capabilities []string  `json:"capabilities"`
	Endpoint     string    `json:"endpoint"`
	NATSTopic    string    `json:"nats_topic"`
	Version      string    `json:"version"`
}

func NewHealthService(natsConn *nats.Conn, cfg *config.Config) *HealthService {
	return &HealthService{
		nats:   natsConn,
		config: cfg,
	}
}

func (h *HealthService) Start(ctx context.Context) error {
	// Subscribe to health check requests for this service
	healthTopic := fmt.Sprintf("services.%s.health", h.config.ServiceName)

	_, err := h.nats.Subscribe(healthTopic, func(msg *nats.Msg) {
		status := h.getHealthStatus()

		statusData, err := json.Marshal(status)
		if err != nil {
			slog.Error("Failed to marshal health status", "error", err)
			return
		}

		target := replyTarget(msg)
		if target == "" {
			slog.Warn("Health check request carries no reply subject")
			return
		}

		if err := h.nats.Publish(target, statusData); err != nil {
			slog.Error("Failed to respond to health check", "error", err)
		}
	})

	if err != nil {
		return fmt.Errorf("failed to subscribe to health topic: %w", err)
	}

	slog.Info("Health service started", "topic", healthTopic)

	// Publish periodic heartbeats
	go h.publishHeartbeats(ctx)

	return nil
}

// replyTarget picks where a health response goes: the NATS reply subject when
// the requester used request/reply, otherwise the reply_to field some clients
// carry in the payload instead.
func replyTarget(msg *nats.Msg) string {
	if msg.Reply != "" {
		return msg.Reply
	}
	var req struct {
		ReplyTo string `json:"reply_to"`
	}
	if err := json.Unmarshal(msg.Data, &req); err == nil {
		return req.ReplyTo
	}
	return ""
}

func (h *HealthService) publishHeartbeats(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	heartbeatTopic := fmt.Sprintf("services.%s.heartbeat", h.config.ServiceName)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			status := h.getHealthStatus()
			statusData, err := json.Marshal(status)
			if err != nil {
				continue
			}

			if err := h.nats.Publish(heartbeatTopic, statusData); err != nil {
				slog.Warn("Failed to publish heartbeat", "error", err)
			}
		}
	}
}

func (h *HealthService) getHealthStatus() HealthStatus {
	return HealthStatus{
		ServiceName:  h.config.ServiceName,
		Status:       "online",
		LastActivity: time.Now(),
		Capabilities: []string{"grammar-mining", "generation"},
		Endpoint:     fmt.Sprintf("http://localhost%s", h.config.HTTPAddr),
		NATSTopic:    h.config.Subject,
		Version:      "1.0.0",
	}
}
