package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/grammarkit/mining-service/internal/config"
	"github.com/grammarkit/mining-service/internal/repository"
)

// generateWorkerID creates a unique worker ID using timestamp and random bytes
func generateWorkerID() string {
	timestamp := time.Now().UnixNano()
	randomBytes := make([]byte, 4)
	rand.Read(randomBytes)
	randomHex := hex.EncodeToString(randomBytes)
	return fmt.Sprintf("worker-%d-%s", timestamp, randomHex)
}

type ServiceInterface interface {
	GetRepository() repository.Repository
}

type NATSService struct {
	conn            *nats.Conn
	js              nats.JetStreamContext
	miningService   *MiningService
	generateService *GenerateService
	cfg             *config.Config
	monitoring      *MonitoringService
}

func NewNATSService(cfg *config.Config, miningService *MiningService, generateService *GenerateService) (*NATSService, error) {
	// Connect to NATS
	conn, err := nats.Connect(cfg.NatsURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	// Create JetStream context
	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	return &NATSService{
		conn:            conn,
		js:              js,
		miningService:   miningService,
		generateService: generateService,
		cfg:             cfg,
		monitoring:      NewMonitoringService(conn, cfg),
	}, nil
}

func (s *NATSService) Start(ctx context.Context) error {
	// Create or update stream
	if err := s.ensureStream(); err != nil {
		return fmt.Errorf("failed to ensure stream: %w", err)
	}

	// Create pull consumer
	consumer, err := s.createConsumer()
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	slog.Info("NATS service starting",
		"stream", s.cfg.Stream,
		"subjects", []string{s.cfg.Subject, s.cfg.GenSubject},
		"consumer", s.cfg.Durable,
		"concurrency", s.cfg.Concurrency)

	// Start monitoring service
	go s.monitoring.Start(ctx)

	// Start workers with unique IDs
	for i := 0; i < s.cfg.Concurrency; i++ {
		workerID := generateWorkerID()
		go s.worker(ctx, consumer, workerID)
	}

	// Block until context is cancelled
	<-ctx.Done()
	slog.Info("NATS service shutting down")

	// Close connection
	s.conn.Close()
	return nil
}

func (s *NATSService) ensureStream() error {
	subjects := []string{s.cfg.Subject, s.cfg.GenSubject}
	streamInfo, err := s.js.StreamInfo(s.cfg.Stream)
	if err != nil {
		if err == nats.ErrStreamNotFound {
			// Create new stream
			_, err = s.js.AddStream(&nats.StreamConfig{
				Name:      s.cfg.Stream,
				Subjects:  subjects,
				MaxMsgs:   int64(s.cfg.MaxMsgs),
				MaxAge:    s.cfg.MaxAge,
				Storage:   nats.FileStorage,
				Retention: nats.WorkQueuePolicy,
			})
			if err != nil {
				return fmt.Errorf("failed to create stream: %w", err)
			}
			slog.Info("Created NATS stream", "name", s.cfg.Stream)
			return nil
		}
		return fmt.Errorf("failed to get stream info: %w", err)
	}

	// Check the stream carries all our subjects, update if needed
	missing := []string{}
	for _, want := range subjects {
		found := false
		for _, subject := range streamInfo.Config.Subjects {
			if subject == want {
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, want)
		}
	}

	if len(missing) > 0 {
		newConfig := streamInfo.Config
		newConfig.Subjects = append(newConfig.Subjects, missing...)
		if _, err = s.js.UpdateStream(&newConfig); err != nil {
			return fmt.Errorf("failed to update stream with new subjects: %w", err)
		}
		slog.Info("Updated NATS stream with new subjects", "name", s.cfg.Stream, "subjects", missing)
	} else {
		slog.Info("NATS stream already exists", "name", s.cfg.Stream, "messages", streamInfo.State.Msgs)
	}

	return nil
}

func (s *NATSService) createConsumer() (*nats.Subscription, error) {
	// Pull consumer over every stream subject
	sub, err := s.js.PullSubscribe("", s.cfg.Durable, nats.ManualAck(), nats.BindStream(s.cfg.Stream))
	if err != nil {
		return nil, fmt.Errorf("failed to create pull consumer: %w", err)
	}

	slog.Info("Created NATS consumer", "durable", s.cfg.Durable)
	return sub, nil
}

func (s *NATSService) worker(ctx context.Context, consumer *nats.Subscription, workerID string) {
	slog.Info("NATS worker starting", "worker_id", workerID)

	for {
		select {
		case <-ctx.Done():
			slog.Info("NATS worker shutting down", "worker_id", workerID)
			return
		default:
			// Fetch messages with timeout
			msgs, err := consumer.Fetch(1, nats.MaxWait(time.Second))
			if err != nil {
				if err == nats.ErrTimeout {
					continue // Normal timeout, continue polling
				}
				slog.Error("Failed to fetch messages", "worker_id", workerID, "error", err)
				time.Sleep(time.Second) // Back off on error
				continue
			}

			for _, msg := range msgs {
				// Track message processing
				s.monitoring.IncrementPending()
				s.processMessage(ctx, msg, workerID)
				s.monitoring.DecrementPending()
			}
		}
	}
}

func (s *NATSService) processMessage(ctx context.Context, msg *nats.Msg, workerID string) {
	// Track active processing
	s.monitoring.IncrementActive()
	defer s.monitoring.DecrementActive()

	if strings.Contains(msg.Subject, "generate.request") {
		s.processGenerateMessage(ctx, msg, workerID)
	} else {
		s.processMiningMessage(ctx, msg, workerID)
	}
}

func (s *NATSService) processMiningMessage(ctx context.Context, msg *nats.Msg, workerID string) {
	start := time.Now()

	// Parse mining request
	var req MiningRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		slog.Error("Failed to parse mining request",
			"worker_id", workerID,
			"error", err,
			"data", string(msg.Data))
		msg.Nak() // Negative acknowledgment
		return
	}

	// Generate trace ID if not provided
	if req.TraceID == "" {
		req.TraceID = req.ReqID
	}

	slog.Debug("Processing NATS mining request",
		"worker_id", workerID,
		"req_id", req.ReqID,
		"trace_id", req.TraceID,
		"samples", len(req.Samples),
		"subject", msg.Subject)

	response, err := s.miningService.ProcessMining(
		ctx,
		req,
		fmt.Sprintf("nats.%s", msg.Subject),
		req.ReplyTo, // Use reply_to from message payload, not msg.Reply
		workerID,
	)

	responseData, marshalErr := json.Marshal(response)
	if marshalErr != nil {
		slog.Error("Failed to marshal response",
			"worker_id", workerID,
			"req_id", req.ReqID,
			"error", marshalErr)
		msg.Nak()
		return
	}

	// Send response if reply subject is provided in message payload
	if req.ReplyTo != "" {
		if publishErr := s.conn.Publish(req.ReplyTo, responseData); publishErr != nil {
			slog.Error("Failed to publish response",
				"worker_id", workerID,
				"req_id", req.ReqID,
				"reply_subject", req.ReplyTo,
				"error", publishErr)
		}
	}

	// Acknowledge message
	if ackErr := msg.Ack(); ackErr != nil {
		slog.Error("Failed to acknowledge message",
			"worker_id", workerID,
			"req_id", req.ReqID,
			"error", ackErr)
	}

	duration := time.Since(start)

	if err == nil {
		slog.Info("NATS mining run completed",
			"worker_id", workerID,
			"req_id", req.ReqID,
			"duration_ms", duration.Milliseconds(),
			"samples", response.Samples,
			"parsed", response.Parsed,
			"failed", response.Failed)
	} else {
		slog.Error("NATS mining run failed",
			"worker_id", workerID,
			"req_id", req.ReqID,
			"duration_ms", duration.Milliseconds(),
			"error", err)
	}
}

func (s *NATSService) processGenerateMessage(ctx context.Context, msg *nats.Msg, workerID string) {
	start := time.Now()

	// Parse generation request
	var req GenerateRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		slog.Error("Failed to parse generation request",
			"worker_id", workerID,
			"error", err,
			"data", string(msg.Data))
		msg.Nak() // Negative acknowledgment
		return
	}

	if req.TraceID == "" {
		req.TraceID = req.ReqID
	}

	slog.Debug("Processing NATS generation request",
		"worker_id", workerID,
		"req_id", req.ReqID,
		"trace_id", req.TraceID,
		"count", req.Count,
		"subject", msg.Subject)

	response, err := s.generateService.ProcessGenerate(ctx, req)

	responseData, marshalErr := json.Marshal(response)
	if marshalErr != nil {
		slog.Error("Failed to marshal generation response",
			"worker_id", workerID,
			"req_id", req.ReqID,
			"error", marshalErr)
		msg.Nak()
		return
	}

	if req.ReplyTo != "" {
		if publishErr := s.conn.Publish(req.ReplyTo, responseData); publishErr != nil {
			slog.Error("Failed to publish generation response",
				"worker_id", workerID,
				"req_id", req.ReqID,
				"reply_subject", req.ReplyTo,
				"error", publishErr)
		}
	}

	if ackErr := msg.Ack(); ackErr != nil {
		slog.Error("Failed to acknowledge generation message",
			"worker_id", workerID,
			"req_id", req.ReqID,
			"error", ackErr)
	}

	duration := time.Since(start)

	if err == nil {
		slog.Info("NATS generation completed",
			"worker_id", workerID,
			"req_id", req.ReqID,
			"duration_ms", duration.Milliseconds(),
			"outputs", len(response.Outputs))
	} else {
		slog.Error("NATS generation failed",
			"worker_id", workerID,
			"req_id", req.ReqID,
			"duration_ms", duration.Milliseconds(),
			"error", err)
	}
}

func (s *NATSService) Close() error {
	if s.conn != nil {
		s.conn.Close()
	}
	return nil
}

func (s *NATSService) GetConnection() *nats.Conn {
	return s.conn
}

func (s *NATSService) GetMonitoringService() *MonitoringService {
	return s.monitoring
}
