package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/oklog/ulid/v2"
)

// MiningClient provides a client interface for the grammar mining service
type MiningClient interface {
	// Grammar mining
	Mine(ctx context.Context, service, grammarRef string, samples []string) (*MiningResponse, error)
	MineWithStart(ctx context.Context, service, grammarRef, start string, samples []string) (*MiningResponse, error)

	// Sampling from learned grammars
	Generate(ctx context.Context, service string, req GenerateRequest) (*GenerateResponse, error)

	// Health and discovery
	CheckHealth(ctx context.Context, service string) (*HealthStatus, error)
	ListServices(ctx context.Context) ([]string, error)

	// Lifecycle
	Close() error
}

// NATSMiningClient implements MiningClient over plain NATS subjects
type NATSMiningClient struct {
	conn     *nats.Conn
	clientID string
	timeout  time.Duration
}

// NewNATSClient creates a new NATS-based mining client
func NewNATSClient(natsURL, clientID string) (MiningClient, error) {
	conn, err := nats.Connect(natsURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	if clientID == "" {
		clientID = "mining-client"
	}

	return &NATSMiningClient{
		conn:     conn,
		clientID: clientID,
		timeout:  30 * time.Second,
	}, nil
}

// Mine learns production probabilities for grammarRef from the samples
func (c *NATSMiningClient) Mine(ctx context.Context, service, grammarRef string, samples []string) (*MiningResponse, error) {
	return c.MineWithStart(ctx, service, grammarRef, "", samples)
}

// MineWithStart mines with an explicit start symbol
func (c *NATSMiningClient) MineWithStart(ctx context.Context, service, grammarRef, start string, samples []string) (*MiningResponse, error) {
	topic := fmt.Sprintf("mining.request.%s", service)

	// Generate ULID request ID
	reqID := ulid.Make().String()
	replySubject := fmt.Sprintf("mining.response.%s.%s", c.clientID, reqID)

	request := MiningRequest{
		ReqID:   reqID,
		Grammar: grammarRef,
		Start:   start,
		Samples: samples,
		ReplyTo: replySubject,
	}

	slog.Debug("Sending mining request",
		"topic", topic,
		"req_id", reqID,
		"samples", len(samples),
		"reply_subject", replySubject)

	msg, err := c.roundTrip(ctx, topic, replySubject, request, c.timeout)
	if err != nil {
		return nil, err
	}

	var response MiningResponse
	if err := json.Unmarshal(msg.Data, &response); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &response, nil
}

// Generate samples strings from a learned probabilistic grammar
func (c *NATSMiningClient) Generate(ctx context.Context, service string, req GenerateRequest) (*GenerateResponse, error) {
	topic := fmt.Sprintf("generate.request.%s", service)

	if req.ReqID == "" {
		req.ReqID = ulid.Make().String()
	}
	replySubject := fmt.Sprintf("generate.response.%s.%s", c.clientID, req.ReqID)
	req.ReplyTo = replySubject

	slog.Debug("Sending generation request",
		"topic", topic,
		"req_id", req.ReqID,
		"count", req.Count,
		"reply_subject", replySubject)

	msg, err := c.roundTrip(ctx, topic, replySubject, req, c.timeout)
	if err != nil {
		return nil, err
	}

	var response GenerateResponse
	if err := json.Unmarshal(msg.Data, &response); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &response, nil
}

// roundTrip publishes a request and waits for the reply on replySubject.
// The subscription is set up before publishing so the reply cannot be missed.
func (c *NATSMiningClient) roundTrip(ctx context.Context, topic, replySubject string, request interface{}, timeout time.Duration) (*nats.Msg, error) {
	requestBytes, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	replyChan := make(chan *nats.Msg, 1)
	sub, err := c.conn.Subscribe(replySubject, func(msg *nats.Msg) {
		replyChan <- msg
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to reply: %w", err)
	}
	defer sub.Unsubscribe()

	// Carry the reply subject in the NATS header as well as the payload, so
	// subscribers answering via msg.Respond work too.
	if err := c.conn.PublishRequest(topic, replySubject, requestBytes); err != nil {
		return nil, fmt.Errorf("failed to publish request: %w", err)
	}

	select {
	case msg := <-replyChan:
		slog.Debug("Received response", "reply_subject", replySubject, "response_size", len(msg.Data))
		return msg, nil
	case <-time.After(timeout):
		return nil, fmt.Errorf("request timeout after %v", timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// CheckHealth checks if a mining service is available and healthy
func (c *NATSMiningClient) CheckHealth(ctx context.Context, service string) (*HealthStatus, error) {
	healthTopic := fmt.Sprintf("services.%s.health", service)

	reqID := ulid.Make().String()
	replySubject := fmt.Sprintf("health.response.%s.%s", c.clientID, reqID)

	healthReq := map[string]interface{}{
		"req_id":   reqID,
		"reply_to": replySubject,
	}

	msg, err := c.roundTrip(ctx, healthTopic, replySubject, healthReq, 5*time.Second)
	if err != nil {
		return nil, err
	}

	var health HealthStatus
	if err := json.Unmarshal(msg.Data, &health); err != nil {
		return nil, fmt.Errorf("failed to parse health response: %w", err)
	}
	return &health, nil
}

// ListServices discovers available mining services via NATS
func (c *NATSMiningClient) ListServices(ctx context.Context) ([]string, error) {
	discoveryTopic := "services.discovery"

	reqID := ulid.Make().String()
	replySubject := fmt.Sprintf("discovery.response.%s.%s", c.clientID, reqID)

	request := map[string]interface{}{
		"req_id":   reqID,
		"reply_to": replySubject,
	}

	msg, err := c.roundTrip(ctx, discoveryTopic, replySubject, request, 5*time.Second)
	if err != nil {
		// Fallback to static list when no registry answers
		return []string{"grammar-miner"}, nil
	}

	var response map[string]interface{}
	if err := json.Unmarshal(msg.Data, &response); err != nil {
		return nil, fmt.Errorf("failed to parse discovery response: %w", err)
	}

	if services, ok := response["services"].([]interface{}); ok {
		names := make([]string, 0, len(services))
		for _, svc := range services {
			if name, ok := svc.(string); ok {
				names = append(names, name)
			}
		}
		return names, nil
	}

	return []string{"grammar-miner"}, nil
}

// Close closes the NATS connection
func (c *NATSMiningClient) Close() error {
	if c.conn != nil {
		c.conn.Close()
	}
	return nil
}

// SetTimeout configures request timeout
func (c *NATSMiningClient) SetTimeout(timeout time.Duration) {
	c.timeout = timeout
}
