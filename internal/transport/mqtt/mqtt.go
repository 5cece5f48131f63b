// Package mqtt implements the MQTT transport for cozmoagent.
//
// MQTT suits recognizers running on small devices next to the robot. This
// transport subscribes to a configurable topic, where each message is a batch
// envelope, and publishes the dispatch result to the envelope's reply topic
// (or "<topic>/result"). As a sender it publishes command payloads to the
// target endpoint, which names a topic.
package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/nadzzz/cozmoagent/internal/iu"
	"github.com/nadzzz/cozmoagent/internal/message"
	"github.com/nadzzz/cozmoagent/internal/transport"
)

const (
	qos            = 1
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
)

// Envelope is the payload of a message on the input topic.
type Envelope struct {
	Units   iu.Batch `json:"units"`
	ReplyTo string   `json:"reply_to,omitempty"`
}

// Transport implements transport.Transport over MQTT.
type Transport struct {
	broker   string
	topic    string
	clientID string

	mu     sync.Mutex
	client paho.Client
	wg     sync.WaitGroup
}

// New creates a new MQTT transport.
func New(broker, topic, clientID string) *Transport {
	return &Transport{broker: broker, topic: topic, clientID: clientID}
}

// Name returns the transport identifier.
func (t *Transport) Name() string { return "mqtt" }

func (t *Transport) connect() (paho.Client, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.client != nil {
		return t.client, nil
	}

	opts := paho.NewClientOptions().
		AddBroker(t.broker).
		SetClientID(t.clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(connectTimeout)
	client := paho.NewClient(opts)

	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("mqtt connect to %s: timeout", t.broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect to %s: %w", t.broker, err)
	}
	t.client = client
	return client, nil
}

// Listen connects to the MQTT broker and subscribes to the configured topic.
func (t *Transport) Listen(ctx context.Context, handler transport.Handler) error {
	client, err := t.connect()
	if err != nil {
		return err
	}

	token := client.Subscribe(t.topic, qos, func(_ paho.Client, msg paho.Message) {
		// Handled off the client's callback goroutine; a plan can take seconds.
		t.wg.Add(1)
		go func() {
			defer t.wg.Done()
			t.handle(ctx, handler, msg.Topic(), msg.Payload())
		}()
	})
	if !token.WaitTimeout(connectTimeout) {
		return fmt.Errorf("mqtt subscribe %s: timeout", t.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt subscribe %s: %w", t.topic, err)
	}

	slog.Info("mqtt transport listening", "broker", t.broker, "topic", t.topic)
	<-ctx.Done()

	client.Unsubscribe(t.topic).WaitTimeout(publishTimeout)
	t.wg.Wait()
	return nil
}

func (t *Transport) handle(ctx context.Context, handler transport.Handler, topic string, payload []byte) {
	logger := slog.With("topic", topic)

	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		logger.Warn("discarding malformed mqtt message", "error", err)
		return
	}

	result, err := handler(ctx, env.Units)
	if err != nil {
		logger.Error("dispatch failed", "error", err)
		return
	}

	out, err := json.Marshal(result)
	if err != nil {
		logger.Error("marshalling result", "error", err)
		return
	}
	if err := t.publish(ReplyTopic(t.topic, env.ReplyTo), out); err != nil {
		logger.Error("publishing result", "error", err)
	}
}

// ReplyTopic picks where a result is published: the envelope's reply topic,
// or the input topic (wildcards stripped) with "/result" appended.
func ReplyTopic(inputTopic, replyTo string) string {
	if replyTo != "" {
		return replyTo
	}
	base := strings.TrimSuffix(strings.TrimSuffix(inputTopic, "#"), "+")
	base = strings.TrimSuffix(base, "/")
	return base + "/result"
}

func (t *Transport) publish(topic string, payload []byte) error {
	client, err := t.connect()
	if err != nil {
		return err
	}
	token := client.Publish(topic, qos, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return errors.New("publish timeout")
	}
	return token.Error()
}

// Send publishes a payload to the topic named by the target endpoint.
func (t *Transport) Send(_ context.Context, target message.Target, payload []byte) error {
	if err := t.publish(target.Endpoint, payload); err != nil {
		return fmt.Errorf("mqtt send: %w", err)
	}
	slog.Debug("mqtt send success", "topic", target.Endpoint, "bytes", len(payload))
	return nil
}

// Close disconnects from the MQTT broker.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.client != nil {
		t.client.Disconnect(250)
		t.client = nil
	}
	return nil
}
