package mqtt

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/sweeney/thermostat-sim/internal/logic"
)

// bufferCapacity is how many readings are kept while disconnected.
const bufferCapacity = 100

// RealPublisher publishes to an actual MQTT broker.
type RealPublisher struct {
	client        paho.Client
	readingsTopic string
	systemTopic   string

	mu        sync.Mutex
	buf       *ringBuffer
	connected bool // set after the first successful connect
	online    bool // between onConnect and onConnectionLost
}

// NewRealPublisher creates a publisher for deviceID connected to the given broker.
// If the broker is not reachable yet the client keeps retrying in the background
// and readings are buffered until it connects.
func NewRealPublisher(broker, clientID string, deviceID int) (*RealPublisher, error) {
	p := &RealPublisher{
		readingsTopic: ReadingsTopic(deviceID),
		systemTopic:   SystemTopic(deviceID),
		buf:           newRingBuffer(bufferCapacity),
	}

	will, err := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "OFFLINE", Reason: "LWT"})
	if err != nil {
		return nil, fmt.Errorf("format will payload: %w", err)
	}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetBinaryWill(p.systemTopic, will, 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(p.onConnectionLost)

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		log.Printf("mqtt: broker %s not reachable yet, retrying in background", broker)
		return p, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	return p, nil
}

// Name identifies the publisher.
func (p *RealPublisher) Name() string { return "mqtt" }

// onConnect replays readings buffered while disconnected.
func (p *RealPublisher) onConnect(c paho.Client) {
	p.mu.Lock()
	reconnect := p.connected
	p.connected = true
	p.online = true
	pending := p.buf.drainAll()
	p.mu.Unlock()

	if reconnect {
		log.Printf("mqtt: reconnected, replaying %d buffered messages", len(pending))
		if payload, err := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "RECONNECTED"}); err == nil {
			c.Publish(p.systemTopic, 1, false, payload)
		}
	}

	// Publish from a goroutine: blocking on tokens inside the handler stalls the client.
	go func() {
		for _, msg := range pending {
			token := c.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
			if !token.WaitTimeout(5 * time.Second) {
				log.Printf("mqtt: replay timeout on %s", msg.topic)
				continue
			}
			if err := token.Error(); err != nil {
				log.Printf("mqtt: replay error: %v", err)
			}
		}
	}()
}

// onConnectionLost sends later readings to the buffer until onConnect drains it.
func (p *RealPublisher) onConnectionLost(_ paho.Client, err error) {
	p.mu.Lock()
	p.online = false
	p.mu.Unlock()
	log.Printf("mqtt: connection lost: %v", err)
}

// bufferIfOffline queues payload and returns true while disconnected.
// The check and the push share the lock that onConnect drains under, so
// a reading is either drained by onConnect or published directly.
func (p *RealPublisher) bufferIfOffline(payload []byte) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.online {
		return false
	}
	p.buf.push(bufferedMsg{topic: p.readingsTopic, payload: payload})
	return true
}

// PublishReading sends a reading to the broker, or buffers it while disconnected.
func (p *RealPublisher) PublishReading(ctx context.Context, r logic.Reading) error {
	payload, err := FormatPayload(r)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}

	if p.bufferIfOffline(payload) {
		return nil
	}

	// QoS 0 (at-most-once), not retained
	token := p.client.Publish(p.readingsTopic, 0, false, payload)
	return waitToken(ctx, token, "publish")
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}

	// QoS 1 (at-least-once) for lifecycle events - we want to ensure delivery
	token := p.client.Publish(p.systemTopic, 1, event.Retained, payload)
	return waitToken(context.Background(), token, "publish system")
}

// IsConnected reports whether the client currently holds a broker connection.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}

func waitToken(ctx context.Context, token paho.Token, what string) error {
	timer := time.NewTimer(5 * time.Second)
	defer timer.Stop()

	select {
	case <-token.Done():
	case <-timer.C:
		return fmt.Errorf("%s timeout", what)
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", what, ctx.Err())
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	return nil
}
