package firehose

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Connector dials the real AT Protocol firehose
// (com.atproto.sync.subscribeRepos) and hands decoded frames to a
// Consumer, reconnecting with a fixed backoff on error.
//
// Grounded on the teacher's PostJetstreamConnector: same reconnect loop,
// same ping/pong keepalive shape, adapted to the firehose's binary CBOR
// framing instead of Jetstream's JSON-over-websocket.
type Connector struct {
	consumer *Consumer
	wsURL    string
}

// NewConnector creates a firehose websocket connector.
func NewConnector(consumer *Consumer, wsURL string) *Connector {
	return &Connector{consumer: consumer, wsURL: wsURL}
}

// Start consumes frames from the firehose until ctx is canceled,
// reconnecting on any connection error after a fixed delay. A reconnect
// policy beyond this is the responsibility of the caller (spec §4.5:
// "a reconnect policy is the responsibility of the underlying firehose
// client").
func (c *Connector) Start(ctx context.Context) error {
	log.Printf("firehose: starting consumer: %s", c.wsURL)

	for {
		select {
		case <-ctx.Done():
			log.Println("firehose: consumer shutting down")
			return ctx.Err()
		default:
			if err := c.connect(ctx); err != nil {
				log.Printf("firehose: connection error: %v. retrying in 5s...", err)
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(5 * time.Second):
				}
			}
		}
	}
}

func (c *Connector) connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.wsURL, nil)
	if err != nil {
		return fmt.Errorf("firehose: dial: %w", err)
	}
	defer func() {
		if closeErr := conn.Close(); closeErr != nil {
			log.Printf("firehose: failed to close connection: %v", closeErr)
		}
	}()

	log.Println("firehose: connected")

	if err := conn.SetReadDeadline(time.Now().Add(60 * time.Second)); err != nil {
		log.Printf("firehose: failed to set read deadline: %v", err)
	}
	conn.SetPongHandler(func(string) error {
		if err := conn.SetReadDeadline(time.Now().Add(60 * time.Second)); err != nil {
			log.Printf("firehose: failed to set read deadline in pong handler: %v", err)
		}
		return nil
	})

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	done := make(chan struct{})
	var closeOnce sync.Once

	go func() {
		for {
			select {
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second)); err != nil {
					log.Printf("firehose: failed to send ping: %v", err)
					closeOnce.Do(func() { close(done) })
					return
				}
			case <-done:
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return fmt.Errorf("connection closed by ping failure")
		case <-ctx.Done():
			closeOnce.Do(func() { close(done) })
			return ctx.Err()
		default:
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			closeOnce.Do(func() { close(done) })
			return fmt.Errorf("firehose: read error: %w", err)
		}

		c.consumer.HandleMessage(ctx, message)
	}
}
