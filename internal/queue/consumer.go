package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "log"
    "os"
    "path/filepath"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
)

// Consumer listens on negotiation.finished and appends one line per
// event to <LogDir>/negotiation.log.
type Consumer struct {
    URL    string
    LogDir string
}

// NewConsumer returns a Consumer writing under logs/.
func NewConsumer(url string) *Consumer {
    if url == "" {
        url = DefaultURL
    }
    return &Consumer{URL: url, LogDir: "logs"}
}

// Run dials the broker and consumes until ctx is cancelled.  Broker
// failures are retried with exponential backoff capped at 30s, so the
// server keeps operating while RabbitMQ is down.
func (c *Consumer) Run(ctx context.Context) error {
    backoff := time.Second
    for {
        if ctx.Err() != nil {
            return ctx.Err()
        }
        conn, err := dial(ctx, c.URL)
        if err != nil {
            log.Printf("negotiation-consumer: failed to dial broker: %v; retrying in %s", err, backoff)
            if !sleep(ctx, backoff) {
                return ctx.Err()
            }
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second // reset after successful connect

        err = c.consumeLoop(ctx, conn)
        _ = conn.Close()
        if ctx.Err() != nil {
            return ctx.Err()
        }
        log.Printf("negotiation-consumer: consume loop ended: %v; reconnecting", err)
        if !sleep(ctx, 2*time.Second) {
            return ctx.Err()
        }
    }
}

func sleep(ctx context.Context, d time.Duration) bool {
    t := time.NewTimer(d)
    defer t.Stop()
    select {
    case <-ctx.Done():
        return false
    case <-t.C:
        return true
    }
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(50, 0, false); err != nil {
        log.Printf("negotiation-consumer: set QoS failed: %v", err)
    }

    if _, err := ch.QueueDeclare(FinishedQueueName, true, false, false, false, nil); err != nil {
        return fmt.Errorf("queue declare: %w", err)
    }

    msgs, err := ch.Consume(FinishedQueueName, "", false, false, false, false, nil)
    if err != nil {
        return fmt.Errorf("queue consume: %w", err)
    }

    for {
        select {
        case <-ctx.Done():
            return ctx.Err()
        case d, ok := <-msgs:
            if !ok {
                return errors.New("deliveries channel closed")
            }
            if err := c.HandleMessage(d.Body); err != nil {
                log.Printf("negotiation-consumer: handle message failed: %v", err)
                _ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
                continue
            }
            _ = d.Ack(false)
        }
    }
}

// HandleMessage decodes one delivery body and appends it to the log file.
func (c *Consumer) HandleMessage(body []byte) error {
    var ev NegotiationFinishedEvent
    if err := json.Unmarshal(body, &ev); err != nil {
        return fmt.Errorf("unmarshal: %w", err)
    }
    if err := os.MkdirAll(c.LogDir, 0o755); err != nil {
        return fmt.Errorf("mkdir logs: %w", err)
    }
    f, err := os.OpenFile(filepath.Join(c.LogDir, "negotiation.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
    if err != nil {
        return fmt.Errorf("open log file: %w", err)
    }
    defer f.Close()

    if _, err := f.WriteString(FormatLine(ev)); err != nil {
        return fmt.Errorf("write log: %w", err)
    }
    return nil
}

// FormatLine renders ev as a single human-friendly log line.
func FormatLine(ev NegotiationFinishedEvent) string {
    final := "none"
    if ev.FinalPrice != nil {
        final = fmt.Sprintf("%.2f", *ev.FinalPrice)
    }
    return fmt.Sprintf("[%s] Negotiation %s | room_id=%s | host_id=%s | guest_id=%s | item=%q | rounds=%d | list=%.2f | final=%s\n",
        ev.FinishedAt, ev.Status, ev.RoomID, ev.HostID, ev.GuestID, ev.ItemName, ev.Rounds, ev.ListPrice, final)
}
