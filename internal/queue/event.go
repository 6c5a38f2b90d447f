// Package queue defines message payloads exchanged over the message broker.
package queue

// FinishedQueueName is the durable queue that carries NegotiationFinishedEvent.
const FinishedQueueName = "negotiation.finished"

// NegotiationFinishedEvent is published when a room reaches COMPLETED or
// FAILED.  It carries enough for downstream consumers to log or build
// analytics without reading the primary database.
type NegotiationFinishedEvent struct {
    RoomID     string   `json:"room_id"`
    HostID     string   `json:"host_id"`
    GuestID    string   `json:"guest_id"`
    ItemName   string   `json:"item_name"`
    Status     string   `json:"status"`
    Rounds     int      `json:"rounds"`
    ListPrice  float64  `json:"list_price"`
    FinalPrice *float64 `json:"final_price,omitempty"`
    FinishedAt string   `json:"finished_at"`
}
