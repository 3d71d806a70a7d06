// Package queue defines message payloads exchanged over the message broker
// and the consumer that turns them into the order journal.
package queue

import "time"

// OrderCreatedQueue is the durable queue order events are routed to.
const OrderCreatedQueue = "order.created"

// OrderCreatedEvent is published after an order and its tickets have been
// committed. It carries enough detail for downstream consumers to log or
// notify without querying the primary database.
type OrderCreatedEvent struct {
	OrderID   uint64        `json:"order_id"`
	UserID    uint64        `json:"user_id"`
	CreatedAt time.Time     `json:"created_at"`
	Tickets   []EventTicket `json:"tickets"`
}

// EventTicket is one booked place within an OrderCreatedEvent.
type EventTicket struct {
	MovieSessionID uint64    `json:"movie_session_id"`
	MovieTitle     string    `json:"movie_title"`
	HallName       string    `json:"cinema_hall_name"`
	ShowTime       time.Time `json:"show_time"`
	Row            int       `json:"row"`
	Seat           int       `json:"seat"`
}
