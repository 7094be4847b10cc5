package service

// Broadcaster is the fan-out gateway for WebSocket events (implemented by
// the ws hub; defined here to avoid an import cycle). Delivery is best
// effort to currently connected members, FIFO per connection.
type Broadcaster interface {
	ToPoll(pollID, event string, payload interface{})
	ToConn(connID, event string, payload interface{})
	Disconnect(connID string)
}
