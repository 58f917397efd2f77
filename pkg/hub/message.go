// Package hub fans messages out to websocket clients through a single
// goroutine that owns the client set.
package hub

import "github.com/gofiber/websocket/v2"

// Message is one websocket frame queued for every client.
type Message struct {
	Frame int // websocket.TextMessage or websocket.BinaryMessage
	Data  []byte
}

// Text wraps pre-encoded JSON as a text frame.
func Text(data []byte) Message {
	return Message{Frame: websocket.TextMessage, Data: data}
}

// Binary wraps raw bytes, such as audio, as a binary frame.
func Binary(data []byte) Message {
	return Message{Frame: websocket.BinaryMessage, Data: data}
}
