package feed

import (
	"context"

	"github.com/gorilla/websocket"
)

// Conn is the subset of a websocket connection the listener reads from.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
}

// Dialer establishes a feed connection for the given subscribe URL.
type Dialer func(ctx context.Context, url string) (Conn, error)

// WebsocketDialer dials the feed over a real websocket.
func WebsocketDialer(ctx context.Context, url string) (Conn, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	return conn, nil
}
