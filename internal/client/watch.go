package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/comanda-app/api/internal/session"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Event is a realtime order or table change.
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Watch streams the company's realtime events to fn until ctx is done or
// the connection drops.
func (c *Client) Watch(ctx context.Context, companyID uuid.UUID, fn func(Event)) error {
	token := c.token()
	if token == "" {
		return fmt.Errorf("watch: %w", session.ErrNoSession)
	}

	u := *c.baseURL
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = c.baseURL.Path + "/ws/companies/" + companyID.String() + "/orders"
	u.RawQuery = url.Values{"token": {token}}.Encode()

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return fmt.Errorf("watch: %w", ErrUnauthorized)
		}
		if resp != nil {
			return &APIError{StatusCode: resp.StatusCode, Message: "websocket handshake failed"}
		}
		return fmt.Errorf("watch: dial: %w", err)
	}
	defer conn.Close()

	// Unblock NextReader when ctx ends.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		_, r, err := conn.NextReader()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("watch: read: %w", err)
		}

		// A frame may carry several newline-separated events.
		dec := json.NewDecoder(r)
		for {
			var ev Event
			if err := dec.Decode(&ev); err != nil {
				if !errors.Is(err, io.EOF) {
					var syntaxErr *json.SyntaxError
					if !errors.As(err, &syntaxErr) {
						if ctx.Err() != nil {
							return ctx.Err()
						}
						return fmt.Errorf("watch: read: %w", err)
					}
				}
				break
			}
			fn(ev)
		}
	}
}
