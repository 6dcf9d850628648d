package authprovider

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// ChangeEvent is one decoded row-change notification from the
// provider's realtime channel.
type ChangeEvent struct {
	// Table is the table the change happened on.
	Table string

	// Kind is the change kind: INSERT, UPDATE, or DELETE.
	Kind string

	// Record holds the new row values.
	Record map[string]interface{}
}

const heartbeatInterval = 30 * time.Second

// realtimeFrame is the phoenix-style message envelope the realtime
// socket speaks in both directions.
type realtimeFrame struct {
	Topic   string          `json:"topic"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	Ref     string          `json:"ref"`
}

type changePayload struct {
	Type   string                 `json:"type"`
	Table  string                 `json:"table"`
	Record map[string]interface{} `json:"record"`
}

// Subscribe opens the provider's realtime websocket and streams change
// events for rows of table matching filter (e.g. "user_id=eq.u1").
// The returned channel closes when ctx ends or the socket drops; the
// caller decides whether to resubscribe.
func (c *Client) Subscribe(ctx context.Context, table, filter string) (<-chan ChangeEvent, error) {
	wsURL := strings.Replace(c.baseURL, "http", "ws", 1) +
		"/realtime/v1/websocket?apikey=" + c.anonKey

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dialing realtime socket: %w", err)
	}

	topic := "realtime:public:" + table
	join := map[string]interface{}{
		"topic": topic,
		"event": "phx_join",
		"ref":   "1",
		"payload": map[string]interface{}{
			"config": map[string]interface{}{
				"postgres_changes": []map[string]string{
					{"event": "*", "schema": "public", "table": table, "filter": filter},
				},
			},
		},
	}
	if err := conn.WriteJSON(join); err != nil {
		conn.Close()
		return nil, fmt.Errorf("joining realtime topic %s: %w", topic, err)
	}

	events := make(chan ChangeEvent, 16)

	// Heartbeats keep the provider from dropping the socket.
	go func() {
		ticker := time.NewTicker(heartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				conn.Close()
				return
			case <-ticker.C:
				beat := map[string]interface{}{
					"topic":   "phoenix",
					"event":   "heartbeat",
					"payload": map[string]interface{}{},
					"ref":     "hb",
				}
				if err := conn.WriteJSON(beat); err != nil {
					conn.Close()
					return
				}
			}
		}
	}()

	go func() {
		defer close(events)
		defer conn.Close()

		for {
			var frame realtimeFrame
			if err := conn.ReadJSON(&frame); err != nil {
				if ctx.Err() == nil {
					c.log.Warn().Err(err).Str("table", table).Msg("realtime socket dropped")
				}
				return
			}

			if frame.Topic != topic || frame.Event != "postgres_changes" {
				continue
			}

			var change changePayload
			if err := json.Unmarshal(frame.Payload, &change); err != nil {
				c.log.Debug().Err(err).Msg("skipping undecodable change event")
				continue
			}

			select {
			case events <- ChangeEvent{Table: change.Table, Kind: change.Type, Record: change.Record}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return events, nil
}
