package main

import (
	"flag"
	"log"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"

	"opsvoice/internal/session"
	"opsvoice/internal/tui"
)

// wsConn adapts a gorilla websocket connection to the chat model.
type wsConn struct {
	mu     sync.Mutex
	conn   *websocket.Conn
	events chan session.Event
}

func dial(url string) (*wsConn, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, err
	}
	c := &wsConn{conn: conn, events: make(chan session.Event, 64)}
	go c.readLoop()
	return c, nil
}

func (c *wsConn) readLoop() {
	defer close(c.events)
	for {
		var ev session.Event
		if err := c.conn.ReadJSON(&ev); err != nil {
			return
		}
		c.events <- ev
	}
}

func (c *wsConn) Send(ev session.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(ev)
}

func (c *wsConn) Events() <-chan session.Event { return c.events }

func (c *wsConn) Close() error { return c.conn.Close() }

func main() {
	var url string
	flag.StringVar(&url, "url", "ws://localhost:8080/ws", "Websocket session endpoint")
	flag.Parse()

	conn, err := dial(url)
	if err != nil {
		log.Fatalf("failed to connect to %s: %v", url, err)
	}
	defer conn.Close()

	if _, err := tea.NewProgram(tui.New(conn), tea.WithAltScreen()).Run(); err != nil {
		log.Fatal(err)
	}
}
