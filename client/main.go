package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// send formats and sends one JSON frame to the server.
func send(c *websocket.Conn, frame map[string]any) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	log.Printf("-> SENT: %s", data)
	return c.WriteMessage(websocket.TextMessage, data)
}

// parseDigits turns "123" into [1 2 3].
func parseDigits(s string) []int {
	digits := make([]int, 0, len(s))
	for _, r := range s {
		d, err := strconv.Atoi(string(r))
		if err != nil {
			return nil
		}
		digits = append(digits, d)
	}
	return digits
}

// parseCommand maps a console line onto a protocol frame.
func parseCommand(line string) map[string]any {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}

	switch fields[0] {
	case "move":
		if len(fields) != 2 {
			return nil
		}
		pos, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil
		}
		return map[string]any{"type": "move", "position": pos}
	case "play":
		if len(fields) != 2 {
			return nil
		}
		return map[string]any{"type": "play_card", "card": strings.ToUpper(fields[1])}
	case "secret":
		if len(fields) != 2 {
			return nil
		}
		return map[string]any{"type": "set_secret", "digits": parseDigits(fields[1])}
	case "guess":
		if len(fields) != 2 {
			return nil
		}
		return map[string]any{"type": "guess", "digits": parseDigits(fields[1])}
	case "reset":
		return map[string]any{"type": "reset"}
	case "surrender":
		return map[string]any{"type": "surrender"}
	}
	return nil
}

func main() {
	host := flag.String("host", "localhost:8080", "server host:port")
	path := flag.String("path", "/ws/matchmaking", "websocket path, e.g. /ws/tictactoe/lobby1")
	user := flag.String("user", "probe", "identity to connect as")
	token := flag.String("token", "", "auth token, empty for dev mode")
	flag.Parse()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	query := url.Values{"user": {*user}}
	if *token != "" {
		query.Set("token", *token)
	}
	u := url.URL{Scheme: "ws", Host: *host, Path: *path, RawQuery: query.Encode()}
	log.Printf("Connecting to %s", u.String())

	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("Dial failed: %v", err)
	}
	defer c.Close()

	done := make(chan struct{})

	// Read loop
	go func() {
		defer close(done)
		for {
			_, message, err := c.ReadMessage()
			if err != nil {
				log.Println("Read error:", err)
				return
			}
			log.Printf("<- RECV: %s", string(message))
		}
	}()

	log.Println("Commands: move <0-8> | play <E|S|C> | secret <digits> | guess <digits> | reset | surrender")

	// Write loop
	reader := bufio.NewReader(os.Stdin)
	for {
		select {
		case <-done:
			return
		case <-interrupt:
			log.Println("Interrupt received, closing connection.")
			err := c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			if err != nil {
				log.Println("Write close error:", err)
			}
			select {
			case <-done:
			case <-time.After(time.Second):
			}
			return
		default:
			text, _ := reader.ReadString('\n')
			frame := parseCommand(strings.TrimSpace(text))
			if frame == nil {
				continue
			}
			if err := send(c, frame); err != nil {
				log.Println("Write error:", err)
				return
			}
		}
	}
}
