// Command bridgecli is an interactive client for a bridge agent. It sends
// typed lines to the bridge's A2A endpoint and prints the replies; with
// -watch it additionally streams the conversation's routing events.
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/a2alab/agentbridge/domain"
)

func main() {
	addr := flag.String("addr", "http://localhost:6000", "bridge base URL")
	conversation := flag.String("conversation", "", "conversation ID (generated when empty)")
	watch := flag.Bool("watch", false, "stream routing events for the conversation")
	flag.Parse()

	log.SetFlags(log.Ltime)

	conversationID := *conversation
	if conversationID == "" {
		conversationID = "conv_" + uuid.New().String()[:8]
	}

	fmt.Printf("Bridge: %s\nConversation: %s\n", *addr, conversationID)

	client := &http.Client{Timeout: 60 * time.Second}

	done := make(chan struct{})
	if *watch {
		go watchEvents(*addr, conversationID, done)
	}
	defer close(done)

	fmt.Println("\nType a message and press Enter to send.")
	fmt.Println("Commands: /quit to exit")
	fmt.Println()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("> ")
		select {
		case <-interrupt:
			fmt.Println("\nInterrupted")
			return
		default:
			if !scanner.Scan() {
				return
			}

			input := strings.TrimSpace(scanner.Text())
			if input == "" {
				continue
			}
			if input == "/quit" {
				fmt.Println("Bye!")
				return
			}

			reply, err := sendMessage(client, *addr, conversationID, input)
			if err != nil {
				log.Printf("Send error: %v", err)
				continue
			}
			fmt.Printf("\n%s\n\n", reply)
		}
	}
}

// sendMessage posts one envelope to the bridge and returns the reply text.
func sendMessage(client *http.Client, addr, conversationID, text string) (string, error) {
	env := domain.Envelope{
		Content:        domain.Content{Text: text, Type: domain.ContentTypeText},
		Role:           domain.RoleUser,
		ConversationID: conversationID,
	}
	body, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("marshal: %w", err)
	}

	resp, err := client.Post(strings.TrimSuffix(addr, "/")+"/a2a", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("bridge returned status %d: %s", resp.StatusCode, excerpt)
	}

	var reply domain.Envelope
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return "", fmt.Errorf("decode reply: %w", err)
	}
	return reply.Content.Text, nil
}

// watchEvents streams routing events over the bridge's watch socket and
// pretty-prints them until done is closed.
func watchEvents(addr, conversationID string, done <-chan struct{}) {
	wsURL, err := url.Parse(strings.TrimSuffix(addr, "/") + "/watch")
	if err != nil {
		log.Printf("Watch error: %v", err)
		return
	}
	switch wsURL.Scheme {
	case "https":
		wsURL.Scheme = "wss"
	default:
		wsURL.Scheme = "ws"
	}
	q := wsURL.Query()
	q.Set("conversation_id", conversationID)
	wsURL.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL.String(), nil)
	if err != nil {
		log.Printf("Watch dial failed: %v", err)
		return
	}
	defer conn.Close()

	go func() {
		<-done
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-done:
			default:
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					log.Printf("Watch read error: %v", err)
				}
			}
			return
		}

		var pretty map[string]interface{}
		if err := json.Unmarshal(data, &pretty); err != nil {
			continue
		}
		formatted, _ := json.MarshalIndent(pretty, "", "  ")
		fmt.Printf("\n[watch] %s\n", formatted)
	}
}
