// Command bridge is a sample MCP client that tails a server's event
// stream and pushes a context event, exercising the client library
// end to end against a running server.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"contexthub-backend/domain/contexts"
	"contexthub-backend/interfaces/mcp"
)

func main() {
	serverURL := flag.String("server", "http://localhost:8080", "MCP server base URL")
	projectID := flag.String("project", "", "project to push a demo event into")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := mcp.NewClient(*serverURL, "bridge-demo")

	tools, err := client.ListTools(ctx)
	if err != nil {
		log.Fatalf("Failed to list tools: %v", err)
	}
	log.Printf("Server exposes %d tools:", len(tools))
	for _, tool := range tools {
		log.Printf("  %s - %s", tool.Name, tool.Description)
	}

	if *projectID != "" {
		content := contexts.NewLogContent(contexts.LogPayload{
			Source: "bridge-demo",
			Level:  "info",
			Lines:  []string{"bridge connected"},
		})
		envelope, err := client.PushContext(ctx, *projectID, content, []string{"bridge"})
		if err != nil {
			log.Fatalf("Failed to push context: %v", err)
		}
		log.Printf("Stored entry %s in project %s", envelope.ID, envelope.Project.ID)
	}

	frames, err := client.Events(ctx)
	if err != nil {
		log.Fatalf("Failed to subscribe to events: %v", err)
	}
	log.Println("Subscribed to event stream, waiting for events...")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	for {
		select {
		case <-sigChan:
			log.Println("Bridge stopped")
			return
		case frame, ok := <-frames:
			if !ok {
				log.Println("Event stream closed")
				return
			}
			switch frame.Type {
			case "connection":
				log.Printf("Connected with connection_id %s", frame.ConnectionID)
			case "heartbeat":
			case "event":
				if frame.Event != nil {
					log.Printf("Event %s: %v", frame.Event.Type, frame.Event.Data)
				}
			}
		}
	}
}
