package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"service-desk/backend/internal/models"
	"service-desk/backend/internal/repository"
	"service-desk/backend/internal/service"
	"service-desk/backend/pkg/cache"
	"service-desk/backend/pkg/config"
	"service-desk/backend/pkg/logger"

	"github.com/gorilla/websocket"
)

type feedEvent struct {
	Type    string          `json:"type"`
	Content json.RawMessage `json:"content"`
}

func main() {
	seedPtr := flag.String("seed-manager", "", `Create an operator, e.g. -seed-manager "Ada Lovelace"`)
	listenPtr := flag.Bool("listen", false, "Print the operator live feed")
	wsURLPtr := flag.String("ws", "ws://localhost:8000/ws", "Live feed URL used with -listen")
	helpPtr := flag.Bool("help", false, "Show usage information")

	flag.Parse()

	if *helpPtr || (*seedPtr == "" && !*listenPtr) {
		fmt.Println("Service desk tools:")
		fmt.Println(`  -seed-manager "First Last"   Create an operator in the configured database`)
		fmt.Println("  -listen [-ws URL]            Print ticket and message events as they happen")
		fmt.Println("  -help                        Show this help message")
		os.Exit(0)
	}

	log := logger.New(logger.Config{Level: "warn", JSON: false})

	if *seedPtr != "" {
		if err := seedManager(*seedPtr); err != nil {
			log.LogError(err, "Failed to seed manager")
			os.Exit(1)
		}
	}

	if *listenPtr {
		if err := listen(*wsURLPtr); err != nil {
			log.LogError(err, "Live feed stopped")
			os.Exit(1)
		}
	}
}

func seedManager(fullName string) error {
	first, last, ok := strings.Cut(strings.TrimSpace(fullName), " ")
	if !ok {
		return fmt.Errorf("expected first and last name, got %q", fullName)
	}

	cfg := config.New()
	db, err := config.NewDB(cfg)
	if err != nil {
		return err
	}
	if err := repository.Migrate(db); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	c := cache.New(cache.Options{TTL: time.Minute})
	defer c.Close()

	managers := service.NewManagerService(repository.NewGormStore(db), c)
	manager, err := managers.Create(context.Background(), models.CreateManagerRequest{
		FirstName: first,
		LastName:  strings.TrimSpace(last),
	})
	if err != nil {
		return err
	}

	fmt.Printf("Created manager %d: %s\n", manager.ID, manager.FullName())
	return nil
}

func listen(url string) error {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", url, err)
	}
	defer conn.Close()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	done := make(chan error, 1)
	go func() {
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				done <- err
				return
			}

			var evt feedEvent
			if err := json.Unmarshal(raw, &evt); err != nil {
				fmt.Printf("unreadable event: %s\n", raw)
				continue
			}
			fmt.Printf("%s %-16s %s\n", time.Now().Format(time.TimeOnly), evt.Type, evt.Content)
		}
	}()

	fmt.Println("Listening on", url)
	select {
	case err := <-done:
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return nil
		}
		return err
	case <-interrupt:
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		return conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	}
}
