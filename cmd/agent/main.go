package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/novaops/nova-control/internal/agent"
	"github.com/novaops/nova-control/internal/logger"
)

const version = "1.0.0"

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		<-c
		cancel()
	}()

	_ = godotenv.Load()
	log := logger.New()

	controlURL := os.Getenv("CONTROL_URL")
	if controlURL == "" {
		log.Fatal("CONTROL_URL not set")
	}
	statePath := os.Getenv("STATE_FILE")
	if statePath == "" {
		statePath = "agent-state.json"
	}

	state, err := agent.LoadState(statePath)
	if err != nil {
		log.WithError(err).Fatal("state load failed")
	}
	if state.BotID == "" {
		state.BotID = "bot_" + uuid.NewString()
	}
	// ACCOUNTS is a comma-separated list of profile ids to run
	for _, id := range strings.Split(os.Getenv("ACCOUNTS"), ",") {
		if id = strings.TrimSpace(id); id != "" {
			state.Account(id)
		}
	}
	if err := state.Save(); err != nil {
		log.WithError(err).Fatal("state save failed")
	}

	client := agent.NewClient(controlURL, log)
	a := agent.New(client, state, stubSender{}, agent.Options{Version: version}, log)

	log.WithField("bot_id", state.BotID).Info("nova-agent running")
	if err := a.Run(ctx); err != nil {
		log.WithError(err).Error("agent exited with error")
	}
}

// stubSender stands in for the site-specific delivery adapter; it fabricates a
// recipient id so the reporting path stays exercised end to end.
type stubSender struct{}

func (stubSender) Send(_ context.Context, _, _ string) (string, error) {
	return fmt.Sprintf("man_%06d", rand.Intn(1_000_000)), nil
}
