package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"collaborative-workspace/internal/protocol"
	"collaborative-workspace/internal/session"

	"github.com/spf13/cobra"
)

func runWatch(cmd *cobra.Command, args []string) error {
	id, err := identity()
	if err != nil {
		return err
	}
	target, err := channelURL()
	if err != nil {
		return err
	}

	out := json.NewEncoder(cmd.OutOrStdout())
	coord := session.New(session.Options{
		URL:            target,
		ReconnectDelay: retryDelay,
		Logger:         log,
		OnEvent: func(ev protocol.Event) {
			out.Encode(protocol.Envelope{Type: ev.EventType(), Payload: mustJSON(ev)})
		},
		OnConnectionChange: func(connected bool) {
			log.Info().Bool("connected", connected).Msg("connection changed")
		},
	})
	coord.SetWorkspace(workspaceID, "")
	coord.SetDocument(documentID)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// a failed first dial keeps retrying in the background
	if err := coord.Connect(ctx, id); err != nil {
		log.Warn().Err(err).Msg("initial connect failed")
	}
	<-ctx.Done()
	coord.Disconnect()
	return nil
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage(fmt.Sprintf("%q", err.Error()))
	}
	return b
}
