package main

import (
	"context"
	"fmt"
	"time"

	"collaborative-workspace/internal/protocol"
	"collaborative-workspace/internal/session"
	"collaborative-workspace/internal/textop"

	"github.com/spf13/cobra"
)

func runEdit(cmd *cobra.Command, args []string) error {
	id, err := identity()
	if err != nil {
		return err
	}
	target, err := channelURL()
	if err != nil {
		return err
	}

	var ops []textop.Operation
	if deleteLen > 0 {
		ops = append(ops, textop.DeleteAt(position, deleteLen))
	}
	if text != "" {
		ops = append(ops, textop.InsertAt(position, text))
	}
	if len(ops) == 0 && style == "" {
		return fmt.Errorf("nothing to do: pass --text, --delete or --format")
	}

	loaded := make(chan struct{}, 1)
	coord := session.New(session.Options{
		URL:            target,
		ReconnectDelay: retryDelay,
		Logger:         log,
		OnEvent: func(ev protocol.Event) {
			if _, ok := ev.(protocol.DocumentStateEvent); ok {
				select {
				case loaded <- struct{}{}:
				default:
				}
			}
		},
	})
	coord.SetWorkspace(workspaceID, "")
	coord.SetDocument(documentID)

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()
	if err := coord.Connect(ctx, id); err != nil {
		coord.Disconnect()
		return err
	}
	defer coord.Disconnect()

	select {
	case <-loaded:
	case <-time.After(settle):
		log.Warn().Msg("no document state yet, editing an empty buffer")
	}

	var content string
	if len(ops) > 0 {
		content = coord.Edit(blockID, ops...)
	}
	if style != "" {
		end := selEnd
		if end == 0 {
			end = position
		}
		content = coord.Format(blockID, position, end, textop.Style(style))
	}

	fmt.Fprintln(cmd.OutOrStdout(), content)
	return nil
}
