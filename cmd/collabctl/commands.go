package main

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"collaborative-workspace/internal/config"
	"collaborative-workspace/internal/logger"
	"collaborative-workspace/internal/session"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// --- Global flags ---
var (
	serverAddr  string
	token       string
	userID      string
	userName    string
	email       string
	password    string
	workspaceID string
	documentID  string
	logLevel    string
	retryDelay  time.Duration

	log zerolog.Logger

	rootCmd = &cobra.Command{
		Use:           "collabctl",
		Short:         "Watch and edit collaborative documents from the terminal",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			log = logger.NewWithWriter("development", logLevel, os.Stderr)
			// .env / RECONNECT_DELAY apply unless the flag was given
			config.LoadConfig()
			if !cmd.Flags().Changed("reconnect-delay") {
				retryDelay = config.AppConfig.ReconnectDelay
			}
		},
	}

	loginCmd = &cobra.Command{
		Use:   "login",
		Short: "Log in and print a handshake token",
		RunE:  runLogin, // cmd_login.go
	}

	watchCmd = &cobra.Command{
		Use:   "watch",
		Short: "Join a document and print every event until interrupted",
		RunE:  runWatch, // cmd_watch.go
	}

	editCmd = &cobra.Command{
		Use:   "edit",
		Short: "Apply one edit to a block and exit",
		RunE:  runEdit, // cmd_edit.go
	}
)

// edit flags
var (
	blockID   string
	position  int
	text      string
	deleteLen int
	style     string
	selEnd    int
	settle    time.Duration
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&serverAddr, "server", envOr("COLLAB_SERVER", "http://localhost:8080"), "relay base URL")
	pf.StringVar(&token, "token", os.Getenv("COLLAB_TOKEN"), "handshake token")
	pf.StringVar(&userID, "user", os.Getenv("COLLAB_USER"), "user ID the token was issued for")
	pf.StringVar(&userName, "name", "", "display name shown to peers")
	pf.StringVar(&email, "email", "", "log in with this email when no token is given")
	pf.StringVar(&password, "password", "", "password for --email")
	pf.StringVar(&workspaceID, "workspace", "demo", "workspace ID")
	pf.StringVar(&documentID, "document", "welcome", "document ID")
	pf.StringVar(&logLevel, "log-level", "info", "log level")
	pf.DurationVar(&retryDelay, "reconnect-delay", session.DefaultReconnectDelay, "delay before reconnecting after the connection drops")

	editCmd.Flags().StringVar(&blockID, "block", "", "block ID to edit")
	editCmd.Flags().IntVar(&position, "position", 0, "rune offset of the edit")
	editCmd.Flags().StringVar(&text, "text", "", "text to insert")
	editCmd.Flags().IntVar(&deleteLen, "delete", 0, "runes to delete at --position")
	editCmd.Flags().StringVar(&style, "format", "", "formatting shortcut over [--position, --end): bold, italic, heading, list, link, code")
	editCmd.Flags().IntVar(&selEnd, "end", 0, "selection end for --format")
	editCmd.Flags().DurationVar(&settle, "wait", 500*time.Millisecond, "time to wait for the document state before editing")
	_ = editCmd.MarkFlagRequired("block")

	rootCmd.AddCommand(loginCmd, watchCmd, editCmd)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// channelURL maps the server's http(s) base URL to its ws(s) channel URL.
func channelURL() (string, error) {
	u, err := url.Parse(serverAddr)
	if err != nil {
		return "", fmt.Errorf("parse --server: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http", "":
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	return u.String(), nil
}

// identity resolves who to connect as, logging in when only credentials
// were given.
func identity() (session.Identity, error) {
	if token == "" && email != "" {
		res, err := login(serverAddr, email, password)
		if err != nil {
			return session.Identity{}, err
		}
		token = res.AccessToken
		userID = fmt.Sprint(res.User.ID)
		if userName == "" {
			userName = res.User.Name
		}
	}
	if token == "" || userID == "" {
		return session.Identity{}, fmt.Errorf("need --token and --user, or --email and --password")
	}
	return session.Identity{UserID: userID, Email: email, DisplayName: userName, Token: token}, nil
}
