package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Topaz-Oz/Lience-Plate-Detect/config"
	"github.com/Topaz-Oz/Lience-Plate-Detect/plate"
	"github.com/Topaz-Oz/Lience-Plate-Detect/services"
	"github.com/Topaz-Oz/Lience-Plate-Detect/wsclient"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "platectl: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "platectl",
		Short: "License plate detection development CLI",
		Long: `platectl runs the configured plate recognizer against a local image, follows the
realtime detection channel and mints development tokens. Settings come from the same
environment (and .env file) as the API server.`,
		SilenceUsage: true,
	}
	cmd.AddCommand(
		newDetectCmd(),
		newWatchCmd(),
		newTokenCmd(),
	)
	return cmd
}

func newDetectCmd() *cobra.Command {
	var backend string
	cmd := &cobra.Command{
		Use:   "detect <image>",
		Short: "Recognize and validate the plate in an image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			if backend != "" {
				cfg.Recognizer.Backend = backend
			}
			r, err := services.NewRecognizer(cmd.Context(), cfg.Recognizer)
			if err != nil {
				return err
			}
			return runDetect(cmd.Context(), r, args[0], cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&backend, "backend", "", "Recognizer backend (script or rekognition), overrides RECOGNIZER_BACKEND")
	return cmd
}

// runDetect prints the accepted reading as JSON. A rejected reading returns
// the detection error with its reason.
func runDetect(ctx context.Context, r services.Recognizer, imagePath string, w io.Writer) error {
	if _, err := os.Stat(imagePath); err != nil {
		return err
	}
	reading, err := r.Recognize(ctx, imagePath)
	if err == nil {
		reading, err = plate.Validate(reading)
	}
	if err != nil {
		de := services.DetectionError(err)
		return fmt.Errorf("%s (%s): %w", de.Kind, de.Reason, err)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(reading)
}

func newWatchCmd() *cobra.Command {
	var url, token string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print realtime detection events until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			if token == "" {
				token = os.Getenv("PLATEDETECT_TOKEN")
			}
			return runWatch(cmd.Context(), wsclient.Config{URL: url, Token: token}, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&url, "url", "ws://localhost:8080/ws", "Realtime channel URL")
	cmd.Flags().StringVar(&token, "token", "", "Bearer token (defaults to $PLATEDETECT_TOKEN)")
	return cmd
}

var watchedEvents = []string{
	wsclient.EventConnected,
	wsclient.EventDisconnected,
	wsclient.EventWelcome,
	wsclient.EventProgress,
	wsclient.EventResult,
	wsclient.EventPong,
	wsclient.EventError,
	wsclient.EventLive,
}

func runWatch(ctx context.Context, cfg wsclient.Config, w io.Writer) error {
	client := wsclient.New(cfg)
	defer client.Close()

	var mu sync.Mutex
	for _, event := range watchedEvents {
		event := event
		client.On(event, func(payload json.RawMessage) {
			mu.Lock()
			defer mu.Unlock()
			if len(payload) == 0 {
				fmt.Fprintln(w, event)
				return
			}
			fmt.Fprintf(w, "%s %s\n", event, payload)
		})
	}

	// A failed first dial keeps retrying in the background.
	if err := client.Connect(ctx); errors.Is(err, wsclient.ErrNoCredential) {
		return err
	}

	<-ctx.Done()
	return nil
}

func newTokenCmd() *cobra.Command {
	var userID uint
	var email, role string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a development JWT signed with JWT_SECRET",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == 0 || email == "" {
				return errors.New("--user-id and --email are required")
			}
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			tok, err := services.NewAuthService(cfg.JWT).GenerateToken(userID, email, role)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().UintVar(&userID, "user-id", 0, "User id placed in the token")
	cmd.Flags().StringVar(&email, "email", "", "E-mail placed in the token")
	cmd.Flags().StringVar(&role, "role", "user", "Role placed in the token (user or admin)")
	return cmd
}
