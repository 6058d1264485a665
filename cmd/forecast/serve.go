package main

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"demand_forecast/internal/model"
	"demand_forecast/internal/server"
	"demand_forecast/internal/ws"
)

var (
	serveAddr string
	servePull bool

	tokenSubject string
	tokenTTL     time.Duration
)

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from config)")
	serveCmd.Flags().BoolVar(&servePull, "pull", false, "Pull the remote sheet before serving")
	rootCmd.AddCommand(serveCmd)

	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "operator", "Name recorded in the token")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "Token lifetime")
	rootCmd.AddCommand(tokenCmd)
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a bearer token for the write endpoints of the API",
	RunE: func(cmd *cobra.Command, args []string) error {
		tok, err := issueToken(cfg.Server.JWTSecret, tokenSubject, tokenTTL)
		if err != nil {
			return err
		}
		fmt.Println(tok)
		return nil
	},
}

func issueToken(secret, subject string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("server.jwt_secret (or API_JWT_SECRET) is not set")
	}
	if ttl <= 0 {
		return "", fmt.Errorf("ttl must be positive, got %s", ttl)
	}
	return server.NewAuthenticator(secret).Issue(subject, ttl)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API and websocket feed",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		hub := ws.NewHub()

		w, err := openWorkspace(ctx, ws.NewBridge(hub))
		if err != nil {
			return err
		}
		defer w.close()

		if servePull {
			res, err := w.session.Pull(ctx)
			if err != nil {
				return fmt.Errorf("initial pull: %w", err)
			}
			log.Printf("pulled %d rows", res.Rows)
		}

		addr := serveAddr
		if addr == "" {
			addr = cfg.Server.Addr
		}
		srv := server.New(w.session, hub, cfg.Server)
		err = srv.Run(ctx, addr)

		if saveErr := w.save(); saveErr != nil {
			log.Printf("%v", saveErr)
		}
		for _, t := range model.Targets {
			if _, ok := w.session.Model(t); !ok {
				continue
			}
			if err := w.saveModel(t); err != nil {
				log.Printf("saving %s model: %v", t, err)
			}
		}
		return err
	},
}
