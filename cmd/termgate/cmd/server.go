package cmd

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/runthings/termgate/api"
	"github.com/runthings/termgate/gate"
	"github.com/runthings/termgate/nonce"
	"github.com/runthings/termgate/session"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the gate server",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.close()
		opts := a.opts

		nonceKey, err := a.signingKey("nonce")
		if err != nil {
			return fmt.Errorf("failed to load nonce key: %w", err)
		}
		var sessionKey session.Signer
		if opts.Session.Mode == session.ModeSigned {
			if sessionKey, err = a.signingKey("session"); err != nil {
				return fmt.Errorf("failed to load session key: %w", err)
			}
		}
		codec, err := session.NewCodec(opts.Session.Mode, sessionKey)
		if err != nil {
			return err
		}
		nonces := nonce.New(nonceKey)

		if opts.LoginPath == "" {
			a.logger.Warn("no login_path configured, denied visitors will be sent to the site home")
		}
		g := gate.New(gate.Config{
			SiteURL:         opts.Site(),
			LoginPath:       opts.LoginPath,
			ProtectedTypes:  opts.ProtectedTypes,
			HubType:         opts.HubType,
			HubObjectID:     opts.HubObjectID,
			ArchiveRedirect: opts.ArchiveRedirect,
		}, a.creds, codec, nonces,
			gate.WithObjects(a.catalog),
			gate.WithPolicy(gate.Policy{
				ExemptRoles:     opts.ExemptRoles,
				AllowAutomation: opts.AllowAutomation,
			}),
		)

		apiOpts := []api.Option{
			api.WithLogger(a.logger),
			api.WithLoginPath(opts.LoginPath),
			api.WithCookieName(opts.SessionCookieName()),
			api.WithAdminPrefixes(opts.AdminPrefixes...),
			api.WithPreviewParam(opts.PreviewParam),
			api.WithIdentityHeaders(opts.UserHeader, opts.RolesHeader),
			api.WithHubType(opts.HubType),
			api.WithAuditWebhook(opts.AuditWebhookURL, opts.AuditWebhookHeader),
		}
		if opts.AuditTrail {
			apiOpts = append(apiOpts, api.WithAuditTrail(api.NewAuditTrail(a.repo)))
		}
		handler, err := api.New(g, a.catalog, a.creds, codec, nonces, apiOpts...)
		if err != nil {
			return err
		}
		defer handler.Close()

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.RealIP)
		r.Use(middleware.Logger)
		r.Use(middleware.Recoverer)
		r.Mount("/", handler.Router())

		server := &http.Server{
			Addr:              opts.Listen,
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		}
		if opts.TLSCert != "" {
			cert, err := tls.LoadX509KeyPair(opts.TLSCert, opts.TLSKey)
			if err != nil {
				return fmt.Errorf("failed to load TLS key pair: %w", err)
			}
			server.TLSConfig = &tls.Config{
				Certificates: []tls.Certificate{cert},
				MinVersion:   tls.VersionTLS12,
			}
		}

		// Graceful shutdown on SIGINT/SIGTERM.
		done := make(chan error, 1)
		go func() {
			var err error
			if server.TLSConfig != nil {
				err = server.ListenAndServeTLS("", "")
			} else {
				err = server.ListenAndServe()
			}
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				done <- fmt.Errorf("server failed: %w", err)
				return
			}
			done <- nil
		}()

		printBanner(cmd.OutOrStdout())
		a.logger.Info("server started",
			"listen", opts.Listen,
			"site_url", opts.SiteURL,
			"storage", opts.Storage,
			"session_mode", opts.Session.Mode,
			"tls", server.TLSConfig != nil,
			"config_file", opts.ConfigFile,
		)

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			a.logger.Info("shutting down", "signal", sig.String())
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(ctx); err != nil {
				return fmt.Errorf("server shutdown failed: %w", err)
			}
			return nil
		case err := <-done:
			return err
		}
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
