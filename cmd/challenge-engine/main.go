package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/FlooooowY/SteelMount-Challenge-Engine/internal/config"
	"github.com/FlooooowY/SteelMount-Challenge-Engine/internal/escrow"
	"github.com/FlooooowY/SteelMount-Challenge-Engine/internal/identity"
	"github.com/FlooooowY/SteelMount-Challenge-Engine/internal/logger"
	"github.com/FlooooowY/SteelMount-Challenge-Engine/internal/server"
	"github.com/spf13/cobra"
)

var cfgFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   "challenge-engine",
		Short: "SteelMount Challenge Engine - peer to peer fitness challenges with Lightning stakes",
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml when present)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(quoteCmd())
	rootCmd.AddCommand(tokenCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	return config.LoadConfig(path)
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the gRPC, WebSocket and metrics servers",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger.Init(
		cfg.Monitoring.Logging.Level,
		cfg.Monitoring.Logging.Format,
		cfg.Monitoring.Logging.Output,
	)

	log := logger.GetLogger()
	log.Info("Starting SteelMount Challenge Engine")

	srv, err := server.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	startupCtx, startupCancel := context.WithTimeout(context.Background(), cfg.Server.StartupTimeout)
	defer startupCancel()

	if err := srv.Start(startupCtx); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.Infof("Received signal %v, shutting down gracefully...", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("error during shutdown: %w", err)
	}

	log.Info("Server stopped gracefully")
	return nil
}

func quoteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Print the escrow breakdown for a stake",
		RunE:  runQuote,
	}

	cmd.Flags().Int64("stake", 0, "Stake per participant in sats")
	cmd.Flags().Int("participants", 2, "Number of participants including the challenger")
	cmd.Flags().Int("fee", escrow.DefaultTeamFeePercent, "Team fee percent")

	return cmd
}

func runQuote(cmd *cobra.Command, args []string) error {
	stake, _ := cmd.Flags().GetInt64("stake")
	participants, _ := cmd.Flags().GetInt("participants")
	fee, _ := cmd.Flags().GetInt("fee")

	b, err := escrow.Calculate(stake, participants, fee)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, line := range b.Summary() {
		fmt.Fprintln(out, line)
	}
	return nil
}

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a session token signed with the configured secret",
		RunE:  runToken,
	}

	cmd.Flags().String("user", "", "User ID (required)")
	cmd.Flags().String("team", "", "Team ID")
	cmd.Flags().Duration("ttl", 24*time.Hour, "Token lifetime")
	cmd.MarkFlagRequired("user")

	return cmd
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	user, _ := cmd.Flags().GetString("user")
	team, _ := cmd.Flags().GetString("team")
	ttl, _ := cmd.Flags().GetDuration("ttl")

	token, err := identity.NewTokenVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer).Issue(user, team, ttl)
	if err != nil {
		return fmt.Errorf("failed to issue token: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
