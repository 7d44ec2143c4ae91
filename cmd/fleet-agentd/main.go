// Command fleet-agentd is the reference host agent: it exposes the HTTP
// contract pkg/agentclient expects (deploy/destroy, node lifecycle, lab
// status, link and overlay declaration, image inventory, agent
// registration/heartbeat) and backs the node lifecycle with
// pkg/runtime's containerd wrapper.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuemby/fleetd/pkg/agentclient"
	"github.com/cuemby/fleetd/pkg/log"
	"github.com/cuemby/fleetd/pkg/runtime"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "fleet-agentd",
	Short:   "fleet-agentd - reference host agent for fleetd labs",
	Version: Version,
	RunE:    runAgent,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"fleet-agentd version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.Flags().String("host-id", "", "Unique ID for this host, as registered with the manager")
	rootCmd.Flags().String("listen-addr", "0.0.0.0:7780", "HTTP listen address for the manager to reach")
	rootCmd.Flags().String("manager-addr", "", "fleetd manager address (for self-registration)")
	rootCmd.Flags().String("containerd-socket", runtime.DefaultSocketPath, "containerd socket path")
	rootCmd.Flags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.Flags().Bool("log-json", false, "Output logs in JSON format")
	_ = rootCmd.MarkFlagRequired("host-id")
}

func runAgent(cmd *cobra.Command, args []string) error {
	hostID, _ := cmd.Flags().GetString("host-id")
	listenAddr, _ := cmd.Flags().GetString("listen-addr")
	managerAddr, _ := cmd.Flags().GetString("manager-addr")
	socketPath, _ := cmd.Flags().GetString("containerd-socket")
	logLevel, _ := cmd.Flags().GetString("log-level")
	logJSON, _ := cmd.Flags().GetBool("log-json")
	authToken := os.Getenv("FLEETD_AGENT_TOKEN")

	log.Init(log.Config{Level: log.Level(logLevel), JSONOutput: logJSON})
	lg := log.WithHostID(hostID)

	rt, err := runtime.NewContainerdRuntime(socketPath)
	if err != nil {
		return fmt.Errorf("connect to containerd: %w", err)
	}
	defer rt.Close()

	a := newAgent(hostID, authToken, rt)
	srv := &http.Server{
		Addr:    listenAddr,
		Handler: a.routes(),
	}

	errCh := make(chan error, 1)
	go func() {
		lg.Info().Str("addr", listenAddr).Msg("fleet-agentd listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	if managerAddr != "" {
		go selfRegister(lg, managerAddr, authToken, hostID, listenAddr)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		lg.Info().Msg("shutting down")
	case err := <-errCh:
		lg.Error().Err(err).Msg("server error")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

// selfRegister posts this agent's address once at startup to
// POST /agents/register on managerAddr, using the same
// agentclient.RegisterRequest shape this agent's own handler accepts and the
// shared FLEETD_AGENT_TOKEN as its auth header, rather than a join-token
// exchange. The fleetd manager itself serves no such HTTP route.
func selfRegister(lg zerolog.Logger, managerAddr, authToken, hostID, listenAddr string) {
	// Registration against the manager's gRPC RegisterHost RPC is handled
	// by pkg/control/api; this HTTP self-announce is a best-effort nicety
	// and failures here are non-fatal to the agent starting up.
	host, _, err := net.SplitHostPort(listenAddr)
	if err != nil || host == "0.0.0.0" || host == "" {
		host = "127.0.0.1"
	}
	client := agentclient.New(fmt.Sprintf("https://%s", managerAddr), authToken)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err = client.Register(ctx, agentclient.RegisterRequest{
		HostID:  hostID,
		Name:    hostID,
		Address: fmt.Sprintf("%s:%s", host, portOf(listenAddr)),
		Version: Version,
	})
	if err != nil {
		lg.Warn().Err(err).Str("manager", managerAddr).Msg("self-register with manager failed")
		return
	}
	lg.Info().Str("manager", managerAddr).Msg("registered with manager")
}

func portOf(addr string) string {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "7780"
	}
	return port
}
