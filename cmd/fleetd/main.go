// Command fleetd is the manager daemon: the Raft-backed control plane,
// every convergence loop (NLM, jobrunner, reconciler, enforcement,
// jobhealth, imagesync), and the gRPC management-plane API.
package main

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuemby/fleetd/pkg/agentclient"
	"github.com/cuemby/fleetd/pkg/broadcast"
	"github.com/cuemby/fleetd/pkg/clock"
	"github.com/cuemby/fleetd/pkg/control"
	api "github.com/cuemby/fleetd/pkg/control/api"
	"github.com/cuemby/fleetd/pkg/coordination"
	"github.com/cuemby/fleetd/pkg/enforcement"
	"github.com/cuemby/fleetd/pkg/imagesync"
	"github.com/cuemby/fleetd/pkg/jobhealth"
	"github.com/cuemby/fleetd/pkg/jobrunner"
	"github.com/cuemby/fleetd/pkg/linkorch"
	"github.com/cuemby/fleetd/pkg/log"
	"github.com/cuemby/fleetd/pkg/nlm"
	"github.com/cuemby/fleetd/pkg/overlay"
	"github.com/cuemby/fleetd/pkg/reconciler"
	"github.com/cuemby/fleetd/pkg/security"
	"github.com/cuemby/fleetd/pkg/storage"
	"github.com/cuemby/fleetd/pkg/topology"
	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
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
	Use:     "fleetd",
	Short:   "fleetd - control plane for multi-host network labs",
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"fleetd version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	cobra.OnInitialize(initLogging)

	clusterCmd.AddCommand(clusterInitCmd, clusterJoinCmd)
	rootCmd.AddCommand(clusterCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

var clusterCmd = &cobra.Command{
	Use:   "cluster",
	Short: "Manage a fleetd manager replica",
}

func addClusterFlags(cmd *cobra.Command) {
	cmd.Flags().String("node-id", "", "Unique ID for this manager replica")
	cmd.Flags().String("bind-addr", "127.0.0.1:9000", "Raft bind address")
	cmd.Flags().String("api-addr", "127.0.0.1:9443", "Management gRPC API address")
	cmd.Flags().String("health-addr", "127.0.0.1:9090", "HTTP health/metrics address")
	cmd.Flags().String("data-dir", "/var/lib/fleetd", "Raft + BoltDB data directory")
	cmd.Flags().String("redis-addr", "127.0.0.1:6379", "Coordination-store Redis address")
	cmd.Flags().String("redis-password", "", "Coordination-store Redis password")
	_ = cmd.MarkFlagRequired("node-id")
}

var clusterInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new fleetd cluster",
	Long: `Initialize a new fleetd cluster with this replica as the first
manager. It will form a Raft quorum once additional managers join.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runManager(cmd, true)
	},
}

var clusterJoinCmd = &cobra.Command{
	Use:   "join",
	Short: "Join an existing fleetd cluster",
	Long: `Join this replica to a Raft cluster whose leader has already
added it as a voter through Cluster.AddVoter on the leader (no fleetctl
command or gRPC method exposes that call). The CA and its
certificates must already be present under this replica's data
directory, copied out of band from an existing manager — fleetd has no
automated certificate bootstrap for joining replicas yet.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runManager(cmd, false)
	},
}

func init() {
	addClusterFlags(clusterInitCmd)
	addClusterFlags(clusterJoinCmd)
}

// runManager wires every fleetd component together and blocks until
// interrupted. bootstrap selects Cluster.Bootstrap (new cluster) vs
// Cluster.JoinExisting (replica rejoining after restart, or a replica
// whose voter entry a leader already added via AddVoter).
func runManager(cmd *cobra.Command, bootstrap bool) error {
	nodeID, _ := cmd.Flags().GetString("node-id")
	bindAddr, _ := cmd.Flags().GetString("bind-addr")
	apiAddr, _ := cmd.Flags().GetString("api-addr")
	healthAddr, _ := cmd.Flags().GetString("health-addr")
	dataDir, _ := cmd.Flags().GetString("data-dir")
	redisAddr, _ := cmd.Flags().GetString("redis-addr")
	redisPassword, _ := cmd.Flags().GetString("redis-password")

	fmt.Printf("Starting fleetd manager %s\n", nodeID)

	store, err := storage.NewBoltStore(dataDir)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	clusterKey := security.DeriveKeyFromClusterID(nodeID)
	if err := security.SetClusterEncryptionKey(clusterKey); err != nil {
		return fmt.Errorf("set cluster encryption key: %w", err)
	}
	ca, err := ensureCertificate(store, nodeID, bindAddr)
	if err != nil {
		return fmt.Errorf("ensure certificate: %w", err)
	}
	tokens := security.NewTokenManager()

	cluster, err := control.New(&control.Config{NodeID: nodeID, BindAddr: bindAddr, DataDir: dataDir}, store)
	if err != nil {
		return fmt.Errorf("create cluster: %w", err)
	}
	if bootstrap {
		if err := cluster.Bootstrap(); err != nil {
			return fmt.Errorf("bootstrap cluster: %w", err)
		}
		fmt.Println("✓ Cluster bootstrapped")
	} else {
		if err := cluster.JoinExisting(); err != nil {
			return fmt.Errorf("join cluster: %w", err)
		}
		fmt.Println("✓ Joined existing cluster")
	}

	broker := broadcast.NewBroker()
	broker.Start()
	defer broker.Stop()

	coord := coordination.New(redisAddr, redisPassword, 0)
	topo := topology.New(store)
	allocator, err := overlay.NewAllocator(dataDir, 1, 16777215)
	if err != nil {
		return fmt.Errorf("create VNI allocator: %w", err)
	}

	resolve := func(hostID string) (*agentclient.Client, error) {
		host, err := store.GetHost(hostID)
		if err != nil {
			return nil, fmt.Errorf("resolve host %s: %w", hostID, err)
		}
		return agentclient.New(fmt.Sprintf("https://%s", host.Address), os.Getenv("FLEETD_AGENT_TOKEN")), nil
	}

	lo := linkorch.New(store, topo, allocator, coord, resolve, clock.Real{})
	imgsync := imagesync.New(store, clock.Real{}, resolve, broker, imagesync.DefaultConfig())
	engine := nlm.New(store, clock.Real{}, coord, resolve, topo, lo, imgsync, broker, nlm.DefaultConfig())
	runner := jobrunner.New(store, clock.Real{}, engine, broker, jobrunner.DefaultConfig())
	recon := reconciler.New(store, clock.Real{}, coord, resolve, topo, lo, broker, reconciler.DefaultConfig())
	enforcer := enforcement.New(store, clock.Real{}, coord, resolve, broker, enforcement.DefaultConfig())
	jobmon := jobhealth.New(store, clock.Real{}, coord, resolve, broker, runner, jobhealth.DefaultConfig())

	runner.Start()
	defer runner.Stop()
	recon.Start()
	defer recon.Stop()
	enforcer.Start()
	defer enforcer.Stop()
	jobmon.Start()
	defer jobmon.Stop()
	fmt.Println("✓ Convergence loops started (jobrunner, reconciler, enforcement, job-health)")

	healthSrv := api.NewHealthServer(cluster)
	go func() {
		if err := healthSrv.Start(healthAddr); err != nil {
			log.Logger.Error().Err(err).Msg("health server stopped")
		}
	}()
	fmt.Printf("✓ Health/metrics endpoint: http://%s/health\n", healthAddr)

	apiSrv, err := api.NewServer(cluster, runner, broker, coord, ca, tokens)
	if err != nil {
		return fmt.Errorf("create API server: %w", err)
	}
	errCh := make(chan error, 1)
	go func() {
		if err := apiSrv.Serve(apiAddr); err != nil {
			errCh <- fmt.Errorf("API server error: %w", err)
		}
	}()
	fmt.Printf("✓ Management gRPC API listening on %s\n", apiAddr)
	fmt.Println("\nManager is running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		fmt.Println("\nShutting down...")
	case err := <-errCh:
		fmt.Println(err)
	}

	apiSrv.Stop()
	return cluster.Shutdown()
}

// ensureCertificate initializes (or loads) the cluster CA and issues this
// replica's manager certificate the first time it starts, mirroring the
// teacher's Manager.initializeCA. The CA is returned so the API server can
// use it to service RequestCertificate for CLI bootstrap.
func ensureCertificate(store storage.Store, nodeID, bindAddr string) (*security.CertAuthority, error) {
	ca := security.NewCertAuthority(store)
	if !ca.IsInitialized() {
		if err := ca.LoadFromStore(); err != nil {
			fmt.Println("Initializing new Certificate Authority...")
			if err := ca.Initialize(); err != nil {
				return nil, fmt.Errorf("initialize CA: %w", err)
			}
			if err := ca.SaveToStore(); err != nil {
				return nil, fmt.Errorf("save CA: %w", err)
			}
			fmt.Println("✓ Certificate Authority initialized")
		} else {
			fmt.Println("✓ Loaded existing Certificate Authority")
		}
	}

	certDir, err := security.GetCertDir("manager", nodeID)
	if err != nil {
		return nil, fmt.Errorf("get cert directory: %w", err)
	}
	if security.CertExists(certDir) {
		existing, err := security.LoadCertFromFile(certDir)
		if err != nil {
			return nil, fmt.Errorf("load existing certificate: %w", err)
		}
		if !security.CertNeedsRotation(existing.Leaf) {
			return ca, nil
		}
		fmt.Printf("Certificate for manager %s expires %s, rotating...\n",
			nodeID, security.GetCertExpiry(existing.Leaf).Format(time.RFC3339))
	}

	host, _, err := net.SplitHostPort(bindAddr)
	if err != nil {
		return nil, fmt.Errorf("parse bind address: %w", err)
	}
	var ipAddresses []net.IP
	if ip := net.ParseIP(host); ip != nil {
		ipAddresses = []net.IP{ip}
	}
	dnsNames := []string{fmt.Sprintf("manager-%s", nodeID), "localhost"}

	cert, err := ca.IssueNodeCertificate(nodeID, "manager", dnsNames, ipAddresses)
	if err != nil {
		return nil, fmt.Errorf("issue node certificate: %w", err)
	}
	if err := security.SaveCertToFile(cert, certDir); err != nil {
		return nil, fmt.Errorf("save certificate: %w", err)
	}
	if err := security.SaveCACertToFile(ca.GetRootCACert(), certDir); err != nil {
		return nil, fmt.Errorf("save CA certificate: %w", err)
	}
	fmt.Printf("✓ Certificate issued for manager %s\n", nodeID)
	return ca, nil
}
