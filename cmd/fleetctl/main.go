// Command fleetctl is the operator CLI for fleetd: lab and node lifecycle,
// job inspection, host listing, and a live event tail, all issued over the
// mTLS-secured fleet.v1.FleetAPI gRPC service.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	fleetv1 "github.com/cuemby/fleetd/api/proto"
	"github.com/cuemby/fleetd/pkg/fleetctl"
	"github.com/cuemby/fleetd/pkg/security"
	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "fleetctl",
	Short: "fleetctl - operate fleetd labs, nodes, and jobs",
}

func init() {
	rootCmd.PersistentFlags().String("manager", "127.0.0.1:9443", "fleetd manager gRPC address")

	labCmd.AddCommand(labCreateCmd, labGetCmd, labListCmd, labDeleteCmd, labDeployCmd, labDestroyCmd)
	nodeCmd.AddCommand(nodeStartCmd, nodeStopCmd)
	jobCmd.AddCommand(jobGetCmd, jobListCmd, jobCancelCmd)
	hostCmd.AddCommand(hostListCmd)
	clusterCmd.AddCommand(clusterGenerateTokenCmd, clusterRequestCertCmd)
	certCmd.AddCommand(certInfoCmd)

	rootCmd.AddCommand(labCmd, nodeCmd, jobCmd, hostCmd, eventsCmd, clusterCmd, certCmd)
}

func connect(cmd *cobra.Command) (*fleetctl.Client, error) {
	addr, _ := cmd.Flags().GetString("manager")
	return fleetctl.New(addr)
}

var labCmd = &cobra.Command{Use: "lab", Short: "Manage labs"}

var labCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a lab",
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, _ := cmd.Flags().GetString("owner")
		provider, _ := cmd.Flags().GetString("provider")
		defaultAgent, _ := cmd.Flags().GetString("default-agent")

		c, err := connect(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		lab, err := c.CreateLab(context.Background(), owner, provider, defaultAgent)
		if err != nil {
			return err
		}
		fmt.Printf("Created lab %s (owner=%s provider=%s)\n", lab.Id, lab.Owner, lab.Provider)
		return nil
	},
}

var labGetCmd = &cobra.Command{
	Use:   "get <lab-id>",
	Short: "Show a lab",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := connect(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		lab, err := c.GetLab(context.Background(), args[0])
		if err != nil {
			return err
		}
		printLab(lab)
		return nil
	},
}

var labListCmd = &cobra.Command{
	Use:   "list",
	Short: "List labs",
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, _ := cmd.Flags().GetString("owner")

		c, err := connect(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		labs, err := c.ListLabs(context.Background(), owner)
		if err != nil {
			return err
		}
		for _, lab := range labs {
			printLab(lab)
		}
		return nil
	},
}

var labDeleteCmd = &cobra.Command{
	Use:   "delete <lab-id>",
	Short: "Delete a lab",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := connect(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		if err := c.DeleteLab(context.Background(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted lab %s\n", args[0])
		return nil
	},
}

var labDeployCmd = &cobra.Command{
	Use:   "deploy <lab-id>",
	Short: "Deploy every node in a lab",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hostFilter, _ := cmd.Flags().GetString("host")

		c, err := connect(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		job, err := c.DeployLab(context.Background(), args[0], hostFilter)
		if err != nil {
			return err
		}
		printJob(job)
		return nil
	},
}

var labDestroyCmd = &cobra.Command{
	Use:   "destroy <lab-id>",
	Short: "Destroy every node in a lab",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hostFilter, _ := cmd.Flags().GetString("host")

		c, err := connect(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		job, err := c.DestroyLab(context.Background(), args[0], hostFilter)
		if err != nil {
			return err
		}
		printJob(job)
		return nil
	},
}

var nodeCmd = &cobra.Command{Use: "node", Short: "Manage nodes within a lab"}

var nodeStartCmd = &cobra.Command{
	Use:   "start <lab-id> <node-id>",
	Short: "Start one node",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := connect(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		job, err := c.StartNode(context.Background(), args[0], args[1])
		if err != nil {
			return err
		}
		printJob(job)
		return nil
	},
}

var nodeStopCmd = &cobra.Command{
	Use:   "stop <lab-id> <node-id>",
	Short: "Stop one node",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := connect(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		job, err := c.StopNode(context.Background(), args[0], args[1])
		if err != nil {
			return err
		}
		printJob(job)
		return nil
	},
}

var jobCmd = &cobra.Command{Use: "job", Short: "Inspect jobs"}

var jobGetCmd = &cobra.Command{
	Use:   "get <job-id>",
	Short: "Show a job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := connect(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		job, err := c.GetJob(context.Background(), args[0])
		if err != nil {
			return err
		}
		printJob(job)
		return nil
	},
}

var jobListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		labID, _ := cmd.Flags().GetString("lab")

		c, err := connect(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		jobs, err := c.ListJobs(context.Background(), labID)
		if err != nil {
			return err
		}
		for _, j := range jobs {
			printJob(j)
		}
		return nil
	},
}

var jobCancelCmd = &cobra.Command{
	Use:   "cancel <job-id>",
	Short: "Cancel a job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := connect(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		job, err := c.CancelJob(context.Background(), args[0])
		if err != nil {
			return err
		}
		printJob(job)
		return nil
	},
}

var hostCmd = &cobra.Command{Use: "host", Short: "Inspect hosts"}

var hostListCmd = &cobra.Command{
	Use:   "list",
	Short: "List hosts",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := connect(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		hosts, err := c.ListHosts(context.Background())
		if err != nil {
			return err
		}
		for _, h := range hosts {
			fmt.Printf("%s\t%s\t%s\t%s\n", h.Id, h.Name, h.Address, h.Status)
		}
		return nil
	},
}

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Tail the cluster event stream",
	RunE: func(cmd *cobra.Command, args []string) error {
		labID, _ := cmd.Flags().GetString("lab")

		c, err := connect(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		return c.WatchEvents(context.Background(), labID, func(e *fleetv1.Event) {
			fmt.Printf("[%s] %s lab=%s entity=%s %s\n", e.Type, e.Message, e.LabId, e.EntityId, fmt.Sprint(e.TimestampUnix))
		})
	},
}

var clusterCmd = &cobra.Command{Use: "cluster", Short: "Bootstrap CLI access to a manager"}

var clusterGenerateTokenCmd = &cobra.Command{
	Use:   "generate-token",
	Short: "Mint a join token for another operator's CLI certificate (requires an existing CLI certificate)",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := connect(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		resp, err := c.GenerateJoinToken(context.Background(), "cli")
		if err != nil {
			return err
		}
		fmt.Printf("token=%s role=%s expires=%s\n", resp.Token, resp.Role,
			time.Unix(resp.ExpiresAtUnix, 0).Format(time.RFC3339))
		return nil
	},
}

var clusterRequestCertCmd = &cobra.Command{
	Use:   "request-cert <token>",
	Short: "Exchange a join token for a CLI certificate, saved under ~/.fleetd/certs",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("manager")

		c, err := fleetctl.NewBootstrap(addr)
		if err != nil {
			return err
		}
		defer c.Close()

		resp, err := c.RequestCertificate(context.Background(), args[0], "")
		if err != nil {
			return err
		}
		if err := fleetctl.SaveCertificate(resp); err != nil {
			return err
		}
		fmt.Println("✓ CLI certificate issued and saved")
		return nil
	},
}

var certCmd = &cobra.Command{Use: "cert", Short: "Inspect the local CLI certificate"}

var certInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show the local CLI certificate's subject, issuer, and validity window",
	RunE: func(cmd *cobra.Command, args []string) error {
		certDir, err := security.GetCertDir("cli", "")
		if err != nil {
			return err
		}
		cert, err := security.LoadCertFromFile(certDir)
		if err != nil {
			return err
		}
		for k, v := range security.GetCertInfo(cert.Leaf) {
			fmt.Printf("%s: %v\n", k, v)
		}
		return nil
	},
}

func printLab(lab *fleetv1.Lab) {
	fmt.Printf("%s\towner=%s\tprovider=%s\tstate=%s\n", lab.Id, lab.Owner, lab.Provider, lab.State)
}

func printJob(job *fleetv1.Job) {
	fmt.Printf("%s\taction=%s\tstatus=%s\tretries=%d\n", job.Id, job.Action, job.Status, job.RetryCount)
}

func init() {
	labCreateCmd.Flags().String("owner", "", "lab owner")
	labCreateCmd.Flags().String("provider", "clab", "topology provider")
	labCreateCmd.Flags().String("default-agent", "", "default host ID for nodes with no explicit placement")
	labListCmd.Flags().String("owner", "", "filter by owner")
	labDeployCmd.Flags().String("host", "", "restrict to one host")
	labDestroyCmd.Flags().String("host", "", "restrict to one host")
	jobListCmd.Flags().String("lab", "", "filter by lab")
	eventsCmd.Flags().String("lab", "", "filter by lab")
}
