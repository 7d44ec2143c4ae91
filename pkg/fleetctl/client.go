// Package fleetctl wraps the fleet.v1.FleetAPI gRPC client with the mTLS
// bootstrap fleetctl needs: a CLI certificate issued by the cluster CA,
// cached under security.GetCertDir("cli", ""). Built on a
// connectWithMTLS/NewClient shape, scoped to the FleetAPI service and its
// lab/job/host surface.
package fleetctl

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"path/filepath"
	"time"

	fleetv1 "github.com/cuemby/fleetd/api/proto"
	"github.com/cuemby/fleetd/pkg/security"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
)

// Client wraps a FleetAPI connection for CLI usage.
type Client struct {
	conn   *grpc.ClientConn
	client fleetv1.FleetAPIClient
}

// New dials addr with mTLS using the CLI certificate at
// security.GetCertDir("cli", ""). The certificate must already exist —
// run "fleetctl cluster request-cert" with a join token first, or copy one
// from the manager's CA directly.
func New(addr string) (*Client, error) {
	certDir, err := security.GetCertDir("cli", "")
	if err != nil {
		return nil, fmt.Errorf("get cert directory: %w", err)
	}
	if !security.CertExists(certDir) {
		return nil, fmt.Errorf("CLI certificate not found at %s - run \"fleetctl cluster request-cert\" first", certDir)
	}

	cert, err := security.LoadCertFromFile(certDir)
	if err != nil {
		return nil, fmt.Errorf("load CLI certificate: %w", err)
	}
	caCert, err := security.LoadCACertFromFile(certDir)
	if err != nil {
		return nil, fmt.Errorf("load CA certificate: %w", err)
	}
	if err := security.ValidateCertChain(cert.Leaf, caCert); err != nil {
		return nil, fmt.Errorf("CLI certificate at %s is no longer valid: %w - request a new one", certDir, err)
	}
	certPool := x509.NewCertPool()
	certPool.AddCert(caCert)

	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{*cert},
		RootCAs:      certPool,
		MinVersion:   tls.VersionTLS13,
	}
	creds := credentials.NewTLS(tlsConfig)

	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("dial manager: %w", err)
	}
	return &Client{conn: conn, client: fleetv1.NewFleetAPIClient(conn)}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error { return c.conn.Close() }

// NewBootstrap dials addr without a client certificate, for the one-time
// RequestCertificate call an operator makes before they have a CLI
// certificate to authenticate with. It trusts the manager's certificate on
// first connect rather than verifying it against a CA the caller doesn't
// have yet — the join token, not transport trust, is what's actually being
// verified server-side.
func NewBootstrap(addr string) (*Client, error) {
	creds := credentials.NewTLS(&tls.Config{InsecureSkipVerify: true})
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("dial manager: %w", err)
	}
	return &Client{conn: conn, client: fleetv1.NewFleetAPIClient(conn)}, nil
}

// GenerateJoinToken mints a "cli" join token. Call it on a Client built with
// New; the server gates minting on leadership only and does not check the
// caller's certificate.
func (c *Client) GenerateJoinToken(ctx context.Context, role string) (*fleetv1.GenerateJoinTokenResponse, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	return c.client.GenerateJoinToken(ctx, &fleetv1.GenerateJoinTokenRequest{Role: role})
}

// RequestCertificate exchanges token for a signed client certificate. Call
// this on a Client built with NewBootstrap, not New.
func (c *Client) RequestCertificate(ctx context.Context, token, clientID string) (*fleetv1.RequestCertificateResponse, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	return c.client.RequestCertificate(ctx, &fleetv1.RequestCertificateRequest{Token: token, ClientId: clientID})
}

// SaveCertificate writes a RequestCertificate response to the same
// directory New and security.GetCertDir("cli", "") expect to find a
// certificate in.
func SaveCertificate(resp *fleetv1.RequestCertificateResponse) error {
	certDir, err := security.GetCertDir("cli", "")
	if err != nil {
		return fmt.Errorf("get CLI cert directory: %w", err)
	}
	if err := os.MkdirAll(certDir, 0700); err != nil {
		return fmt.Errorf("create cert directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(certDir, "node.crt"), resp.CertPem, 0600); err != nil {
		return fmt.Errorf("write certificate: %w", err)
	}
	if err := os.WriteFile(filepath.Join(certDir, "node.key"), resp.KeyPem, 0600); err != nil {
		return fmt.Errorf("write private key: %w", err)
	}
	if err := os.WriteFile(filepath.Join(certDir, "ca.crt"), resp.CaCertPem, 0644); err != nil {
		return fmt.Errorf("write CA certificate: %w", err)
	}
	return nil
}

func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, 10*time.Second)
}

func (c *Client) CreateLab(ctx context.Context, owner, provider, defaultAgent string) (*fleetv1.Lab, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	resp, err := c.client.CreateLab(ctx, &fleetv1.CreateLabRequest{Owner: owner, Provider: provider, DefaultAgent: defaultAgent})
	if err != nil {
		return nil, err
	}
	return resp.Lab, nil
}

func (c *Client) GetLab(ctx context.Context, id string) (*fleetv1.Lab, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	resp, err := c.client.GetLab(ctx, &fleetv1.GetLabRequest{Id: id})
	if err != nil {
		return nil, err
	}
	return resp.Lab, nil
}

func (c *Client) ListLabs(ctx context.Context, owner string) ([]*fleetv1.Lab, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	resp, err := c.client.ListLabs(ctx, &fleetv1.ListLabsRequest{OwnerFilter: owner})
	if err != nil {
		return nil, err
	}
	return resp.Labs, nil
}

func (c *Client) DeleteLab(ctx context.Context, id string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	_, err := c.client.DeleteLab(ctx, &fleetv1.DeleteLabRequest{Id: id})
	return err
}

func (c *Client) DeployLab(ctx context.Context, labID, hostFilter string) (*fleetv1.Job, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	resp, err := c.client.DeployLab(ctx, &fleetv1.DeployLabRequest{LabId: labID, HostFilter: hostFilter})
	if err != nil {
		return nil, err
	}
	return resp.Job, nil
}

func (c *Client) DestroyLab(ctx context.Context, labID, hostFilter string) (*fleetv1.Job, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	resp, err := c.client.DestroyLab(ctx, &fleetv1.DestroyLabRequest{LabId: labID, HostFilter: hostFilter})
	if err != nil {
		return nil, err
	}
	return resp.Job, nil
}

func (c *Client) StartNode(ctx context.Context, labID, nodeID string) (*fleetv1.Job, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	resp, err := c.client.StartNode(ctx, &fleetv1.StartNodeRequest{LabId: labID, NodeId: nodeID})
	if err != nil {
		return nil, err
	}
	return resp.Job, nil
}

func (c *Client) StopNode(ctx context.Context, labID, nodeID string) (*fleetv1.Job, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	resp, err := c.client.StopNode(ctx, &fleetv1.StopNodeRequest{LabId: labID, NodeId: nodeID})
	if err != nil {
		return nil, err
	}
	return resp.Job, nil
}

func (c *Client) GetJob(ctx context.Context, id string) (*fleetv1.Job, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	resp, err := c.client.GetJob(ctx, &fleetv1.GetJobRequest{Id: id})
	if err != nil {
		return nil, err
	}
	return resp.Job, nil
}

func (c *Client) ListJobs(ctx context.Context, labID string) ([]*fleetv1.Job, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	resp, err := c.client.ListJobs(ctx, &fleetv1.ListJobsRequest{LabId: labID})
	if err != nil {
		return nil, err
	}
	return resp.Jobs, nil
}

func (c *Client) CancelJob(ctx context.Context, id string) (*fleetv1.Job, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	resp, err := c.client.CancelJob(ctx, &fleetv1.CancelJobRequest{Id: id})
	if err != nil {
		return nil, err
	}
	return resp.Job, nil
}

func (c *Client) ListHosts(ctx context.Context) ([]*fleetv1.Host, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	resp, err := c.client.ListHosts(ctx, &fleetv1.ListHostsRequest{})
	if err != nil {
		return nil, err
	}
	return resp.Hosts, nil
}

// WatchEvents streams events for labID (all labs if empty) until ctx is
// cancelled, invoking fn for each one received.
func (c *Client) WatchEvents(ctx context.Context, labID string, fn func(*fleetv1.Event)) error {
	stream, err := c.client.StreamEvents(ctx, &fleetv1.StreamEventsRequest{LabId: labID})
	if err != nil {
		return err
	}
	for {
		evt, err := stream.Recv()
		if err != nil {
			return err
		}
		fn(evt)
	}
}
