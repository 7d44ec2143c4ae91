// Package api is fleetd's management-plane gRPC boundary: lab CRUD, job
// status/cancel, host registration/heartbeat, and an event stream. It wraps
// pkg/control.Cluster (the Raft-backed state machine) and pkg/jobrunner (the
// worker pool that actually executes jobs) behind the fleet.v1.FleetAPI
// service defined in api/proto.
//
// Same mTLS-via-pkg/security setup and ensureLeader write-path guard
// idiom as any Raft-backed gRPC API, re-scoped to lab/node/job CRUD.
package api

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"strings"
	"time"

	fleetv1 "github.com/cuemby/fleetd/api/proto"
	"github.com/cuemby/fleetd/pkg/broadcast"
	"github.com/cuemby/fleetd/pkg/clock"
	"github.com/cuemby/fleetd/pkg/control"
	"github.com/cuemby/fleetd/pkg/coordination"
	"github.com/cuemby/fleetd/pkg/jobrunner"
	"github.com/cuemby/fleetd/pkg/log"
	"github.com/cuemby/fleetd/pkg/security"
	"github.com/cuemby/fleetd/pkg/types"
	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/status"
)

// Server implements fleetv1.FleetAPIServer on top of a Cluster.
type Server struct {
	fleetv1.UnimplementedFleetAPIServer

	cluster *control.Cluster
	jobs    *jobrunner.Runner
	broker  *broadcast.Broker
	coord   *coordination.Store
	ca      *security.CertAuthority
	tokens  *security.TokenManager
	clock   clock.Clock

	grpc *grpc.Server
}

// NewServer creates a management-plane API server secured with the
// replica's mTLS certificate, loaded from the directory security.GetCertDir
// allocates for role "manager". ca and tokens back the GenerateJoinToken/
// RequestCertificate bootstrap RPCs used to issue CLI client certificates.
func NewServer(cluster *control.Cluster, jobs *jobrunner.Runner, broker *broadcast.Broker, coord *coordination.Store, ca *security.CertAuthority, tokens *security.TokenManager) (*Server, error) {
	certDir, err := security.GetCertDir("manager", cluster.NodeID())
	if err != nil {
		return nil, fmt.Errorf("get cert directory: %w", err)
	}
	if !security.CertExists(certDir) {
		return nil, fmt.Errorf("manager certificate not found at %s - ensure the cluster is initialized", certDir)
	}
	cert, err := security.LoadCertFromFile(certDir)
	if err != nil {
		return nil, fmt.Errorf("load manager certificate: %w", err)
	}
	caCert, err := security.LoadCACertFromFile(certDir)
	if err != nil {
		return nil, fmt.Errorf("load CA certificate: %w", err)
	}
	certPool := x509.NewCertPool()
	certPool.AddCert(caCert)

	tlsConfig := &tls.Config{
		ClientAuth:   tls.RequestClientCert, // a client cert is requested, not required or verified, on every RPC
		Certificates: []tls.Certificate{*cert},
		ClientCAs:    certPool,
		MinVersion:   tls.VersionTLS13,
	}
	grpcServer := grpc.NewServer(grpc.Creds(credentials.NewTLS(tlsConfig)))

	s := &Server{
		cluster: cluster,
		jobs:    jobs,
		broker:  broker,
		coord:   coord,
		ca:      ca,
		tokens:  tokens,
		clock:   clock.Real{},
		grpc:    grpcServer,
	}
	fleetv1.RegisterFleetAPIServer(grpcServer, s)
	return s, nil
}

// Serve starts accepting connections on addr. Blocks until the listener or
// gRPC server errors.
func (s *Server) Serve(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return s.grpc.Serve(lis)
}

// Stop gracefully drains in-flight RPCs.
func (s *Server) Stop() { s.grpc.GracefulStop() }

func (s *Server) ensureLeader() error {
	if !s.cluster.IsLeader() {
		addr := s.cluster.LeaderAddr()
		if addr == "" {
			return status.Error(codes.FailedPrecondition, "no leader elected yet")
		}
		return status.Errorf(codes.FailedPrecondition, "not the leader, current leader is at %s", addr)
	}
	return nil
}

func (s *Server) CreateLab(ctx context.Context, req *fleetv1.CreateLabRequest) (*fleetv1.CreateLabResponse, error) {
	if err := s.ensureLeader(); err != nil {
		return nil, err
	}
	lab := &types.Lab{
		ID:           uuid.New().String(),
		Owner:        req.Owner,
		Provider:     types.Provider(req.Provider),
		State:        types.LabStateUndeployed,
		DefaultAgent: req.DefaultAgent,
		CreatedAt:    s.clock.Now(),
		StateSince:   s.clock.Now(),
	}
	if err := s.cluster.CreateLab(lab); err != nil {
		return nil, status.Errorf(codes.Internal, "create lab: %v", err)
	}
	return &fleetv1.CreateLabResponse{Lab: labToProto(lab)}, nil
}

func (s *Server) GetLab(ctx context.Context, req *fleetv1.GetLabRequest) (*fleetv1.GetLabResponse, error) {
	lab, err := s.cluster.GetLab(req.Id)
	if err != nil {
		return nil, status.Errorf(codes.NotFound, "lab not found: %v", err)
	}
	return &fleetv1.GetLabResponse{Lab: labToProto(lab)}, nil
}

func (s *Server) ListLabs(ctx context.Context, req *fleetv1.ListLabsRequest) (*fleetv1.ListLabsResponse, error) {
	labs, err := s.cluster.ListLabs()
	if err != nil {
		return nil, status.Errorf(codes.Internal, "list labs: %v", err)
	}
	out := make([]*fleetv1.Lab, 0, len(labs))
	for _, l := range labs {
		if req.OwnerFilter != "" && l.Owner != req.OwnerFilter {
			continue
		}
		out = append(out, labToProto(l))
	}
	return &fleetv1.ListLabsResponse{Labs: out}, nil
}

func (s *Server) DeleteLab(ctx context.Context, req *fleetv1.DeleteLabRequest) (*fleetv1.DeleteLabResponse, error) {
	if err := s.ensureLeader(); err != nil {
		return nil, err
	}
	if err := s.cluster.DeleteLab(req.Id); err != nil {
		return nil, status.Errorf(codes.Internal, "delete lab: %v", err)
	}
	return &fleetv1.DeleteLabResponse{}, nil
}

// DeployLab queues a "deploy" job for the lab (optionally scoped to one
// host) and asks pkg/jobrunner to pick it up immediately.
func (s *Server) DeployLab(ctx context.Context, req *fleetv1.DeployLabRequest) (*fleetv1.DeployLabResponse, error) {
	job, err := s.queueLabJob(req.LabId, "deploy", req.HostFilter)
	if err != nil {
		return nil, err
	}
	return &fleetv1.DeployLabResponse{Job: jobToProto(job)}, nil
}

// DestroyLab queues a "destroy" job for the lab.
func (s *Server) DestroyLab(ctx context.Context, req *fleetv1.DestroyLabRequest) (*fleetv1.DestroyLabResponse, error) {
	job, err := s.queueLabJob(req.LabId, "destroy", req.HostFilter)
	if err != nil {
		return nil, err
	}
	return &fleetv1.DestroyLabResponse{Job: jobToProto(job)}, nil
}

// queueLabJob creates a Job for labID with the given action verb (optionally
// scoped to a single host via the Action-string "verb:host" convention) and
// hands it to the runner for immediate dispatch.
func (s *Server) queueLabJob(labID, verb, hostFilter string) (*types.Job, error) {
	if err := s.ensureLeader(); err != nil {
		return nil, err
	}
	action := verb
	if hostFilter != "" {
		action = fmt.Sprintf("%s:%s", verb, hostFilter)
	}
	job := &types.Job{
		ID:        uuid.New().String(),
		LabID:     labID,
		Action:    action,
		Status:    types.JobQueued,
		CreatedAt: s.clock.Now(),
	}
	if err := s.cluster.CreateJob(job); err != nil {
		return nil, status.Errorf(codes.Internal, "create job: %v", err)
	}
	s.clearCooldownForJob(labID, verb)
	s.jobs.Submit(action)
	return job, nil
}

// clearCooldownForJob drops the enforcement cooldown for every node this
// explicit operation touches, so a node backed off after exhausting its
// retry budget starts enforcing again immediately on Deploy/Destroy/
// Start/Stop rather than waiting out the rest of the cooldown TTL.
// "deploy"/"destroy" (the lab-wide verbs) clear every node in the lab;
// "start:<id>"/"stop:<id>" clear just that node, mirroring the same
// Action-string convention pkg/jobrunner.resolveNodeIDs parses.
func (s *Server) clearCooldownForJob(labID, verb string) {
	if s.coord == nil {
		return
	}
	ctx := context.Background()

	if nodeID, ok := strings.CutPrefix(verb, "start:"); ok {
		s.clearCooldown(ctx, labID, nodeID)
		return
	}
	if nodeID, ok := strings.CutPrefix(verb, "stop:"); ok {
		s.clearCooldown(ctx, labID, nodeID)
		return
	}

	nodes, err := s.cluster.ListNodesByLab(labID)
	if err != nil {
		return
	}
	for _, n := range nodes {
		s.clearCooldown(ctx, labID, n.ID)
	}
}

func (s *Server) clearCooldown(ctx context.Context, labID, nodeID string) {
	if err := s.coord.ClearEnforcementCooldown(ctx, labID, nodeID); err != nil {
		log.Warn(fmt.Sprintf("failed to clear enforcement cooldown for lab=%s node=%s: %v", labID, nodeID, err))
	}
}

func (s *Server) StartNode(ctx context.Context, req *fleetv1.StartNodeRequest) (*fleetv1.StartNodeResponse, error) {
	job, err := s.queueLabJob(req.LabId, "start:"+req.NodeId, "")
	if err != nil {
		return nil, err
	}
	return &fleetv1.StartNodeResponse{Job: jobToProto(job)}, nil
}

func (s *Server) StopNode(ctx context.Context, req *fleetv1.StopNodeRequest) (*fleetv1.StopNodeResponse, error) {
	job, err := s.queueLabJob(req.LabId, "stop:"+req.NodeId, "")
	if err != nil {
		return nil, err
	}
	return &fleetv1.StopNodeResponse{Job: jobToProto(job)}, nil
}

func (s *Server) GetJob(ctx context.Context, req *fleetv1.GetJobRequest) (*fleetv1.GetJobResponse, error) {
	job, err := s.cluster.GetJob(req.Id)
	if err != nil {
		return nil, status.Errorf(codes.NotFound, "job not found: %v", err)
	}
	return &fleetv1.GetJobResponse{Job: jobToProto(job)}, nil
}

func (s *Server) ListJobs(ctx context.Context, req *fleetv1.ListJobsRequest) (*fleetv1.ListJobsResponse, error) {
	jobs, err := s.cluster.ListActiveJobs()
	if err != nil {
		return nil, status.Errorf(codes.Internal, "list jobs: %v", err)
	}
	out := make([]*fleetv1.Job, 0, len(jobs))
	for _, j := range jobs {
		if req.LabId != "" && j.LabID != req.LabId {
			continue
		}
		out = append(out, jobToProto(j))
	}
	return &fleetv1.ListJobsResponse{Jobs: out}, nil
}

func (s *Server) CancelJob(ctx context.Context, req *fleetv1.CancelJobRequest) (*fleetv1.CancelJobResponse, error) {
	if err := s.ensureLeader(); err != nil {
		return nil, err
	}
	job, err := s.cluster.GetJob(req.Id)
	if err != nil {
		return nil, status.Errorf(codes.NotFound, "job not found: %v", err)
	}
	if job.Status.Terminal() {
		return &fleetv1.CancelJobResponse{Job: jobToProto(job)}, nil
	}
	job.Status = types.JobCancelled
	job.FinishedAt = s.clock.Now()
	if err := s.cluster.UpdateJob(job); err != nil {
		return nil, status.Errorf(codes.Internal, "cancel job: %v", err)
	}
	return &fleetv1.CancelJobResponse{Job: jobToProto(job)}, nil
}

func (s *Server) RegisterHost(ctx context.Context, req *fleetv1.RegisterHostRequest) (*fleetv1.RegisterHostResponse, error) {
	if err := s.ensureLeader(); err != nil {
		return nil, err
	}
	host := &types.Host{
		ID:            uuid.New().String(),
		Name:          req.Name,
		Address:       req.Address,
		Status:        types.HostStatusOnline,
		Version:       req.Version,
		LastHeartbeat: s.clock.Now(),
		CreatedAt:     s.clock.Now(),
	}
	if err := s.cluster.CreateHost(host); err != nil {
		return nil, status.Errorf(codes.Internal, "register host: %v", err)
	}
	return &fleetv1.RegisterHostResponse{Host: hostToProto(host)}, nil
}

func (s *Server) Heartbeat(ctx context.Context, req *fleetv1.HeartbeatRequest) (*fleetv1.HeartbeatResponse, error) {
	host, err := s.cluster.GetHost(req.HostId)
	if err != nil {
		return nil, status.Errorf(codes.NotFound, "host not found: %v", err)
	}
	host.Status = types.HostStatusOnline
	host.LastHeartbeat = s.clock.Now()
	host.Resources = &types.HostResources{
		MemoryTotalBytes: req.MemoryTotalBytes,
		MemoryUsedBytes:  req.MemoryUsedBytes,
		CPUCount:         int(req.CpuCount),
		CPUPercent:       req.CpuPercent,
	}
	if err := s.cluster.UpdateHost(host); err != nil {
		return nil, status.Errorf(codes.Internal, "update host: %v", err)
	}
	return &fleetv1.HeartbeatResponse{Status: "ok"}, nil
}

func (s *Server) ListHosts(ctx context.Context, req *fleetv1.ListHostsRequest) (*fleetv1.ListHostsResponse, error) {
	hosts, err := s.cluster.ListHosts()
	if err != nil {
		return nil, status.Errorf(codes.Internal, "list hosts: %v", err)
	}
	out := make([]*fleetv1.Host, len(hosts))
	for i, h := range hosts {
		out[i] = hostToProto(h)
	}
	return &fleetv1.ListHostsResponse{Hosts: out}, nil
}

// GenerateJoinToken mints a short-lived "cli" join token so an operator can
// bootstrap a CLI certificate via RequestCertificate without one already.
// Leader-only: minting is a write against in-memory state the leader alone
// should own, matching every other write RPC's ensureLeader guard.
func (s *Server) GenerateJoinToken(ctx context.Context, req *fleetv1.GenerateJoinTokenRequest) (*fleetv1.GenerateJoinTokenResponse, error) {
	if err := s.ensureLeader(); err != nil {
		return nil, err
	}
	if s.tokens == nil {
		return nil, status.Error(codes.Unavailable, "join tokens not configured")
	}
	role := req.Role
	if role == "" {
		role = "cli"
	}
	jt, err := s.tokens.GenerateToken(role, 24*time.Hour)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "generate join token: %v", err)
	}
	return &fleetv1.GenerateJoinTokenResponse{
		Token:         jt.Token,
		Role:          jt.Role,
		ExpiresAtUnix: jt.ExpiresAt.Unix(),
	}, nil
}

// RequestCertificate exchanges a valid join token for a signed client
// certificate. The gRPC server's mTLS config (RequestClientCert rather than
// RequireAndVerifyClientCert) lets this RPC, like every RPC on this server,
// be called without a client certificate — the token is what's verified here.
// The token is revoked on successful issuance, one certificate per token.
func (s *Server) RequestCertificate(ctx context.Context, req *fleetv1.RequestCertificateRequest) (*fleetv1.RequestCertificateResponse, error) {
	if s.ca == nil || s.tokens == nil {
		return nil, status.Error(codes.Unavailable, "certificate issuance not configured")
	}
	role, err := s.tokens.ValidateToken(req.Token)
	if err != nil {
		return nil, status.Errorf(codes.PermissionDenied, "%v", err)
	}
	clientID := req.ClientId
	if clientID == "" {
		clientID = uuid.New().String()
	}
	cert, err := s.ca.IssueClientCertificate(fmt.Sprintf("%s-%s", role, clientID))
	if err != nil {
		return nil, status.Errorf(codes.Internal, "issue certificate: %v", err)
	}
	certPEM, keyPEM, err := security.CertToPEM(cert)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode certificate: %v", err)
	}
	s.tokens.RevokeToken(req.Token)
	return &fleetv1.RequestCertificateResponse{
		CertPem:   certPEM,
		KeyPem:    keyPEM,
		CaCertPem: security.CACertToPEM(s.ca.GetRootCACert()),
	}, nil
}

// StreamEvents relays broadcast.Broker events (optionally filtered by lab)
// to the client until the stream's context is cancelled.
func (s *Server) StreamEvents(req *fleetv1.StreamEventsRequest, stream fleetv1.FleetAPI_StreamEventsServer) error {
	if s.broker == nil {
		return status.Error(codes.Unavailable, "event broker not configured")
	}
	sub := s.broker.Subscribe()
	defer s.broker.Unsubscribe(sub)

	for {
		select {
		case <-stream.Context().Done():
			return stream.Context().Err()
		case evt, ok := <-sub:
			if !ok {
				return nil
			}
			if req.LabId != "" && evt.LabID != req.LabId {
				continue
			}
			if err := stream.Send(eventToProto(evt)); err != nil {
				return err
			}
		}
	}
}

func labToProto(l *types.Lab) *fleetv1.Lab {
	return &fleetv1.Lab{
		Id:           l.ID,
		Owner:        l.Owner,
		Provider:     string(l.Provider),
		State:        string(l.State),
		DefaultAgent: l.DefaultAgent,
		StateError:   l.StateError,
	}
}

func jobToProto(j *types.Job) *fleetv1.Job {
	return &fleetv1.Job{
		Id:          j.ID,
		LabId:       j.LabID,
		UserId:      j.UserID,
		Action:      j.Action,
		Status:      string(j.Status),
		RetryCount:  int32(j.RetryCount),
		ParentJobId: j.ParentJobID,
		LogPath:     j.LogPath,
	}
}

func hostToProto(h *types.Host) *fleetv1.Host {
	return &fleetv1.Host{
		Id:      h.ID,
		Name:    h.Name,
		Address: h.Address,
		Status:  string(h.Status),
		Version: h.Version,
	}
}

func eventToProto(e *broadcast.Event) *fleetv1.Event {
	return &fleetv1.Event{
		Type:          string(e.Type),
		TimestampUnix: e.Timestamp.Unix(),
		LabId:         e.LabID,
		EntityId:      e.EntityID,
		Message:       e.Message,
	}
}
