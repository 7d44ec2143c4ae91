/*
Package security provides cryptographic services for fleetd clusters.

This package implements two core security capabilities: a Certificate
Authority (CA) that issues TLS certificates for the manager's gRPC API and
its CLI clients, and a generic AES-256-GCM encryption primitive used to keep
the CA's root private key encrypted at rest. Together these provide secure
authentication for all control-plane communication and protect the one
long-lived secret the cluster actually holds: the CA root key.

# Architecture

	┌─────────────────────────────────────────────────────────┐
	│                 Security Architecture                   │
	└─────┬─────────────────────────────────┬─────────────────┘
	      │                                 │
	      ▼                                 ▼
	┌──────────────┐                ┌──────────────────┐
	│      CA      │                │   Certificate     │
	│ (Root only)  │                │   Management      │
	└──────┬───────┘                └────────┬──────────┘
	       │                                 │
	       ▼                                 ▼
	 RSA 4096-bit root               90-day rotation
	 10-year validity                Manual re-issue

## Cluster Encryption Key

All at-rest encryption is rooted in the cluster encryption key, a 32-byte
key derived from the cluster ID during bootstrap:

	clusterKey = SHA-256(clusterID)  // 32 bytes for AES-256

This key encrypts the CA root private key before it is written to storage.
It is held only in memory on manager replicas and must be supplied again
when a replica rejoins the cluster or restores from backup.

# Certificate Authority

## Root CA

The CA uses a hierarchical structure with a long-lived, self-signed root:

	Root CA (self-signed)
	├── 10-year validity
	├── RSA 4096-bit key (high security, rarely used)
	├── KeyUsage: CertSign, CRLSign
	└── Subject: CN=Fleetd Root CA, O=Fleetd Cluster

The root CA is created once during cluster bootstrap and persisted
encrypted:

	Root Certificate:  stored in BoltDB (plaintext, public)
	Root Private Key:  stored in BoltDB (AES-256-GCM encrypted with the
	                    cluster key)

## Node Certificates

The CA issues certificates for both cluster roles — manager replicas and
agent hosts:

	Node Certificate
	├── 90-day validity
	├── RSA 2048-bit key (faster operations)
	├── KeyUsage: DigitalSignature, KeyEncipherment
	├── ExtKeyUsage: ServerAuth, ClientAuth
	├── Subject: CN={role}-{nodeID}, O=Fleetd Cluster   (role: manager|agent)
	├── DNS Names: [host hostname]
	└── IP Addresses: [host IP]

cmd/fleetd issues a "manager" certificate for its own gRPC listener. Agent
hosts are not issued certificates: the manager reaches them over HTTP with
the shared bearer token that pkg/agentclient sends, so IssueNodeCertificate
accepts the "agent" role but nothing in fleetd calls it with that role.

## Client Certificates

fleetctl also authenticates via a CA-issued client certificate rather than
a password:

	CLI Certificate
	├── 90-day validity
	├── KeyUsage: DigitalSignature, KeyEncipherment
	├── ExtKeyUsage: ClientAuth
	└── Subject: CN=cli-{clientID}, O=Fleetd Cluster

# Usage Examples

## Setting Up the Certificate Authority

	import (
		"github.com/cuemby/fleetd/pkg/security"
		"github.com/cuemby/fleetd/pkg/storage"
	)

	store, err := storage.NewBoltStore("/var/lib/fleetd") // opens fleetd.db in this directory
	if err != nil {
		panic(err)
	}

	clusterKey := security.DeriveKeyFromClusterID(clusterID)
	if err := security.SetClusterEncryptionKey(clusterKey); err != nil {
		panic(err)
	}

	ca := security.NewCertAuthority(store)
	if err := ca.Initialize(); err != nil { // generates the root CA
		panic(err)
	}
	if err := ca.SaveToStore(); err != nil { // persists it encrypted
		panic(err)
	}

## Issuing Host Certificates

	nodeID := "agent-host-7"
	role := "agent"
	dnsNames := []string{"agent7.lab.local", "localhost"}
	ipAddresses := []net.IP{net.ParseIP("10.0.4.7"), net.ParseIP("127.0.0.1")}

	tlsCert, err := ca.IssueNodeCertificate(nodeID, role, dnsNames, ipAddresses)
	if err != nil {
		panic(err)
	}

## Verifying Certificates

	cert, err := x509.ParseCertificate(certDER)
	if err != nil {
		panic(err)
	}
	if err := ca.VerifyCertificate(cert); err != nil {
		// not issued by this CA, or otherwise invalid
		panic(err)
	}

## Certificate Rotation

	if security.CertNeedsRotation(cert) { // < 30 days remaining
		newTLSCert, err := ca.IssueNodeCertificate(nodeID, role, dnsNames, ipAddresses)
		if err != nil {
			panic(err)
		}
		certDir, _ := security.GetCertDir(role, nodeID)
		if err := security.SaveCertToFile(newTLSCert, certDir); err != nil {
			panic(err)
		}
	}

## gRPC TLS Integration

	// Server-side (manager replica)
	creds := credentials.NewTLS(&tls.Config{
		Certificates: []tls.Certificate{managerCert},
		ClientAuth:   tls.RequestClientCert, // requested, not required or verified
		ClientCAs:    certPool, // contains root CA
	})

	// Client-side (fleetctl)
	creds := credentials.NewTLS(&tls.Config{
		Certificates: []tls.Certificate{cliCert},
		RootCAs:      certPool, // contains root CA
	})

# Encryption Primitives

SecretsManager and the package-level Encrypt/Decrypt functions wrap
AES-256-GCM for any at-rest data that needs authenticated encryption. The
CA is the only current caller — SaveToStore/LoadFromStore use the
package-level Encrypt/Decrypt with the cluster encryption key to protect
the root private key:

	Plaintext → AES-256-GCM → nonce || ciphertext || tag
	                ↑
	            32-byte key

Decryption rejects tampered or wrongly-keyed data rather than returning
garbage, since GCM is an authenticated mode.

# Integration Points

## Storage

	Bucket: "ca"
	Key:    "ca"
	Value:  {RootCertDER: [...], RootKeyDER: [...encrypted...]}

## Certificate Caching

The CA records issued certificates in memory (certCache, keyed by node or
client ID) for lookup with GetCachedCert. Issuing does not consult the
cache: every Issue*Certificate call generates a new key and replaces the
entry.

# Security Considerations

  - Compromise of the cluster encryption key exposes the CA root key.
  - Compromise of the CA root key lets an attacker mint certificates that
    will pass VerifyCertificate.
  - Certificates rotate on a 90-day cycle (root CA: 10 years); rotation
    itself is manual today — callers are expected to check
    CertNeedsRotation and re-issue.

# See Also

  - pkg/storage - encrypted CA storage
  - pkg/control - the replicated control plane that owns the CA lifecycle
  - pkg/agentclient - manager→agent HTTP client (bearer-token auth, no certificates)
*/
package security
