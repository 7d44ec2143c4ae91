/*
Package health provides health check mechanisms for monitoring node
readiness in fleetd clusters.

A node is "running" as soon as its container process starts, but a
network-OS image isn't actually useful until its management plane has
come up. TCPChecker is the probe cmd/fleet-agentd uses to tell the
difference: once a container reports an IP, a TCP/22 dial stands in for
"the device finished booting" (see cmd/fleet-agentd/handlers.go's
checkReady).

# Checker interface

	type Checker interface {
		Check(ctx context.Context) Result
		Type() CheckType
	}

Result is the standardized outcome of a check: Healthy, a human-readable
Message, and timing (CheckedAt, Duration). All checks respect ctx's
deadline.

# Status and hysteresis

Status tracks a check's outcome over time and requires Config.Retries
consecutive failures before flipping Healthy to false, so a single
transient miss doesn't flap a node's state. StartPeriod gives a
slow-booting image a grace window before checks count against it.

# Adding a check type

TCPChecker is the only checker this agent currently runs (network
devices don't expose a generic HTTP surface worth probing, and
exec-into-container checks need containerd exec support this agent
doesn't carry yet). A future checker just implements Checker and returns
its own CheckType.
*/
package health
