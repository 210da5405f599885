// Package k8s publishes tenant custom domains as Ingress resources.
package k8s

import "context"

// HealthChecker reports whether the Kubernetes API server is reachable.
type HealthChecker interface {
	CheckConnectivity(ctx context.Context) ConnectivityStatus
}

// Disabled is the HealthChecker used when the server runs outside a cluster
// and custom domains are not managed.
type Disabled struct{}

// CheckConnectivity always reports the cluster as unreachable.
func (Disabled) CheckConnectivity(context.Context) ConnectivityStatus {
	return ConnectivityStatus{Connected: false}
}
