package k8s

import (
	"context"
	"errors"
	"fmt"

	k8serrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/dynamic"

	"github.com/agencia-vs/acreditaciones/internal/k8s/template"
)

var ingressGVR = schema.GroupVersionResource{
	Group:    "networking.k8s.io",
	Version:  "v1",
	Resource: "ingresses",
}

// ErrIngressNotFound is returned when a tenant has no Ingress in the cluster.
var ErrIngressNotFound = errors.New("ingress not found")

// IngressStatus represents the status of a tenant Ingress.
type IngressStatus struct {
	Ready   bool
	Address string
}

// IngressManager manages the Ingress resources that serve tenant custom domains.
type IngressManager interface {
	ApplyTenantIngress(ctx context.Context, slug, domain string) error
	DeleteTenantIngress(ctx context.Context, slug string) error
	GetIngressStatus(ctx context.Context, slug string) (IngressStatus, error)
}

// ManagerOptions holds the cluster-wide settings applied to every tenant Ingress.
type ManagerOptions struct {
	Namespace     string
	IngressClass  string
	ServiceName   string
	ServicePort   int
	ClusterIssuer string
}

// Manager implements IngressManager using the Kubernetes dynamic client.
type Manager struct {
	dynamic dynamic.Interface
	opts    ManagerOptions
}

// NewManager creates an IngressManager from the existing Client.
func (c *Client) NewManager(opts ManagerOptions) *Manager {
	return &Manager{dynamic: c.dynamic, opts: opts}
}

// ApplyTenantIngress creates or updates the Ingress routing domain to the API.
func (m *Manager) ApplyTenantIngress(ctx context.Context, slug, domain string) error {
	obj, err := template.BuildIngress(template.IngressParams{
		Slug:          slug,
		Domain:        domain,
		Namespace:     m.opts.Namespace,
		IngressClass:  m.opts.IngressClass,
		ServiceName:   m.opts.ServiceName,
		ServicePort:   m.opts.ServicePort,
		ClusterIssuer: m.opts.ClusterIssuer,
	})
	if err != nil {
		return err
	}
	return m.apply(ctx, ingressGVR, obj)
}

// DeleteTenantIngress deletes a tenant's Ingress. It does not error if the resource is not found.
func (m *Manager) DeleteTenantIngress(ctx context.Context, slug string) error {
	return m.delete(ctx, ingressGVR, m.opts.Namespace, template.IngressName(slug))
}

// GetIngressStatus reads the load-balancer status of a tenant's Ingress. The
// Ingress is ready once the controller has published an address for it.
func (m *Manager) GetIngressStatus(ctx context.Context, slug string) (IngressStatus, error) {
	name := template.IngressName(slug)
	obj, err := m.dynamic.Resource(ingressGVR).Namespace(m.opts.Namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		if k8serrors.IsNotFound(err) {
			return IngressStatus{}, ErrIngressNotFound
		}
		return IngressStatus{}, fmt.Errorf("getting ingress %s/%s: %w", m.opts.Namespace, name, err)
	}

	entries, _, _ := unstructured.NestedSlice(obj.Object, "status", "loadBalancer", "ingress")
	for _, e := range entries {
		entry, ok := e.(map[string]any)
		if !ok {
			continue
		}
		if ip, _ := entry["ip"].(string); ip != "" {
			return IngressStatus{Ready: true, Address: ip}, nil
		}
		if host, _ := entry["hostname"].(string); host != "" {
			return IngressStatus{Ready: true, Address: host}, nil
		}
	}
	return IngressStatus{}, nil
}

// apply creates a resource; if it already exists, it updates it.
func (m *Manager) apply(ctx context.Context, gvr schema.GroupVersionResource, obj *unstructured.Unstructured) error {
	namespace := obj.GetNamespace()
	name := obj.GetName()

	resource := m.dynamic.Resource(gvr).Namespace(namespace)

	_, err := resource.Create(ctx, obj, metav1.CreateOptions{})
	if err == nil {
		return nil
	}

	if !k8serrors.IsAlreadyExists(err) {
		return fmt.Errorf("creating %s %s/%s: %w", gvr.Resource, namespace, name, err)
	}

	existing, err := resource.Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return fmt.Errorf("getting existing %s %s/%s: %w", gvr.Resource, namespace, name, err)
	}

	obj.SetResourceVersion(existing.GetResourceVersion())
	if status, ok := existing.Object["status"]; ok {
		obj.Object["status"] = status
	}
	_, err = resource.Update(ctx, obj, metav1.UpdateOptions{})
	if err != nil {
		return fmt.Errorf("updating %s %s/%s: %w", gvr.Resource, namespace, name, err)
	}

	return nil
}

// delete removes a resource; it does not error if the resource is not found.
func (m *Manager) delete(ctx context.Context, gvr schema.GroupVersionResource, namespace, name string) error {
	err := m.dynamic.Resource(gvr).Namespace(namespace).Delete(ctx, name, metav1.DeleteOptions{})
	if err != nil && !k8serrors.IsNotFound(err) {
		return fmt.Errorf("deleting %s %s/%s: %w", gvr.Resource, namespace, name, err)
	}
	return nil
}
