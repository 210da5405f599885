package k8s

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	dynamicfake "k8s.io/client-go/dynamic/fake"
	clientgotesting "k8s.io/client-go/testing"

	"github.com/agencia-vs/acreditaciones/internal/k8s/template"
)

var testOptions = ManagerOptions{
	Namespace:   "acr",
	ServiceName: "acreditaciones",
	ServicePort: 8080,
}

// newTestManager creates a Manager backed by a fake dynamic client.
func newTestManager(objects ...runtime.Object) (*Manager, *dynamicfake.FakeDynamicClient) {
	scheme := runtime.NewScheme()
	scheme.AddKnownTypeWithName(
		schema.GroupVersionKind{Group: "networking.k8s.io", Version: "v1", Kind: "Ingress"},
		&unstructured.Unstructured{},
	)
	scheme.AddKnownTypeWithName(
		schema.GroupVersionKind{Group: "networking.k8s.io", Version: "v1", Kind: "IngressList"},
		&unstructured.UnstructuredList{},
	)

	fakeClient := dynamicfake.NewSimpleDynamicClient(scheme, objects...)
	return &Manager{dynamic: fakeClient, opts: testOptions}, fakeClient
}

func existingIngress(t *testing.T, slug, domain string, lb ...map[string]any) *unstructured.Unstructured {
	t.Helper()
	obj, err := template.BuildIngress(template.IngressParams{
		Slug:        slug,
		Domain:      domain,
		Namespace:   testOptions.Namespace,
		ServiceName: testOptions.ServiceName,
	})
	require.NoError(t, err)
	if len(lb) > 0 {
		entries := make([]any, 0, len(lb))
		for _, e := range lb {
			entries = append(entries, e)
		}
		obj.Object["status"] = map[string]any{
			"loadBalancer": map[string]any{"ingress": entries},
		}
	}
	return obj
}

func ruleHost(t *testing.T, obj *unstructured.Unstructured) string {
	t.Helper()
	rules, _, err := unstructured.NestedSlice(obj.Object, "spec", "rules")
	require.NoError(t, err)
	require.NotEmpty(t, rules)
	return rules[0].(map[string]any)["host"].(string)
}

// --- ApplyTenantIngress Tests ---

func TestApplyTenantIngress_Create(t *testing.T) {
	mgr, fakeClient := newTestManager()
	ctx := context.Background()

	err := mgr.ApplyTenantIngress(ctx, "club", "acreditaciones.club.cl")
	require.NoError(t, err)

	obj, err := fakeClient.Resource(ingressGVR).Namespace("acr").Get(ctx, "acr-tenant-club", metav1.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, "Ingress", obj.GetKind())
	assert.Equal(t, "acreditaciones.club.cl", ruleHost(t, obj))
}

func TestApplyTenantIngress_UpdateExisting(t *testing.T) {
	ctx := context.Background()
	mgr, fakeClient := newTestManager(existingIngress(t, "club", "old.club.cl", map[string]any{"ip": "10.0.0.1"}))

	err := mgr.ApplyTenantIngress(ctx, "club", "new.club.cl")
	require.NoError(t, err)

	obj, err := fakeClient.Resource(ingressGVR).Namespace("acr").Get(ctx, "acr-tenant-club", metav1.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, "new.club.cl", ruleHost(t, obj))

	status, err := mgr.GetIngressStatus(ctx, "club")
	require.NoError(t, err)
	assert.True(t, status.Ready)
}

func TestApplyTenantIngress_Error(t *testing.T) {
	mgr, fakeClient := newTestManager()

	fakeClient.PrependReactor("create", "ingresses", func(action clientgotesting.Action) (bool, runtime.Object, error) {
		return true, nil, assert.AnError
	})

	err := mgr.ApplyTenantIngress(context.Background(), "club", "club.cl")
	assert.Error(t, err)
}

// --- DeleteTenantIngress Tests ---

func TestDeleteTenantIngress_Success(t *testing.T) {
	ctx := context.Background()
	mgr, fakeClient := newTestManager(existingIngress(t, "club", "club.cl"))

	require.NoError(t, mgr.DeleteTenantIngress(ctx, "club"))

	_, err := fakeClient.Resource(ingressGVR).Namespace("acr").Get(ctx, "acr-tenant-club", metav1.GetOptions{})
	assert.Error(t, err)
}

func TestDeleteTenantIngress_NotFound(t *testing.T) {
	mgr, _ := newTestManager()

	assert.NoError(t, mgr.DeleteTenantIngress(context.Background(), "nonexistent"))
}

func TestDeleteTenantIngress_Error(t *testing.T) {
	mgr, fakeClient := newTestManager()

	fakeClient.PrependReactor("delete", "ingresses", func(action clientgotesting.Action) (bool, runtime.Object, error) {
		return true, nil, assert.AnError
	})

	assert.Error(t, mgr.DeleteTenantIngress(context.Background(), "club"))
}

// --- GetIngressStatus Tests ---

func TestGetIngressStatus(t *testing.T) {
	tests := []struct {
		name    string
		lb      []map[string]any
		ready   bool
		address string
	}{
		{name: "no load balancer yet", ready: false},
		{name: "ip address", lb: []map[string]any{{"ip": "203.0.113.7"}}, ready: true, address: "203.0.113.7"},
		{name: "hostname", lb: []map[string]any{{"hostname": "lb.example.net"}}, ready: true, address: "lb.example.net"},
		{name: "empty entry", lb: []map[string]any{{}}, ready: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mgr, _ := newTestManager(existingIngress(t, "club", "club.cl", tt.lb...))

			status, err := mgr.GetIngressStatus(context.Background(), "club")
			require.NoError(t, err)
			assert.Equal(t, tt.ready, status.Ready)
			assert.Equal(t, tt.address, status.Address)
		})
	}
}

func TestGetIngressStatus_NotFound(t *testing.T) {
	mgr, _ := newTestManager()

	_, err := mgr.GetIngressStatus(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, ErrIngressNotFound)
}

func TestDisabled_CheckConnectivity(t *testing.T) {
	status := Disabled{}.CheckConnectivity(context.Background())
	assert.False(t, status.Connected)
}
