package template

import (
	"fmt"

	networkingv1 "k8s.io/api/networking/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
)

// Platform defaults for tenant Ingress resources.
const (
	defaultIngressClass  = "nginx"
	defaultClusterIssuer = "letsencrypt-prod"
	defaultServicePort   = 8080
)

// IngressParams configures the Ingress that routes a tenant's custom domain.
type IngressParams struct {
	Slug          string
	Domain        string
	Namespace     string
	IngressClass  string
	ServiceName   string
	ServicePort   int
	ClusterIssuer string
}

// IngressName returns the resource name used for a tenant's Ingress.
func IngressName(slug string) string {
	return fmt.Sprintf("acr-tenant-%s", slug)
}

// BuildIngress creates an unstructured networking.k8s.io/v1 Ingress that sends
// every request for the tenant's domain to the API service. TLS is requested
// from cert-manager through the cluster-issuer annotation.
func BuildIngress(params IngressParams) (*unstructured.Unstructured, error) {
	if params.IngressClass == "" {
		params.IngressClass = defaultIngressClass
	}
	if params.ClusterIssuer == "" {
		params.ClusterIssuer = defaultClusterIssuer
	}
	if params.ServicePort == 0 {
		params.ServicePort = defaultServicePort
	}

	name := IngressName(params.Slug)
	pathType := networkingv1.PathTypePrefix

	ing := &networkingv1.Ingress{
		TypeMeta: metav1.TypeMeta{APIVersion: "networking.k8s.io/v1", Kind: "Ingress"},
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: params.Namespace,
			Labels: map[string]string{
				"app.kubernetes.io/managed-by": "acreditaciones",
				"acreditaciones.io/tenant":     params.Slug,
			},
			Annotations: map[string]string{
				"cert-manager.io/cluster-issuer": params.ClusterIssuer,
			},
		},
		Spec: networkingv1.IngressSpec{
			IngressClassName: &params.IngressClass,
			TLS: []networkingv1.IngressTLS{{
				Hosts:      []string{params.Domain},
				SecretName: name + "-tls",
			}},
			Rules: []networkingv1.IngressRule{{
				Host: params.Domain,
				IngressRuleValue: networkingv1.IngressRuleValue{
					HTTP: &networkingv1.HTTPIngressRuleValue{
						Paths: []networkingv1.HTTPIngressPath{{
							Path:     "/",
							PathType: &pathType,
							Backend: networkingv1.IngressBackend{
								Service: &networkingv1.IngressServiceBackend{
									Name: params.ServiceName,
									Port: networkingv1.ServiceBackendPort{Number: int32(params.ServicePort)},
								},
							},
						}},
					},
				},
			}},
		},
	}

	obj, err := runtime.DefaultUnstructuredConverter.ToUnstructured(ing)
	if err != nil {
		return nil, fmt.Errorf("converting ingress %s: %w", name, err)
	}
	return &unstructured.Unstructured{Object: obj}, nil
}
