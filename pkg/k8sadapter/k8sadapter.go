// Package k8sadapter implements the Kubernetes Adapter of spec §4.B:
// apply/delete manifests, list running pods and jobs, fetch named
// secrets. Modeled on the teacher's K8SClientSet (AMD-AGI-Primus-SaFE
// Lens core pkg/clientsets/k8s.go): a struct bundling a client-go
// Clientset with a controller-runtime client, built once at startup.
package k8sadapter

import (
	"context"
	"fmt"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	ctrlclient "sigs.k8s.io/controller-runtime/pkg/client"
)

// Adapter bundles the clients falconeri needs against a single cluster.
// Clientset is typed as the kubernetes.Interface rather than the
// concrete *kubernetes.Clientset so tests can substitute
// k8s.io/client-go/kubernetes/fake.
type Adapter struct {
	Clientset kubernetes.Interface
	Client    ctrlclient.Client
	Namespace string
}

// New builds an Adapter from in-cluster or kubeconfig-resolved config,
// mirroring the teacher's initK8SClientSetByConfig.
func New(cfg *rest.Config, namespace string) (*Adapter, error) {
	clientset, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("building kubernetes clientset: %w", err)
	}
	c, err := ctrlclient.New(cfg, ctrlclient.Options{})
	if err != nil {
		return nil, fmt.Errorf("building controller-runtime client: %w", err)
	}
	return &Adapter{Clientset: clientset, Client: c, Namespace: namespace}, nil
}

// Apply creates or updates an arbitrary object (the rendered Kubernetes
// workload manifest from pkg/manifest).
func (a *Adapter) Apply(ctx context.Context, obj ctrlclient.Object) error {
	obj.SetNamespace(a.Namespace)
	err := a.Client.Create(ctx, obj)
	if apierrors.IsAlreadyExists(err) {
		return a.Client.Update(ctx, obj)
	}
	return err
}

// Delete removes an arbitrary object by name, tolerating NotFound.
func (a *Adapter) Delete(ctx context.Context, obj ctrlclient.Object) error {
	err := a.Client.Delete(ctx, obj)
	if apierrors.IsNotFound(err) {
		return nil
	}
	return err
}

// ListRunningPodNames returns the names of all Running pods in the
// namespace, used by the Babysitter's zombie-datum check (spec §4.G.2).
func (a *Adapter) ListRunningPodNames(ctx context.Context) (map[string]struct{}, error) {
	pods, err := a.Clientset.CoreV1().Pods(a.Namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("listing pods: %w", err)
	}
	names := make(map[string]struct{}, len(pods.Items))
	for _, p := range pods.Items {
		if p.Status.Phase == corev1.PodRunning {
			names[p.Name] = struct{}{}
		}
	}
	return names, nil
}

// JobExists reports whether a Kubernetes Job with the given name exists
// in the namespace. The Babysitter's vanished-job check uses ListJobNames
// instead.
func (a *Adapter) JobExists(ctx context.Context, name string) (bool, error) {
	_, err := a.Clientset.BatchV1().Jobs(a.Namespace).Get(ctx, name, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("getting job %s: %w", name, err)
	}
	return true, nil
}

// ListJobNames returns the names of all Kubernetes Jobs in the namespace.
func (a *Adapter) ListJobNames(ctx context.Context) (map[string]struct{}, error) {
	jobs, err := a.Clientset.BatchV1().Jobs(a.Namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("listing jobs: %w", err)
	}
	var items []batchv1.Job = jobs.Items
	names := make(map[string]struct{}, len(items))
	for _, j := range items {
		names[j.Name] = struct{}{}
	}
	return names, nil
}

// GetSecret fetches a named Secret's data. Worker manifests reference
// secrets by name and do not call it.
func (a *Adapter) GetSecret(ctx context.Context, name string) (map[string][]byte, error) {
	secret, err := a.Clientset.CoreV1().Secrets(a.Namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return nil, fmt.Errorf("getting secret %s: %w", name, err)
	}
	return secret.Data, nil
}

// DeleteJob removes a Kubernetes Job (and, via propagation policy, its
// pods) by name.
func (a *Adapter) DeleteJob(ctx context.Context, name string) error {
	policy := metav1.DeletePropagationForeground
	err := a.Clientset.BatchV1().Jobs(a.Namespace).Delete(ctx, name, metav1.DeleteOptions{
		PropagationPolicy: &policy,
	})
	if apierrors.IsNotFound(err) {
		return nil
	}
	return err
}
