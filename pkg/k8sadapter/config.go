package k8sadapter

import (
	"fmt"
	"os"
	"path/filepath"

	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/client-go/util/homedir"
)

// RestConfig resolves a *rest.Config, preferring in-cluster
// configuration (falconerid normally runs as a pod) and falling back to
// the local kubeconfig when falconerid runs outside a cluster.
// Grounded on the teacher's cluster-config resolution (AMD-AGI-Primus-
// SaFE Lens core pkg/clientsets/secret_template.go).
func RestConfig(kubeconfig string) (*rest.Config, error) {
	if cfg, err := rest.InClusterConfig(); err == nil {
		return cfg, nil
	}

	if kubeconfig == "" {
		kubeconfig = filepath.Join(homedir.HomeDir(), ".kube", "config")
	}
	if _, err := os.Stat(kubeconfig); err != nil {
		return nil, fmt.Errorf("kubeconfig file not found: %s", kubeconfig)
	}
	return clientcmd.BuildConfigFromFlags("", kubeconfig)
}
