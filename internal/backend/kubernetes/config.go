package kubernetes

import (
	"errors"
	"fmt"

	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// Config carries the Job parameters for the Kubernetes backend.
type Config struct {
	// Namespace is where clone and cleanup Jobs run.
	Namespace string

	// Image is the container image that carries git and the clone script.
	Image string

	// PVCName is the claim backing the shared source volume.
	PVCName string

	// ScriptConfigMap holds the clone-or-pull script mounted into Jobs.
	ScriptConfigMap string

	// BackoffLimit is the Job retry budget.
	BackoffLimit int32

	// SSHSecretName and SSHConfigMapName, when set, project an SSH key
	// and client config into clone Jobs for private repositories.
	SSHSecretName    string
	SSHConfigMapName string
}

func (c Config) validate() error {
	if c.Namespace == "" {
		return fmt.Errorf("namespace is required")
	}
	if c.Image == "" {
		return fmt.Errorf("cloner image is required")
	}
	if c.PVCName == "" {
		return fmt.Errorf("source volume claim name is required")
	}
	if c.ScriptConfigMap == "" {
		return fmt.Errorf("clone script config map name is required")
	}
	return nil
}

// NewClientset builds a Kubernetes clientset, preferring in-cluster
// configuration and falling back to the local kubeconfig.
func NewClientset() (kubernetes.Interface, error) {
	cfg, err := rest.InClusterConfig()
	if err != nil {
		if !errors.Is(err, rest.ErrNotInCluster) {
			return nil, fmt.Errorf("failed to load in-cluster config: %w", err)
		}
		loadingRules := clientcmd.NewDefaultClientConfigLoadingRules()
		cfg, err = clientcmd.NewNonInteractiveDeferredLoadingClientConfig(
			loadingRules, &clientcmd.ConfigOverrides{}).ClientConfig()
		if err != nil {
			return nil, fmt.Errorf("failed to load kubeconfig: %w", err)
		}
	}

	client, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kubernetes client: %w", err)
	}
	return client, nil
}
