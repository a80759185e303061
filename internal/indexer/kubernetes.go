package indexer

import (
	"context"
	"fmt"
	"log/slog"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	k8s "k8s.io/client-go/kubernetes"
	"k8s.io/utils/ptr"
)

// componentSelector matches the pods of the OpenGrok web application.
const componentSelector = "app.kubernetes.io/component=opengrok"

// runningOnly restricts pod listings to pods that are actually serving.
const runningOnly = "status.phase=Running"

// Client inspects OpenGrok resources through the Kubernetes API.
type Client struct {
	client     k8s.Interface
	namespace  string
	deployment string
}

var _ Inspector = (*Client)(nil)

// New builds an Inspector over the given clientset. Namespace and
// deployment name identify the OpenGrok installation to report on.
func New(client k8s.Interface, namespace, deployment string) (*Client, error) {
	if client == nil {
		return nil, fmt.Errorf("kubernetes client is required")
	}
	if namespace == "" {
		return nil, fmt.Errorf("namespace is required")
	}
	if deployment == "" {
		return nil, fmt.Errorf("deployment name is required")
	}
	return &Client{client: client, namespace: namespace, deployment: deployment}, nil
}

// Status reads the deployment and its running pods. A missing deployment
// yields a nil DeploymentStatus rather than an error so the endpoint
// stays useful while OpenGrok is being reinstalled.
func (c *Client) Status(ctx context.Context) (*StatusReport, error) {
	report := &StatusReport{PodStatuses: []PodStatus{}}

	dep, err := c.client.AppsV1().Deployments(c.namespace).Get(ctx, c.deployment, metav1.GetOptions{})
	switch {
	case apierrors.IsNotFound(err):
		slog.DebugContext(ctx, "OpenGrok deployment not found",
			"deployment", c.deployment,
			"namespace", c.namespace)
	case err != nil:
		return nil, fmt.Errorf("failed to get deployment %s: %w", c.deployment, err)
	default:
		report.DeploymentStatus = &DeploymentStatus{
			Name:                dep.Name,
			Replicas:            dep.Status.Replicas,
			ReadyReplicas:       dep.Status.ReadyReplicas,
			AvailableReplicas:   dep.Status.AvailableReplicas,
			UnavailableReplicas: dep.Status.UnavailableReplicas,
			UpdatedReplicas:     dep.Status.UpdatedReplicas,
		}
	}

	pods, err := c.client.CoreV1().Pods(c.namespace).List(ctx, metav1.ListOptions{
		LabelSelector: componentSelector,
		FieldSelector: runningOnly,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list opengrok pods: %w", err)
	}
	for _, pod := range pods.Items {
		report.PodStatuses = append(report.PodStatuses, PodStatus{
			PodName:   pod.Name,
			PodStatus: string(pod.Status.Phase),
			PodIP:     pod.Status.PodIP,
			NodeName:  pod.Spec.NodeName,
		})
	}
	return report, nil
}

// PodLogs returns the log tail of one OpenGrok pod.
func (c *Client) PodLogs(ctx context.Context, podName string, tailLines int64) (string, error) {
	raw, err := c.client.CoreV1().Pods(c.namespace).
		GetLogs(podName, &corev1.PodLogOptions{TailLines: ptr.To(tailLines)}).
		Do(ctx).Raw()
	if err != nil {
		return "", fmt.Errorf("failed to fetch logs for pod %s: %w", podName, err)
	}
	return string(raw), nil
}
