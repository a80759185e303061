// Package kubernetes executes clone and removal tasks as batch Jobs
// against a shared PersistentVolumeClaim. Work is asynchronous: tasks
// are submitted and reported on later through QueryWork.
package kubernetes

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	k8s "k8s.io/client-go/kubernetes"
	"k8s.io/utils/ptr"

	"github.com/crpaas/repo-custodian/internal/backend"
	"github.com/crpaas/repo-custodian/internal/naming"
)

// logTailLines bounds how much pod output a work status carries.
const logTailLines = 500

// Backend submits clone and cleanup Jobs to a cluster.
type Backend struct {
	client k8s.Interface
	cfg    Config
}

var (
	_ backend.Backend       = (*Backend)(nil)
	_ backend.StatusQuerier = (*Backend)(nil)
)

// New builds a Kubernetes backend from a clientset and Job parameters.
func New(client k8s.Interface, cfg Config) (*Backend, error) {
	if client == nil {
		return nil, fmt.Errorf("kubernetes client is required")
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid backend config: %w", err)
	}
	return &Backend{client: client, cfg: cfg}, nil
}

// CloneOrUpdate submits a Job that clones or updates the target path at
// the pinned commit. The returned result is not done; the Job name is
// the correlation key for QueryWork.
func (b *Backend) CloneOrUpdate(ctx context.Context, task backend.Task) (*backend.Result, error) {
	if err := validTarget(task.TargetPath); err != nil {
		return nil, err
	}

	name := naming.CloneJobName(task.RepoURL, task.CommitID, time.Now().UTC())
	created, err := b.client.BatchV1().Jobs(b.cfg.Namespace).Create(ctx, b.cloneJob(name, task), metav1.CreateOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to create clone job %s: %w", name, err)
	}

	slog.InfoContext(ctx, "Submitted clone job",
		"job", created.Name,
		"repo_url", task.RepoURL,
		"commit_id", task.CommitID)
	return &backend.Result{CorrelationKey: created.Name}, nil
}

// Remove submits a Job that deletes the working tree at the target path.
func (b *Backend) Remove(ctx context.Context, targetPath string) (*backend.Result, error) {
	if err := validTarget(targetPath); err != nil {
		return nil, err
	}

	name := naming.CleanupJobName(targetPath, time.Now().UTC())
	created, err := b.client.BatchV1().Jobs(b.cfg.Namespace).Create(ctx, b.cleanupJob(name, targetPath), metav1.CreateOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to create cleanup job %s: %w", name, err)
	}

	slog.InfoContext(ctx, "Submitted cleanup job", "job", created.Name, "target", targetPath)
	return &backend.Result{CorrelationKey: created.Name}, nil
}

// QueryWork reports on a previously submitted Job. Finished work carries
// the tail of the worker pod's log as output.
func (b *Backend) QueryWork(ctx context.Context, correlationKey string) (*backend.WorkStatus, error) {
	job, err := b.client.BatchV1().Jobs(b.cfg.Namespace).Get(ctx, correlationKey, metav1.GetOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			return &backend.WorkStatus{State: backend.StateNotFound}, nil
		}
		return nil, fmt.Errorf("failed to get job %s: %w", correlationKey, err)
	}

	switch {
	case job.Status.Succeeded > 0 || hasCondition(job, batchv1.JobComplete):
		return &backend.WorkStatus{State: backend.StateSucceeded, Output: b.podLogs(ctx, correlationKey)}, nil
	case hasCondition(job, batchv1.JobFailed):
		return &backend.WorkStatus{State: backend.StateFailed, Output: b.podLogs(ctx, correlationKey)}, nil
	}

	pods, err := b.jobPods(ctx, correlationKey)
	if err != nil {
		return nil, err
	}
	for _, pod := range pods {
		if pod.Status.Phase != corev1.PodPending {
			return &backend.WorkStatus{State: backend.StateRunning}, nil
		}
	}
	// No pods yet, or all still pending.
	return &backend.WorkStatus{State: backend.StatePodCreating}, nil
}

// WorkLogs returns the log tail of the worker pod for in-flight or
// finished work, so callers can show progress before the Job completes.
func (b *Backend) WorkLogs(ctx context.Context, correlationKey string) (string, error) {
	logs := b.podLogs(ctx, correlationKey)
	if logs == "" {
		return "", fmt.Errorf("no logs available for job %s", correlationKey)
	}
	return logs, nil
}

// podLogs fetches the log tail of the Job's newest pod. Log retrieval is
// best effort; failures degrade to an empty transcript.
func (b *Backend) podLogs(ctx context.Context, jobName string) string {
	pods, err := b.jobPods(ctx, jobName)
	if err != nil || len(pods) == 0 {
		return ""
	}

	pod := pods[0]
	for _, p := range pods[1:] {
		if p.CreationTimestamp.After(pod.CreationTimestamp.Time) {
			pod = p
		}
	}

	raw, err := b.client.CoreV1().Pods(b.cfg.Namespace).
		GetLogs(pod.Name, &corev1.PodLogOptions{TailLines: ptr.To[int64](logTailLines)}).
		Do(ctx).Raw()
	if err != nil {
		slog.DebugContext(ctx, "Failed to fetch pod logs", "job", jobName, "pod", pod.Name, "error", err)
		return ""
	}
	return string(raw)
}

func (b *Backend) jobPods(ctx context.Context, jobName string) ([]corev1.Pod, error) {
	list, err := b.client.CoreV1().Pods(b.cfg.Namespace).List(ctx, metav1.ListOptions{
		LabelSelector: "job-name=" + jobName,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list pods for job %s: %w", jobName, err)
	}
	return list.Items, nil
}

func hasCondition(job *batchv1.Job, cond batchv1.JobConditionType) bool {
	for _, c := range job.Status.Conditions {
		if c.Type == cond && c.Status == corev1.ConditionTrue {
			return true
		}
	}
	return false
}

// validTarget rejects target paths that are not already DNS-safe names.
// The cleanup Job interpolates the path into a shell command, so only
// sanitized single-segment names are allowed through.
func validTarget(path string) error {
	if path == "" || naming.SanitizeDNS(path) != path {
		return fmt.Errorf("invalid target path %q", path)
	}
	return nil
}
