// Package indexer reports on the OpenGrok deployment that serves the
// cloned sources: replica counts, running pods, and pod log tails. It is
// informational only; nothing here mutates the cluster.
package indexer

import "context"

//go:generate mockgen -destination=mocks/mock_indexer.go -package=mocks -source=indexer.go Inspector

// DeploymentStatus summarizes the replica counts of the OpenGrok
// deployment.
type DeploymentStatus struct {
	Name                string `json:"name"`
	Replicas            int32  `json:"replicas"`
	ReadyReplicas       int32  `json:"ready_replicas"`
	AvailableReplicas   int32  `json:"available_replicas"`
	UnavailableReplicas int32  `json:"unavailable_replicas"`
	UpdatedReplicas     int32  `json:"updated_replicas"`
}

// PodStatus describes one running OpenGrok pod.
type PodStatus struct {
	PodName   string `json:"pod_name"`
	PodStatus string `json:"pod_status"`
	PodIP     string `json:"pod_ip"`
	NodeName  string `json:"node_name"`
}

// StatusReport is a point-in-time snapshot of the OpenGrok installation.
// DeploymentStatus is nil when the deployment does not exist.
type StatusReport struct {
	DeploymentStatus *DeploymentStatus `json:"deployment_status"`
	PodStatuses      []PodStatus       `json:"pod_statuses"`
}

// Inspector exposes the health of the OpenGrok installation.
type Inspector interface {
	// Status returns the deployment replica counts and the running pods.
	Status(ctx context.Context) (*StatusReport, error)

	// PodLogs returns the last tailLines lines of one pod's log.
	PodLogs(ctx context.Context, podName string, tailLines int64) (string, error)
}
