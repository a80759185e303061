package kubernetes

import (
	"fmt"
	"path"
	"strconv"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/utils/ptr"

	"github.com/crpaas/repo-custodian/internal/backend"
)

const (
	cloneAppLabel   = "crpaas-git-fetcher"
	cleanupAppLabel = "crpaas-git-cleaner"

	cloneContainerName   = "git-cloner"
	cleanupContainerName = "git-cleaner"

	sourceVolumeName = "source-code-storage"
	scriptVolumeName = "clone-script"
	sshVolumeName    = "ssh-config"

	sourceMountPath = "/pvc/src"
	scriptMountPath = "/scripts"
	sshMountPath    = "/root/.ssh"

	cloneScriptName = "git-clone-or-pull.sh"

	// Finished clone Jobs linger long enough to collect logs; cleanup
	// Jobs are short-lived.
	cloneJobTTLSeconds   = 3600
	cleanupJobTTLSeconds = 300
)

// cloneJob builds the batch Job that clones or updates one working tree
// on the shared source volume.
func (b *Backend) cloneJob(name string, task backend.Task) *batchv1.Job {
	targetDir := path.Join(sourceMountPath, task.TargetPath)

	volumes := []corev1.Volume{
		{
			Name: sourceVolumeName,
			VolumeSource: corev1.VolumeSource{
				PersistentVolumeClaim: &corev1.PersistentVolumeClaimVolumeSource{
					ClaimName: b.cfg.PVCName,
				},
			},
		},
		{
			Name: scriptVolumeName,
			VolumeSource: corev1.VolumeSource{
				ConfigMap: &corev1.ConfigMapVolumeSource{
					LocalObjectReference: corev1.LocalObjectReference{Name: b.cfg.ScriptConfigMap},
					DefaultMode:          ptr.To[int32](0o755),
				},
			},
		},
	}
	mounts := []corev1.VolumeMount{
		{Name: sourceVolumeName, MountPath: sourceMountPath},
		{Name: scriptVolumeName, MountPath: scriptMountPath},
	}

	if b.cfg.SSHSecretName != "" {
		volumes = append(volumes, sshVolume(b.cfg.SSHSecretName, b.cfg.SSHConfigMapName))
		mounts = append(mounts, corev1.VolumeMount{
			Name:      sshVolumeName,
			MountPath: sshMountPath,
			ReadOnly:  true,
		})
	}

	return &batchv1.Job{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: b.cfg.Namespace,
			Labels:    map[string]string{"app": cloneAppLabel},
		},
		Spec: batchv1.JobSpec{
			BackoffLimit:            ptr.To(b.cfg.BackoffLimit),
			TTLSecondsAfterFinished: ptr.To[int32](cloneJobTTLSeconds),
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{
					Labels: map[string]string{"app": cloneAppLabel},
				},
				Spec: corev1.PodSpec{
					RestartPolicy: corev1.RestartPolicyNever,
					Volumes:       volumes,
					Containers: []corev1.Container{
						{
							Name:    cloneContainerName,
							Image:   b.cfg.Image,
							Command: []string{path.Join(scriptMountPath, cloneScriptName)},
							Args: []string{
								task.RepoURL,
								targetDir,
								task.CommitID,
								strconv.FormatBool(task.SingleBranch),
								strconv.FormatBool(task.Recursive),
							},
							VolumeMounts: mounts,
						},
					},
				},
			},
		},
	}
}

// cleanupJob builds the batch Job that removes one working tree from the
// shared source volume.
func (b *Backend) cleanupJob(name, targetPath string) *batchv1.Job {
	targetDir := path.Join(sourceMountPath, targetPath)

	return &batchv1.Job{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: b.cfg.Namespace,
			Labels:    map[string]string{"app": cleanupAppLabel},
		},
		Spec: batchv1.JobSpec{
			BackoffLimit:            ptr.To(b.cfg.BackoffLimit),
			TTLSecondsAfterFinished: ptr.To[int32](cleanupJobTTLSeconds),
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{
					Labels: map[string]string{"app": cleanupAppLabel},
				},
				Spec: corev1.PodSpec{
					RestartPolicy: corev1.RestartPolicyNever,
					Volumes: []corev1.Volume{
						{
							Name: sourceVolumeName,
							VolumeSource: corev1.VolumeSource{
								PersistentVolumeClaim: &corev1.PersistentVolumeClaimVolumeSource{
									ClaimName: b.cfg.PVCName,
								},
							},
						},
					},
					Containers: []corev1.Container{
						{
							Name:    cleanupContainerName,
							Image:   b.cfg.Image,
							Command: []string{"/bin/sh", "-c"},
							Args:    []string{fmt.Sprintf("rm -rf %s", targetDir)},
							VolumeMounts: []corev1.VolumeMount{
								{Name: sourceVolumeName, MountPath: sourceMountPath},
							},
						},
					},
				},
			},
		},
	}
}

// sshVolume projects the SSH private key and client config into a Job so
// clones from private remotes can authenticate.
func sshVolume(secretName, configMapName string) corev1.Volume {
	sources := []corev1.VolumeProjection{
		{
			Secret: &corev1.SecretProjection{
				LocalObjectReference: corev1.LocalObjectReference{Name: secretName},
				Items: []corev1.KeyToPath{
					{Key: "id_rsa", Path: "id_rsa", Mode: ptr.To[int32](0o400)},
				},
			},
		},
	}
	if configMapName != "" {
		sources = append(sources, corev1.VolumeProjection{
			ConfigMap: &corev1.ConfigMapProjection{
				LocalObjectReference: corev1.LocalObjectReference{Name: configMapName},
				Items: []corev1.KeyToPath{
					{Key: "config", Path: "config"},
				},
			},
		})
	}

	return corev1.Volume{
		Name: sshVolumeName,
		VolumeSource: corev1.VolumeSource{
			Projected: &corev1.ProjectedVolumeSource{Sources: sources},
		},
	}
}
