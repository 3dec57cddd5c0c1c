// Package manifest renders the Kubernetes workload manifest for a
// falconeri Job: parallelism, resource requests, node selector and
// secrets (spec §4.H). Grounded on the teacher's DataplaneInstallerJob
// manifest construction (AMD-AGI-Primus-SaFE Lens jobs pkg/jobs/
// dataplane_installer/job.go): a plain batchv1.Job literal built field
// by field, BackoffLimit 0 because falconeri, not Kubernetes, owns
// retries.
package manifest

import (
	"fmt"

	"github.com/faradayio/falconeri/pkg/storage"
	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// Secret describes how a credential is mounted into the worker pod.
type Secret = storage.SecretDescriptor

// Spec holds the rendering inputs for one Job's worker manifest.
type Spec struct {
	JobID           string
	ExternalName    string
	Image           string
	ImagePullPolicy corev1.PullPolicy
	Env             map[string]string
	Secrets         []Secret
	ServiceAccount  string
	Parallelism     int32
	MemoryRequest   string
	CPURequest      string
	NodeSelector    map[string]string
}

const (
	jobLabelKey   = "app.kubernetes.io/name"
	jobLabelValue = "falconeri-worker"
	jobIDLabel    = "falconeri.io/job-id"
)

// Render builds the batchv1.Job the Kubernetes Adapter submits for
// spec. BackoffLimit is 0: falconeri's own Reservation Protocol and
// Babysitter own every retry decision, not Kubernetes.
func Render(spec Spec) (*batchv1.Job, error) {
	memReq, err := resource.ParseQuantity(defaultIfEmpty(spec.MemoryRequest, "256Mi"))
	if err != nil {
		return nil, fmt.Errorf("parsing memory request: %w", err)
	}
	cpuReq, err := resource.ParseQuantity(defaultIfEmpty(spec.CPURequest, "0.25"))
	if err != nil {
		return nil, fmt.Errorf("parsing cpu request: %w", err)
	}

	backoffLimit := int32(0)
	parallelism := spec.Parallelism
	if parallelism <= 0 {
		parallelism = 1
	}

	env := []corev1.EnvVar{
		{Name: "FALCONERI_NODE_NAME", ValueFrom: &corev1.EnvVarSource{
			FieldRef: &corev1.ObjectFieldSelector{FieldPath: "spec.nodeName"},
		}},
		{Name: "FALCONERI_POD_NAME", ValueFrom: &corev1.EnvVarSource{
			FieldRef: &corev1.ObjectFieldSelector{FieldPath: "metadata.name"},
		}},
	}
	for k, v := range spec.Env {
		env = append(env, corev1.EnvVar{Name: k, Value: v})
	}

	var volumes []corev1.Volume
	var mounts []corev1.VolumeMount
	for _, s := range spec.Secrets {
		if s.IsEnv() {
			env = append(env, corev1.EnvVar{
				Name: s.EnvVar,
				ValueFrom: &corev1.EnvVarSource{
					SecretKeyRef: &corev1.SecretKeySelector{
						LocalObjectReference: corev1.LocalObjectReference{Name: s.Name},
						Key:                  s.Key,
					},
				},
			})
			continue
		}
		if s.IsMount() {
			volumes = append(volumes, corev1.Volume{
				Name: secretVolumeName(s.Name),
				VolumeSource: corev1.VolumeSource{
					Secret: &corev1.SecretVolumeSource{SecretName: s.Name},
				},
			})
			mounts = append(mounts, corev1.VolumeMount{
				Name:      secretVolumeName(s.Name),
				MountPath: s.MountPath,
				ReadOnly:  true,
			})
		}
	}

	job := &batchv1.Job{
		ObjectMeta: metav1.ObjectMeta{
			Name: spec.ExternalName,
			Labels: map[string]string{
				jobLabelKey: jobLabelValue,
				jobIDLabel:  spec.JobID,
			},
		},
		Spec: batchv1.JobSpec{
			Parallelism:  &parallelism,
			BackoffLimit: &backoffLimit,
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{
					Labels: map[string]string{
						jobLabelKey: jobLabelValue,
						jobIDLabel:  spec.JobID,
					},
				},
				Spec: corev1.PodSpec{
					RestartPolicy:      corev1.RestartPolicyNever,
					ServiceAccountName: spec.ServiceAccount,
					NodeSelector:       spec.NodeSelector,
					Volumes:            volumes,
					Containers: []corev1.Container{
						{
							Name:            "falconeri-worker",
							Image:           spec.Image,
							ImagePullPolicy: pullPolicyOrDefault(spec.ImagePullPolicy),
							Args:            []string{spec.JobID},
							Env:             env,
							VolumeMounts:    mounts,
							Resources: corev1.ResourceRequirements{
								Requests: corev1.ResourceList{
									corev1.ResourceMemory: memReq,
									corev1.ResourceCPU:    cpuReq,
								},
							},
						},
					},
				},
			},
		},
	}
	return job, nil
}

func secretVolumeName(name string) string {
	return "secret-" + name
}

func pullPolicyOrDefault(p corev1.PullPolicy) corev1.PullPolicy {
	if p == "" {
		return corev1.PullIfNotPresent
	}
	return p
}

func defaultIfEmpty(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
