package k8sadapter

import (
	"context"
	"testing"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFakeAdapter(objects ...interface{}) *Adapter {
	clientset := fake.NewSimpleClientset()
	return &Adapter{Clientset: clientset, Namespace: "falconeri"}
}

func TestListRunningPodNamesFiltersPhase(t *testing.T) {
	a := newFakeAdapter()
	ctx := context.Background()

	running := &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{Name: "running-pod", Namespace: "falconeri"},
		Status:     corev1.PodStatus{Phase: corev1.PodRunning},
	}
	pending := &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{Name: "pending-pod", Namespace: "falconeri"},
		Status:     corev1.PodStatus{Phase: corev1.PodPending},
	}
	_, err := a.Clientset.CoreV1().Pods("falconeri").Create(ctx, running, metav1.CreateOptions{})
	require.NoError(t, err)
	_, err = a.Clientset.CoreV1().Pods("falconeri").Create(ctx, pending, metav1.CreateOptions{})
	require.NoError(t, err)

	names, err := a.ListRunningPodNames(ctx)
	require.NoError(t, err)
	assert.Len(t, names, 1)
	_, ok := names["running-pod"]
	assert.True(t, ok)
}

func TestJobExists(t *testing.T) {
	a := newFakeAdapter()
	ctx := context.Background()

	exists, err := a.JobExists(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, exists)

	job := &batchv1.Job{ObjectMeta: metav1.ObjectMeta{Name: "present", Namespace: "falconeri"}}
	_, err = a.Clientset.BatchV1().Jobs("falconeri").Create(ctx, job, metav1.CreateOptions{})
	require.NoError(t, err)

	exists, err = a.JobExists(ctx, "present")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestListJobNames(t *testing.T) {
	a := newFakeAdapter()
	ctx := context.Background()

	for _, name := range []string{"a", "b"} {
		job := &batchv1.Job{ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: "falconeri"}}
		_, err := a.Clientset.BatchV1().Jobs("falconeri").Create(ctx, job, metav1.CreateOptions{})
		require.NoError(t, err)
	}

	names, err := a.ListJobNames(ctx)
	require.NoError(t, err)
	assert.Len(t, names, 2)
}

func TestGetSecret(t *testing.T) {
	a := newFakeAdapter()
	ctx := context.Background()

	secret := &corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{Name: "creds", Namespace: "falconeri"},
		Data:       map[string][]byte{"key": []byte("value")},
	}
	_, err := a.Clientset.CoreV1().Secrets("falconeri").Create(ctx, secret, metav1.CreateOptions{})
	require.NoError(t, err)

	data, err := a.GetSecret(ctx, "creds")
	require.NoError(t, err)
	assert.Equal(t, []byte("value"), data["key"])
}
