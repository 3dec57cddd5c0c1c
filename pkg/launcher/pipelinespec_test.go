package launcher

import (
	"testing"

	"github.com/faradayio/falconeri/pkg/planner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSpecJSON() []byte {
	return []byte(`{
		"pipeline": {"name": "count-words"},
		"transform": {"cmd": ["python3", "count.py"], "image": "count:latest"},
		"parallelism_spec": {"constant": 4},
		"resource_requests": {"memory": "512Mi", "cpu": 0.5},
		"input": {"pfs": {"uri": "gs://bucket/in", "repo": "in", "glob": "/*"}},
		"egress": {"uri": "gs://bucket/out"}
	}`)
}

func TestParsePipelineSpecValid(t *testing.T) {
	spec, err := ParsePipelineSpec(validSpecJSON())
	require.NoError(t, err)
	assert.Equal(t, "count-words", spec.Pipeline.Name)
	assert.Equal(t, []string{"python3", "count.py"}, spec.Transform.Cmd)
	assert.Equal(t, "gs://bucket/out", spec.Egress.URI)
}

func TestParsePipelineSpecRejectsUnknownFields(t *testing.T) {
	raw := []byte(`{
		"pipeline": {"name": "x"},
		"transform": {"cmd": ["a"], "image": "i"},
		"egress": {"uri": "gs://b/out"},
		"unexpected_field": true
	}`)
	_, err := ParsePipelineSpec(raw)
	assert.Error(t, err)
}

func TestParsePipelineSpecRequiresName(t *testing.T) {
	raw := []byte(`{
		"transform": {"cmd": ["a"], "image": "i"},
		"egress": {"uri": "gs://b/out"}
	}`)
	_, err := ParsePipelineSpec(raw)
	assert.Error(t, err)
}

func TestParsePipelineSpecRequiresCmd(t *testing.T) {
	raw := []byte(`{
		"pipeline": {"name": "x"},
		"transform": {"image": "i"},
		"egress": {"uri": "gs://b/out"}
	}`)
	_, err := ParsePipelineSpec(raw)
	assert.Error(t, err)
}

func TestToInputCross(t *testing.T) {
	spec, err := ParsePipelineSpec([]byte(`{
		"pipeline": {"name": "x"},
		"transform": {"cmd": ["a"], "image": "i"},
		"egress": {"uri": "gs://b/out"},
		"input": {"cross": [
			{"atom": {"uri": "gs://b/a", "repo": "a", "glob": "/*"}},
			{"atom": {"uri": "gs://b/b", "repo": "b", "glob": "/"}}
		]}
	}`))
	require.NoError(t, err)

	input, err := spec.Input.toInput()
	require.NoError(t, err)
	cross, ok := input.(planner.Cross)
	require.True(t, ok)
	assert.Len(t, cross.Children, 2)
}

func TestToInputRejectsUnsupportedGlob(t *testing.T) {
	spec := inputSpec{Atom: &atomSpec{URI: "gs://b/a", Repo: "a", Glob: "/weird"}}
	_, err := spec.toInput()
	assert.Error(t, err)
}

func TestToInputRejectsEmptyExpression(t *testing.T) {
	var spec inputSpec
	_, err := spec.toInput()
	assert.Error(t, err)
}

func TestSecretDescriptorsMapsFields(t *testing.T) {
	spec, err := ParsePipelineSpec(validSpecJSON())
	require.NoError(t, err)
	spec.Transform.Secrets = []secretSpec{{Name: "creds", EnvVar: "TOKEN", Key: "token"}}
	descriptors := spec.SecretDescriptors()
	require.Len(t, descriptors, 1)
	assert.Equal(t, "creds", descriptors[0].Name)
	assert.Equal(t, "TOKEN", descriptors[0].EnvVar)
}
