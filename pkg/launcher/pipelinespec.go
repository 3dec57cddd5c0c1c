package launcher

import (
	"bytes"
	"encoding/json"

	"github.com/faradayio/falconeri/pkg/ferrors"
	"github.com/faradayio/falconeri/pkg/planner"
	"github.com/faradayio/falconeri/pkg/storage"
)

// PipelineSpec is the strict JSON wire format of spec §6's pipeline
// spec file. Unknown fields are rejected via DisallowUnknownFields.
type PipelineSpec struct {
	Pipeline struct {
		Name string `json:"name"`
	} `json:"pipeline"`
	Transform struct {
		Cmd             []string          `json:"cmd"`
		Image           string            `json:"image"`
		ImagePullPolicy string            `json:"image_pull_policy,omitempty"`
		Env             map[string]string `json:"env,omitempty"`
		Secrets         []secretSpec      `json:"secrets,omitempty"`
		ServiceAccount  string            `json:"service_account,omitempty"`
	} `json:"transform"`
	ParallelismSpec struct {
		Constant int `json:"constant"`
	} `json:"parallelism_spec"`
	ResourceRequests struct {
		Memory string  `json:"memory"`
		CPU    float64 `json:"cpu"`
	} `json:"resource_requests"`
	NodeSelector map[string]string `json:"node_selector,omitempty"`
	Input        inputSpec         `json:"input"`
	Egress       struct {
		URI string `json:"uri"`
	} `json:"egress"`
}

type secretSpec struct {
	Name      string `json:"name"`
	MountPath string `json:"mount_path,omitempty"`
	Key       string `json:"key,omitempty"`
	EnvVar    string `json:"env_var,omitempty"`
}

// inputSpec mirrors the wire grammar:
//   Input ::= { atom|pfs: {uri, repo, glob} } | { cross: [Input] } | { union: [Input] }
// The first field set, in the order Atom, Pfs, Cross, Union, decides the
// node; further fields set alongside it are not checked and are ignored.
type inputSpec struct {
	Atom *atomSpec    `json:"atom,omitempty"`
	Pfs  *atomSpec    `json:"pfs,omitempty"`
	Cross []inputSpec `json:"cross,omitempty"`
	Union []inputSpec `json:"union,omitempty"`
}

type atomSpec struct {
	URI  string `json:"uri"`
	Repo string `json:"repo"`
	Glob string `json:"glob"`
}

// ParsePipelineSpec strictly decodes a pipeline spec document, rejecting
// unknown fields per spec §6.
func ParsePipelineSpec(raw []byte) (*PipelineSpec, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	var spec PipelineSpec
	if err := dec.Decode(&spec); err != nil {
		return nil, ferrors.Validation("parsing pipeline spec: %v", err)
	}
	if spec.Pipeline.Name == "" {
		return nil, ferrors.Validation("pipeline.name is required")
	}
	if len(spec.Transform.Cmd) == 0 {
		return nil, ferrors.Validation("transform.cmd is required")
	}
	if spec.Egress.URI == "" {
		return nil, ferrors.Validation("egress.uri is required")
	}
	return &spec, nil
}

// toInput converts the wire inputSpec into the Planner's sealed Input
// interface (spec §4.C / Design Note on recursive input expressions).
func (s inputSpec) toInput() (planner.Input, error) {
	switch {
	case s.Atom != nil:
		return s.Atom.toInput()
	case s.Pfs != nil:
		return s.Pfs.toInput()
	case len(s.Cross) > 0:
		children := make([]planner.Input, 0, len(s.Cross))
		for _, c := range s.Cross {
			child, err := c.toInput()
			if err != nil {
				return nil, err
			}
			children = append(children, child)
		}
		return planner.Cross{Children: children}, nil
	case len(s.Union) > 0:
		children := make([]planner.Input, 0, len(s.Union))
		for _, c := range s.Union {
			child, err := c.toInput()
			if err != nil {
				return nil, err
			}
			children = append(children, child)
		}
		return planner.Union{Children: children}, nil
	default:
		return nil, ferrors.Validation("input expression has no atom, pfs, cross or union")
	}
}

func (a *atomSpec) toInput() (planner.Input, error) {
	var glob planner.Glob
	switch a.Glob {
	case string(planner.TopLevelEntries):
		glob = planner.TopLevelEntries
	case string(planner.WholeRepo):
		glob = planner.WholeRepo
	default:
		return nil, ferrors.Validation("unsupported glob %q", a.Glob)
	}
	return planner.Atom{URI: a.URI, Repo: a.Repo, Glob: glob}, nil
}

// SecretDescriptors converts the wire secrets list to the Storage
// Adapter's descriptor type, for callers rendering a manifest.Spec
// (pkg/launcher's own submitWorkload and pkg/reservation's retry path).
func (s *PipelineSpec) SecretDescriptors() []storage.SecretDescriptor {
	out := make([]storage.SecretDescriptor, 0, len(s.Transform.Secrets))
	for _, sec := range s.Transform.Secrets {
		out = append(out, storage.SecretDescriptor{
			Name:      sec.Name,
			MountPath: sec.MountPath,
			Key:       sec.Key,
			EnvVar:    sec.EnvVar,
		})
	}
	return out
}
