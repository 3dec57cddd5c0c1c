// Package planner evaluates a pipeline's input expression into the set
// of Datums and InputFiles a Job needs (spec §4.C). The input
// expression is a recursive sum type over Atom/Union/Cross; following
// the Design Note on expressing sum types without language support, it
// is a sealed interface (an unexported marker method) whose variants are
// dispatched with a type switch; the nodes carry no kind field.
package planner

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/faradayio/falconeri/pkg/database/model"
	"github.com/faradayio/falconeri/pkg/storage"
	"github.com/google/uuid"
)

// Glob selects how an Atom enumerates its uri.
type Glob string

const (
	// TopLevelEntries emits one datum per top-level entry under uri.
	TopLevelEntries Glob = "/*"
	// WholeRepo emits a single datum for the entire uri prefix.
	WholeRepo Glob = "/"
)

// Input is the sealed interface every input-expression node implements.
type Input interface {
	isInput()
}

// Atom names a single repo prefix and how to enumerate it.
type Atom struct {
	URI  string
	Repo string
	Glob Glob
}

func (Atom) isInput() {}

// Union concatenates the datums produced by each child, duplicates allowed.
type Union struct {
	Children []Input
}

func (Union) isInput() {}

// Cross computes the Cartesian product of its children's datums.
type Cross struct {
	Children []Input
}

func (Cross) isInput() {}

// plannedDatum is an intermediate datum before a fresh id is minted:
// just the ordered list of input files it carries.
type plannedDatum struct {
	files []plannedFile
}

type plannedFile struct {
	sourceURI  string
	targetPath string
}

// Result is the Planner's output: two parallel vectors ready for a
// single bulk insert, per spec §4.C.
type Result struct {
	NewDatum      []*model.Datum
	NewInputFile  []*model.InputFile
}

// Plan evaluates input against lister, returning datums and input
// files for jobID. Listing errors or malformed uris abort planning
// entirely; nothing in Result is partially populated on error.
func Plan(ctx context.Context, lister *storage.Factory, jobID string, input Input, inputRoot string, maxRunCount int) (*Result, error) {
	planned, err := plan(ctx, lister, input, inputRoot)
	if err != nil {
		return nil, err
	}

	result := &Result{
		NewDatum:     make([]*model.Datum, 0, len(planned)),
		NewInputFile: make([]*model.InputFile, 0, len(planned)),
	}
	for _, pd := range planned {
		datumID := uuid.NewString()
		result.NewDatum = append(result.NewDatum, &model.Datum{
			ID:                     datumID,
			JobID:                  jobID,
			Status:                 model.DatumReady,
			MaximumAllowedRunCount: maxRunCount,
		})
		for _, f := range pd.files {
			result.NewInputFile = append(result.NewInputFile, &model.InputFile{
				ID:         uuid.NewString(),
				JobID:      jobID,
				DatumID:    datumID,
				SourceURI:  f.sourceURI,
				TargetPath: f.targetPath,
			})
		}
	}
	return result, nil
}

func plan(ctx context.Context, lister *storage.Factory, input Input, inputRoot string) ([]plannedDatum, error) {
	switch n := input.(type) {
	case Atom:
		return planAtom(ctx, lister, n, inputRoot)
	case Union:
		return planUnion(ctx, lister, n, inputRoot)
	case Cross:
		return planCross(ctx, lister, n, inputRoot)
	default:
		return nil, fmt.Errorf("planner: unknown input node type %T", input)
	}
}

func planAtom(ctx context.Context, lister *storage.Factory, a Atom, inputRoot string) ([]plannedDatum, error) {
	switch a.Glob {
	case WholeRepo:
		// Verify accessibility before committing plans (spec §4.C).
		if _, err := lister.List(ctx, a.URI); err != nil {
			return nil, fmt.Errorf("planner: listing %s: %w", a.URI, err)
		}
		normalized := a.URI
		if !strings.HasSuffix(normalized, "/") {
			normalized += "/"
		}
		return []plannedDatum{{
			files: []plannedFile{{
				sourceURI:  normalized,
				targetPath: path.Join(inputRoot, a.Repo) + "/",
			}},
		}}, nil

	case TopLevelEntries:
		entries, err := lister.List(ctx, a.URI)
		if err != nil {
			return nil, fmt.Errorf("planner: listing %s: %w", a.URI, err)
		}
		out := make([]plannedDatum, 0, len(entries))
		for _, uri := range entries {
			if strings.HasSuffix(uri, "/") {
				return nil, fmt.Errorf("planner: entry %q under %s has no basename", uri, a.URI)
			}
			idx := strings.LastIndex(uri, "/")
			basename := uri[idx+1:]
			if basename == "" {
				return nil, fmt.Errorf("planner: entry %q under %s has no basename", uri, a.URI)
			}
			out = append(out, plannedDatum{
				files: []plannedFile{{
					sourceURI:  uri,
					targetPath: path.Join(inputRoot, a.Repo, basename),
				}},
			})
		}
		return out, nil

	default:
		return nil, fmt.Errorf("planner: unknown glob %q", a.Glob)
	}
}

func planUnion(ctx context.Context, lister *storage.Factory, u Union, inputRoot string) ([]plannedDatum, error) {
	var out []plannedDatum
	for _, child := range u.Children {
		childPlanned, err := plan(ctx, lister, child, inputRoot)
		if err != nil {
			return nil, err
		}
		out = append(out, childPlanned...)
	}
	return out, nil
}

// planCross computes Cross([a,b,c]) = Cross([Cross([a,b]), c]) by
// folding pairwise products left to right, per spec §4.C's associative
// definition. Ordering follows the natural recursion: the outer
// (earlier) child iterates slower, the inner (later) child faster.
func planCross(ctx context.Context, lister *storage.Factory, c Cross, inputRoot string) ([]plannedDatum, error) {
	if len(c.Children) == 0 {
		return nil, nil
	}
	acc, err := plan(ctx, lister, c.Children[0], inputRoot)
	if err != nil {
		return nil, err
	}
	for _, child := range c.Children[1:] {
		childPlanned, err := plan(ctx, lister, child, inputRoot)
		if err != nil {
			return nil, err
		}
		acc = crossProduct(acc, childPlanned)
	}
	return acc, nil
}

func crossProduct(a, b []plannedDatum) []plannedDatum {
	out := make([]plannedDatum, 0, len(a)*len(b))
	for _, x := range a {
		for _, y := range b {
			files := make([]plannedFile, 0, len(x.files)+len(y.files))
			files = append(files, x.files...)
			files = append(files, y.files...)
			out = append(out, plannedDatum{files: files})
		}
	}
	return out
}
