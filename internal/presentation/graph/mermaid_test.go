package graph_test

import (
	"strings"
	"testing"

	"github.com/aretw0/arbor/internal/presentation/graph"
	"github.com/aretw0/arbor/pkg/domain"
)

func TestGenerateMermaid(t *testing.T) {
	tests := []struct {
		name     string
		desc     domain.TreeDescription
		overlay  *graph.Overlay
		contains []string
		excludes []string
	}{
		{
			name: "Root Defaults To First Node",
			desc: domain.TreeDescription{Nodes: []domain.NodeDescription{
				{ID: "main", Kind: "sequence", Children: []string{"a", "b"}},
				{ID: "a", Kind: "log"},
				{ID: "b", Kind: "log"},
			}},
			contains: []string{
				`main(("main <br/> <i>sequence</i>"))`,
				`a["a <br/> <i>log</i>"]`,
				"main -- 1 --> a",
				"main -- 2 --> b",
			},
		},
		{
			name: "Kind Shapes",
			desc: domain.TreeDescription{Root: "r", Nodes: []domain.NodeDescription{
				{ID: "r", Kind: "parallel_all", Children: []string{"j", "sub"}},
				{ID: "j", Kind: "wait_for_all", Children: []string{"leaf"}},
				{ID: "sub", Kind: "run_subgraph"},
				{ID: "leaf", Kind: "guard", Conditions: []domain.ConditionDescription{{Kind: "compare"}}},
			}},
			contains: []string{
				`j{{"j <br/> <i>wait_for_all</i>"}}`,
				`sub[["sub <br/> <i>run_subgraph</i>"]]`,
				`leaf{"leaf <br/> <i>guard</i> <br/> ? compare"}`,
				"j --> leaf",
			},
		},
		{
			name: "Branch Labels",
			desc: domain.TreeDescription{Root: "b", Nodes: []domain.NodeDescription{
				{ID: "b", Kind: "branch", Children: []string{"yes", "no"}},
				{ID: "yes", Kind: "log"},
				{ID: "no", Kind: "log"},
			}},
			contains: []string{"b -- on_true --> yes", "b -- on_false --> no"},
		},
		{
			name: "ID Sanitization",
			desc: domain.TreeDescription{Root: "path/to/file.yaml", Nodes: []domain.NodeDescription{
				{ID: "path/to/file.yaml", Kind: "sequence", Children: []string{"hyphen-ated"}},
				{ID: "hyphen-ated", Kind: "log"},
			}},
			contains: []string{"path_to_file_yaml((", "path_to_file_yaml --> hyphen_ated"},
		},
		{
			name: "Status Overlay",
			desc: domain.TreeDescription{Root: "s", Nodes: []domain.NodeDescription{
				{ID: "s", Kind: "sequence", Children: []string{"w", "x"}},
				{ID: "w", Kind: "wait_frames"},
				{ID: "x", Kind: "log"},
			}},
			overlay: graph.OverlayFromState(&domain.TreeState{Nodes: []domain.NodeState{
				{ID: "s", Status: domain.StatusWaiting},
				{ID: "w", Status: domain.StatusRunning},
				{ID: "x", Status: domain.StatusUninitialized},
				{ID: "gone", Status: domain.StatusFailure},
			}}),
			contains: []string{
				"classDef running",
				"class s waiting;",
				"class w running;",
				"class w active;",
			},
			excludes: []string{"class x", "class gone"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := graph.GenerateMermaid(&tt.desc, tt.overlay)
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("GenerateMermaid() = \n%v\nWant substring: %v", got, want)
				}
			}
			for _, unwanted := range tt.excludes {
				if strings.Contains(got, unwanted) {
					t.Errorf("GenerateMermaid() = \n%v\nUnexpected substring: %v", got, unwanted)
				}
			}
		})
	}
}
