package tui

import (
	"bytes"
	"testing"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/tree"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
)

func TestRenderer_Tick(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, termenv.WithProfile(termenv.Ascii))

	nodes := []tree.NodeInfo{
		{ID: "main", Kind: "sequence", Status: domain.StatusWaiting},
		{ID: "wait", Kind: "wait_frames", Status: domain.StatusRunning, Active: true},
		{ID: "after", Kind: "log"},
	}
	r.Tick(3, domain.StatusWaiting, nodes)
	assert.Equal(t, "[   3] waiting  wait\n", buf.String())

	buf.Reset()
	r.Verbose = true
	r.Tick(4, domain.StatusSuccess, nodes)
	out := buf.String()
	assert.Contains(t, out, "[   4] success\n")
	assert.Contains(t, out, "main")
	assert.NotContains(t, out, "after")
}

func TestRenderer_ColorsStatuses(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, termenv.WithProfile(termenv.TrueColor))
	assert.Contains(t, r.Status(domain.StatusFailure), "\x1b[")
	assert.Contains(t, r.Status(domain.StatusFailure), "failure")

	plain := NewRenderer(&buf, termenv.WithProfile(termenv.Ascii))
	assert.Equal(t, "running", plain.Status(domain.StatusRunning))
}

func TestRenderer_Variables(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, termenv.WithProfile(termenv.Ascii))
	r.Variables([]domain.VariableState{{Name: "Health", Value: 30}})
	assert.Equal(t, "       Health = 30\n", buf.String())
}

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	PrintBanner(&buf)
	assert.Contains(t, buf.String(), "__,_|_|")
}
