package hotspot

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeOrgs(n, closingHour int) OrganizationReport {
	orgs := make([]Organization, n)
	for i := range orgs {
		orgs[i] = Organization{Name: "org", Lat: 51.16, Lon: 71.44, ClosingHour: closingHour}
	}
	return OrganizationReport{Organizations: orgs}
}

func TestFactorEmptyContext(t *testing.T) {
	p := DefaultRefineParams()
	assert.Equal(t, 1.0, p.Factor(OrganizationReport{}, EventReport{}))
}

func TestFactorOrganizationCap(t *testing.T) {
	p := DefaultRefineParams()
	// 1000 organisations would give 101 uncapped; the cap wins.
	got := p.Factor(makeOrgs(1000, 18), EventReport{})
	assert.Equal(t, 1.5, got)
}

func TestFactorOrganizationsAndEvent(t *testing.T) {
	p := DefaultRefineParams()
	events := EventReport{Events: []Event{{Name: "Concert", StartTime: time.Now()}}}

	// 12 organisations cap at 1.5; the event multiplies by 1.8.
	got := p.Factor(makeOrgs(12, 18), events)
	assert.InDelta(t, 2.7, got, 1e-12)
}

func TestFactorLateClosingBonus(t *testing.T) {
	p := DefaultRefineParams()

	// Two organisations closing at 23: (1 + 2/10) * 1.2.
	got := p.Factor(makeOrgs(2, 23), EventReport{})
	assert.InDelta(t, 1.44, got, 1e-12)

	// Same count closing at 19: no bonus.
	got = p.Factor(makeOrgs(2, 19), EventReport{})
	assert.InDelta(t, 1.2, got, 1e-12)
}

func TestFactorEventOnly(t *testing.T) {
	p := DefaultRefineParams()
	events := EventReport{Events: []Event{{Name: "Match", IsPredicted: true}}}
	assert.InDelta(t, 1.8, p.Factor(OrganizationReport{}, events), 1e-12)
}

func TestRefineUntouchedCells(t *testing.T) {
	base := NewGrid(5)
	for i := range base.Cells {
		base.Cells[i] = float64(i) + 0.25
	}
	cluster := Cluster{Members: []Candidate{
		{Cell: Cell{Row: 1, Col: 1}, Intensity: 0.9},
		{Cell: Cell{Row: 1, Col: 2}, Intensity: 0.8},
	}}

	adjusted, factors, err := Refine([]Cluster{cluster},
		[]OrganizationReport{makeOrgs(5, 18)}, []EventReport{{}},
		base, DefaultRefineParams())
	require.NoError(t, err)
	require.Len(t, factors, 1)
	assert.InDelta(t, 1.5, factors[0], 1e-12)

	member := map[int]bool{base.Idx(1, 1): true, base.Idx(1, 2): true}
	for i := range base.Cells {
		if member[i] {
			assert.InDelta(t, base.Cells[i]*1.5, adjusted.Cells[i], 1e-12)
		} else if adjusted.Cells[i] != base.Cells[i] {
			t.Fatalf("cell %d changed from %g to %g outside any cluster", i, base.Cells[i], adjusted.Cells[i])
		}
	}
}

func TestRefinePreservesBase(t *testing.T) {
	base := NewGrid(3)
	base.Set(0, 0, 10)
	cluster := Cluster{Members: []Candidate{{Cell: Cell{Row: 0, Col: 0}, Intensity: 1}}}

	_, _, err := Refine([]Cluster{cluster},
		[]OrganizationReport{makeOrgs(20, 18)}, []EventReport{{}},
		base, DefaultRefineParams())
	require.NoError(t, err)
	assert.Equal(t, 10.0, base.At(0, 0), "base grid must not be mutated")
}

func TestRefineLengthMismatch(t *testing.T) {
	base := NewGrid(3)
	_, _, err := Refine([]Cluster{{}}, nil, nil, base, DefaultRefineParams())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfig))
}

func TestApplyClusterBadData(t *testing.T) {
	grid := NewGrid(3)
	grid.Set(0, 0, math.NaN())
	grid.Set(0, 1, 5)
	cluster := Cluster{Members: []Candidate{
		{Cell: Cell{Row: 0, Col: 0}, Intensity: 1},
		{Cell: Cell{Row: 0, Col: 1}, Intensity: 1},
	}}

	err := ApplyCluster(grid, cluster, 2)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrData))
	assert.Equal(t, 5.0, grid.At(0, 1), "a data error must leave every member cell untouched")
}
