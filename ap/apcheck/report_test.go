package apcheck_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gordian-engine/alpenglow/ap/apcheck"
	"github.com/gordian-engine/alpenglow/ap/apmodel"
)

func TestReport_Resolve(t *testing.T) {
	t.Parallel()

	r := apcheck.Report{Stats: apcheck.Stats{Exhaustive: true}}
	r.Resolve()
	require.Equal(t, apcheck.OutcomePass, r.Outcome)

	// A truncated exploration without violations is inconclusive, not a pass.
	r = apcheck.Report{}
	r.Resolve()
	require.Equal(t, apcheck.OutcomeInconclusive, r.Outcome)

	// Violations fail even when exploration completed.
	r = apcheck.Report{
		Violations: []apcheck.Violation{{Property: "NoFork"}},
		Stats:      apcheck.Stats{Exhaustive: true},
	}
	r.Resolve()
	require.Equal(t, apcheck.OutcomeFail, r.Outcome)

	// Violations dominate truncation too.
	r = apcheck.Report{Violations: []apcheck.Violation{{Property: "NoFork"}}}
	r.Resolve()
	require.Equal(t, apcheck.OutcomeFail, r.Outcome)
}

func TestOutcome_String(t *testing.T) {
	t.Parallel()

	require.Equal(t, "pass", apcheck.OutcomePass.String())
	require.Equal(t, "fail", apcheck.OutcomeFail.String())
	require.Equal(t, "inconclusive", apcheck.OutcomeInconclusive.String())
	require.Equal(t, "Outcome(0)", apcheck.Outcome(0).String())
}

func TestViolation_String(t *testing.T) {
	t.Parallel()

	v := apcheck.Violation{
		Property: "NoFork",
		Slot:     3,
		Round:    apmodel.Round2,
		Time:     17,
		Detail:   "two blocks finalized",
	}
	require.Equal(t, "NoFork violated at slot=3 round2 t=17: two blocks finalized", v.String())
}
