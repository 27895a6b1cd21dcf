package apreport

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/neilotoole/slogt"
	"github.com/stretchr/testify/require"

	"github.com/gordian-engine/alpenglow/ap/apcheck"
	"github.com/gordian-engine/alpenglow/ap/apsim"
)

func testCollector() *ResultCollector {
	c := NewResultCollector("test-run")
	c.AddReport(apcheck.Report{
		Name:    "safety",
		Outcome: apcheck.OutcomePass,
		Stats:   apcheck.Stats{StatesVisited: 42, Exhaustive: true},
	})
	c.AddReport(apcheck.Report{
		Name:    "bounded-time",
		Outcome: apcheck.OutcomeFail,
		Violations: []apcheck.Violation{
			{Property: "BoundedTime", Detail: "over budget"},
		},
	})
	c.AddSim(SimResult{
		Name:    "100 validators",
		Summary: apsim.Summary{Slots: 1000, Successes: 990},
	})
	return c
}

func TestHTTP_Run(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(newMux(slogt.New(t), HTTPServerConfig{Results: testCollector()}))
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/run")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)

	var got struct {
		Run          string `json:"run"`
		Pass         int    `json:"pass"`
		Fail         int    `json:"fail"`
		Inconclusive int    `json:"inconclusive"`
		Simulations  int    `json:"simulations"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))

	require.Equal(t, "test-run", got.Run)
	require.Equal(t, 1, got.Pass)
	require.Equal(t, 1, got.Fail)
	require.Zero(t, got.Inconclusive)
	require.Equal(t, 1, got.Simulations)
}

func TestHTTP_Checks(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(newMux(slogt.New(t), HTTPServerConfig{Results: testCollector()}))
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/checks")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)

	var got []apcheck.Report
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))

	// Sorted by name.
	require.Len(t, got, 2)
	require.Equal(t, "bounded-time", got[0].Name)
	require.Equal(t, "safety", got[1].Name)
}

func TestHTTP_CheckByName(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(newMux(slogt.New(t), HTTPServerConfig{Results: testCollector()}))
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/checks/safety")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)

	var got apcheck.Report
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Equal(t, "safety", got.Name)
	require.Equal(t, apcheck.OutcomePass, got.Outcome)

	resp, err = srv.Client().Get(srv.URL + "/checks/nonsense")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, 404, resp.StatusCode)
}

func TestHTTP_Simulations(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(newMux(slogt.New(t), HTTPServerConfig{Results: testCollector()}))
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/simulations")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)

	var got []SimResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Len(t, got, 1)
	require.Equal(t, "100 validators", got[0].Name)
	require.Equal(t, 1000, got[0].Summary.Slots)
}
