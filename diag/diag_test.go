package diag

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cschleiden/go-wfmc/backend"
	"github.com/cschleiden/go-wfmc/backend/memory"
	"github.com/cschleiden/go-wfmc/definition"
	"github.com/cschleiden/go-wfmc/engine"
	wfmcprom "github.com/cschleiden/go-wfmc/metrics/prometheus"
	"github.com/cschleiden/go-wfmc/tester"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func sample() *definition.ProcessDefinition {
	pd := definition.NewProcessDefinition("sample")
	pd.DefineApplications(map[string]*definition.Application{
		"review": definition.NewApplication(),
	})
	pd.DefineActivities(map[string]*definition.ActivityDefinition{
		"review": definition.NewActivity(),
		"done":   definition.NewActivity(),
	})
	pd.DefineTransitions(definition.NewTransition("review", "done"))

	review, _ := pd.Activity("review")
	_ = review.AddApplication("review")

	return pd
}

func setup(t *testing.T, opts ...backend.BackendOption) (*engine.Engine, *httptest.Server, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	opts = append([]backend.BackendOption{backend.WithMetrics(wfmcprom.New(wfmcprom.WithRegisterer(reg)))}, opts...)

	b := memory.NewMemoryBackend(opts...)

	tt := tester.New()
	require.NoError(t, tt.Register(sample()))
	require.NoError(t, tt.RegisterApplication("review"))

	e := engine.New(b, tt.Runtime)
	t.Cleanup(e.Close)

	srv := httptest.NewServer(NewServeMux(b, WithMetrics(reg)))
	t.Cleanup(srv.Close)

	return e, srv, reg
}

func get(t *testing.T, url string) (int, []byte) {
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, body
}

func Test_Instance(t *testing.T) {
	e, srv, _ := setup(t)

	instance, err := e.CreateProcess(context.Background(), engine.ProcessInstanceOptions{InstanceID: "order-1"}, "sample")
	require.NoError(t, err)

	status, body := get(t, srv.URL+"/api/instances/"+instance.InstanceID)
	require.Equal(t, http.StatusOK, status)

	var info ProcessInstanceInfo
	require.NoError(t, json.Unmarshal(body, &info))
	require.Equal(t, "order-1", info.InstanceID)
	require.Equal(t, "sample", info.DefinitionID)
	require.Equal(t, "running", info.State)
	require.Nil(t, info.CompletedAt)
	require.Len(t, info.Activities, 1)
	require.Equal(t, "review", info.Activities[0].DefinitionID)
	require.Equal(t, []WorkItemInfo{{ID: 1, Application: "review"}}, info.Activities[0].WorkItems)
}

func Test_Instance_NotFound(t *testing.T) {
	_, srv, _ := setup(t)

	status, body := get(t, srv.URL+"/api/instances/missing")
	require.Equal(t, http.StatusNotFound, status)
	require.Contains(t, string(body), "process instance not found")
}

func Test_Stats(t *testing.T) {
	e, srv, _ := setup(t)

	_, err := e.CreateProcess(context.Background(), engine.ProcessInstanceOptions{}, "sample")
	require.NoError(t, err)

	status, body := get(t, srv.URL+"/api/stats")
	require.Equal(t, http.StatusOK, status)
	require.JSONEq(t, `{"active_process_instances":1,"finished_process_instances":0}`, string(body))
}

func Test_MethodNotAllowed(t *testing.T) {
	_, srv, _ := setup(t)

	resp, err := http.Post(srv.URL+"/api/stats", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()

	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func Test_Metrics(t *testing.T) {
	e, srv, _ := setup(t)

	_, err := e.CreateProcess(context.Background(), engine.ProcessInstanceOptions{}, "sample")
	require.NoError(t, err)

	status, body := get(t, srv.URL+"/metrics")
	require.Equal(t, http.StatusOK, status)
	require.Contains(t, string(body), "wfmc_engine_operation_seconds")
}
