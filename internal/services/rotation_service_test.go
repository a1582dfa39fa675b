package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/benmeehan/docks/internal/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rotationBody = `[
  {"host": "http://10.4.2.9:4242", "tags": "5678, build, run", "numBuilds": "3", "numContainers": 12},
  {"host": "http://10.4.1.8:4242", "tags": "1234,run", "numBuilds": 0, "numContainers": "4"},
  {"host": "http://10.4.1.7:4242", "tags": "1234", "numBuilds": 1, "numContainers": 2},
  {"host": "", "tags": "broken"}
]`

func rotationServer(t *testing.T, deletes *[]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/docks", r.URL.Path)
		switch r.Method {
		case http.MethodGet:
			_, _ = w.Write([]byte(rotationBody))
		case http.MethodDelete:
			*deletes = append(*deletes, r.URL.Query().Get("host"))
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func rotationService(srv *httptest.Server) *RotationService {
	runner, _ := testRunner()
	config := testConfig()
	env := config.Environments["gamma"]
	env.RotationHost = srv.URL
	config.Environments["gamma"] = env
	return NewRotationService(runner, config, srv.Client(), zerolog.Nop())
}

func TestRotationService_Docks(t *testing.T) {
	var deletes []string
	svc := rotationService(rotationServer(t, &deletes))

	docks, err := svc.Docks(context.Background(), "gamma", "")

	require.NoError(t, err)
	require.Len(t, docks, 3)
	assert.Equal(t, "10.4.1.7", docks[0].IP)
	assert.Equal(t, "10.4.1.8", docks[1].IP)
	assert.Equal(t, "5678", docks[2].Org)
	assert.Equal(t, []string{"5678", "build", "run"}, docks[2].Tags)
	assert.Equal(t, 3, docks[2].Builds)
	assert.Equal(t, 12, docks[2].Containers)
	assert.Equal(t, 4, docks[1].Containers)
}

func TestRotationService_DocksOrgPrefix(t *testing.T) {
	var deletes []string
	svc := rotationService(rotationServer(t, &deletes))

	docks, err := svc.Docks(context.Background(), "gamma", "12")

	require.NoError(t, err)
	assert.Len(t, docks, 2)
}

func TestRotationService_Remove(t *testing.T) {
	var deletes []string
	svc := rotationService(rotationServer(t, &deletes))

	res, err := svc.Remove(context.Background(), "gamma", "10.4.1.7", false)

	require.NoError(t, err)
	assert.True(t, res.Performed)
	assert.Equal(t, []string{"http://10.4.1.7:4242"}, deletes)
}

func TestRotationService_RemoveDryRun(t *testing.T) {
	var deletes []string
	svc := rotationService(rotationServer(t, &deletes))

	res, err := svc.Remove(context.Background(), "gamma", "10.4.1.7", true)

	require.NoError(t, err)
	assert.False(t, res.Performed)
	assert.Equal(t, "http://10.4.1.7:4242", res.Value)
	assert.Empty(t, deletes)
}

func TestRotationURL(t *testing.T) {
	assert.Equal(t, "http://mavis.runnable-gamma.com/docks", rotationURL("mavis.runnable-gamma.com", "/docks"))
	assert.Equal(t, "https://mavis.example/docks", rotationURL("https://mavis.example/", "/docks"))
}

func TestSortDocks(t *testing.T) {
	docks := []models.Dock{
		{Org: "default", IP: "10.0.0.1"},
		{Org: "9", IP: "10.0.0.10"},
		{Org: "10", IP: "10.0.0.2"},
		{Org: "9", IP: "10.0.0.9"},
	}

	SortDocks(docks)

	var got [][2]string
	for _, d := range docks {
		got = append(got, [2]string{d.Org, d.IP})
	}
	assert.Equal(t, [][2]string{
		{"9", "10.0.0.9"},
		{"9", "10.0.0.10"},
		{"10", "10.0.0.2"},
		{"default", "10.0.0.1"},
	}, got)
}

func TestCompareDocks(t *testing.T) {
	tests := []struct {
		name      string
		orgA, ipA string
		orgB, ipB string
		want      int
	}{
		{"numeric orgs by value", "9", "10.0.0.1", "10", "10.0.0.1", -1},
		{"numeric before named", "1234", "10.0.0.1", "codenow", "10.0.0.1", -1},
		{"named before default", "codenow", "10.0.0.1", "default", "10.0.0.1", -1},
		{"ips by value", "1", "10.0.0.10", "1", "10.0.0.9", 1},
		{"unparsable ips by text", "1", "b", "1", "a", 1},
		{"equal", "1", "10.0.0.1", "1", "10.0.0.1", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, compareDocks(tt.orgA, tt.ipA, tt.orgB, tt.ipB))
		})
	}
}
