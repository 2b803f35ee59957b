package cmd

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BioHazard786/warpchat/internal/chat"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCommand() *cobra.Command {
	c := &cobra.Command{}
	c.SetContext(context.Background())
	return c
}

func TestFetchStats(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/stats", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"online":5,"waiting":1,"pairings":2,"negotiation":{"offered":2}}`))
	}))
	defer srv.Close()

	stats, err := fetchStats(testCommand(), srv.URL+"/stats")
	require.NoError(t, err)
	assert.Equal(t, 5, stats.Online)
	assert.Equal(t, 1, stats.Waiting)
	assert.Equal(t, 2, stats.Pairings)
	assert.Equal(t, map[string]int{"offered": 2}, stats.Negotiation)
}

func TestFetchStatsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "busy", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := fetchStats(testCommand(), srv.URL+"/stats")
	assert.ErrorIs(t, err, chat.ErrTransportUnavailable)

	srv.Close()
	_, err = fetchStats(testCommand(), srv.URL+"/stats")
	assert.ErrorIs(t, err, chat.ErrTransportUnavailable)
}

func TestCommandTree(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["chat"])
	assert.True(t, names["stats"])
	assert.True(t, names["serve"])

	flag := chatCmd.Flags().Lookup("interests")
	require.NotNil(t, flag)
	assert.Equal(t, "i", flag.Shorthand)
}
