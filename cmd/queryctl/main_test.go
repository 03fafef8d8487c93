package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dreamware/overlay/internal/query"
	"github.com/dreamware/overlay/internal/transport"
	"github.com/stretchr/testify/require"
)

func TestQueryCommand_RoundTripsAgainstFakeNode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		transport.WriteJSON(w, http.StatusOK, transport.QueryResponse{
			UID: "u1", TotalRecords: 3, Status: query.StatusOK,
		})
	}))
	defer srv.Close()

	root := newRootCommand()
	root.SetArgs([]string{"query", "--addr", srv.URL, "--field", "x", "--comparator", ">", "--threshold", "0", "--limit", "5"})
	require.NoError(t, root.Execute())
}

func TestRootCommand_HasAllSubcommands(t *testing.T) {
	root := newRootCommand()
	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	require.True(t, names["query"])
	require.True(t, names["chunk"])
	require.True(t, names["metrics"])
}
