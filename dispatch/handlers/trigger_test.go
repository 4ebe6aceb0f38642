package handlers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/P-juuny/tsp-prob/dispatch/handlers"
)

func TestHTTPTrigger(t *testing.T) {
	var paths []string
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.Method+" "+r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer remote.Close()

	trigger := handlers.NewHTTPTrigger(remote.URL)

	status, err := trigger.Import(context.Background())
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)

	status, err = trigger.Assign(context.Background())
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)

	assert.Equal(t, []string{"POST /delivery/import", "POST /delivery/assign"}, paths)
}

func TestHTTPTrigger_Unreachable(t *testing.T) {
	trigger := handlers.NewHTTPTrigger("http://127.0.0.1:1")
	_, err := trigger.Import(context.Background())
	assert.Error(t, err)
}
