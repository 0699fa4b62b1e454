package endpoints

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHandleStatus(t *testing.T) {
	s := newTestServer(t)

	var resp StatusResponse
	assert.Equal(t, http.StatusOK, get(t, s, "/", &resp))
	assert.Equal(t, []string{"default"}, resp.Repositories)
	assert.Equal(t, 2, resp.Models)
}

func TestHandleStatusVersion(t *testing.T) {
	t.Setenv("DM_VERSION_DISPLAY", "1.2.3")
	s := newTestServer(t)

	var resp StatusResponse
	assert.Equal(t, http.StatusOK, get(t, s, "/", &resp))
	assert.Equal(t, "1.2.3", resp.Version)
}
