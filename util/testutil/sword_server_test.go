package testutil_test

import (
	"bytes"
	"github.com/APTrust/swordv3/util/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"io/ioutil"
	"net/http"
	"testing"
)

func TestSwordTestServerRewritesURLs(t *testing.T) {
	server := testutil.NewSwordTestServer()
	defer server.Close()

	resp, err := http.Get(server.ObjectURL())
	require.Nil(t, err)
	body, _ := ioutil.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), server.ObjectURL())
	assert.NotContains(t, string(body), "repo.example.com/sword/objects/1001")
}

func TestSwordTestServerRecordsRequests(t *testing.T) {
	server := testutil.NewSwordTestServer()
	defer server.Close()

	resp, err := http.Post(server.ServiceURL(), "application/json", bytes.NewReader([]byte(`{"a":1}`)))
	require.Nil(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	requests := server.RequestsFor("POST", "/service")
	require.Equal(t, 1, len(requests))
	assert.Equal(t, `{"a":1}`, string(requests[0].Body))
}

func TestSwordTestServerFailWith(t *testing.T) {
	server := testutil.NewSwordTestServer()
	defer server.Close()
	server.FailWith["GET /service"] = http.StatusForbidden

	resp, err := http.Get(server.ServiceURL())
	require.Nil(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, err = http.Get(server.URL + "/nowhere")
	require.Nil(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSwordTestServerAppendSequence(t *testing.T) {
	server := testutil.NewSwordTestServer()
	defer server.Close()
	server.AppendStatus = [][]byte{[]byte(`{"n":1}`), []byte(`{"n":2}`)}

	bodies := make([]string, 0)
	for i := 0; i < 3; i++ {
		resp, err := http.Post(server.ObjectURL(), "application/pdf", bytes.NewReader([]byte("pdf")))
		require.Nil(t, err)
		body, _ := ioutil.ReadAll(resp.Body)
		resp.Body.Close()
		bodies = append(bodies, string(body))
	}
	assert.Equal(t, []string{`{"n":1}`, `{"n":2}`, `{"n":2}`}, bodies)
}

func TestSwordTestServerFailSequence(t *testing.T) {
	server := testutil.NewSwordTestServer()
	defer server.Close()
	server.AppendStatus = [][]byte{[]byte(`{"n":1}`), []byte(`{"n":2}`)}
	server.FailSequence["POST /objects/1001"] = []int{0, http.StatusInternalServerError}

	statuses := make([]int, 0)
	bodies := make([]string, 0)
	for i := 0; i < 3; i++ {
		resp, err := http.Post(server.ObjectURL(), "application/pdf", bytes.NewReader([]byte("pdf")))
		require.Nil(t, err)
		body, _ := ioutil.ReadAll(resp.Body)
		resp.Body.Close()
		statuses = append(statuses, resp.StatusCode)
		bodies = append(bodies, string(body))
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusInternalServerError, http.StatusOK}, statuses)
	// A failed call does not use up a scripted append response.
	assert.Equal(t, `{"n":1}`, bodies[0])
	assert.Equal(t, `{"n":2}`, bodies[2])
}
