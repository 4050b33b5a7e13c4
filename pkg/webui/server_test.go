package webui

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"northstar/pkg/config"
	"northstar/pkg/engine"
	"northstar/pkg/enrich"
	"northstar/pkg/proposal"
	"northstar/pkg/state"
)

func newTestServer(t *testing.T, adminPassword string) *httptest.Server {
	t.Helper()

	cfg := config.Defaults()
	cfg.Admin.Password = adminPassword
	require.NoError(t, config.SetConfig(cfg))

	eng := engine.New(engine.Options{
		Store:    state.NewMemoryStore(),
		Services: enrich.NewMockServices(enrich.MockConfig{Seed: 1}),
	})

	mux := http.NewServeMux()
	NewServer(eng).RegisterRoutes(mux)

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()

	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

func decodeState(t *testing.T, resp *http.Response) *proposal.State {
	t.Helper()
	defer resp.Body.Close()

	var snap proposal.State
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	return &snap
}

func decodeCreate(t *testing.T, resp *http.Response) (string, *proposal.State) {
	t.Helper()
	defer resp.Body.Close()

	var body struct {
		ID    string          `json:"id"`
		State *proposal.State `json:"state"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.NotNil(t, body.State)
	return body.ID, body.State
}

// driveToGate runs a session through intake over HTTP until it reaches the
// approval gate.
func driveToGate(t *testing.T, server *httptest.Server) *proposal.State {
	t.Helper()

	resp := postJSON(t, server.URL+"/api/proposals/create", map[string]string{
		"user_request": "I need a proposal for Acme Corp",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	_, snap := decodeCreate(t, resp)

	for _, answer := range []string{"Software", "100000", "Q3 2026"} {
		resp = postJSON(t, fmt.Sprintf("%s/api/proposals/%s/continue", server.URL, snap.SessionID),
			map[string]string{"response": answer})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		snap = decodeState(t, resp)
	}

	require.Equal(t, "wait_for_approval", string(snap.CurrentStep))
	return snap
}

func TestCreateReturnsQuestion(t *testing.T) {
	server := newTestServer(t, "")

	resp := postJSON(t, server.URL+"/api/proposals/create", map[string]string{
		"user_request": "I need a proposal for Acme Corp",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	id, snap := decodeCreate(t, resp)
	assert.NotEmpty(t, id)
	assert.Equal(t, id, snap.SessionID)
	assert.Equal(t, "intake", string(snap.CurrentStep))
	assert.NotEmpty(t, snap.CurrentQuestion)
	assert.Equal(t, "Acme Corp", snap.CollectedFields["client_name"])
}

func TestCreateAcceptsLegacyFieldName(t *testing.T) {
	server := newTestServer(t, "")

	resp := postJSON(t, server.URL+"/api/proposals/create", map[string]string{
		"initial_message": "I need a proposal for Acme Corp",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	_, snap := decodeCreate(t, resp)
	assert.Equal(t, "Acme Corp", snap.CollectedFields["client_name"])
}

func TestContinueImageField(t *testing.T) {
	server := newTestServer(t, "")

	resp := postJSON(t, server.URL+"/api/proposals/create", map[string]string{
		"user_request": "I need a proposal for Acme Corp",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	_, snap := decodeCreate(t, resp)

	resp = postJSON(t, fmt.Sprintf("%s/api/proposals/%s/continue", server.URL, snap.SessionID),
		map[string]string{"response": "Software", "image": "floorplan.png"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	snap = decodeState(t, resp)
	require.Len(t, snap.Attachments, 1)
	assert.Equal(t, "floorplan.png", snap.Attachments[0].Reference)
}

func TestCreateEmptyMessage(t *testing.T) {
	server := newTestServer(t, "")

	resp := postJSON(t, server.URL+"/api/proposals/create", map[string]string{})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "validation_error", body["kind"])
}

func TestGetUnknownSession(t *testing.T) {
	server := newTestServer(t, "")

	resp, err := http.Get(server.URL + "/api/proposals/nope")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestFullApprovalFlow(t *testing.T) {
	server := newTestServer(t, "")
	snap := driveToGate(t, server)

	// Pending queue lists the session.
	resp, err := http.Get(server.URL + "/api/admin/pending")
	require.NoError(t, err)
	var pending []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&pending))
	resp.Body.Close()
	require.Len(t, pending, 1)
	assert.Equal(t, snap.SessionID, pending[0]["id"])

	// Approve with comments.
	resp = postJSON(t, fmt.Sprintf("%s/api/admin/%s/action", server.URL, snap.SessionID),
		map[string]string{"action": "approve", "comments": "Ship it"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decided := decodeState(t, resp)
	assert.Equal(t, "finalize", string(decided.CurrentStep))
	assert.Equal(t, "finalized", string(decided.ApprovalStatus))

	// Finalized endpoint serves the full session snapshot.
	resp, err = http.Get(fmt.Sprintf("%s/api/proposals/%s/finalized", server.URL, snap.SessionID))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	final := decodeState(t, resp)
	assert.Equal(t, snap.SessionID, final.SessionID)
	assert.Equal(t, "finalize", string(final.CurrentStep))
	assert.Equal(t, "finalized", string(final.ApprovalStatus))
	assert.Contains(t, final.FinalDraft, "Ship it")
	assert.NotNil(t, final.FinalizedTimestamp)
	assert.NotEmpty(t, final.AuditLog)
	assert.NotNil(t, final.Pricing)
}

func TestRejectFlow(t *testing.T) {
	server := newTestServer(t, "")
	snap := driveToGate(t, server)

	resp := postJSON(t, fmt.Sprintf("%s/api/admin/%s/action", server.URL, snap.SessionID),
		map[string]string{"action": "reject", "comments": "Margin too thin"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decided := decodeState(t, resp)
	assert.Equal(t, "rejected", string(decided.CurrentStep))

	// Finalized endpoint refuses a rejected session.
	resp, err := http.Get(fmt.Sprintf("%s/api/proposals/%s/finalized", server.URL, snap.SessionID))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestActionWithoutCommentsRejected(t *testing.T) {
	server := newTestServer(t, "")
	snap := driveToGate(t, server)

	resp := postJSON(t, fmt.Sprintf("%s/api/admin/%s/action", server.URL, snap.SessionID),
		map[string]string{"action": "approve"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestContinueWhilePendingIsConflict(t *testing.T) {
	server := newTestServer(t, "")
	snap := driveToGate(t, server)

	resp := postJSON(t, fmt.Sprintf("%s/api/proposals/%s/continue", server.URL, snap.SessionID),
		map[string]string{"answer": "wait, one more thing"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestAdminAuthRequired(t *testing.T) {
	server := newTestServer(t, "hunter2")

	resp, err := http.Get(server.URL + "/api/admin/pending")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, server.URL+"/api/admin/pending", nil)
	require.NoError(t, err)
	req.SetBasicAuth("admin", "hunter2")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHealthz(t *testing.T) {
	server := newTestServer(t, "")

	resp, err := http.Get(server.URL + "/api/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestMetricsExposed(t *testing.T) {
	server := newTestServer(t, "")

	resp, err := http.Get(server.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
