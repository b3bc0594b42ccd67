package e2e

import (
	"fmt"
	"net/http"
	"testing"
)

func validAlignStartBody() string {
	return `{
		"name": "test",
		"sequence": "MKVLAAGITGRQWERTYASDFGHKLMNPCVSTAMKVLAAGI",
		"templates": {
			"mode": "state",
			"state": "Active"
		}
	}`
}

func TestAlignStart_Success(t *testing.T) {
	ta := setupApp(t)

	resp, err := doAuthRequest(t, ta.app, http.MethodPost, "/api/align/start", validAlignStartBody())
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusAccepted)

	result := parseJSON(t, resp)
	if result["jobId"] == nil || result["jobId"] == "" {
		t.Error("expected 'jobId' in response")
	}
	if result["status"] != "queued" {
		t.Errorf("expected status 'queued', got %v", result["status"])
	}
	searchID, _ := result["searchId"].(string)
	if len(searchID) != len("test_")+5 {
		t.Errorf("expected deterministic searchId, got %q", searchID)
	}
}

func TestAlignStart_DeterministicSearchID(t *testing.T) {
	ta := setupApp(t)

	var ids []string
	for i := 0; i < 2; i++ {
		resp, err := doAuthRequest(t, ta.app, http.MethodPost, "/api/align/start", validAlignStartBody())
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		result := parseJSON(t, resp)
		ids = append(ids, fmt.Sprintf("%v", result["searchId"]))
	}
	if ids[0] != ids[1] {
		t.Errorf("searchId should be stable across submissions: %v", ids)
	}
}

func TestAlignStart_NoAuth(t *testing.T) {
	ta := setupApp(t)

	resp, err := doRequest(ta.app, http.MethodPost, "/api/align/start", validAlignStartBody(), nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusUnauthorized)
}

func TestAlignStart_InvalidBody(t *testing.T) {
	ta := setupApp(t)

	cases := []struct {
		name string
		body string
	}{
		{"missing sequence", `{"name": "test"}`},
		{"sequence too short", `{"name": "test", "sequence": "MKV"}`},
		{"bad template mode", `{"name": "test", "sequence": "MKVLAAGITGRQWERTYASDFGHKL", "templates": {"mode": "cluster"}}`},
		{"not json", `sequence=MKVLA`},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := doAuthRequest(t, ta.app, http.MethodPost, "/api/align/start", tt.body)
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			assertStatus(t, resp, http.StatusBadRequest)
		})
	}
}

func TestAlignStatus_Success(t *testing.T) {
	ta := setupApp(t)

	resp, err := doAuthRequest(t, ta.app, http.MethodPost, "/api/align/start", validAlignStartBody())
	if err != nil {
		t.Fatalf("start request failed: %v", err)
	}
	started := parseJSON(t, resp)
	jobID := fmt.Sprintf("%v", started["jobId"])

	resp, err = doAuthRequest(t, ta.app, http.MethodGet, "/api/align/status/"+jobID, "")
	if err != nil {
		t.Fatalf("status request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)

	status := parseJSON(t, resp)
	if status["jobId"] != jobID {
		t.Errorf("expected jobId %s, got %v", jobID, status["jobId"])
	}
	if status["status"] != "queued" && status["status"] != "running" {
		t.Errorf("unexpected status %v", status["status"])
	}
}

func TestAlignStatus_NotFound(t *testing.T) {
	ta := setupApp(t)

	resp, err := doAuthRequest(t, ta.app, http.MethodGet, "/api/align/status/nonexistent-job", "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusNotFound)
}

func TestAlignResult_NotCompleted(t *testing.T) {
	ta := setupApp(t)

	resp, err := doAuthRequest(t, ta.app, http.MethodPost, "/api/align/start", validAlignStartBody())
	if err != nil {
		t.Fatalf("start request failed: %v", err)
	}
	started := parseJSON(t, resp)
	jobID := fmt.Sprintf("%v", started["jobId"])

	// No worker is running, so the job cannot have completed
	resp, err = doAuthRequest(t, ta.app, http.MethodGet, "/api/align/result/"+jobID, "")
	if err != nil {
		t.Fatalf("result request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusBadRequest)
}

func TestAlignReshuffle_RequiresCompletedJob(t *testing.T) {
	ta := setupApp(t)

	resp, err := doAuthRequest(t, ta.app, http.MethodPost, "/api/align/start", validAlignStartBody())
	if err != nil {
		t.Fatalf("start request failed: %v", err)
	}
	started := parseJSON(t, resp)
	jobID := fmt.Sprintf("%v", started["jobId"])

	resp, err = doAuthRequest(t, ta.app, http.MethodPost, "/api/align/reshuffle/"+jobID, "")
	if err != nil {
		t.Fatalf("reshuffle request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusBadRequest)
}

func TestAlignReshuffle_NotFound(t *testing.T) {
	ta := setupApp(t)

	resp, err := doAuthRequest(t, ta.app, http.MethodPost, "/api/align/reshuffle/nonexistent-job", "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusNotFound)
}
