package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type fakeControls struct {
	sensitivity int
	noise       int
	switches    int
	vizName     string
}

func (f *fakeControls) Sensitivity() int          { return f.sensitivity }
func (f *fakeControls) NoiseReduction() int       { return f.noise }
func (f *fakeControls) SetSensitivity(v int)      { f.sensitivity = v }
func (f *fakeControls) SetNoiseReduction(v int)   { f.noise = v }
func (f *fakeControls) SwitchVisualization()      { f.switches++ }
func (f *fakeControls) VisualizationName() string { return f.vizName }
func (f *fakeControls) PowerState() string        { return "awake" }
func (f *fakeControls) TrackText() string         { return "01. Song" }
func (f *fakeControls) PlayerConnected() bool     { return true }

func TestHandleStatus(t *testing.T) {
	ctrl := &fakeControls{sensitivity: 100, noise: 77, vizName: "spectrum"}
	srv := NewServer(ctrl, nil)

	rec := httptest.NewRecorder()
	srv.handleStatus(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	var status Status
	if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if status.Sensitivity != 100 || status.NoiseReduction != 77 {
		t.Fatalf("knobs: %+v", status)
	}
	if status.Track != "01. Song" || !status.PlayerConnected {
		t.Fatalf("player fields: %+v", status)
	}
	if status.PowerState != "awake" || status.Visualization != "spectrum" {
		t.Fatalf("state fields: %+v", status)
	}
}

func TestHandleUpdateAppliesPartialFields(t *testing.T) {
	ctrl := &fakeControls{sensitivity: 100, noise: 77}
	srv := NewServer(ctrl, nil)

	body := strings.NewReader(`{"sensitivity":150,"switchVisualization":true}`)
	rec := httptest.NewRecorder()
	srv.handleUpdate(rec, httptest.NewRequest(http.MethodPost, "/api/update", body))

	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
	if ctrl.sensitivity != 150 {
		t.Fatalf("sensitivity=%d want 150", ctrl.sensitivity)
	}
	if ctrl.noise != 77 {
		t.Fatalf("noise reduction changed without being set: %d", ctrl.noise)
	}
	if ctrl.switches != 1 {
		t.Fatalf("switches=%d want 1", ctrl.switches)
	}
}

func TestHandleUpdateRejectsGet(t *testing.T) {
	srv := NewServer(&fakeControls{}, nil)
	rec := httptest.NewRecorder()
	srv.handleUpdate(rec, httptest.NewRequest(http.MethodGet, "/api/update", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status=%d want 405", rec.Code)
	}
}

func TestHandleUpdateRejectsBadJSON(t *testing.T) {
	srv := NewServer(&fakeControls{}, nil)
	rec := httptest.NewRecorder()
	srv.handleUpdate(rec, httptest.NewRequest(http.MethodPost, "/api/update", strings.NewReader("{")))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status=%d want 400", rec.Code)
	}
}
