package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/wbmqtt-import/internal/device"
)

// commandRequest is the body of POST /devices/{id}/command.
type commandRequest struct {
	Command string `json:"command"`
	Level   *int   `json:"level,omitempty"`
}

// handleListDevices returns every known device.
//
// Query parameters:
//   - enabled: "true" or "false" to filter by membership
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.importer.Devices(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	switch r.URL.Query().Get("enabled") {
	case "":
	case "true", "false":
		want := r.URL.Query().Get("enabled") == "true"
		filtered := devices[:0]
		for _, d := range devices {
			if d.Enabled == want {
				filtered = append(filtered, d)
			}
		}
		devices = filtered
	default:
		writeBadRequest(w, "enabled must be true or false")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
}

// handleGetDevice returns a single device by ID.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	info, err := s.importer.Device(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleEnableDevice(w http.ResponseWriter, r *http.Request) {
	s.setEnabled(w, r, true)
}

func (s *Server) handleDisableDevice(w http.ResponseWriter, r *http.Request) {
	s.setEnabled(w, r, false)
}

func (s *Server) setEnabled(w http.ResponseWriter, r *http.Request, enabled bool) {
	id := chi.URLParam(r, "id")
	if err := s.importer.SetEnabled(r.Context(), id, enabled); err != nil {
		writeDomainError(w, err)
		return
	}
	info, err := s.importer.Device(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// handleForgetDevice drops a device and everything stored about it.
func (s *Server) handleForgetDevice(w http.ResponseWriter, r *http.Request) {
	if err := s.importer.Forget(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleDeviceCommand routes a command through the registry to the
// device's owner.
//
// Request body:
//
//	{"command": "on" | "off" | "exact", "level": 0..99}
func (s *Server) handleDeviceCommand(w http.ResponseWriter, r *http.Request) {
	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	cmd, err := device.ParseCommand(req.Command, req.Level)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	id := chi.URLParam(r, "id")
	if err := s.registry.Command(r.Context(), id, cmd); err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"device_id": id,
		"command":   cmd.String(),
		"status":    "accepted",
	})
}
