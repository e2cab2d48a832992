package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"lightrig/internal/catalog"
	"lightrig/internal/preset"
	"lightrig/internal/show"
)

// decode reads an optional JSON body into dst. An empty body leaves dst
// untouched. On failure it writes the 400 and returns false.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	writeBadRequest(w, "invalid JSON body: "+err.Error())
	return false
}

// respond writes {"ok": true} merged with fields, or the error.
func respond(w http.ResponseWriter, err error, fields map[string]any) {
	if err != nil {
		writeErr(w, err)
		return
	}
	out := map[string]any{"ok": true}
	for k, v := range fields {
		out[k] = v
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status, code := "ok", http.StatusOK
	out := map[string]any{"version": s.version, "ws_clients": s.hub.ClientCount()}
	if s.health != nil {
		if err := s.health.HealthCheck(r.Context()); err != nil {
			status, code = "degraded", http.StatusServiceUnavailable
			out["error"] = err.Error()
		}
	}
	out["status"] = status
	writeJSON(w, code, out)
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.show.State())
}

func (s *Server) handleMode(w http.ResponseWriter, r *http.Request) {
	var req show.ModeRequest
	if !decode(w, r, &req) {
		return
	}
	st, err := s.show.SetMode(req)
	respond(w, err, map[string]any{"state": st})
}

type selectRequest struct {
	Cluster *string `json:"cluster"`
	Sub     *string `json:"sub"`
}

type colorLockRequest struct {
	Enabled *bool   `json:"enabled"`
	Hex     *string `json:"hex"`
}

func (s *Server) handleAIClusters(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"clusters": s.show.Catalog().AIClusters})
}

func (s *Server) handleAISelect(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if !decode(w, r, &req) {
		return
	}
	st, err := s.show.SelectAI(req.Cluster, req.Sub)
	respond(w, err, map[string]any{"state": st})
}

func (s *Server) handleAIColor(w http.ResponseWriter, r *http.Request) {
	var req colorLockRequest
	if !decode(w, r, &req) {
		return
	}
	lock, err := s.show.SetAIColor(req.Enabled, req.Hex)
	respond(w, err, map[string]any{"ai_color_lock": lock})
}

func (s *Server) handleAIInclude(w http.ResponseWriter, r *http.Request) {
	var req map[string]bool
	if !decode(w, r, &req) {
		return
	}
	inc, err := s.show.SetAIInclude(req)
	respond(w, err, map[string]any{"ai_include": inc})
}

func (s *Server) handleBandClusters(w http.ResponseWriter, _ *http.Request) {
	cat := s.show.Catalog()
	writeJSON(w, http.StatusOK, map[string]any{
		"clusters":     cat.BandClusters,
		"solo_targets": cat.SoloTargets,
	})
}

func (s *Server) handleBandSelect(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if !decode(w, r, &req) {
		return
	}
	st, err := s.show.SelectBand(req.Cluster, req.Sub)
	respond(w, err, map[string]any{"state": st})
}

func (s *Server) handleBandColor(w http.ResponseWriter, r *http.Request) {
	var req show.BandColorRequest
	if !decode(w, r, &req) {
		return
	}
	st, err := s.show.SetBandColor(req)
	respond(w, err, map[string]any{"state": st})
}

type targetRequest struct {
	Target string `json:"target"`
}

func (s *Server) handleBandPresetSave(w http.ResponseWriter, r *http.Request) {
	var req targetRequest
	if !decode(w, r, &req) {
		return
	}
	err := s.show.SaveBandPreset(req.Target)
	respond(w, err, map[string]any{"saved_target": req.Target})
}

func (s *Server) handleBandPresetLoad(w http.ResponseWriter, r *http.Request) {
	var req targetRequest
	if !decode(w, r, &req) {
		return
	}
	err := s.show.LoadBandPreset(req.Target)
	respond(w, err, map[string]any{"loaded_target": req.Target})
}

func (s *Server) handleShowControl(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Cmd string `json:"cmd"`
	}
	if !decode(w, r, &req) {
		return
	}
	st, err := s.show.Control(req.Cmd)
	respond(w, err, map[string]any{"state": st})
}

type controlRequest struct {
	Control string `json:"control"`
	Value   int    `json:"value"`
}

func (s *Server) handleLevels(w http.ResponseWriter, r *http.Request) {
	var req controlRequest
	if !decode(w, r, &req) {
		return
	}
	respond(w, s.show.Level(req.Control, req.Value), nil)
}

func (s *Server) handleParams(w http.ResponseWriter, r *http.Request) {
	var req controlRequest
	if !decode(w, r, &req) {
		return
	}
	respond(w, s.show.Param(req.Control, req.Value), nil)
}

func (s *Server) handleEffects(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Target string `json:"target"`
		FX     string `json:"fx"`
	}
	if !decode(w, r, &req) {
		return
	}
	st, err := s.show.Effect(req.Target, req.FX)
	respond(w, err, map[string]any{"state": st})
}

// momentaryFlag defaults to true when the body leaves it out.
type momentaryFlag struct {
	Momentary *bool `json:"momentary"`
}

func (m momentaryFlag) value() bool {
	return m.Momentary == nil || *m.Momentary
}

func (s *Server) handleBlinders(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Preset string `json:"preset"`
		momentaryFlag
	}
	if !decode(w, r, &req) {
		return
	}
	respond(w, s.show.Blinder(req.Preset, req.value()), nil)
}

func (s *Server) handleStrobo(w http.ResponseWriter, r *http.Request) {
	var req momentaryFlag
	if !decode(w, r, &req) {
		return
	}
	respond(w, s.show.StrobeMomentary(req.value()), nil)
}

func (s *Server) handleMomentary(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Preset string `json:"preset"`
		HoldMS int    `json:"hold_ms"`
	}
	if !decode(w, r, &req) {
		return
	}
	hold := time.Duration(req.HoldMS) * time.Millisecond
	respond(w, s.show.TriggerMomentary(req.Preset, hold), nil)
}

func (s *Server) handleFixtures(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"fixtures": s.show.Fixtures(),
		"colors":   s.show.Catalog().Colors,
	})
}

type fixtureRequest struct {
	Name   string         `json:"name"`
	Group  string         `json:"group"`
	Values catalog.Values `json:"values"`
}

func (s *Server) handleFixtureSet(w http.ResponseWriter, r *http.Request) {
	var req fixtureRequest
	if !decode(w, r, &req) {
		return
	}
	respond(w, s.show.SetFixture(req.Name, req.Values), nil)
}

func (s *Server) handleGroupSet(w http.ResponseWriter, r *http.Request) {
	var req fixtureRequest
	if !decode(w, r, &req) {
		return
	}
	respond(w, s.show.SetGroup(req.Group, req.Values), nil)
}

type nameRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleScenes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"scenes": s.show.Scenes()})
}

func (s *Server) handleSceneSave(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if !decode(w, r, &req) {
		return
	}
	names, err := s.show.SaveScene(req.Name)
	respond(w, err, map[string]any{"scenes": names})
}

func (s *Server) handleSceneLoad(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if !decode(w, r, &req) {
		return
	}
	respond(w, s.show.LoadScene(req.Name), nil)
}

func (s *Server) handleSceneDelete(w http.ResponseWriter, r *http.Request) {
	err := s.show.DeleteScene(chi.URLParam(r, "name"))
	respond(w, err, map[string]any{"scenes": s.show.Scenes()})
}

// handleRehearsal either stores aim offsets ({"save": true, "fixture": ...})
// or records the band target being aimed ({"target": ...}).
func (s *Server) handleRehearsal(w http.ResponseWriter, r *http.Request) {
	var req map[string]any
	if !decode(w, r, &req) {
		return
	}
	if save, _ := req["save"].(bool); save {
		name, _ := req["fixture"].(string)
		rec := make(map[string]any, len(preset.RehearsalKeys))
		for _, k := range preset.RehearsalKeys {
			if v, found := req[k]; found {
				rec[k] = v
			}
		}
		stored, err := s.show.SaveRehearsal(name, rec)
		respond(w, err, map[string]any{"stored": map[string]any{name: stored}})
		return
	}
	if target, found := req["target"].(string); found {
		if _, err := s.show.SetBandTarget(target); err != nil {
			writeErr(w, err)
			return
		}
	}
	respond(w, nil, nil)
}

func (s *Server) handleApplyGroupPreset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Group string `json:"group"`
		Name  string `json:"name"`
	}
	if !decode(w, r, &req) {
		return
	}
	respond(w, s.show.ApplyGroupPreset(req.Group, req.Name), nil)
}

func (s *Server) handleForce(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Set int `json:"set"`
	}
	if !decode(w, r, &req) {
		return
	}
	respond(w, nil, map[string]any{"forwarded": s.show.Force(r.Context(), req.Set)})
}

func (s *Server) handleMIDILog(w http.ResponseWriter, r *http.Request) {
	var req map[string]any
	if !decode(w, r, &req) {
		return
	}
	respond(w, nil, map[string]any{"seen": s.show.MIDILog(req)})
}

func (s *Server) handleSafeShutdown(w http.ResponseWriter, _ *http.Request) {
	respond(w, s.show.SafeShutdown(), nil)
}
