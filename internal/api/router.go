package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/state", s.handleState)
		r.Post("/mode", s.handleMode)

		r.Route("/ai", func(r chi.Router) {
			r.Get("/clusters", s.handleAIClusters)
			r.Post("/select", s.handleAISelect)
			r.Post("/color", s.handleAIColor)
			r.Post("/include", s.handleAIInclude)
		})

		r.Route("/band", func(r chi.Router) {
			r.Get("/clusters", s.handleBandClusters)
			r.Post("/select", s.handleBandSelect)
			r.Post("/color", s.handleBandColor)
			r.Post("/preset/save", s.handleBandPresetSave)
			r.Post("/preset/load", s.handleBandPresetLoad)
		})

		r.Post("/show/control", s.handleShowControl)
		r.Post("/levels", s.handleLevels)
		r.Post("/params", s.handleParams)
		r.Post("/effects", s.handleEffects)
		r.Post("/blinders", s.handleBlinders)
		r.Post("/strobo_dmx", s.handleStrobo)
		r.Post("/momentary", s.handleMomentary)

		r.Get("/fixtures", s.handleFixtures)
		r.Post("/fixture/set", s.handleFixtureSet)
		r.Post("/group/set", s.handleGroupSet)

		r.Get("/scenes", s.handleScenes)
		r.Post("/scene/save", s.handleSceneSave)
		r.Post("/scene/load", s.handleSceneLoad)
		r.Delete("/scene/{name}", s.handleSceneDelete)

		r.Post("/rehearsal", s.handleRehearsal)
		r.Post("/preset/apply_group", s.handleApplyGroupPreset)

		r.Post("/force", s.handleForce)
		r.Post("/midi/log", s.handleMIDILog)
		r.Post("/safe_shutdown", s.handleSafeShutdown)

		r.Get("/ws", s.handleWebSocket)
	})

	return r
}
