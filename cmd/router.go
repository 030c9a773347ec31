package main

import (
	"encoding/json"
	"net/http"

	"github.com/angeloszaimis/jsonlog/internal/handler"
	"github.com/angeloszaimis/jsonlog/internal/metrics"
	"github.com/angeloszaimis/jsonlog/pkg/logger"
)

type serviceInfo struct {
	Service     string `json:"service"`
	Environment string `json:"environment"`
	Level       string `json:"level"`
	Diagnostics bool   `json:"diagnostics"`
}

func setupRouter(cfgr *logger.Configurator, info serviceInfo) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		current := info
		current.Level = logger.LevelName(cfgr.Level())
		current.Diagnostics = cfgr.Diagnostics()

		body, err := json.Marshal(current)
		if err != nil {
			logger.FromContext(r.Context()).Exception("Failed to encode service info", err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		writeBody(w, r, append(body, '\n'))
	})
	mux.HandleFunc("/metrics", metrics.Handler(cfgr.Stats))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		writeBody(w, r, []byte("ok"))
	})

	return handler.NewRequestLogger(cfgr.Logger().Bind("component", "http"), mux)
}

// writeBody writes a response body. A failed write means the client went
// away, so it is only logged.
func writeBody(w http.ResponseWriter, r *http.Request, body []byte) {
	if _, err := w.Write(body); err != nil {
		logger.FromContext(r.Context()).Warning("Failed to write response",
			"path", r.URL.Path,
			"error", err.Error())
	}
}
