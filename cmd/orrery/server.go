package main

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/ChristopherRabotin/orrery"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// gridView is the JSON document of a displacement grid.
type gridView struct {
	Time       time.Time        `json:"time"`
	Resolution int              `json:"resolution"`
	Stats      orrery.GridStats `json:"stats"`
	Values     []float64        `json:"values"`
}

// tideView is the JSON document of the tide at a surface point.
type tideView struct {
	Latitude  float64              `json:"latitude"`
	Longitude float64              `json:"longitude"`
	Height    orrery.TideHeight    `json:"height"`
	Current   orrery.CurrentVector `json:"current"`
	Coriolis  orrery.Coriolis      `json:"coriolis"`
	Pressure  float64              `json:"pressure_pa"`
}

func newMux(e *orrery.Engine, h *hub, reg *prometheus.Registry) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	mux.HandleFunc("GET /frame", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, e.Frame())
	})
	mux.HandleFunc("GET /grid", func(w http.ResponseWriter, r *http.Request) {
		g, ok := e.Grid()
		if !ok {
			http.Error(w, "no displacement grid generated", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, gridView{Time: g.Time, Resolution: g.Resolution, Stats: g.Stats(), Values: g.Values()})
	})
	mux.HandleFunc("GET /tide", func(w http.ResponseWriter, r *http.Request) {
		lat, err1 := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
		lon, err2 := strconv.ParseFloat(r.URL.Query().Get("lon"), 64)
		if err1 != nil || err2 != nil || lat < -90 || lat > 90 {
			http.Error(w, "lat and lon must be numbers, lat within [-90, 90]", http.StatusBadRequest)
			return
		}
		height, err := e.TideAt(lat, lon)
		if err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		current, coriolis, err := e.CurrentAt(lat, lon)
		if err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, http.StatusOK, tideView{
			Latitude: lat, Longitude: lon,
			Height: height, Current: current, Coriolis: coriolis,
			Pressure: orrery.AtmosphericPressurePerturbation(height.Total),
		})
	})
	mux.Handle("GET /ws", h)
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
