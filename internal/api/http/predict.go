package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	authmw "github.com/mind-engage/mindengage-motivation/internal/auth/middleware"
	"github.com/mind-engage/mindengage-motivation/internal/features"
	"github.com/mind-engage/mindengage-motivation/internal/inference"
	"github.com/mind-engage/mindengage-motivation/internal/model"
)

// Predictor is satisfied by *inference.Engine.
type Predictor interface {
	Predict(req inference.Request) (inference.Result, error)
}

type predictReq struct {
	GameMode        string             `json:"game_mode"`
	Difficulty      *int               `json:"difficulty"`
	DurationMinutes *float64           `json:"duration_minutes"`
	PlayerData      map[string]float64 `json:"player_data"`
}

type predictResp struct {
	RequestID string           `json:"request_id"`
	ModelKey  string           `json:"model_key"`
	Result    inference.Result `json:"result"`
}

// POST /predict
func PredictHandler(p Predictor, deriver *features.Deriver, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body predictReq
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&body); err != nil {
			http.Error(w, "bad json: "+err.Error(), http.StatusBadRequest)
			return
		}
		body.GameMode = strings.TrimSpace(body.GameMode)
		switch {
		case body.GameMode == "":
			http.Error(w, "game_mode required", http.StatusBadRequest)
			return
		case body.Difficulty == nil:
			http.Error(w, "difficulty required", http.StatusBadRequest)
			return
		case body.DurationMinutes == nil:
			http.Error(w, "duration_minutes required", http.StatusBadRequest)
			return
		}

		req := inference.Request{
			GameMode:        body.GameMode,
			Difficulty:      *body.Difficulty,
			DurationMinutes: *body.DurationMinutes,
			PlayerData:      body.PlayerData,
		}
		if deriver != nil {
			var err error
			if req, err = deriver.Apply(req); err != nil {
				http.Error(w, err.Error(), http.StatusUnprocessableEntity)
				return
			}
		}

		res, err := p.Predict(req)
		if err != nil {
			logger.Debug("predict rejected", append(authmw.LogAttrs(r.Context()), "key", req.Key(), "err", err)...)
			writeModelError(w, logger, err)
			return
		}
		logger.Debug("predicted", append(authmw.LogAttrs(r.Context()), "key", req.Key(), "cluster", res.Cluster)...)
		writeJSON(w, http.StatusOK, predictResp{
			RequestID: uuid.NewString(),
			ModelKey:  req.Key(),
			Result:    res,
		})
	}
}

type errorResp struct {
	Error   string `json:"error"`
	Kind    string `json:"kind,omitempty"`
	Key     string `json:"key,omitempty"`
	Feature string `json:"feature,omitempty"`
}

// writeModelError maps the model error taxonomy onto HTTP status codes.
func writeModelError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var me *model.Error
	if !errors.As(err, &me) {
		logger.Error("predict failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, errorResp{Error: "internal error"})
		return
	}
	resp := errorResp{Error: me.Error(), Kind: string(me.Kind), Key: me.Key, Feature: me.Feature}
	switch me.Kind {
	case model.KindModelNotFound:
		resp.Error = "no model for this configuration"
		writeJSON(w, http.StatusNotFound, resp)
	case model.KindMissingFeature, model.KindInvalidFeature:
		writeJSON(w, http.StatusUnprocessableEntity, resp)
	default:
		// details stay in the server log
		resp.Error = "model data integrity error"
		writeJSON(w, http.StatusInternalServerError, resp)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
