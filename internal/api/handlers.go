package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"github.com/contactkeval/chain-clean/internal/arb"
	"github.com/contactkeval/chain-clean/internal/chain"
	"github.com/contactkeval/chain-clean/internal/config"
	"github.com/contactkeval/chain-clean/internal/logger"
	"github.com/contactkeval/chain-clean/internal/pricing"
	"github.com/contactkeval/chain-clean/internal/store"
)

// Expr is a number that may also be sent as an arithmetic string, so
// "maturity": 0.25 and "maturity": "90/360" are both accepted.
type Expr string

func (e *Expr) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*e = Expr(s)
		return nil
	}
	if string(b) == "null" {
		*e = ""
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("expected number or expression: %w", err)
	}
	*e = Expr(n)
	return nil
}

type PricingRequest struct {
	SpotBid  float64 `json:"spot_bid" validate:"gt=0"`
	SpotAsk  float64 `json:"spot_ask" validate:"gtefield=SpotBid"`
	Rate     Expr    `json:"rate"`
	Maturity Expr    `json:"maturity"`
	Dividend Expr    `json:"dividend"`
}

type OptionsRequest struct {
	MaxIter   int    `json:"max_iter" validate:"gte=0,lte=1000"`
	Butterfly string `json:"butterfly" validate:"omitempty,oneof=auto quoted conservative"`
	Dominance *bool  `json:"dominance"`
}

type TableRequest struct {
	Name   string        `json:"name"`
	Side   string        `json:"side" validate:"required"`
	Quotes []chain.Quote `json:"quotes" validate:"required,min=1,dive"`
}

// CleanRequest is the body of POST /api/clean.
type CleanRequest struct {
	Pricing PricingRequest `json:"pricing"`
	Options OptionsRequest `json:"options"`
	Tables  []TableRequest `json:"tables" validate:"required,min=1,dive"`
}

type CleanResponse struct {
	Report arb.Report    `json:"report"`
	Tables []chain.Table `json:"tables"`
}

type errorResponse struct {
	Error string `json:"error"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func (s *Server) handleClean(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBody())

	var req CleanRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}

	pc, err := req.Pricing.context()
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	opts, err := s.options(req.Options)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}

	tables := make([]chain.Table, len(req.Tables))
	sides := make([]chain.Side, len(req.Tables))
	for i, tr := range req.Tables {
		side, err := chain.ParseSide(tr.Side)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, fmt.Errorf("table %d: %w", i, err))
			return
		}
		name := tr.Name
		if name == "" {
			name = "table-" + strconv.Itoa(i)
		}
		tables[i], sides[i] = chain.NewTable(name, side, tr.Quotes), side
	}

	cleaned, rep, err := arb.CleanAll(r.Context(), tables, sides, pc, opts)
	switch {
	case errors.Is(err, arb.ErrEmptyTable), errors.Is(err, arb.ErrLengthMismatch), errors.Is(err, chain.ErrUnknownSide):
		writeError(w, r, http.StatusBadRequest, err)
		return
	case err != nil:
		writeError(w, r, http.StatusInternalServerError, err)
		return
	}

	if s.metrics != nil {
		s.metrics.ObserveRun(rep)
	}
	if s.runs != nil {
		if err := s.runs.SaveRun(r.Context(), rep); err != nil {
			// the caller still gets the cleaned tables
			logger.Errorf("event=save_run_failed run_id=%s err=%v", rep.RunID, err)
		}
	}

	render.JSON(w, r, CleanResponse{Report: rep, Tables: cleaned})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeError(w, r, http.StatusServiceUnavailable, errors.New("run history is disabled"))
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, r, http.StatusBadRequest, fmt.Errorf("invalid limit %q", v))
			return
		}
		limit = n
	}
	runs, err := s.runs.ListRuns(r.Context(), limit)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	render.JSON(w, r, runs)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeError(w, r, http.StatusServiceUnavailable, errors.New("run history is disabled"))
		return
	}
	rep, err := s.runs.GetRun(r.Context(), chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, store.ErrRunNotFound):
		writeError(w, r, http.StatusNotFound, err)
		return
	case err != nil:
		writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	render.JSON(w, r, rep)
}

func (s *Server) handleStates(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeError(w, r, http.StatusServiceUnavailable, errors.New("run history is disabled"))
		return
	}
	states, err := s.runs.CountStates(r.Context())
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	render.JSON(w, r, states)
}

func (p PricingRequest) context() (pricing.Context, error) {
	vals := make([]float64, 3)
	for i, e := range []Expr{p.Rate, p.Maturity, p.Dividend} {
		v, err := config.EvalExpression(string(e))
		if err != nil {
			return pricing.Context{}, err
		}
		vals[i] = v
	}
	return pricing.NewContext(p.SpotBid, p.SpotAsk, vals[0], vals[1], vals[2])
}

// options overlays the request on the server defaults.
func (s *Server) options(o OptionsRequest) (arb.Options, error) {
	opts := s.defaults
	if o.MaxIter > 0 {
		opts.MaxIter = o.MaxIter
	}
	if o.Butterfly != "" {
		rule, err := arb.ParseButterflyRule(o.Butterfly)
		if err != nil {
			return arb.Options{}, err
		}
		opts.Butterfly = rule
	}
	if o.Dominance != nil {
		opts.Dominance = *o.Dominance
	}
	return opts, nil
}

func (s *Server) maxBody() int64 {
	if s.cfg.MaxBodyBytes > 0 {
		return s.cfg.MaxBodyBytes
	}
	return 8 << 20
}

func writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	if status >= http.StatusInternalServerError {
		logger.Errorf("event=http_error path=%s status=%d err=%v", r.URL.Path, status, err)
	}
	render.Status(r, status)
	render.JSON(w, r, errorResponse{Error: err.Error()})
}
