// Package server exposes the translator over HTTP and keeps a translation
// history in PostgreSQL when a database is configured.
package server

import (
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/tailscale/hujson"
	"go.uber.org/zap"

	"github.com/PhucNguyen204/query_translator/pkg/query"
	"github.com/PhucNguyen204/query_translator/pkg/render"
	"github.com/PhucNguyen204/query_translator/pkg/translator"
)

const maxBody = 4 << 20

var errBodyTooLarge = fmt.Errorf("request body exceeds %d bytes", maxBody)

type AppServer struct {
	tr      *translator.Translator
	history *HistoryStore // nil: không có DB
	log     *zap.SugaredLogger
}

func NewAppServer(tr *translator.Translator, history *HistoryStore, log *zap.SugaredLogger) *AppServer {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &AppServer{tr: tr, history: history, log: log}
}

// RegisterRoutes wires HTTP handlers.
func (s *AppServer) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/api/v1/platforms", s.handlePlatforms)
	mux.HandleFunc("/api/v1/translate", s.handleTranslate)
	mux.HandleFunc("/api/v1/translate/batch", s.handleTranslateBatch)
	mux.HandleFunc("/api/v1/history", s.handleHistory)
	mux.HandleFunc("/api/v1/iocs", s.handleIOCs)
}

func (s *AppServer) Router() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return mux
}

// ---- Request/response shapes ----

type metaIn struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Author      string   `json:"author"`
	Severity    string   `json:"severity"`
	References  []string `json:"references"`
	Tags        []string `json:"tags"`
}

func (m *metaIn) toMeta() *query.MetaInfo {
	if m == nil {
		return nil
	}
	return &query.MetaInfo{
		ID:          m.ID,
		Title:       m.Title,
		Description: m.Description,
		Author:      m.Author,
		Severity:    query.Severity(m.Severity),
		References:  m.References,
		Tags:        m.Tags,
	}
}

type translateReq struct {
	Query  string  `json:"query"`
	Source string  `json:"source"`
	Target string  `json:"target"`
	Meta   *metaIn `json:"meta,omitempty"`
}

type batchReq struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Rules  []struct {
		Query string  `json:"query"`
		Meta  *metaIn `json:"meta,omitempty"`
	} `json:"rules"`
}

type translateResp struct {
	RuleID  string          `json:"rule_id"`
	Title   string          `json:"title"`
	Results []render.Output `json:"results,omitempty"`
	Error   string          `json:"error,omitempty"`
}

func okResp(res *translator.Result) translateResp {
	return translateResp{RuleID: res.RuleID, Title: res.Title, Results: res.Outputs}
}

func errResp(re *translator.RuleError) translateResp {
	return translateResp{RuleID: re.RuleID, Title: re.Title, Error: re.Err.Error()}
}

// ---- Handlers ----

func (s *AppServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "history": s.history != nil})
}

func (s *AppServer) handlePlatforms(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	reg := s.tr.Registry()
	writeJSON(w, http.StatusOK, map[string]any{"parsers": reg.Parsers(), "renderers": reg.Renderers(), "cti": reg.CTIRenderers()})
}

func (s *AppServer) handleTranslate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req translateReq
	if err := decodeBody(w, r, &req); err != nil {
		writeErr(w, bodyStatus(err), err)
		return
	}
	if req.Query == "" || req.Source == "" || req.Target == "" {
		writeErr(w, http.StatusBadRequest, errors.New("query, source and target are required"))
		return
	}
	res, err := s.tr.Translate(r.Context(), translator.Request{Query: req.Query, Source: req.Source, Target: req.Target, Meta: req.Meta.toMeta()})
	if err != nil {
		re := asRuleError(err, req.Source, req.Target)
		s.record(r, nil, re)
		code := http.StatusUnprocessableEntity
		if errors.Is(err, translator.ErrUnknownPlatform) {
			code = http.StatusBadRequest
		}
		writeJSON(w, code, errResp(re))
		return
	}
	s.record(r, res, nil)
	writeJSON(w, http.StatusOK, okResp(res))
}

func (s *AppServer) handleTranslateBatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req batchReq
	if err := decodeBody(w, r, &req); err != nil {
		writeErr(w, bodyStatus(err), err)
		return
	}
	reg := s.tr.Registry()
	if _, err := reg.Parser(req.Source); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	if _, err := reg.Renderer(req.Target, render.Options{}); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	reqs := make([]translator.Request, 0, len(req.Rules))
	for _, rule := range req.Rules {
		reqs = append(reqs, translator.Request{Query: rule.Query, Source: req.Source, Target: req.Target, Meta: rule.Meta.toMeta()})
	}
	outcomes, err := s.tr.TranslateBatch(r.Context(), reqs)
	if err != nil {
		writeErr(w, http.StatusServiceUnavailable, err)
		return
	}
	resp := struct {
		Results []translateResp `json:"results"`
		Failed  int             `json:"failed"`
	}{Results: make([]translateResp, 0, len(outcomes))}
	for _, o := range outcomes {
		s.record(r, o.Result, o.Err)
		if o.Err != nil {
			resp.Failed++
			resp.Results = append(resp.Results, errResp(o.Err))
			continue
		}
		resp.Results = append(resp.Results, okResp(o.Result))
	}
	writeJSON(w, http.StatusOK, resp)
}

type iocReq struct {
	Text     string `json:"text"`
	Target   string `json:"target"`
	PerQuery int    `json:"per_query"`
}

func (s *AppServer) handleIOCs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req iocReq
	if err := decodeBody(w, r, &req); err != nil {
		writeErr(w, bodyStatus(err), err)
		return
	}
	if strings.TrimSpace(req.Text) == "" || req.Target == "" {
		writeErr(w, http.StatusBadRequest, errors.New("text and target are required"))
		return
	}
	res, err := s.tr.TranslateIOCs(r.Context(), translator.IOCRequest{Text: req.Text, Target: req.Target, PerQuery: req.PerQuery})
	switch {
	case errors.Is(err, translator.ErrUnknownPlatform):
		writeErr(w, http.StatusBadRequest, err)
	case err != nil:
		writeErr(w, http.StatusUnprocessableEntity, err)
	default:
		writeJSON(w, http.StatusOK, res)
	}
}

func (s *AppServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.history == nil {
		writeErr(w, http.StatusServiceUnavailable, errors.New("translation history is not configured"))
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}
	recs, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

// ---- Helpers ----

// record stores the outcome; history failures never fail the request.
func (s *AppServer) record(r *http.Request, res *translator.Result, re *translator.RuleError) {
	if s.history == nil {
		return
	}
	if err := s.history.Save(r.Context(), res, re); err != nil {
		s.log.Warnw("save translation history", "error", err)
	}
}

func asRuleError(err error, source, target string) *translator.RuleError {
	var re *translator.RuleError
	if errors.As(err, &re) {
		return re
	}
	return &translator.RuleError{Source: source, Target: target, Err: err}
}

// decodeBody reads a JSON body, gzip-compressed or not. Comments and
// trailing commas are accepted.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	var body io.Reader = http.MaxBytesReader(w, r.Body, maxBody)
	if r.Header.Get("Content-Encoding") == "gzip" {
		zr, err := gzip.NewReader(body)
		if err != nil {
			return fmt.Errorf("invalid gzip body: %w", err)
		}
		defer zr.Close()
		// giới hạn cả dữ liệu sau giải nén
		body = io.LimitReader(zr, maxBody+1)
	}
	b, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	if len(b) > maxBody {
		return errBodyTooLarge
	}
	if b, err = hujson.Standardize(b); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

func bodyStatus(err error) int {
	var tooLarge *http.MaxBytesError
	if errors.Is(err, errBodyTooLarge) || errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]any{"error": err.Error()})
}
