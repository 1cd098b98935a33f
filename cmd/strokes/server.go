package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"

	flag "github.com/ogier/pflag"
	"github.com/pkg/errors"

	"github.com/juruen/strokerecovery/config"
	"github.com/juruen/strokerecovery/dtw"
	"github.com/juruen/strokerecovery/gt"
	"github.com/juruen/strokerecovery/log"
	"github.com/juruen/strokerecovery/render"
	"github.com/juruen/strokerecovery/shell"
)

// ApiServer serves one session. Requests are handled one at a time.
type ApiServer struct {
	mu       sync.Mutex
	cfg      *config.Config
	shellCtx *shell.ShellCtxt
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type SuccessResponse struct {
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

type InstanceJSON struct {
	Index   int    `json:"index"`
	ID      string `json:"id"`
	Source  string `json:"source"`
	Points  int    `json:"points"`
	Current bool   `json:"current"`
}

type AlignmentJSON struct {
	Cost     float64 `json:"cost"`
	Pairs    int     `json:"pairs"`
	Reversed []bool  `json:"reversed,omitempty"`
}

func NewApiServer(cfg *config.Config) *ApiServer {
	return &ApiServer{cfg: cfg, shellCtx: shell.NewShellCtxt(cfg)}
}

func (s *ApiServer) writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: err.Error()})
}

func (s *ApiServer) writeSuccess(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(SuccessResponse{Data: data})
}

// status maps session errors to http codes.
func status(err error) int {
	switch {
	case errors.Is(err, shell.ErrNoInstance), errors.Is(err, shell.ErrNoPrediction), errors.Is(err, shell.ErrNoAlignment):
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

func (s *ApiServer) decode(w http.ResponseWriter, r *http.Request, method string, req interface{}) bool {
	if r.Method != method {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	if req == nil {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return false
	}
	return true
}

func (s *ApiServer) alignment() AlignmentJSON {
	al := s.shellCtx.Alignment()
	return AlignmentJSON{Cost: al.Cost, Pairs: al.Len(), Reversed: s.shellCtx.Reversed()}
}

// GET /api/ls
func (s *ApiServer) handleLs(w http.ResponseWriter, r *http.Request) {
	if !s.decode(w, r, http.MethodGet, nil) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, _ := s.shellCtx.Current()
	out := []InstanceJSON{}
	for i, in := range s.shellCtx.Instances() {
		out = append(out, InstanceJSON{Index: i, ID: in.ID, Source: in.Source, Points: len(in.GT), Current: in == cur})
	}
	s.writeSuccess(w, out)
}

// POST /api/load {"path": "...", "range": "0:3"}
func (s *ApiServer) handleLoad(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path  string `json:"path"`
		Range string `json:"range"`
	}
	if !s.decode(w, r, http.MethodPost, &req) {
		return
	}
	if req.Path == "" {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("path is required"))
		return
	}
	rg, err := shell.ParseRange(req.Range)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.shellCtx.Load(req.Path, rg)
	if err != nil {
		s.writeError(w, http.StatusNotFound, err)
		return
	}
	s.writeSuccess(w, map[string]int{"loaded": n})
}

// POST /api/cd {"instance": "1"}
func (s *ApiServer) handleCd(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Instance string `json:"instance"`
	}
	if !s.decode(w, r, http.MethodPost, &req) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.shellCtx.Select(req.Instance); err != nil {
		s.writeError(w, http.StatusNotFound, err)
		return
	}
	in, _ := s.shellCtx.Current()
	s.writeSuccess(w, map[string]string{"id": in.ID})
}

// POST /api/sample {"points": 0, "noise": "random", "seed": 1}
func (s *ApiServer) handleSample(w http.ResponseWriter, r *http.Request) {
	req := struct {
		Points int    `json:"points"`
		Noise  string `json:"noise"`
		Seed   int64  `json:"seed"`
	}{Seed: 1}
	if !s.decode(w, r, http.MethodPost, &req) {
		return
	}
	noise, err := gt.ParseNoise(req.Noise)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.shellCtx.Sample(req.Points, noise, req.Seed); err != nil {
		s.writeError(w, status(err), err)
		return
	}
	s.writeSuccess(w, map[string]int{"points": s.shellCtx.Prediction().Len()})
}

// POST /api/predict {"rows": [[x, y, sos, eos], ...]}
// or {"time_major": [[[...], ...], ...], "lengths": [n, ...]} with one batch
// element per loaded instance
func (s *ApiServer) handlePredict(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Rows      [][]float64   `json:"rows"`
		TimeMajor [][][]float64 `json:"time_major"`
		Lengths   []int         `json:"lengths"`
	}
	if !s.decode(w, r, http.MethodPost, &req) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	if req.TimeMajor != nil {
		err = s.shellCtx.SetBatchPrediction(req.TimeMajor, req.Lengths)
	} else {
		err = s.shellCtx.SetPrediction(req.Rows)
	}
	if err != nil {
		s.writeError(w, status(err), err)
		return
	}
	s.writeSuccess(w, map[string]int{"points": s.shellCtx.Prediction().Len()})
}

// POST /api/postprocess {"max_dist": 0.1, "strays": true}
func (s *ApiServer) handlePostprocess(w http.ResponseWriter, r *http.Request) {
	req := struct {
		MaxDist float64 `json:"max_dist"`
		Strays  bool    `json:"strays"`
	}{MaxDist: .1, Strays: true}
	if !s.decode(w, r, http.MethodPost, &req) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	removed, err := s.shellCtx.Postprocess(req.MaxDist, req.Strays)
	if err != nil {
		s.writeError(w, status(err), err)
		return
	}
	s.writeSuccess(w, map[string]int{"points": s.shellCtx.Prediction().Len(), "removed": removed})
}

// POST /api/align {"reverse": true, "window": 0}
func (s *ApiServer) handleAlign(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reverse bool `json:"reverse"`
		Window  int  `json:"window"`
	}
	if !s.decode(w, r, http.MethodPost, &req) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.shellCtx.Align(req.Reverse, req.Window); err != nil {
		s.writeError(w, status(err), err)
		return
	}
	s.writeSuccess(w, s.alignment())
}

// GET /api/costs?top=<n>
func (s *ApiServer) handleCosts(w http.ResponseWriter, r *http.Request) {
	if !s.decode(w, r, http.MethodGet, nil) {
		return
	}
	top := 0
	if v := r.URL.Query().Get("top"); v != "" {
		var err error
		if top, err = strconv.Atoi(v); err != nil {
			s.writeError(w, http.StatusBadRequest, err)
			return
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	costs, err := s.shellCtx.Costs(top)
	if err != nil {
		s.writeError(w, status(err), err)
		return
	}
	s.writeSuccess(w, costs)
}

// POST /api/repair {"buffer": 20, "candidates": 3, "normalize": true}
func (s *ApiServer) handleRepair(w http.ResponseWriter, r *http.Request) {
	opts := s.cfg.RepairOptions()
	req := struct {
		Buffer     *int  `json:"buffer"`
		Candidates *int  `json:"candidates"`
		Normalize  *bool `json:"normalize"`
	}{}
	if !s.decode(w, r, http.MethodPost, &req) {
		return
	}
	if req.Buffer != nil {
		opts.Buffer = *req.Buffer
	}
	if req.Candidates != nil {
		opts.Candidates = *req.Candidates
	}
	if req.Normalize != nil {
		opts.Normalize = *req.Normalize
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.shellCtx.Repair(opts)
	if err != nil {
		s.writeError(w, status(err), err)
		return
	}
	s.writeSuccess(w, repairJSON(res, s.alignment()))
}

func repairJSON(res *dtw.RepairResult, al AlignmentJSON) interface{} {
	return struct {
		Improved bool `json:"improved"`
		Stroke   int  `json:"stroke"`
		AlignmentJSON
	}{res.Improved, res.Stroke, al}
}

// GET /api/loss?relative=<bool>
func (s *ApiServer) handleLoss(w http.ResponseWriter, r *http.Request) {
	if !s.decode(w, r, http.MethodGet, nil) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.shellCtx.Loss(r.URL.Query().Get("relative") == "true")
	if err != nil {
		s.writeError(w, status(err), err)
		return
	}
	s.writeSuccess(w, map[string]interface{}{"losses": res.Losses, "combined": res.Combined})
}

// GET /api/render
func (s *ApiServer) handleRender(w http.ResponseWriter, r *http.Request) {
	if !s.decode(w, r, http.MethodGet, nil) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	opts := render.DefaultOptions()
	opts.Links = r.URL.Query().Get("links") != "false"
	if _, err := s.shellCtx.Current(); err != nil {
		s.writeError(w, status(err), err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	if err := s.shellCtx.RenderTo(w, opts); err != nil {
		log.Error.Println(err)
	}
}

// GET /api/stats
func (s *ApiServer) handleStats(w http.ResponseWriter, r *http.Request) {
	if !s.decode(w, r, http.MethodGet, nil) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	out, err := s.shellCtx.StatsJSON()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeSuccess(w, json.RawMessage(out))
}

func (s *ApiServer) mux() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/ls", s.handleLs)
	mux.HandleFunc("/api/load", s.handleLoad)
	mux.HandleFunc("/api/cd", s.handleCd)
	mux.HandleFunc("/api/sample", s.handleSample)
	mux.HandleFunc("/api/predict", s.handlePredict)
	mux.HandleFunc("/api/postprocess", s.handlePostprocess)
	mux.HandleFunc("/api/align", s.handleAlign)
	mux.HandleFunc("/api/costs", s.handleCosts)
	mux.HandleFunc("/api/repair", s.handleRepair)
	mux.HandleFunc("/api/loss", s.handleLoss)
	mux.HandleFunc("/api/render", s.handleRender)
	mux.HandleFunc("/api/stats", s.handleStats)

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	return mux
}

func serve(args []string) error {
	flagSet := flag.NewFlagSet("serve", flag.ContinueOnError)
	cfgPath := flagSet.StringP("config", "c", "", "yaml config")
	port := flagSet.StringP("port", "p", "8080", "port to listen on")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		return err
	}
	server := NewApiServer(cfg)

	log.Info.Printf("Starting HTTP server on port %s", *port)
	return http.ListenAndServe(":"+*port, server.mux())
}
