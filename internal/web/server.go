package web

import (
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/lucasnoah/garaklab/internal/db"
	"github.com/lucasnoah/garaklab/internal/logging"
	"github.com/lucasnoah/garaklab/internal/orchestrator"
	"github.com/lucasnoah/garaklab/internal/results"
)

//go:embed templates
var templateFS embed.FS

var funcMap = template.FuncMap{
	"badgeClass": func(outcome string) string {
		return "badge badge-" + strings.ReplaceAll(outcome, "_", "-")
	},
	"rateClass": func(rate float64) string {
		switch {
		case rate >= 0.9:
			return "rate rate-good"
		case rate >= 0.5:
			return "rate rate-mixed"
		default:
			return "rate rate-bad"
		}
	},
	"passClass": func(passed bool) string {
		if passed {
			return "result-pass"
		}
		return "result-fail"
	},
	"pct":     fmtPct,
	"relTime": relTime,
}

// Server is the read-only scan dashboard. It renders run history from
// the database, saved summaries from the results store, and (when an
// orchestrator is attached) a live output stream for the active scan.
type Server struct {
	orch  *orchestrator.Orchestrator
	db    *db.DB
	store *results.Store
	port  int
	log   *logrus.Entry

	dashboardTmpl *template.Template
	runTmpl       *template.Template
}

// NewServer creates a Server with parsed templates. orch may be nil
// for a history-only dashboard.
func NewServer(orch *orchestrator.Orchestrator, database *db.DB, store *results.Store, port int) *Server {
	return &Server{
		orch:          orch,
		db:            database,
		store:         store,
		port:          port,
		log:           logging.GetLogger().WithField("component", "web"),
		dashboardTmpl: mustParseTmpl("base.html", "dashboard.html"),
		runTmpl:       mustParseTmpl("base.html", "run.html"),
	}
}

func mustParseTmpl(names ...string) *template.Template {
	patterns := make([]string, len(names))
	for i, n := range names {
		patterns[i] = "templates/" + n
	}
	return template.Must(template.New("").Funcs(funcMap).ParseFS(templateFS, patterns...))
}

// Handler returns the route mux. Split out from Start for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/":
			s.handleDashboard(w, r)
		case strings.HasPrefix(r.URL.Path, "/run/"):
			s.routeRun(w, r)
		default:
			http.NotFound(w, r)
		}
	})
	mux.HandleFunc("/stream", s.handleStream)
	return mux
}

// Start registers routes and starts listening.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	s.log.Infof("garaklab UI: http://localhost%s", addr)
	return http.ListenAndServe(addr, s.Handler())
}

func (s *Server) routeRun(w http.ResponseWriter, r *http.Request) {
	runID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/run/"), "/")
	if runID == "" || strings.ContainsAny(runID, "/\\") || strings.HasPrefix(runID, ".") {
		http.NotFound(w, r)
		return
	}
	s.handleRunDetail(w, r, runID)
}
