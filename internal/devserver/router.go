package devserver

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"psycho-client/internal/progress"
	"psycho-client/internal/result"
)

// Options configures the simulator.
type Options struct {
	CORSAllowOrigin []string
	// DevEndpoints additionally registers the diagnostic endpoints
	// (ping, simulate-analysis, test-progress). The production contract
	// never assumes these exist.
	DevEndpoints bool
	// LegacyGrammar emits progress payloads in the service's legacy
	// dict-literal grammar instead of JSON.
	LegacyGrammar bool
	// StepDelay is the pause between simulated analysis stages.
	StepDelay time.Duration
	// PollInterval is how often the event stream checks for updates.
	PollInterval time.Duration
}

// Server hosts the simulated analysis service.
type Server struct {
	status        *StatusStore
	stepDelay     time.Duration
	pollInterval  time.Duration
	devEndpoints  bool
	legacyGrammar bool
	cors          []string
}

// NewServer constructs a simulator with the given options.
func NewServer(opts Options) *Server {
	pollInterval := opts.PollInterval
	if pollInterval <= 0 {
		pollInterval = 200 * time.Millisecond
	}
	return &Server{
		status:        NewStatusStore(),
		stepDelay:     opts.StepDelay,
		pollInterval:  pollInterval,
		devEndpoints:  opts.DevEndpoints,
		legacyGrammar: opts.LegacyGrammar,
		cors:          opts.CORSAllowOrigin,
	}
}

// Router constructs the Gin engine with middleware and routes registered.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		requestID(),
		logging(),
		recovery(),
		cors(s.cors),
	)

	r.POST("/analyze/", s.analyze)
	r.GET("/events/:session_id", s.events)

	if s.devEndpoints {
		r.GET("/ping", s.ping)
		r.GET("/simulate-analysis/:session_id", s.simulateAnalysis)
		r.GET("/test-progress/:session_id", s.testProgress)
	}

	return r
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8000"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}

var allowedExtensions = map[string]struct{}{
	".xlsx": {},
	".xls":  {},
}

// analyze accepts the two spreadsheet uploads and plays a full simulated
// analysis before responding with a canned per-sheet result. Error shapes
// match the real service: an application error object for rejected input,
// a validation detail list for missing parts.
func (s *Server) analyze(c *gin.Context) {
	scores, err := c.FormFile("scores_file")
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"detail": []gin.H{{"msg": "field required: scores_file"}},
		})
		return
	}
	items, err := c.FormFile("items_file")
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"detail": []gin.H{{"msg": "field required: items_file"}},
		})
		return
	}

	sessionID := c.PostForm("session_id")
	if sessionID == "" {
		sessionID = fmt.Sprintf("%d", time.Now().UnixNano())
	}

	s.status.Update(sessionID, progress.StagePreprocess, "", "Processing uploaded files...", 5)

	for _, name := range []string{scores.Filename, items.Filename} {
		if !allowedExtension(name) {
			c.JSON(http.StatusOK, gin.H{
				"error":  fmt.Sprintf("Invalid file format. Expected Excel file (.xlsx, .xls), got %q", name),
				"status": "failed",
			})
			return
		}
	}

	sheets := sheetNames(c.PostForm("sheets"))
	s.runScript(sessionID, sheets[0])

	analyses := make([]result.SheetAnalysis, 0, len(sheets))
	for _, sheet := range sheets {
		analyses = append(analyses, result.SheetAnalysis{
			SheetName: sheet,
			Sections: map[string]string{
				result.SectionPsychometric: "Simulated psychometric findings for " + sheet + ".",
				result.SectionItem:         "Simulated item-level findings for " + sheet + ".",
			},
		})
	}

	c.JSON(http.StatusOK, result.AnalysisResult{Sheets: analyses})
}

func allowedExtension(name string) bool {
	idx := strings.LastIndexByte(name, '.')
	if idx == -1 {
		return false
	}
	_, ok := allowedExtensions[strings.ToLower(name[idx:])]
	return ok
}

func sheetNames(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		out = []string{"Sheet1"}
	}
	return out
}

func (s *Server) ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": float64(time.Now().UnixNano()) / float64(time.Second),
	})
}

func (s *Server) simulateAnalysis(c *gin.Context) {
	sessionID := c.Param("session_id")
	go s.runScript(sessionID, "Sheet1")
	c.JSON(http.StatusOK, gin.H{
		"message": fmt.Sprintf("Simulated analysis started for session %s", sessionID),
	})
}

func (s *Server) testProgress(c *gin.Context) {
	sessionID := c.Param("session_id")
	go func() {
		for i := 1; i <= 10; i++ {
			if s.stepDelay > 0 {
				time.Sleep(s.stepDelay)
			}
			percent := float64(i * 10)
			s.status.Update(sessionID, progress.StageTest, "", fmt.Sprintf("Test progress: %.0f%%", percent), percent)
		}
	}()
	c.JSON(http.StatusOK, gin.H{
		"message": fmt.Sprintf("Test progress sequence started for session %s", sessionID),
	})
}
