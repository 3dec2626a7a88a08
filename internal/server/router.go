package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/calmstack/jobkeep/internal/job"
	"github.com/calmstack/jobkeep/internal/service"
)

// Router provides embeddable HTTP handlers over a job service.
// Endpoints (under basePath, default "/api"):
//
//	POST   {bp}/jobs            body: {"command": [...], "tracking_label": "..."}
//	GET    {bp}/jobs            list all jobs
//	GET    {bp}/jobs/:id        single job status
//	GET    {bp}/jobs/:id/log    full log, optional ?max_chars=N
//	GET    {bp}/jobs/:id/tail   last lines, optional ?n=N
//	DELETE {bp}/jobs/:id        terminate
//	POST   {bp}/jobs/prune      remove terminal jobs
//	GET    {bp}/healthz
type Router struct {
	svc      *service.Service
	basePath string
}

func NewRouter(svc *service.Service, basePath string) *Router {
	return &Router{svc: svc, basePath: sanitizeBase(basePath)}
}

// Handler returns an http.Handler that can be mounted in any server or mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	group := g.Group(r.basePath)
	group.POST("/jobs", r.handleLaunch)
	group.GET("/jobs", r.handleList)
	group.GET("/jobs/:id", r.handleGet)
	group.GET("/jobs/:id/log", r.handleLog)
	group.GET("/jobs/:id/tail", r.handleTail)
	group.DELETE("/jobs/:id", r.handleTerminate)
	group.POST("/jobs/prune", r.handlePrune)
	group.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, okResp{OK: true}) })
	return g
}

// NewServer starts a standalone HTTP server on addr using this router.
func NewServer(addr, basePath string, svc *service.Service) *http.Server {
	r := NewRouter(svc, basePath)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}

type errorResp struct {
	Error string `json:"error"`
}

type okResp struct {
	OK bool `json:"ok"`
}

type launchReq struct {
	Command       []string `json:"command"`
	TrackingLabel string   `json:"tracking_label"`
}

type launchResp struct {
	ID string `json:"id"`
}

func (r *Router) handleLaunch(c *gin.Context) {
	var req launchReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
		return
	}
	id, err := r.svc.Launch(req.Command, req.TrackingLabel)
	if err != nil {
		status := http.StatusInternalServerError
		if err == job.ErrEmptyCommand {
			status = http.StatusBadRequest
		}
		c.JSON(status, errorResp{Error: err.Error()})
		return
	}
	c.JSON(http.StatusCreated, launchResp{ID: id})
}

func (r *Router) handleList(c *gin.Context) {
	c.JSON(http.StatusOK, r.svc.List())
}

func (r *Router) handleGet(c *gin.Context) {
	rec := r.svc.Get(c.Param("id"))
	if rec == nil {
		c.JSON(http.StatusNotFound, errorResp{Error: "job not found"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (r *Router) handleLog(c *gin.Context) {
	maxChars := 0
	if v := c.Query("max_chars"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, errorResp{Error: "invalid max_chars"})
			return
		}
		maxChars = n
	}
	content, err := r.svc.FullLog(c.Param("id"), maxChars)
	if err != nil {
		c.JSON(statusFor(err), errorResp{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"log": content})
}

func (r *Router) handleTail(c *gin.Context) {
	n := 0
	if v := c.Query("n"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, errorResp{Error: "invalid n"})
			return
		}
		n = parsed
	}
	lines, err := r.svc.LogTail(c.Param("id"), n)
	if err != nil {
		c.JSON(statusFor(err), errorResp{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"lines": lines})
}

func (r *Router) handleTerminate(c *gin.Context) {
	result := r.svc.Terminate(c.Param("id"))
	status := http.StatusOK
	switch result {
	case job.TerminateNotFound:
		status = http.StatusNotFound
	case job.TerminateError:
		status = http.StatusInternalServerError
	}
	c.JSON(status, gin.H{"result": result})
}

func (r *Router) handlePrune(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"removed": r.svc.PruneCompleted()})
}

func statusFor(err error) int {
	if err == job.ErrNotFound {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func sanitizeBase(bp string) string {
	bp = strings.TrimSpace(bp)
	if bp == "" {
		return "/api"
	}
	if !strings.HasPrefix(bp, "/") {
		bp = "/" + bp
	}
	return strings.TrimRight(bp, "/")
}
