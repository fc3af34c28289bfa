package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/f-sync/tweeblock/internal/report"
)

const (
	reportRoutePath             = "/"
	blockListRoutePath          = "/blocklist.json"
	healthRoutePath             = "/healthz"
	htmlContentType             = "text/html; charset=utf-8"
	errorMessageReportMissing   = "block list unavailable"
	errorMessageRenderFailure   = "report page rendering failed"
	healthStatusKey             = "status"
	healthStatusOK              = "ok"
	logMessageRenderFailure     = "report render failure"
	logMessageMissingReportData = "block list not loaded"
	ginModeRelease              = "release"
)

// PageRenderer turns a summary into an HTML page.
type PageRenderer interface {
	RenderHTML(summary report.Summary) (string, error)
}

// ReportRenderer implements PageRenderer with report.RenderHTML.
type ReportRenderer struct{}

// RenderHTML delegates to report.RenderHTML.
func (ReportRenderer) RenderHTML(summary report.Summary) (string, error) {
	return report.RenderHTML(summary)
}

// RouterConfig configures the review routes.
type RouterConfig struct {
	Summary  *report.Summary
	Renderer PageRenderer
	Logger   *zap.Logger
}

// NewRouter constructs a Gin engine serving the block list for review.
func NewRouter(configuration RouterConfig) (*gin.Engine, error) {
	renderer := configuration.Renderer
	if renderer == nil {
		renderer = ReportRenderer{}
	}
	logger := configuration.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	gin.SetMode(ginModeRelease)
	engine := gin.New()
	engine.Use(gin.Recovery())

	handler := reviewHandler{
		summary:  configuration.Summary,
		renderer: renderer,
		logger:   logger,
	}

	engine.GET(reportRoutePath, handler.serveReport)
	engine.GET(blockListRoutePath, handler.serveBlockList)
	engine.GET(healthRoutePath, handler.healthStatus)

	return engine, nil
}

type reviewHandler struct {
	summary  *report.Summary
	renderer PageRenderer
	logger   *zap.Logger
}

func (handler reviewHandler) serveReport(ginContext *gin.Context) {
	if handler.summary == nil {
		handler.logger.Error(logMessageMissingReportData)
		ginContext.String(http.StatusInternalServerError, errorMessageReportMissing)
		return
	}

	pageHTML, err := handler.renderer.RenderHTML(*handler.summary)
	if err != nil {
		handler.logger.Error(logMessageRenderFailure, zap.Error(err))
		ginContext.String(http.StatusInternalServerError, errorMessageRenderFailure)
		return
	}
	ginContext.Data(http.StatusOK, htmlContentType, []byte(pageHTML))
}

func (handler reviewHandler) serveBlockList(ginContext *gin.Context) {
	if handler.summary == nil {
		handler.logger.Error(logMessageMissingReportData)
		ginContext.String(http.StatusInternalServerError, errorMessageReportMissing)
		return
	}
	ginContext.JSON(http.StatusOK, handler.summary)
}

func (handler reviewHandler) healthStatus(ginContext *gin.Context) {
	ginContext.JSON(http.StatusOK, map[string]string{healthStatusKey: healthStatusOK})
}
