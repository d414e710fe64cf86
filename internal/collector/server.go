package collector

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"imu-recorder/internal/models"
)

// Archive stores received measurement documents
type Archive interface {
	SaveWindow(ctx context.Context, windowID string, receivedAt time.Time, schema models.Schema, doc *models.Document) error
	CountSamples(ctx context.Context, windowID string) (uint64, error)
}

// Server receives documents posted by devices
type Server struct {
	archive Archive
	now     func() time.Time
}

// NewServer creates a collector writing into archive
func NewServer(archive Archive) *Server {
	return &Server{archive: archive, now: time.Now}
}

// Router returns the HTTP routes; documents are accepted on path and
// archived windows are looked up under path/:id
func (s *Server) Router(path string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	router.POST(path, s.handleMeasurement)
	router.GET(strings.TrimSuffix(path, "/")+"/:id", s.handleWindow)
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": models.HealthOK})
	})
	return router
}

func (s *Server) handleMeasurement(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}

	doc, schema, err := models.DecodeAnyDocument(body)
	if err != nil {
		log.Warnf("Collector: rejected document from %s: %v", c.ClientIP(), err)
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}

	windowID := uuid.NewString()
	if err := s.archive.SaveWindow(c.Request.Context(), windowID, s.now(), schema, doc); err != nil {
		log.Errorf("Collector: failed to archive window %s: %v", windowID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"err": err.Error()})
		return
	}

	samples := 0
	for _, series := range doc.Series {
		samples += series.Len()
	}
	log.WithFields(log.Fields{
		"window":  windowID,
		"subject": doc.Metadata.SubjectID,
		"test":    doc.Metadata.TestType,
		"schema":  schema.Name,
		"samples": samples,
	}).Info("Collector: document archived")

	c.JSON(http.StatusCreated, gin.H{
		"err":       nil,
		"msg":       "stored",
		"window_id": windowID,
		"samples":   samples,
	})
}

func (s *Server) handleWindow(c *gin.Context) {
	windowID := c.Param("id")
	if _, err := uuid.Parse(windowID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": "invalid window id"})
		return
	}

	samples, err := s.archive.CountSamples(c.Request.Context(), windowID)
	if err != nil {
		log.Errorf("Collector: failed to look up window %s: %v", windowID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"err": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"err": nil, "window_id": windowID, "samples": samples})
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(log.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start),
		}).Debug("Collector: request")
	}
}
