package handler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hospitaldata/explorer/internal/explorer"
	"github.com/hospitaldata/explorer/internal/explorer/service"
	"github.com/hospitaldata/explorer/pkg/logger"
)

// Exporter stores exported result files and hands out download links.
type Exporter interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	DownloadURL(ctx context.Context, key string, expires time.Duration) (string, error)
}

// Options configures optional parts of the explorer routes.
type Options struct {
	// Auth guards the mutating routes when set.
	Auth gin.HandlerFunc
	// Exporter enables POST /api/collections/:name/export when set.
	Exporter     Exporter
	ExportExpiry time.Duration
}

type findRequest struct {
	Query map[string]string `json:"query"`
}

type insertRequest struct {
	Fields map[string]string `json:"fields"`
}

// RegisterExplorerRoutes registers the JSON API and the HTML explorer page.
func RegisterExplorerRoutes(r *gin.Engine, svc service.Service, opts Options) {
	guard := opts.Auth
	if guard == nil {
		guard = func(c *gin.Context) { c.Next() }
	}

	r.GET("/api/collections", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"collections": svc.Collections(c.Request.Context())})
	})

	col := r.Group("/api/collections/:name", knownCollection(svc))
	col.GET("/attributes", func(c *gin.Context) {
		attrs, err := svc.ListAttributes(c.Request.Context(), c.Param("name"))
		if err != nil {
			fail(c, err, explorer.MsgQueryFailed)
			return
		}
		c.JSON(http.StatusOK, gin.H{"attributes": attrs})
	})

	col.POST("/find", func(c *gin.Context) {
		var req findRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		docs, err := svc.Find(c.Request.Context(), c.Param("name"), req.Query)
		if err != nil {
			fail(c, err, explorer.MsgQueryFailed)
			return
		}
		respondTable(c, "Query Result:", docs)
	})

	col.POST("/aggregate", func(c *gin.Context) {
		var req explorer.AggregateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		rows, err := svc.Aggregate(c.Request.Context(), c.Param("name"), req)
		if err != nil {
			fail(c, err, explorer.MsgQueryFailed)
			return
		}
		respondTable(c, "Aggregation Result:", rows)
	})

	col.POST("/documents", guard, func(c *gin.Context) {
		var req insertRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		res, err := svc.Insert(c.Request.Context(), c.Param("name"), req.Fields)
		if err != nil || !res.Acknowledged {
			fail(c, err, explorer.MsgInsertFailed)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"message": explorer.MsgInserted, "id": res.ID})
	})

	col.PATCH("/documents/:id", guard, func(c *gin.Context) {
		var req explorer.UpdateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		ok, err := svc.Update(c.Request.Context(), c.Param("name"), c.Param("id"), req)
		if err != nil || !ok {
			fail(c, err, explorer.MsgUpdateFailed)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": explorer.MsgUpdated, "id": c.Param("id")})
	})

	col.DELETE("/documents/:id", guard, func(c *gin.Context) {
		ok, err := svc.Delete(c.Request.Context(), c.Param("name"), c.Param("id"))
		if err != nil || !ok {
			fail(c, err, explorer.MsgDeleteFailed)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": explorer.MsgDeleted, "id": c.Param("id")})
	})

	if opts.Exporter != nil {
		expiry := opts.ExportExpiry
		if expiry <= 0 {
			expiry = 15 * time.Minute
		}
		col.POST("/export", func(c *gin.Context) {
			var req findRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			exportCSV(c, svc, opts.Exporter, req.Query, expiry)
		})
	}

	registerUI(r, svc, guard)
}

// knownCollection rejects collections that are not in the catalog.
func knownCollection(svc service.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("name")
		for _, n := range svc.Collections(c.Request.Context()) {
			if n == name {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "unknown collection"})
	}
}

// fail reports a generic failure. Malformed identifiers are reported as-is.
func fail(c *gin.Context, err error, msg string) {
	switch {
	case errors.Is(err, explorer.ErrInvalidIdentifier):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case err == nil || service.IsInputError(err):
		if err != nil {
			logger.Debugf("%s %s: %v", c.Request.Method, c.FullPath(), err)
		}
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": msg})
	default:
		logger.Errorf("%s %s: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
	}
}

func respondTable(c *gin.Context, title string, docs []explorer.Document) {
	tbl := explorer.NewTable(docs)
	msg := title
	if tbl.Empty() {
		msg = explorer.MsgNoResults
	}
	c.JSON(http.StatusOK, gin.H{"message": msg, "count": len(tbl.Rows), "columns": tbl.Columns, "rows": tbl.Rows})
}

func exportCSV(c *gin.Context, svc service.Service, exp Exporter, query map[string]string, expiry time.Duration) {
	ctx := c.Request.Context()
	name := c.Param("name")
	docs, err := svc.Find(ctx, name, query)
	if err != nil {
		fail(c, err, explorer.MsgQueryFailed)
		return
	}
	tbl := explorer.NewTable(docs)
	var buf bytes.Buffer
	if err := tbl.WriteCSV(&buf); err != nil {
		fail(c, err, explorer.MsgQueryFailed)
		return
	}
	key := fmt.Sprintf("exports/%s/%s.csv", name, time.Now().UTC().Format("20060102T150405.000000000"))
	if err := exp.Put(ctx, key, bytes.NewReader(buf.Bytes()), int64(buf.Len()), "text/csv"); err != nil {
		logger.Errorf("export upload %s: %v", key, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "export failed"})
		return
	}
	url, err := exp.DownloadURL(ctx, key, expiry)
	if err != nil {
		logger.Errorf("export presign %s: %v", key, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "export failed"})
		return
	}
	logger.Infof("exported %d rows from %q to %s", len(tbl.Rows), name, key)
	c.JSON(http.StatusOK, gin.H{"key": key, "url": url, "count": len(tbl.Rows)})
}
