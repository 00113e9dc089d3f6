package http

import (
	"bytes"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
)

type cachedResponse struct {
	status      int
	contentType string
	disposition string
	body        []byte
}

// captureWriter copies the response body while it is written.
type captureWriter struct {
	gin.ResponseWriter
	buf bytes.Buffer
}

func (w *captureWriter) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *captureWriter) WriteString(s string) (int, error) {
	w.buf.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// cached serves repeated GETs from memory. Keys include the snapshot ID so a
// refresh never serves a response computed from the previous snapshot.
func (r *Router) cached() gin.HandlerFunc {
	return func(c *gin.Context) {
		if r.cache == nil {
			c.Next()
			return
		}
		snap, err := r.svc.Current()
		if err != nil {
			c.Next()
			return
		}
		key := snap.ID + " " + c.Request.URL.RequestURI()
		if v, ok := r.cache.Get(key); ok {
			resp := v.(cachedResponse)
			c.Header("X-Cache", "HIT")
			if resp.disposition != "" {
				c.Header("Content-Disposition", resp.disposition)
			}
			c.Data(resp.status, resp.contentType, resp.body)
			c.Abort()
			return
		}

		c.Header("X-Cache", "MISS")
		w := &captureWriter{ResponseWriter: c.Writer}
		c.Writer = w
		c.Next()

		if w.Status() == http.StatusOK {
			r.cache.Set(key, cachedResponse{
				status:      http.StatusOK,
				contentType: w.Header().Get("Content-Type"),
				disposition: w.Header().Get("Content-Disposition"),
				body:        bytes.Clone(w.buf.Bytes()),
			}, cache.DefaultExpiration)
		}
	}
}
