// Package middleware holds HTTP middleware that is not tied to a
// single subsystem.
package middleware

import (
	"compress/gzip"
	"io"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
)

// CompressionConfig holds configuration for response compression
type CompressionConfig struct {
	CompressionLevel int      // Gzip compression level (1-9, 9 is best compression)
	SkippedPaths     []string // Path prefixes that are never compressed
}

// DefaultCompressionConfig returns the default compression configuration
func DefaultCompressionConfig() CompressionConfig {
	return CompressionConfig{
		CompressionLevel: gzip.DefaultCompression,
		SkippedPaths:     []string{"/health"},
	}
}

// CompressionMiddleware provides gzip compression for HTTP responses.
// Analysis reports are large JSON documents, so compressing them is
// worth the CPU.
type CompressionMiddleware struct {
	config CompressionConfig
	stats  *CompressionStats
	pool   sync.Pool
}

// NewCompressionMiddleware creates a new compression middleware
func NewCompressionMiddleware(config CompressionConfig) *CompressionMiddleware {
	cm := &CompressionMiddleware{
		config: config,
		stats:  NewCompressionStats(),
	}
	cm.pool = sync.Pool{
		New: func() interface{} {
			gz, err := gzip.NewWriterLevel(io.Discard, config.CompressionLevel)
			if err != nil {
				gz = gzip.NewWriter(io.Discard)
			}
			return gz
		},
	}
	return cm
}

// Handler returns the Gin middleware that compresses responses for
// clients that accept gzip.
func (cm *CompressionMiddleware) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !cm.shouldCompress(c) {
			cm.stats.RecordRequest(0, 0, false)
			c.Next()
			return
		}

		counter := &countingWriter{w: c.Writer}
		gz := cm.pool.Get().(*gzip.Writer)
		gz.Reset(counter)

		wrapped := &gzipResponseWriter{ResponseWriter: c.Writer, gzipWriter: gz}
		c.Writer = wrapped

		c.Header("Content-Encoding", "gzip")
		c.Header("Vary", "Accept-Encoding")
		// Length of the compressed body is unknown until the writer closes.
		c.Writer.Header().Del("Content-Length")

		c.Next()

		gz.Close()
		cm.pool.Put(gz)

		cm.stats.RecordRequest(wrapped.bytesIn, counter.n, true)
	}
}

// shouldCompress checks the client's Accept-Encoding and the skip list
func (cm *CompressionMiddleware) shouldCompress(c *gin.Context) bool {
	if !strings.Contains(c.GetHeader("Accept-Encoding"), "gzip") {
		return false
	}
	for _, prefix := range cm.config.SkippedPaths {
		if strings.HasPrefix(c.Request.URL.Path, prefix) {
			return false
		}
	}
	return true
}

// countingWriter counts compressed bytes on their way to the client
type countingWriter struct {
	w io.Writer
	n int64
}

func (cw *countingWriter) Write(data []byte) (int, error) {
	n, err := cw.w.Write(data)
	cw.n += int64(n)
	return n, err
}

// gzipResponseWriter routes the response body through the gzip writer
type gzipResponseWriter struct {
	gin.ResponseWriter
	gzipWriter *gzip.Writer
	bytesIn    int64
}

func (gzw *gzipResponseWriter) Write(data []byte) (int, error) {
	gzw.bytesIn += int64(len(data))
	return gzw.gzipWriter.Write(data)
}

func (gzw *gzipResponseWriter) WriteString(s string) (int, error) {
	gzw.bytesIn += int64(len(s))
	return gzw.gzipWriter.Write([]byte(s))
}

// Flush flushes the gzip writer before the underlying one
func (gzw *gzipResponseWriter) Flush() {
	gzw.gzipWriter.Flush()
	gzw.ResponseWriter.Flush()
}

// CompressionStats tracks compression statistics
type CompressionStats struct {
	TotalRequests      int64
	CompressedRequests int64
	TotalBytes         int64
	CompressedBytes    int64
	mutex              sync.RWMutex
}

// NewCompressionStats creates new compression statistics
func NewCompressionStats() *CompressionStats {
	return &CompressionStats{}
}

// RecordRequest records a request's compression stats
func (cs *CompressionStats) RecordRequest(originalSize, compressedSize int64, compressed bool) {
	cs.mutex.Lock()
	defer cs.mutex.Unlock()

	cs.TotalRequests++
	cs.TotalBytes += originalSize

	if compressed {
		cs.CompressedRequests++
		cs.CompressedBytes += compressedSize
	}
}

// GetStats returns current compression statistics
func (cs *CompressionStats) GetStats() map[string]interface{} {
	cs.mutex.RLock()
	defer cs.mutex.RUnlock()

	compressionRatio := float64(0)
	if cs.TotalBytes > 0 {
		compressionRatio = float64(cs.CompressedBytes) / float64(cs.TotalBytes)
	}

	return map[string]interface{}{
		"total_requests":      cs.TotalRequests,
		"compressed_requests": cs.CompressedRequests,
		"total_bytes":         cs.TotalBytes,
		"compressed_bytes":    cs.CompressedBytes,
		"compression_ratio":   compressionRatio,
	}
}

// GetStats returns compression statistics
func (cm *CompressionMiddleware) GetStats() map[string]interface{} {
	return cm.stats.GetStats()
}
