package server

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-intake/constants"
	"github.com/joseph-ayodele/invoice-intake/internal/common"
	"github.com/joseph-ayodele/invoice-intake/internal/recognition"
	"github.com/joseph-ayodele/invoice-intake/internal/reconcile"
	"github.com/joseph-ayodele/invoice-intake/internal/services/invoice"
)

const (
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	requestIDHeader = "X-Request-ID"
	multipartSlack  = 1 << 20
)

// HTTPServer is the JSON gateway over the invoice session.
type HTTPServer struct {
	invoices  InvoiceService
	exporter  Exporter
	ping      Pinger
	maxUpload int64
	logger    *slog.Logger
}

type HTTPOption func(*HTTPServer)

func WithMaxUploadBytes(n int64) HTTPOption {
	return func(s *HTTPServer) {
		if n > 0 {
			s.maxUpload = n
		}
	}
}

func WithHealthCheck(p Pinger) HTTPOption {
	return func(s *HTTPServer) { s.ping = p }
}

func NewHTTPServer(invoices InvoiceService, exporter Exporter, logger *slog.Logger, opts ...HTTPOption) *HTTPServer {
	if logger == nil {
		logger = slog.Default()
	}
	s := &HTTPServer{
		invoices:  invoices,
		exporter:  exporter,
		maxUpload: constants.MaxDocumentBytes,
		logger:    logger,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Handler builds the gin engine with every route registered.
func (s *HTTPServer) Handler() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/healthz", s.health)

	api := r.Group("/api")
	sess := api.Group("/invoices/session")
	sess.POST("", s.startSession)
	sess.GET("", s.getSession)
	sess.DELETE("", s.discardSession)
	sess.PUT("/header", s.editHeader)
	sess.PATCH("/items/:idx", s.editItem)
	sess.DELETE("/items/:idx", s.removeItem)
	sess.POST("/items/:idx/resolve", s.resolveItem)
	sess.POST("/commit", s.commit)

	api.GET("/invoices/export.xlsx", s.exportXLSX)
	api.GET("/catalog/products", s.listProducts)
	return r
}

func (s *HTTPServer) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		reqID := c.GetHeader(requestIDHeader)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Header(requestIDHeader, reqID)
		c.Request = c.Request.WithContext(common.WithRequestID(c.Request.Context(), reqID))
		c.Next()

		s.logger.Info("http.request",
			"req_id", reqID,
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}

func (s *HTTPServer) health(c *gin.Context) {
	if s.ping != nil {
		if err := s.ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *HTTPServer) startSession(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUpload+multipartSlack)
	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large", "code": common.CodeInputRejected})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "file missing", "code": common.CodeInvalidInput})
		return
	}
	if fh.Size > s.maxUpload {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large", "code": common.CodeInputRejected})
		return
	}

	f, err := fh.Open()
	if err != nil {
		s.fail(c, err, nil)
		return
	}
	content, err := io.ReadAll(io.LimitReader(f, s.maxUpload+1))
	_ = f.Close()
	if err != nil {
		s.fail(c, err, nil)
		return
	}

	doc := recognition.Document{
		Name:      fh.Filename,
		MediaType: fh.Header.Get("Content-Type"),
		Content:   content,
	}
	v, err := s.invoices.Start(c.Request.Context(), doc)
	if err != nil {
		s.fail(c, err, nil)
		return
	}
	c.JSON(http.StatusCreated, v)
}

func (s *HTTPServer) getSession(c *gin.Context) {
	v, ok := s.invoices.Current()
	if !ok {
		s.fail(c, common.NoSession(), nil)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (s *HTTPServer) discardSession(c *gin.Context) {
	s.invoices.Discard()
	c.Status(http.StatusNoContent)
}

func (s *HTTPServer) editHeader(c *gin.Context) {
	var edit reconcile.HeaderEdit
	if err := c.ShouldBindJSON(&edit); err != nil {
		s.fail(c, common.InvalidInput(err.Error()), nil)
		return
	}
	v, err := s.invoices.EditHeader(c.Request.Context(), edit)
	s.respond(c, v, err)
}

func (s *HTTPServer) editItem(c *gin.Context) {
	idx, ok := s.index(c)
	if !ok {
		return
	}
	var edit reconcile.ItemEdit
	if err := c.ShouldBindJSON(&edit); err != nil {
		s.fail(c, common.InvalidInput(err.Error()), nil)
		return
	}
	v, err := s.invoices.EditItem(c.Request.Context(), idx, edit)
	s.respond(c, v, err)
}

func (s *HTTPServer) removeItem(c *gin.Context) {
	idx, ok := s.index(c)
	if !ok {
		return
	}
	v, err := s.invoices.RemoveItem(c.Request.Context(), idx)
	s.respond(c, v, err)
}

func (s *HTTPServer) resolveItem(c *gin.Context) {
	idx, ok := s.index(c)
	if !ok {
		return
	}
	var req invoice.ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, common.InvalidInput(err.Error()), nil)
		return
	}
	v, err := s.invoices.Resolve(c.Request.Context(), idx, req)
	s.respond(c, v, err)
}

func (s *HTTPServer) commit(c *gin.Context) {
	res, err := s.invoices.Commit(c.Request.Context())
	if err != nil {
		s.fail(c, err, &res.View)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *HTTPServer) listProducts(c *gin.Context) {
	products, err := s.invoices.Products(c.Request.Context(), c.Query("q"))
	if err != nil {
		s.fail(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products})
}

func (s *HTTPServer) exportXLSX(c *gin.Context) {
	from, to, err := parseWindow(c.Query("from"), c.Query("to"))
	if err != nil {
		s.fail(c, err, nil)
		return
	}
	data, err := s.exporter.ExportInvoicesXLSX(c.Request.Context(), from, to)
	if err != nil {
		s.logger.Error("export.xlsx.failed", "error", err)
		s.fail(c, err, nil)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="facturas.xlsx"`)
	c.Data(http.StatusOK, xlsxContentType, data)
}

func (s *HTTPServer) index(c *gin.Context) (int, bool) {
	idx, err := strconv.Atoi(c.Param("idx"))
	if err != nil {
		s.fail(c, common.InvalidInput("item index must be an integer"), nil)
		return 0, false
	}
	return idx, true
}

func (s *HTTPServer) respond(c *gin.Context, v invoice.View, err error) {
	if err != nil {
		s.fail(c, err, &v)
		return
	}
	c.JSON(http.StatusOK, v)
}

// fail writes the error body. The session view rides along when there is one
// so clients can re-render without another round trip.
func (s *HTTPServer) fail(c *gin.Context, err error, v *invoice.View) {
	code := common.HTTPStatus(err)
	body := gin.H{"error": publicMessage(err), "code": common.ErrorCode(err)}
	if code == http.StatusInternalServerError {
		s.logger.Error("http.internal_error", "path", c.FullPath(), "error", err)
		body["error"] = "internal error"
	}
	if v != nil && v.SessionID != uuid.Nil {
		body["session"] = v
	}
	c.JSON(code, body)
}

func publicMessage(err error) string {
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}
