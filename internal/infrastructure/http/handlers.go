package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.uber.org/zap"

	"github.com/wolverine5550/clausecheck/internal/domain/entities"
	"github.com/wolverine5550/clausecheck/internal/domain/ports"
	"github.com/wolverine5550/clausecheck/internal/domain/segmenter"
	"github.com/wolverine5550/clausecheck/internal/domain/usecases"
)

// multipartOverhead is the body allowance on top of the file size for
// multipart boundaries and part headers.
const multipartOverhead = 64 << 10

// segmentRequestSchema only checks the envelope. The type of raw_text is
// left to the segmenter so every bad value gets the same error.
const segmentRequestSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"properties": {
		"raw_text": {}
	},
	"additionalProperties": false
}`

func compileSegmentSchema() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("segment_request.json", strings.NewReader(segmentRequestSchema)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("segment_request.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

// HealthResponse is the response body for GET /api/health.
type HealthResponse struct {
	Status string `json:"status"`
}

// UploadResponse is the response body for POST /api/contracts.
type UploadResponse struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	ContractID   string `json:"contract_id"`
	Extracted    bool   `json:"extracted"`
	Deduplicated bool   `json:"deduplicated"`
	ClauseCount  int    `json:"clause_count"`
	Warning      string `json:"warning,omitempty"`
}

// MessageResponse is a plain acknowledgement.
type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ContractListResponse is the response body for GET /api/contracts.
type ContractListResponse struct {
	Contracts []entities.Contract `json:"contracts"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// handleSegment segments raw_text without storing anything.
func (s *Server) handleSegment(c echo.Context) error {
	body, err := io.ReadAll(http.MaxBytesReader(c.Response(), c.Request().Body, s.config.MaxUploadBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "Request body too large.")
		}
		return echo.NewHTTPError(http.StatusBadRequest, "Could not read request body.")
	}

	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Request body must be JSON.")
	}
	if err := s.segmentSchema.Validate(payload); err != nil {
		s.logger.Debug("segment request rejected by schema", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, `Request body must be an object with a single "raw_text" field.`)
	}

	// A missing raw_text reaches the segmenter as nil and is rejected there.
	seg, err := s.ingest.Preview(payload.(map[string]any)["raw_text"])
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, seg)
}

// handleUpload ingests a multipart "file" upload.
func (s *Server) handleUpload(c echo.Context) error {
	req := c.Request()
	limit := s.config.MaxUploadBytes
	if req.ContentLength > limit+multipartOverhead {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "File exceeds the upload limit.")
	}
	req.Body = http.MaxBytesReader(c.Response(), req.Body, limit+multipartOverhead)

	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "File exceeds the upload limit.")
		}
		return echo.NewHTTPError(http.StatusBadRequest, "No file uploaded")
	}
	if fh.Size > limit {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "File exceeds the upload limit.")
	}

	f, err := fh.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Could not read uploaded file.").SetInternal(err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Could not read uploaded file.").SetInternal(err)
	}

	result, err := s.ingest.Ingest(req.Context(), entities.Upload{
		FileName: filepath.Base(fh.Filename),
		MIMEType: fh.Header.Get(echo.HeaderContentType),
		Data:     data,
		Source:   "http",
	})
	if err != nil {
		return toHTTPError(err)
	}

	var message string
	switch {
	case result.Deduplicated:
		message = "File already uploaded."
	case result.Extracted:
		message = "File uploaded and text extracted successfully."
	default:
		message = "File uploaded, but text extraction failed."
	}

	return c.JSON(http.StatusOK, UploadResponse{
		Success:      true,
		Message:      message,
		ContractID:   result.Contract.ID,
		Extracted:    result.Extracted,
		Deduplicated: result.Deduplicated,
		ClauseCount:  result.Contract.ClauseCount,
		Warning:      result.Warning,
	})
}

func (s *Server) handleList(c echo.Context) error {
	list, err := s.contracts.List(c.Request().Context())
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, ContractListResponse{Contracts: list})
}

func (s *Server) handleGet(c echo.Context) error {
	detail, err := s.contracts.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, detail)
}

// handleExport renders the workbook into memory first so a failure never
// leaves a half-written attachment.
func (s *Server) handleExport(c echo.Context) error {
	id := c.Param("id")
	var buf bytes.Buffer
	if err := s.contracts.Export(c.Request().Context(), id, s.exporter, &buf); err != nil {
		return toHTTPError(err)
	}

	name := "contract-" + id + s.exporter.FileExtension()
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", name))
	return c.Blob(http.StatusOK, s.exporter.ContentType(), buf.Bytes())
}

func (s *Server) handleResegment(c echo.Context) error {
	id := c.Param("id")
	result, err := s.ingest.Resegment(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, segmenter.ErrInvalidInput) {
			return echo.NewHTTPError(http.StatusUnprocessableEntity, "Contract has no extracted text to segment.")
		}
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, entities.ContractDetail{
		Contract: result.Contract,
		Clauses:  result.Clauses,
	})
}

func (s *Server) handleDelete(c echo.Context) error {
	if err := s.ingest.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, MessageResponse{Success: true, Message: "Contract deleted."})
}

// toHTTPError maps domain errors onto status codes.
func toHTTPError(err error) *echo.HTTPError {
	var invalid *segmenter.InvalidInputError
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &invalid):
		return echo.NewHTTPError(http.StatusBadRequest, invalid.Message)
	case errors.Is(err, usecases.ErrEmptyUpload):
		return echo.NewHTTPError(http.StatusBadRequest, "No file uploaded")
	case errors.Is(err, usecases.ErrUnsupportedType):
		return echo.NewHTTPError(http.StatusUnsupportedMediaType, "Only PDF, DOC, DOCX, text or Markdown files are accepted.")
	case errors.Is(err, ports.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Contract not found")
	case errors.As(err, &tooLarge):
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "File exceeds the upload limit.")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "Internal server error.").SetInternal(err)
	}
}

// handleError renders every error as an ErrorResponse.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var he *echo.HTTPError
	if !errors.As(err, &he) {
		he = toHTTPError(err)
	}

	msg := http.StatusText(he.Code)
	if m, ok := he.Message.(string); ok {
		msg = m
	}

	if he.Code >= http.StatusInternalServerError {
		cause := err
		if he.Internal != nil {
			cause = he.Internal
		}
		s.logger.Error("request failed",
			zap.String("route", c.Path()),
			zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			zap.Error(cause),
		)
	}

	var werr error
	if c.Request().Method == http.MethodHead {
		werr = c.NoContent(he.Code)
	} else {
		werr = c.JSON(he.Code, ErrorResponse{Error: msg})
	}
	if werr != nil {
		s.logger.Warn("writing error response", zap.Error(werr))
	}
}
