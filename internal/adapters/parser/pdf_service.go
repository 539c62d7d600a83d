// Package parser provides text extraction adapters for contract files.
// PDFs go through an external text service, DOCX and plain text are read in
// process, and Extractor dispatches between them by MIME type.
//
// The PDF text service is not part of this module. Any HTTP server works
// that implements:
//
//	POST /parse   body: raw PDF bytes (Content-Type application/pdf,
//	              X-Filename header with the base name)
//	              reply: {"text": "...", "pages": 3, "library": "pypdf"}
//	              or {"error": "..."} on failure
//	GET  /health  200 once the service is ready
//
// StartService can launch such a server from a pdf_service.py script the
// deployment provides.
package parser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

const defaultPDFServiceURL = "http://localhost:8081"

// maxServiceResponse caps how much of a PDF service reply is read.
const maxServiceResponse = 64 << 20

// PDFServiceParser implements ports.DocumentParser by posting PDF bytes to
// an HTTP text extraction service that answers with JSON.
type PDFServiceParser struct {
	serviceURL string
	client     *http.Client
	logger     *zap.Logger
}

// NewPDFServiceParser creates a parser for the service at serviceURL.
// A zero timeout means 60 seconds.
func NewPDFServiceParser(serviceURL string, timeout time.Duration, logger *zap.Logger) *PDFServiceParser {
	if serviceURL == "" {
		serviceURL = defaultPDFServiceURL
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PDFServiceParser{
		serviceURL: serviceURL,
		client:     &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// parseResponse is the PDF service response format.
type parseResponse struct {
	Text    string `json:"text"`
	Pages   int    `json:"pages"`
	Library string `json:"library,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Parse extracts text from PDF bytes via the service.
func (p *PDFServiceParser) Parse(ctx context.Context, data []byte, filename string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.serviceURL+"/parse", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/pdf")
	req.Header.Set("X-Filename", filepath.Base(filename))

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling PDF service: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxServiceResponse))
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}

	var result parseResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("decoding response (status %d): %w", resp.StatusCode, err)
	}
	if result.Error != "" {
		return "", fmt.Errorf("PDF parse error: %s", result.Error)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("PDF service returned status %d", resp.StatusCode)
	}

	p.logger.Debug("pdf text extracted",
		zap.String("file", filename),
		zap.Int("pages", result.Pages),
		zap.String("library", result.Library),
		zap.Int("chars", len(result.Text)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return result.Text, nil
}

// SupportedFormats returns formats this parser handles.
func (p *PDFServiceParser) SupportedFormats() []string {
	return []string{"pdf"}
}

// StartService launches pdf_service.py from scriptDir and waits until it
// answers its health check. The returned function stops the process.
func (p *PDFServiceParser) StartService(ctx context.Context, scriptDir string) (func(), error) {
	scriptPath := filepath.Join(scriptDir, "pdf_service.py")
	if _, err := os.Stat(scriptPath); err != nil {
		return nil, fmt.Errorf("pdf_service.py not found at %s: %w", scriptPath, err)
	}

	cmd := exec.Command("python3", scriptPath)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting PDF service: %w", err)
	}
	p.logger.Info("pdf service started", zap.Int("pid", cmd.Process.Pid), zap.String("script", scriptPath))

	stop := func() {
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
			_ = cmd.Wait()
		}
	}

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	deadline := time.After(10 * time.Second)
	for !p.IsServiceHealthy(ctx) {
		select {
		case <-ctx.Done():
			stop()
			return nil, ctx.Err()
		case <-deadline:
			stop()
			return nil, fmt.Errorf("PDF service at %s did not become healthy", p.serviceURL)
		case <-ticker.C:
		}
	}
	return stop, nil
}

// IsServiceHealthy checks if the PDF service is running.
func (p *PDFServiceParser) IsServiceHealthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.serviceURL+"/health", nil)
	if err != nil {
		return false
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}
