// Package media implements the multipart/file analysis adapter. The prompt
// is uploaded as a text document, the upstream's HTML result page is
// scraped for the toxicity verdict, suggestions and report text, and the
// generated report PDF is optionally downloaded alongside.
package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/unicc-ai/testbridge/internal/adapter"
	"github.com/unicc-ai/testbridge/internal/config"
	"github.com/unicc-ai/testbridge/internal/domain"
)

// Type is the adapter type identifier used in configuration.
const Type = config.TypeMedia

// Register wires the media factory into the adapter registry.
func Register() {
	adapter.RegisterFactory(adapter.Factory{
		Type:        Type,
		Description: "Multipart file-upload analysis API",
		New: func(cfg *config.AgentConfig) (adapter.Adapter, error) {
			return New(cfg), nil
		},
		Validate: func(cfg *config.AgentConfig) error {
			if cfg.BaseURL == "" {
				return domain.ErrConfig("agent %s: base_url is required for media adapters", cfg.Name)
			}
			return nil
		},
	})
}

// Option configures the media adapter.
type Option func(*Media)

// WithArtifactDir overrides where downloaded report PDFs are written.
func WithArtifactDir(dir string) Option {
	return func(m *Media) {
		m.artifactDir = dir
	}
}

// Media is the adapter instance.
type Media struct {
	name        string
	baseURL     string
	parsePDF    bool
	artifactDir string
	httpClient  *http.Client
}

// New creates a media adapter from resolved configuration.
func New(cfg *config.AgentConfig, opts ...Option) *Media {
	m := &Media{
		name:        cfg.Name,
		baseURL:     strings.TrimSuffix(cfg.BaseURL, "/"),
		parsePDF:    cfg.ParsePDF,
		artifactDir: filepath.Join("runs", "artifacts"),
		httpClient:  &http.Client{Timeout: cfg.Timeout()},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Media) Name() string { return m.name }
func (m *Media) Type() string { return Type }

// Invoke uploads the prompt as a text file and scrapes the analysis result.
func (m *Media) Invoke(ctx context.Context, prompt string) (*adapter.Response, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormFile("file", "prompt.txt")
	if err != nil {
		return nil, fmt.Errorf("agent %s: multipart: %w", m.name, err)
	}
	if _, err := io.WriteString(part, prompt); err != nil {
		return nil, fmt.Errorf("agent %s: multipart: %w", m.name, err)
	}
	if err := mw.WriteField("file_type", "text"); err != nil {
		return nil, fmt.Errorf("agent %s: multipart: %w", m.name, err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("agent %s: multipart: %w", m.name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/upload", &buf)
	if err != nil {
		return nil, fmt.Errorf("agent %s: build request: %w", m.name, err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, adapter.ClassifyTransportError(m.name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, adapter.ClassifyTransportError(m.name, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, adapter.ClassifyStatus(m.name, resp.StatusCode, string(body))
	}

	result, err := parseResultPage(bytes.NewReader(body))
	if err != nil {
		return nil, domain.ErrMalformedResponse("agent %s: result page: %v", m.name, err)
	}

	fields := map[string]any{
		"toxicity":    result.toxicity,
		"suggestions": result.suggestions,
		"report":      result.report,
	}

	if m.parsePDF {
		// The report PDF is best-effort debugging material; a failed
		// download never fails the analysis itself.
		if path, err := m.downloadReportPDF(ctx); err == nil {
			fields["pdf_path"] = path
		} else {
			fields["pdf_error"] = err.Error()
		}
	}

	return &adapter.Response{
		Output: formatOutput(result),
		Fields: fields,
	}, nil
}

func (m *Media) downloadReportPDF(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.baseURL+"/download_report_pdf", nil)
	if err != nil {
		return "", err
	}
	resp, err := m.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}

	if err := os.MkdirAll(m.artifactDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(m.artifactDir, fmt.Sprintf("%s-%d.pdf", m.name, time.Now().UnixMilli()))
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := io.Copy(f, resp.Body); err != nil {
		return "", err
	}
	return path, nil
}

type analysisResult struct {
	toxicity    string
	suggestions []string
	report      string
}

// parseResultPage extracts the toxicity/suggestions/report blocks, matched
// by element id or class, from the upstream's HTML result page.
func parseResultPage(r io.Reader) (*analysisResult, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	out := &analysisResult{toxicity: "Unknown"}

	var walk func(*html.Node, bool)
	walk = func(n *html.Node, inSuggestions bool) {
		if n.Type == html.ElementNode {
			switch {
			case hasMarker(n, "toxicity"):
				out.toxicity = strings.TrimSpace(textContent(n))
			case hasMarker(n, "report"):
				out.report = strings.TrimSpace(textContent(n))
			case hasMarker(n, "suggestions"):
				inSuggestions = true
			case n.Data == "li" && inSuggestions && len(out.suggestions) < 5:
				out.suggestions = append(out.suggestions, strings.TrimSpace(textContent(n)))
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, inSuggestions)
		}
	}
	walk(doc, false)

	return out, nil
}

func hasMarker(n *html.Node, marker string) bool {
	for _, attr := range n.Attr {
		if attr.Key == "id" && attr.Val == marker {
			return true
		}
		if attr.Key == "class" {
			for _, cls := range strings.Fields(attr.Val) {
				if cls == marker {
					return true
				}
			}
		}
	}
	return false
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func formatOutput(r *analysisResult) string {
	var parts []string
	parts = append(parts, "toxicity: "+r.toxicity)
	if len(r.suggestions) > 0 {
		parts = append(parts, "suggestions: "+strings.Join(r.suggestions, "; "))
	}
	if r.report != "" {
		parts = append(parts, r.report)
	}
	return strings.Join(parts, "\n")
}
