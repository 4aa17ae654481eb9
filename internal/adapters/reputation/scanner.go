package reputation

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/encryptgate/threat-engine/internal/core"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// Scanner checks attachments, the sender domain, URL domains and the sender
// IP against the reputation-scanning service and aggregates the individual
// verdicts into one. It implements core.ReputationScanner.
type Scanner struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	timeout    time.Duration
	sem        *semaphore.Weighted
	logger     *zap.Logger
}

// fallbackScore is the uncertainty penalty for a wholesale scanner failure,
// matching core.VerdictScore(core.VerdictError)
const fallbackScore = 0.2

// artifact kinds reported in ArtifactVerdict.Kind
const (
	kindFile   = "file"
	kindDomain = "domain"
	kindIP     = "ip"
)

type verdictResponse struct {
	Verdict string `json:"verdict"`
	Detail  string `json:"detail,omitempty"`
	Error   string `json:"error,omitempty"`
}

// NewScanner creates a new reputation scanner
func NewScanner(baseURL, apiKey string, timeout time.Duration, maxConcurrency int, logger *zap.Logger) *Scanner {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if maxConcurrency <= 0 {
		maxConcurrency = 4
	}
	return &Scanner{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		timeout:    timeout,
		sem:        semaphore.NewWeighted(int64(maxConcurrency)),
		logger:     logger,
	}
}

// Scan runs all reputation sub-checks concurrently and aggregates their
// verdicts. A missing API key or unreachable service degrades the whole
// agent to ERROR/0.2; an individual failing check degrades only that check.
func (s *Scanner) Scan(ctx context.Context, attachments []core.Attachment, sender string, urls []string, senderIP string) *core.ReputationResult {
	if s.apiKey == "" || s.baseURL == "" {
		s.logger.Warn("Reputation scanner not configured, degrading to fallback")
		return &core.ReputationResult{
			Aggregate: core.VerdictError,
			Score:     fallbackScore,
		}
	}

	type check struct {
		artifact string
		kind     string
		run      func(context.Context) (core.Verdict, string, error)
	}

	var checks []check
	for _, att := range attachments {
		att := att
		checks = append(checks, check{
			artifact: att.Filename,
			kind:     kindFile,
			run: func(ctx context.Context) (core.Verdict, string, error) {
				return s.scanAttachment(ctx, att)
			},
		})
	}
	if d := domainOf(sender); d != "" {
		checks = append(checks, check{
			artifact: d,
			kind:     kindDomain,
			run: func(ctx context.Context) (core.Verdict, string, error) {
				return s.lookupDomain(ctx, d)
			},
		})
	}
	for _, d := range distinctURLDomains(urls) {
		d := d
		checks = append(checks, check{
			artifact: d,
			kind:     kindDomain,
			run: func(ctx context.Context) (core.Verdict, string, error) {
				return s.lookupDomain(ctx, d)
			},
		})
	}
	if senderIP != "" {
		checks = append(checks, check{
			artifact: senderIP,
			kind:     kindIP,
			run: func(ctx context.Context) (core.Verdict, string, error) {
				return s.lookupIP(ctx, senderIP)
			},
		})
	}

	results := make([]core.ArtifactVerdict, len(checks))
	var wg sync.WaitGroup
	for i, c := range checks {
		wg.Add(1)
		go func(i int, c check) {
			defer wg.Done()

			checkCtx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()

			if err := s.sem.Acquire(checkCtx, 1); err != nil {
				results[i] = core.ArtifactVerdict{
					Artifact: c.artifact,
					Kind:     c.kind,
					Verdict:  core.VerdictError,
					Detail:   fmt.Sprintf("scan not started: %v", err),
				}
				return
			}
			defer s.sem.Release(1)

			verdict, detail, err := c.run(checkCtx)
			if err != nil {
				s.logger.Warn("Reputation check failed",
					zap.String("artifact", c.artifact),
					zap.String("kind", c.kind),
					zap.Error(err))
				verdict, detail = core.VerdictError, err.Error()
			}
			results[i] = core.ArtifactVerdict{
				Artifact: c.artifact,
				Kind:     c.kind,
				Verdict:  verdict,
				Detail:   detail,
			}
		}(i, c)
	}
	wg.Wait()

	verdicts := make([]core.Verdict, len(results))
	for i, r := range results {
		verdicts[i] = r.Verdict
	}
	aggregate := core.AggregateVerdicts(verdicts)

	return &core.ReputationResult{
		Artifacts: results,
		Aggregate: aggregate,
		Score:     core.VerdictScore(aggregate),
	}
}

// scanAttachment looks the file up by content hash first and falls back to
// uploading it for a full scan when the hash is unknown
func (s *Scanner) scanAttachment(ctx context.Context, att core.Attachment) (core.Verdict, string, error) {
	sum := sha256.Sum256(att.Content)
	digest := hex.EncodeToString(sum[:])

	verdict, detail, err := s.getVerdict(ctx, "/files/"+digest)
	if err == nil {
		return verdict, detail, nil
	}
	if !isNotFound(err) {
		return core.VerdictError, "", err
	}
	return s.uploadFile(ctx, att)
}

func (s *Scanner) uploadFile(ctx context.Context, att core.Attachment) (core.Verdict, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", att.Filename)
	if err != nil {
		return core.VerdictError, "", fmt.Errorf("failed to build upload: %w", err)
	}
	if _, err := part.Write(att.Content); err != nil {
		return core.VerdictError, "", fmt.Errorf("failed to write upload: %w", err)
	}
	if err := writer.Close(); err != nil {
		return core.VerdictError, "", fmt.Errorf("failed to finalize upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/files", &buf)
	if err != nil {
		return core.VerdictError, "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("x-apikey", s.apiKey)

	return s.doVerdictRequest(req)
}

func (s *Scanner) lookupDomain(ctx context.Context, domain string) (core.Verdict, string, error) {
	return s.getVerdict(ctx, "/domains/"+url.PathEscape(domain))
}

func (s *Scanner) lookupIP(ctx context.Context, ip string) (core.Verdict, string, error) {
	return s.getVerdict(ctx, "/ip_addresses/"+url.PathEscape(ip))
}

func (s *Scanner) getVerdict(ctx context.Context, path string) (core.Verdict, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+path, nil)
	if err != nil {
		return core.VerdictError, "", err
	}
	req.Header.Set("x-apikey", s.apiKey)
	return s.doVerdictRequest(req)
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("reputation service returned status %d", e.code)
}

func isNotFound(err error) bool {
	se, ok := err.(*statusError)
	return ok && se.code == http.StatusNotFound
}

func (s *Scanner) doVerdictRequest(req *http.Request) (core.Verdict, string, error) {
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return core.VerdictError, "", fmt.Errorf("reputation service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return core.VerdictError, "", &statusError{code: resp.StatusCode}
	}

	var decoded verdictResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return core.VerdictError, "", fmt.Errorf("malformed reputation response: %w", err)
	}
	if decoded.Error != "" {
		return core.VerdictError, "", fmt.Errorf("reputation service error: %s", decoded.Error)
	}

	switch core.Verdict(strings.ToUpper(decoded.Verdict)) {
	case core.VerdictClean:
		return core.VerdictClean, decoded.Detail, nil
	case core.VerdictSuspicious:
		return core.VerdictSuspicious, decoded.Detail, nil
	case core.VerdictMalicious:
		return core.VerdictMalicious, decoded.Detail, nil
	case core.VerdictError:
		return core.VerdictError, decoded.Detail, nil
	default:
		return core.VerdictError, "", fmt.Errorf("unknown verdict %q", decoded.Verdict)
	}
}

// domainOf extracts the domain part of an email address
func domainOf(address string) string {
	at := strings.LastIndex(address, "@")
	if at < 0 || at == len(address)-1 {
		return ""
	}
	return strings.ToLower(address[at+1:])
}

// distinctURLDomains extracts the set of hostnames from raw URLs, sorted
// for deterministic scan ordering
func distinctURLDomains(rawURLs []string) []string {
	seen := make(map[string]struct{})
	for _, raw := range rawURLs {
		parsed, err := url.Parse(strings.TrimSpace(raw))
		if err != nil {
			continue
		}
		host := strings.ToLower(parsed.Hostname())
		if host == "" && !strings.Contains(raw, "://") {
			if parsed, err = url.Parse("http://" + strings.TrimSpace(raw)); err == nil {
				host = strings.ToLower(parsed.Hostname())
			}
		}
		if host != "" {
			seen[host] = struct{}{}
		}
	}

	out := make([]string, 0, len(seen))
	for host := range seen {
		out = append(out, host)
	}
	sort.Strings(out)
	return out
}
