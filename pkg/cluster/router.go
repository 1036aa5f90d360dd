package cluster

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/cisco7507/LangId-mr/pkg/log"
)

// ErrUnknownOwner is returned when a job id's owner prefix does not match
// any configured node.
var ErrUnknownOwner = errors.New("unknown owner node")

// ErrBadJobID is returned for job ids that carry no owner prefix at all.
var ErrBadJobID = errors.New("invalid job id format")

// ParseJobOwner splits a job id of the form "<owner>-<bare>" into its
// parts. Known node names are matched first, longest name wins, so node
// names containing dashes route correctly; otherwise the substring before
// the first dash is taken as the owner.
func ParseJobOwner(cfg *Config, jobID string) (owner, bare string, err error) {
	names := make([]string, 0, len(cfg.Nodes))
	for name := range cfg.Nodes {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return len(names[i]) > len(names[j]) })
	for _, name := range names {
		prefix := name + "-"
		if strings.HasPrefix(jobID, prefix) {
			return name, jobID[len(prefix):], nil
		}
	}

	idx := strings.Index(jobID, "-")
	if idx <= 0 || idx == len(jobID)-1 {
		return "", "", ErrBadJobID
	}
	return jobID[:idx], jobID[idx+1:], nil
}

// IsLocal reports whether this node owns the job.
func IsLocal(cfg *Config, jobID string) bool {
	owner, _, err := ParseJobOwner(cfg, jobID)
	return err == nil && owner == cfg.SelfName
}

// Router forwards job-scoped requests to their owner node and job
// submissions to round-robin targets.
type Router struct {
	cfg    *Config
	client *http.Client
}

// NewRouter builds a router whose internal requests use the cluster timeout.
func NewRouter(cfg *Config) *Router {
	return &Router{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout()},
	}
}

// ProxyToOwner forwards the request to the job's owner node, same method
// and path with internal=1 appended, and relays the upstream response
// verbatim. Unreachable or unknown owners answer 503.
func (rt *Router) ProxyToOwner(w http.ResponseWriter, r *http.Request, jobID, pathSuffix string) {
	owner, _, err := ParseJobOwner(rt.cfg, jobID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_job_id"})
		return
	}

	baseURL := rt.cfg.NodeURL(owner)
	if baseURL == "" {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error":  "owner_node_unreachable",
			"owner":  owner,
			"detail": "unknown_node",
		})
		return
	}

	target := strings.TrimRight(baseURL, "/") + "/jobs/" + jobID + pathSuffix
	query := r.URL.Query()
	query.Set("internal", "1")

	var body io.Reader
	if r.Body != nil {
		body = r.Body
	}
	req, err := http.NewRequestWithContext(r.Context(), r.Method, target+"?"+query.Encode(), body)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "proxy_request_failed"})
		return
	}
	copyProxyHeaders(req.Header, r.Header)

	resp, err := rt.client.Do(req)
	if err != nil {
		log.WithComponent("cluster").Warn().Err(err).
			Str("owner", owner).
			Str("job_id", jobID).
			Msg("owner node unreachable")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "owner_node_unreachable",
			"owner": owner,
		})
		return
	}
	defer resp.Body.Close()
	relay(w, resp)
}

// SubmitToNode forwards a multipart job submission to the target node with
// the recursion guard set. The caller owns the returned response body.
func (rt *Router) SubmitToNode(ctx context.Context, target, contentType string, body []byte, targetLang string) (*http.Response, error) {
	baseURL := rt.cfg.NodeURL(target)
	if baseURL == "" {
		return nil, fmt.Errorf("%w: %s", ErrUnknownOwner, target)
	}

	url := strings.TrimRight(baseURL, "/") + "/jobs?internal=1"
	if targetLang != "" {
		url += "&target_lang=" + targetLang
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	return rt.client.Do(req)
}

// Relay copies an upstream response to the client verbatim.
func Relay(w http.ResponseWriter, resp *http.Response) {
	relay(w, resp)
}

func relay(w http.ResponseWriter, resp *http.Response) {
	for key, values := range resp.Header {
		if strings.EqualFold(key, "Content-Length") || strings.EqualFold(key, "Transfer-Encoding") {
			continue
		}
		for _, v := range values {
			w.Header().Add(key, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	io.Copy(w, resp.Body)
}

func copyProxyHeaders(dst, src http.Header) {
	for key, values := range src {
		switch strings.ToLower(key) {
		case "host", "content-length", "connection":
			continue
		}
		for _, v := range values {
			dst.Add(key, v)
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
