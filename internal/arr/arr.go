// Package arr holds the pieces shared by the Radarr, Sonarr and Lidarr
// adapters: instance addressing, outcome tags, comparison normalization and
// the per-instance removal fan-out.
package arr

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/janitarr/janitarr/internal/config"
)

const (
	// StatusTimeout bounds connectivity probes.
	StatusTimeout = 10 * time.Second
	// LookupTimeout bounds filtered find and delete calls.
	LookupTimeout = 15 * time.Second
	// ListTimeout bounds full-collection fetches used for client-side scans.
	ListTimeout = 30 * time.Second
)

// InstanceKey names one configured instance for reporting: radarr_1, radarr_2...
// Instances are numbered 1..N in configuration order.
func InstanceKey(prefix string, index int) string {
	return fmt.Sprintf("%s_%d", prefix, index+1)
}

// Outcome tags for one service in a removal result.
const (
	OutcomeRemoved  = "removed"
	OutcomeNotFound = "not_found"
)

// OutcomeSkipped tags a service that was deliberately not attempted.
func OutcomeSkipped(reason string) string {
	return fmt.Sprintf("skipped (%s)", reason)
}

// OutcomeError tags a service whose attempt failed. The error never
// propagates past the orchestrator; it is captured here instead.
func OutcomeError(err error) string {
	return fmt.Sprintf("error: %v", err)
}

// Remover attempts find-and-delete against a single instance. It reports
// whether the item existed there; an error covers both lookup and delete
// failures.
type Remover func(ctx context.Context, inst config.ArrInstance) (found bool, err error)

// RemoveAll runs remove against every configured instance of one kind and
// records an independent outcome per instance. One instance failing never
// prevents the attempt on the next.
func RemoveAll(ctx context.Context, instances []config.ArrInstance, prefix string, remove Remover) map[string]string {
	results := make(map[string]string, len(instances))
	for i, inst := range instances {
		key := InstanceKey(prefix, i)
		found, err := remove(ctx, inst)
		switch {
		case err != nil:
			results[key] = OutcomeError(err)
		case found:
			results[key] = OutcomeRemoved
		default:
			results[key] = OutcomeNotFound
		}
	}
	return results
}

// SkipAll marks every configured instance of one kind with the same skip
// reason.
func SkipAll(instances []config.ArrInstance, prefix, reason string) map[string]string {
	results := make(map[string]string, len(instances))
	for i := range instances {
		results[InstanceKey(prefix, i)] = OutcomeSkipped(reason)
	}
	return results
}

// Request performs one authenticated call against an instance and decodes the
// JSON body into result when it is non-nil. The API key rides as a query
// parameter, which every *arr version accepts.
func Request(ctx context.Context, hc *http.Client, method string, inst config.ArrInstance, path string, params url.Values, result any) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("apikey", inst.APIKey)

	reqURL := fmt.Sprintf("%s%s?%s", inst.URL, path, params.Encode())
	req, err := http.NewRequestWithContext(ctx, method, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s returned status %d for %s", inst.Name, resp.StatusCode, path)
	}
	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// SystemStatus is the common shape of /system/status across the *arr family.
type SystemStatus struct {
	Version      string `json:"version"`
	InstanceName string `json:"instanceName"`
	AppName      string `json:"appName"`
	Name         string `json:"name"`
}

// DisplayName picks the best name the instance reports for itself, falling
// back to the configured display name.
func (s *SystemStatus) DisplayName(fallback string) string {
	for _, n := range []string{s.InstanceName, s.AppName, s.Name} {
		if n != "" {
			return n
		}
	}
	return fallback
}

// FetchStatus probes one instance's /system/status under the given API base
// path ("/api/v3" or "/api/v1").
func FetchStatus(ctx context.Context, hc *http.Client, inst config.ArrInstance, apiBase string) (*SystemStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, StatusTimeout)
	defer cancel()

	var status SystemStatus
	if err := Request(ctx, hc, http.MethodGet, inst, apiBase+"/system/status", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// DeleteParams builds the standard delete query flags. Files on disk are
// deleted by default and no import exclusion is recorded, so the title can be
// re-added later.
func DeleteParams(deleteFiles bool, exclusionParam string) url.Values {
	params := url.Values{}
	if deleteFiles {
		params.Set("deleteFiles", "true")
	} else {
		params.Set("deleteFiles", "false")
	}
	params.Set(exclusionParam, "false")
	return params
}
