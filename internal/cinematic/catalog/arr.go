package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bdobrica/Cinematic/internal/cinematic/media"
)

const arrRequestTimeout = 15 * time.Second

// arrService is one Radarr or Sonarr connection. The two servers share the
// same v3 API shape; the differences are the resource name, the provider ID
// field, and the add options.
type arrService struct {
	baseURL          string
	apiKey           string
	kind             media.Kind
	qualityProfileID int
	rootFolder       string
	client           *http.Client
}

func newArrService(opts Options, kind media.Kind) *arrService {
	return &arrService{
		baseURL:          strings.TrimRight(opts.URL, "/"),
		apiKey:           opts.APIKey,
		kind:             kind,
		qualityProfileID: opts.QualityProfileID,
		rootFolder:       opts.RootFolder,
		client:           &http.Client{Timeout: arrRequestTimeout},
	}
}

// resource is the API path segment: "movie" for Radarr, "series" for Sonarr.
func (s *arrService) resource() string {
	if s.kind == media.KindShow {
		return "series"
	}
	return "movie"
}

// providerParam is the query parameter naming the external provider ID.
func (s *arrService) providerParam() string {
	if s.kind == media.KindShow {
		return "tvdbId"
	}
	return "tmdbId"
}

// arrResource covers the fields of interest in both Radarr movie and Sonarr
// series payloads. Unknown fields are ignored on decode.
type arrResource struct {
	ID         int64  `json:"id"`
	Title      string `json:"title"`
	Year       int    `json:"year"`
	TmdbID     int64  `json:"tmdbId"`
	TvdbID     int64  `json:"tvdbId"`
	HasFile    bool   `json:"hasFile"`
	Monitored  bool   `json:"monitored"`
	Overview   string `json:"overview"`
	Statistics struct {
		EpisodeFileCount int `json:"episodeFileCount"`
	} `json:"statistics"`
}

func (s *arrService) externalID(r arrResource) int64 {
	if s.kind == media.KindShow {
		return r.TvdbID
	}
	return r.TmdbID
}

func (s *arrService) status(r arrResource) Status {
	if r.ID == 0 {
		return StatusMissing
	}
	if s.kind == media.KindShow {
		if r.Statistics.EpisodeFileCount > 0 {
			return StatusPresent
		}
		return StatusRequested
	}
	if r.HasFile {
		return StatusPresent
	}
	return StatusRequested
}

func (s *arrService) entry(r arrResource) Entry {
	return Entry{
		ExternalID: s.externalID(r),
		Title:      r.Title,
		Year:       r.Year,
		Kind:       s.kind,
		Status:     s.status(r),
		Overview:   r.Overview,
	}
}

func (s *arrService) search(ctx context.Context, query string) ([]Entry, error) {
	path := fmt.Sprintf("/api/v3/%s/lookup?term=%s", s.resource(), url.QueryEscape(query))
	var results []arrResource
	if err := s.getJSON(ctx, path, &results); err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(results))
	for _, r := range results {
		if s.externalID(r) == 0 {
			continue
		}
		entries = append(entries, s.entry(r))
	}
	return entries, nil
}

// libraryItem looks the item up in the library by provider ID. A nil result
// with nil error means the library does not contain it.
func (s *arrService) libraryItem(ctx context.Context, externalID int64) (*arrResource, error) {
	path := fmt.Sprintf("/api/v3/%s?%s=%d", s.resource(), s.providerParam(), externalID)
	var results []arrResource
	if err := s.getJSON(ctx, path, &results); err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}
	return &results[0], nil
}

func (s *arrService) getStatus(ctx context.Context, externalID int64) (*Entry, error) {
	item, err := s.libraryItem(ctx, externalID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return &Entry{ExternalID: externalID, Kind: s.kind, Status: StatusMissing}, nil
	}
	e := s.entry(*item)
	return &e, nil
}

// lookupByID fetches the full metadata payload for one provider ID. The raw
// map is kept intact so the add request can send the resource back with only
// the library fields changed.
func (s *arrService) lookupByID(ctx context.Context, externalID int64) (map[string]interface{}, error) {
	var path string
	if s.kind == media.KindShow {
		path = "/api/v3/series/lookup?term=" + url.QueryEscape("tvdb:"+strconv.FormatInt(externalID, 10))
	} else {
		path = fmt.Sprintf("/api/v3/movie/lookup/tmdb?tmdbId=%d", externalID)
	}

	if s.kind == media.KindShow {
		var results []map[string]interface{}
		if err := s.getJSON(ctx, path, &results); err != nil {
			return nil, err
		}
		if len(results) == 0 {
			return nil, fmt.Errorf("catalog: series %d not found by provider", externalID)
		}
		return results[0], nil
	}

	var result map[string]interface{}
	if err := s.getJSON(ctx, path, &result); err != nil {
		return nil, err
	}
	if result == nil {
		return nil, fmt.Errorf("catalog: movie %d not found by provider", externalID)
	}
	return result, nil
}

func (s *arrService) add(ctx context.Context, externalID int64) error {
	payload, err := s.lookupByID(ctx, externalID)
	if err != nil {
		return err
	}

	payload["qualityProfileId"] = s.qualityProfileID
	payload["rootFolderPath"] = s.rootFolder
	payload["monitored"] = true
	if s.kind == media.KindShow {
		payload["addOptions"] = map[string]interface{}{"searchForMissingEpisodes": true}
	} else {
		payload["minimumAvailability"] = "announced"
		payload["addOptions"] = map[string]interface{}{"searchForMovie": true}
	}

	return s.postJSON(ctx, "/api/v3/"+s.resource(), payload)
}

func (s *arrService) remove(ctx context.Context, externalID int64) error {
	item, err := s.libraryItem(ctx, externalID)
	if err != nil {
		return err
	}
	if item == nil {
		// Nothing to delete; the executor reports this as a no-op upstream.
		return nil
	}

	path := fmt.Sprintf("/api/v3/%s/%d?deleteFiles=true", s.resource(), item.ID)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, s.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("catalog: build request: %w", err)
	}
	resp, err := s.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return s.checkStatus(resp)
}

func (s *arrService) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("catalog: build request: %w", err)
	}
	resp, err := s.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := s.checkStatus(resp); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("catalog: decode %s: %w", path, err)
	}
	return nil
}

func (s *arrService) postJSON(ctx context.Context, path string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("catalog: encode payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, strings.NewReader(string(body)))
	if err != nil {
		return fmt.Errorf("catalog: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return s.checkStatus(resp)
}

func (s *arrService) do(req *http.Request) (*http.Response, error) {
	req.Header.Set("X-Api-Key", s.apiKey)
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return resp, nil
}

// checkStatus maps HTTP status codes to the error taxonomy: server-side
// failures are transient, client-side failures are permanent.
func (s *arrService) checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: %s returned %d: %s", ErrUnavailable, s.resource(), resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	return fmt.Errorf("catalog: %s returned %d: %s", s.resource(), resp.StatusCode, strings.TrimSpace(string(detail)))
}
