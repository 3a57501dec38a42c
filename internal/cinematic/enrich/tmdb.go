package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/bdobrica/Cinematic/common/redact"
	"github.com/bdobrica/Cinematic/internal/cinematic/media"
)

const defaultTMDBBaseURL = "https://api.themoviedb.org/3"

// tmdbRequestsPerSecond keeps us well under the provider's published limit.
const tmdbRequestsPerSecond = 4

// tmdbShowLookupCap bounds the per-search external-id calls. TMDB orders
// results by relevance, so the tail is never shortlist material.
const tmdbShowLookupCap = 8

// TMDBClient queries The Movie Database for movie and series candidates.
// Requests are paced with a shared limiter so concurrent resolutions never
// stampede the provider.
type TMDBClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

var _ Enricher = (*TMDBClient)(nil)

type tmdbSearchResult struct {
	Results []tmdbItem `json:"results"`
}

type tmdbItem struct {
	ID           int64  `json:"id"`
	Title        string `json:"title"`
	Name         string `json:"name"`
	ReleaseDate  string `json:"release_date"`
	FirstAirDate string `json:"first_air_date"`
	Overview     string `json:"overview"`
}

type tmdbExternalIDs struct {
	TVDBID int64 `json:"tvdb_id"`
}

func NewTMDBClient(apiKey string) *TMDBClient {
	return &TMDBClient{
		apiKey:     apiKey,
		baseURL:    defaultTMDBBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(tmdbRequestsPerSecond), tmdbRequestsPerSecond),
	}
}

// Lookup searches the provider. KindAny queries both the movie and TV
// endpoints. Year, when known, narrows the movie search server-side.
//
// Movie candidates carry TMDB ids; show candidates carry TheTVDB ids,
// the namespace the series catalog operates in. Shows TheTVDB doesn't
// know about are dropped — the catalog could not act on them anyway.
func (c *TMDBClient) Lookup(ctx context.Context, title string, kind media.Kind, year int) ([]media.CandidateRecord, error) {
	var candidates []media.CandidateRecord

	if kind == media.KindMovie || kind == media.KindAny {
		found, err := c.search(ctx, "movie", title, year)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, found...)
	}
	if kind == media.KindShow || kind == media.KindAny {
		found, err := c.search(ctx, "tv", title, year)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, found...)
	}
	return candidates, nil
}

func (c *TMDBClient) search(ctx context.Context, endpoint, query string, year int) ([]media.CandidateRecord, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("page", "1")
	if year > 0 && endpoint == "movie" {
		params.Set("year", strconv.Itoa(year))
	}

	var result tmdbSearchResult
	if err := c.getJSON(ctx, "/search/"+endpoint, params, &result); err != nil {
		return nil, err
	}

	kind := media.KindMovie
	if endpoint == "tv" {
		kind = media.KindShow
	}
	candidates := make([]media.CandidateRecord, 0, len(result.Results))
	for i, item := range result.Results {
		externalID := item.ID
		if kind == media.KindShow {
			if i >= tmdbShowLookupCap {
				break
			}
			tvdbID, err := c.tvdbID(ctx, item.ID)
			if err != nil {
				return nil, err
			}
			if tvdbID == 0 {
				continue
			}
			externalID = tvdbID
		}
		candidates = append(candidates, media.CandidateRecord{
			ExternalID: externalID,
			Title:      item.displayTitle(),
			Year:       item.year(),
			Kind:       kind,
			Source:     media.SourceExternal,
			Overview:   item.Overview,
		})
	}
	return candidates, nil
}

// tvdbID maps a TMDB TV id onto TheTVDB's numbering. Returns 0 when TMDB
// has no mapping for the series.
func (c *TMDBClient) tvdbID(ctx context.Context, tmdbID int64) (int64, error) {
	var ids tmdbExternalIDs
	if err := c.getJSON(ctx, fmt.Sprintf("/tv/%d/external_ids", tmdbID), url.Values{}, &ids); err != nil {
		return 0, err
	}
	return ids.TVDBID, nil
}

func (c *TMDBClient) getJSON(ctx context.Context, path string, params url.Values, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	params.Set("api_key", c.apiKey)
	fullURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return fmt.Errorf("enrich: creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Transport errors embed the request URL, and the URL carries the
		// API key.
		return fmt.Errorf("%w: %s", ErrUnavailable, redact.Error(err, c.apiKey))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("%w: provider returned %d", ErrUnavailable, resp.StatusCode)
		}
		return fmt.Errorf("enrich: provider returned %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("enrich: decoding response: %w", err)
	}
	return nil
}

func (i tmdbItem) displayTitle() string {
	if i.Title != "" {
		return i.Title
	}
	return i.Name
}

func (i tmdbItem) year() int {
	date := i.ReleaseDate
	if date == "" {
		date = i.FirstAirDate
	}
	if len(date) < 4 {
		return 0
	}
	year, err := strconv.Atoi(strings.SplitN(date, "-", 2)[0])
	if err != nil {
		return 0
	}
	return year
}
