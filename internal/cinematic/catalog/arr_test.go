package catalog_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bdobrica/Cinematic/internal/cinematic/catalog"
	"github.com/bdobrica/Cinematic/internal/cinematic/media"
)

func radarrOptions(url string) catalog.Options {
	return catalog.Options{URL: url, APIKey: "secret", QualityProfileID: 4, RootFolder: "/movies"}
}

func TestSearchMoviesMapsLibraryState(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-Api-Key"); got != "secret" {
			t.Errorf("api key = %q, want secret", got)
		}
		if r.URL.Path != "/api/v3/movie/lookup" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("term"); got != "the matrix" {
			t.Errorf("term = %q", got)
		}
		_ = json.NewEncoder(w).Encode([]map[string]interface{}{
			{"title": "The Matrix", "year": 1999, "tmdbId": 603, "id": 12, "hasFile": true},
			{"title": "The Matrix Resurrections", "year": 2021, "tmdbId": 624860, "id": 13, "hasFile": false},
			{"title": "The Matrix Revisited", "year": 2001, "tmdbId": 684431},
		})
	}))
	defer srv.Close()

	client := catalog.New(radarrOptions(srv.URL), catalog.Options{})
	entries, err := client.Search(context.Background(), "the matrix", media.KindMovie)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}
	if entries[0].Status != catalog.StatusPresent {
		t.Errorf("entries[0].Status = %q, want present", entries[0].Status)
	}
	if entries[1].Status != catalog.StatusRequested {
		t.Errorf("entries[1].Status = %q, want requested", entries[1].Status)
	}
	if entries[2].Status != catalog.StatusMissing {
		t.Errorf("entries[2].Status = %q, want missing", entries[2].Status)
	}
	if entries[0].ExternalID != 603 || entries[0].Kind != media.KindMovie {
		t.Errorf("entries[0] = %+v", entries[0])
	}
}

func TestSearchAnyKindMergesBothServers(t *testing.T) {
	radarr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]map[string]interface{}{
			{"title": "Fargo", "year": 1996, "tmdbId": 275},
		})
	}))
	defer radarr.Close()
	sonarr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/series/lookup" {
			t.Errorf("path = %q", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode([]map[string]interface{}{
			{"title": "Fargo", "year": 2014, "tvdbId": 269613},
		})
	}))
	defer sonarr.Close()

	client := catalog.New(radarrOptions(radarr.URL),
		catalog.Options{URL: sonarr.URL, APIKey: "secret", QualityProfileID: 4, RootFolder: "/tv"})
	entries, err := client.Search(context.Background(), "fargo", media.KindAny)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	kinds := map[media.Kind]bool{}
	for _, e := range entries {
		kinds[e.Kind] = true
	}
	if !kinds[media.KindMovie] || !kinds[media.KindShow] {
		t.Errorf("kinds = %v, want both movie and show", kinds)
	}
}

func TestSearchAnyKindToleratesOneServerDown(t *testing.T) {
	radarr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]map[string]interface{}{
			{"title": "Heat", "year": 1995, "tmdbId": 949},
		})
	}))
	defer radarr.Close()
	sonarr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer sonarr.Close()

	client := catalog.New(radarrOptions(radarr.URL),
		catalog.Options{URL: sonarr.URL, APIKey: "secret", QualityProfileID: 4, RootFolder: "/tv"})
	entries, err := client.Search(context.Background(), "heat", media.KindAny)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
}

func TestGetStatusMissingItem(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("tmdbId"); got != "603" {
			t.Errorf("tmdbId = %q", got)
		}
		_ = json.NewEncoder(w).Encode([]map[string]interface{}{})
	}))
	defer srv.Close()

	client := catalog.New(radarrOptions(srv.URL), catalog.Options{})
	entry, err := client.GetStatus(context.Background(), media.KindMovie, 603)
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if entry.Status != catalog.StatusMissing {
		t.Errorf("Status = %q, want missing", entry.Status)
	}
	if entry.ExternalID != 603 {
		t.Errorf("ExternalID = %d, want 603", entry.ExternalID)
	}
}

func TestAddMovieSubmitsConfiguredDefaults(t *testing.T) {
	var posted map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/v3/movie/lookup/tmdb":
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"title": "The Matrix", "year": 1999, "tmdbId": 603,
			})
		case r.Method == http.MethodPost && r.URL.Path == "/api/v3/movie":
			if err := json.NewDecoder(r.Body).Decode(&posted); err != nil {
				t.Errorf("decode posted body: %v", err)
			}
			w.WriteHeader(http.StatusCreated)
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	client := catalog.New(radarrOptions(srv.URL), catalog.Options{})
	if err := client.Add(context.Background(), media.KindMovie, 603); err != nil {
		t.Fatalf("Add: %v", err)
	}

	if posted["qualityProfileId"] != float64(4) {
		t.Errorf("qualityProfileId = %v, want 4", posted["qualityProfileId"])
	}
	if posted["rootFolderPath"] != "/movies" {
		t.Errorf("rootFolderPath = %v", posted["rootFolderPath"])
	}
	if posted["monitored"] != true {
		t.Errorf("monitored = %v", posted["monitored"])
	}
	if posted["minimumAvailability"] != "announced" {
		t.Errorf("minimumAvailability = %v", posted["minimumAvailability"])
	}
	opts, _ := posted["addOptions"].(map[string]interface{})
	if opts["searchForMovie"] != true {
		t.Errorf("addOptions = %v", posted["addOptions"])
	}
}

func TestRemoveDeletesByInternalID(t *testing.T) {
	var deleted string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/v3/movie":
			_ = json.NewEncoder(w).Encode([]map[string]interface{}{
				{"title": "The Matrix", "year": 1999, "tmdbId": 603, "id": 12, "hasFile": true},
			})
		case r.Method == http.MethodDelete:
			deleted = r.URL.Path
			if got := r.URL.Query().Get("deleteFiles"); got != "true" {
				t.Errorf("deleteFiles = %q", got)
			}
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))
	defer srv.Close()

	client := catalog.New(radarrOptions(srv.URL), catalog.Options{})
	if err := client.Remove(context.Background(), media.KindMovie, 603); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if deleted != "/api/v3/movie/12" {
		t.Errorf("deleted path = %q, want /api/v3/movie/12", deleted)
	}
}

func TestRemoveAbsentItemIsNoError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			t.Error("DELETE issued for an item not in the library")
		}
		_ = json.NewEncoder(w).Encode([]map[string]interface{}{})
	}))
	defer srv.Close()

	client := catalog.New(radarrOptions(srv.URL), catalog.Options{})
	if err := client.Remove(context.Background(), media.KindMovie, 603); err != nil {
		t.Fatalf("Remove: %v", err)
	}
}

func TestServerErrorsAreUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "db locked", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := catalog.New(radarrOptions(srv.URL), catalog.Options{})
	_, err := client.Search(context.Background(), "anything", media.KindMovie)
	if !errors.Is(err, catalog.ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
}

func TestClientErrorsAreNotUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := catalog.New(radarrOptions(srv.URL), catalog.Options{})
	_, err := client.Search(context.Background(), "anything", media.KindMovie)
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, catalog.ErrUnavailable) {
		t.Errorf("401 should not be transient, got %v", err)
	}
}

func TestTransportFailureIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	client := catalog.New(radarrOptions(srv.URL), catalog.Options{})
	_, err := client.Search(context.Background(), "anything", media.KindMovie)
	if !errors.Is(err, catalog.ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
}

func TestUnconfiguredKindFailsCleanly(t *testing.T) {
	client := catalog.New(catalog.Options{}, catalog.Options{})
	if _, err := client.GetStatus(context.Background(), media.KindMovie, 1); err == nil {
		t.Error("expected error for unconfigured movie server")
	}
	if err := client.Add(context.Background(), media.KindShow, 1); err == nil {
		t.Error("expected error for unconfigured series server")
	}
}
