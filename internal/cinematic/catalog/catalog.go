// Package catalog talks to the media servers (Radarr for movies, Sonarr for
// series). The catalog is the source of truth for what the library contains;
// the pipeline never caches its answers beyond a single resolution attempt.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/bdobrica/Cinematic/internal/cinematic/media"
)

// ErrUnavailable is returned when the media server cannot be reached or
// answers with a server-side failure. It is transient: callers on the
// mutating path retry with bounded backoff, callers on the read path degrade
// to fewer candidates.
var ErrUnavailable = errors.New("catalog: media server unavailable")

// Status is the library state of an entry.
type Status string

const (
	// StatusPresent means the item is in the library with files on disk.
	StatusPresent Status = "present"
	// StatusRequested means the item is monitored but has no files yet.
	StatusRequested Status = "requested"
	// StatusMissing means the library does not know the item at all.
	StatusMissing Status = "missing"
)

// Entry is one item as the media server reports it.
type Entry struct {
	// ExternalID is the provider ID (TMDB for movies, TVDB for series).
	ExternalID int64
	Title      string
	Year       int
	Kind       media.Kind
	Status     Status
	Overview   string
}

// Client is the catalog interface the pipeline consumes. The concrete
// implementation dispatches per media kind to the appropriate server.
//
// All methods honour ctx for cancellation and per-call timeouts. Transport
// and server-side failures surface as errors wrapping ErrUnavailable.
type Client interface {
	// Search queries the server's lookup endpoint. kind may be KindAny, in
	// which case both servers are consulted and results merged. An empty
	// result is not an error.
	Search(ctx context.Context, query string, kind media.Kind) ([]Entry, error)

	// GetStatus reports the current library state of one item. An item the
	// library does not contain is reported with StatusMissing, not an error.
	GetStatus(ctx context.Context, kind media.Kind, externalID int64) (*Entry, error)

	// Add requests the item: it is looked up by provider ID, configured with
	// the default quality profile and root folder, and submitted monitored
	// with an immediate search.
	Add(ctx context.Context, kind media.Kind, externalID int64) error

	// Remove deletes the item and its files from the library.
	Remove(ctx context.Context, kind media.Kind, externalID int64) error
}

// client routes per media kind.
type client struct {
	movies *arrService
	shows  *arrService
}

// Options configures one media-server connection.
type Options struct {
	URL              string
	APIKey           string
	QualityProfileID int
	RootFolder       string
}

// New builds a Client from Radarr and Sonarr options. Either may be left
// zero-valued to run movie-only or show-only; operations against the missing
// kind then fail cleanly.
func New(radarr, sonarr Options) Client {
	c := &client{}
	if radarr.URL != "" {
		c.movies = newArrService(radarr, media.KindMovie)
	}
	if sonarr.URL != "" {
		c.shows = newArrService(sonarr, media.KindShow)
	}
	return c
}

func (c *client) service(kind media.Kind) (*arrService, error) {
	switch kind {
	case media.KindMovie:
		if c.movies == nil {
			return nil, errors.New("catalog: no movie server configured")
		}
		return c.movies, nil
	case media.KindShow:
		if c.shows == nil {
			return nil, errors.New("catalog: no series server configured")
		}
		return c.shows, nil
	default:
		return nil, fmt.Errorf("catalog: no server for kind %q", kind)
	}
}

func (c *client) Search(ctx context.Context, query string, kind media.Kind) ([]Entry, error) {
	if kind != media.KindAny {
		svc, err := c.service(kind)
		if err != nil {
			return nil, err
		}
		return svc.search(ctx, query)
	}

	// Ambiguous kind: consult both servers. One server being down does not
	// hide the other's results; only a total blackout is an error.
	var entries []Entry
	var errs []error
	for _, svc := range []*arrService{c.movies, c.shows} {
		if svc == nil {
			continue
		}
		found, err := svc.search(ctx, query)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		entries = append(entries, found...)
	}
	if entries == nil && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return entries, nil
}

func (c *client) GetStatus(ctx context.Context, kind media.Kind, externalID int64) (*Entry, error) {
	svc, err := c.service(kind)
	if err != nil {
		return nil, err
	}
	return svc.getStatus(ctx, externalID)
}

func (c *client) Add(ctx context.Context, kind media.Kind, externalID int64) error {
	svc, err := c.service(kind)
	if err != nil {
		return err
	}
	return svc.add(ctx, externalID)
}

func (c *client) Remove(ctx context.Context, kind media.Kind, externalID int64) error {
	svc, err := c.service(kind)
	if err != nil {
		return err
	}
	return svc.remove(ctx, externalID)
}
