// Package routing resolves origin/destination coordinate pairs into
// road-network path geometries through an OSRM-compatible HTTP service.
package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/golang/geo/s2"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"golang.org/x/time/rate"

	"github.com/equivet/moverisk/internal/model"
	"github.com/equivet/moverisk/internal/resilience"
)

const earthRadiusKM = 6371.01

// ErrNoRoute reports that the service found no path between the pair. It is
// recoverable: the caller skips the record and reports it, without aborting
// the batch.
var ErrNoRoute = eris.New("routing: no route found")

// Path is one resolved route: the path geometry plus service metadata.
type Path struct {
	Geometry  *geom.LineString
	DistanceM float64
	DurationS float64
	CrowKM    float64 // great-circle origin-destination distance, for sanity checks
}

// Client resolves coordinate pairs into path geometries.
type Client interface {
	Route(ctx context.Context, origin, dest model.Coordinate) (*Path, error)
}

// Option configures an OSRM client.
type Option func(*osrmClient)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *osrmClient) { c.httpClient = hc }
}

// WithRateLimit sets the request rate toward the routing service.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *osrmClient) { c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst) }
}

// WithRetry overrides the retry policy for transient service failures.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *osrmClient) { c.retry = cfg }
}

type osrmClient struct {
	baseURL    string
	profile    string
	httpClient *http.Client
	limiter    *rate.Limiter
	retry      resilience.RetryConfig
}

// NewClient creates an OSRM routing client.
func NewClient(baseURL, profile string, opts ...Option) Client {
	c := &osrmClient{
		baseURL:    baseURL,
		profile:    profile,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(1, 1),
		retry:      resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// osrmResponse is the subset of the OSRM route response we consume.
type osrmResponse struct {
	Code   string `json:"code"`
	Routes []struct {
		Geometry json.RawMessage `json:"geometry"`
		Distance float64         `json:"distance"`
		Duration float64         `json:"duration"`
	} `json:"routes"`
}

// Route implements Client against the OSRM HTTP API, requesting the full
// route geometry as GeoJSON. Transient service failures are retried with
// backoff; NoRoute is returned immediately.
func (c *osrmClient) Route(ctx context.Context, origin, dest model.Coordinate) (*Path, error) {
	retry := c.retry
	if retry.OnRetry == nil {
		retry.OnRetry = resilience.RetryLogger("osrm", "route")
	}
	return resilience.DoVal(ctx, retry, func(ctx context.Context) (*Path, error) {
		return c.route(ctx, origin, dest)
	})
}

func (c *osrmClient) route(ctx context.Context, origin, dest model.Coordinate) (*Path, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "routing: rate limit")
	}

	reqURL := fmt.Sprintf("%s/route/v1/%s/%f,%f;%f,%f?overview=full&geometries=geojson",
		c.baseURL, c.profile, origin.Lon, origin.Lat, dest.Lon, dest.Lat)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "routing: build request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "routing: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "routing: read body")
	}

	// OSRM reports NoRoute with a 400-class status; decode before rejecting
	// on status alone.
	var osrm osrmResponse
	if err := json.Unmarshal(body, &osrm); err != nil {
		if resp.StatusCode != http.StatusOK {
			statusErr := eris.Errorf("routing: service returned status %d", resp.StatusCode)
			if resilience.IsTransientHTTPStatus(resp.StatusCode) {
				return nil, resilience.NewTransientError(statusErr, resp.StatusCode)
			}
			return nil, statusErr
		}
		return nil, eris.Wrap(err, "routing: parse response")
	}

	switch {
	case osrm.Code == "NoRoute", osrm.Code == "Ok" && len(osrm.Routes) == 0:
		return nil, ErrNoRoute
	case osrm.Code != "Ok":
		return nil, eris.Errorf("routing: service returned code %q (status %d)", osrm.Code, resp.StatusCode)
	}

	ls, err := decodeLineString(osrm.Routes[0].Geometry)
	if err != nil {
		return nil, err
	}

	return &Path{
		Geometry:  ls,
		DistanceM: osrm.Routes[0].Distance,
		DurationS: osrm.Routes[0].Duration,
		CrowKM:    CrowDistanceKM(origin, dest),
	}, nil
}

func decodeLineString(raw json.RawMessage) (*geom.LineString, error) {
	var g geom.T
	if err := geojson.Unmarshal(raw, &g); err != nil {
		return nil, eris.Wrap(err, "routing: decode geometry")
	}
	ls, ok := g.(*geom.LineString)
	if !ok {
		return nil, eris.Errorf("routing: unexpected geometry type %T", g)
	}
	if ls.NumCoords() == 0 {
		return nil, ErrNoRoute
	}
	return ls, nil
}

// CrowDistanceKM returns the great-circle distance between two coordinates.
func CrowDistanceKM(a, b model.Coordinate) float64 {
	p1 := s2.LatLngFromDegrees(a.Lat, a.Lon)
	p2 := s2.LatLngFromDegrees(b.Lat, b.Lon)
	return p1.Distance(p2).Radians() * earthRadiusKM
}
