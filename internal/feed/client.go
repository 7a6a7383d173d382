package feed

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html/charset"

	"github.com/yegors/birdnest/internal/geometry"
	"github.com/yegors/birdnest/pkg/logger"
)

// maxBodyBytes caps how much of a response is read
const maxBodyBytes = 4 << 20

// Client is responsible for fetching drone snapshots from the sensor feed
type Client struct {
	httpClient *http.Client
	url        string
	userAgent  string
	timeout    time.Duration
	logger     *logger.Logger
}

// NewClient creates a new feed client
func NewClient(url, userAgent string, timeout time.Duration, logger *logger.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		url:        url,
		userAgent:  userAgent,
		timeout:    timeout,
		logger:     logger.Named("feed"),
	}
}

// Fetch retrieves and decodes one snapshot. Every failure is a *FetchError.
func (c *Client) Fetch(ctx context.Context) (*Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, &FetchError{Op: "request", Err: err}
	}
	req.Header.Set("Accept", "application/xml, text/xml")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	c.logger.Debug("Fetching drone snapshot", logger.String("url", c.url))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{Op: "request", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// drain so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, &FetchError{Op: "status", Err: fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)}
	}

	snapshot, err := Decode(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}

	c.logger.Debug("Fetched drone snapshot",
		logger.String("device_id", snapshot.DeviceID),
		logger.Time("timestamp", snapshot.Timestamp),
		logger.Int("drone_count", len(snapshot.Sightings)),
	)

	return snapshot, nil
}

// Decode parses a drones report. Declared non-UTF-8 encodings are converted.
func Decode(r io.Reader) (*Snapshot, error) {
	decoder := xml.NewDecoder(r)
	decoder.CharsetReader = charset.NewReaderLabel

	var raw rawReport
	if err := decoder.Decode(&raw); err != nil {
		return nil, &FetchError{Op: "decode", Err: fmt.Errorf("%w: %v", ErrMalformed, err)}
	}
	if raw.Capture == nil {
		return nil, &FetchError{Op: "decode", Err: ErrNoCapture}
	}

	ts := strings.TrimSpace(raw.Capture.SnapshotTimestamp)
	if ts == "" {
		return nil, &FetchError{Op: "decode", Err: fmt.Errorf("%w: snapshotTimestamp", ErrMissingField)}
	}
	timestamp, err := time.Parse(TimestampLayout, ts)
	if err != nil {
		return nil, &FetchError{Op: "decode", Err: fmt.Errorf("%w: snapshotTimestamp %q", ErrMalformed, ts)}
	}

	snapshot := &Snapshot{
		DeviceID:  strings.TrimSpace(raw.Device.DeviceID),
		Timestamp: timestamp,
		Sightings: make([]Sighting, 0, len(raw.Capture.Drones)),
	}

	for i, d := range raw.Capture.Drones {
		sighting, err := d.toSighting()
		if err != nil {
			return nil, &FetchError{Op: "decode", Err: fmt.Errorf("drone %d: %w", i, err)}
		}
		snapshot.Sightings = append(snapshot.Sightings, sighting)
	}

	return snapshot, nil
}

func (d rawDrone) toSighting() (Sighting, error) {
	serial := strings.TrimSpace(d.SerialNumber)
	if serial == "" {
		return Sighting{}, fmt.Errorf("%w: serialNumber", ErrMissingField)
	}

	x, err := parseCoordinate("positionX", d.PositionX)
	if err != nil {
		return Sighting{}, err
	}
	y, err := parseCoordinate("positionY", d.PositionY)
	if err != nil {
		return Sighting{}, err
	}

	s := Sighting{
		Serial:       serial,
		Model:        strings.TrimSpace(d.Model),
		Manufacturer: strings.TrimSpace(d.Manufacturer),
		Position:     geometry.Point{X: x, Y: y},
	}
	// altitude is informational only
	if alt, err := strconv.ParseFloat(strings.TrimSpace(d.Altitude), 64); err == nil {
		s.Altitude = alt
	}
	return s, nil
}

func parseCoordinate(field, value string) (float64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("%w: %s", ErrMissingField, field)
	}
	v, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %s %q", ErrMalformed, field, value)
	}
	return v, nil
}
