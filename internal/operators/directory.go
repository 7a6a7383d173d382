package operators

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/yegors/birdnest/pkg/logger"
)

const maxBodyBytes = 1 << 20

// Resolver looks up the operator of a drone
type Resolver interface {
	Resolve(ctx context.Context, serial string) (*Details, error)
}

// ResolverFunc adapts a function to the Resolver interface
type ResolverFunc func(ctx context.Context, serial string) (*Details, error)

// Resolve calls f(ctx, serial)
func (f ResolverFunc) Resolve(ctx context.Context, serial string) (*Details, error) {
	return f(ctx, serial)
}

// Directory is an HTTP client for the operator directory
type Directory struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	timeout    time.Duration
	logger     *logger.Logger
}

// NewDirectory creates a new directory client. Operators are fetched from baseURL/<serial>.
func NewDirectory(baseURL, userAgent string, timeout time.Duration, logger *logger.Logger) *Directory {
	return &Directory{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		userAgent:  userAgent,
		timeout:    timeout,
		logger:     logger.Named("directory"),
	}
}

// Resolve fetches the operator of the given drone. All failures are *LookupError;
// an unknown drone additionally matches ErrNotFound.
func (d *Directory) Resolve(ctx context.Context, serial string) (*Details, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	endpoint := d.baseURL + "/" + url.PathEscape(serial)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &LookupError{Serial: serial, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if d.userAgent != "" {
		req.Header.Set("User-Agent", d.userAgent)
	}

	d.logger.Debug("Resolving operator", logger.String("url", endpoint))

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, &LookupError{Serial: serial, Err: err}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, &LookupError{Serial: serial, Err: ErrNotFound}
	default:
		return nil, &LookupError{Serial: serial, Err: fmt.Errorf("unexpected status code: %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &LookupError{Serial: serial, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	details, err := ParseDetails(body)
	if err != nil {
		return nil, &LookupError{Serial: serial, Err: err}
	}
	return details, nil
}

// ParseDetails extracts operator fields from a directory response. Fields that
// are missing or not strings are left nil.
func ParseDetails(body []byte) (*Details, error) {
	if !gjson.ValidBytes(body) {
		return nil, errors.New("malformed operator JSON")
	}
	doc := gjson.ParseBytes(body)
	if !doc.IsObject() {
		return nil, errors.New("operator JSON is not an object")
	}

	details := &Details{
		PilotID:   stringField(doc, "pilotId"),
		FirstName: stringField(doc, "firstName"),
		LastName:  stringField(doc, "lastName"),
		Phone:     stringField(doc, "phoneNumber"),
		Email:     stringField(doc, "email"),
	}
	if created := stringField(doc, "createdDt"); created != nil {
		if t, err := time.Parse(time.RFC3339Nano, *created); err == nil {
			details.CreatedAt = &t
		}
	}
	return details, nil
}

func stringField(doc gjson.Result, path string) *string {
	r := doc.Get(path)
	if r.Type != gjson.String {
		return nil
	}
	s := r.Str
	return &s
}
