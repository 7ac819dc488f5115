package refdata

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Client is a Directory backed by the companies service over HTTP.
// A 200 means the entity exists, a 404 that it does not; anything else is
// an error the caller surfaces as a server-side failure rather than a
// rejection of the order.
type Client struct {
	base string
	http *http.Client
}

// NewClient creates a Client for the companies service at base.
func NewClient(base string, timeout time.Duration) *Client {
	return &Client{
		base: base,
		http: &http.Client{Timeout: timeout},
	}
}

// CompanyExists checks GET {base}/companies/{id}.
func (c *Client) CompanyExists(ctx context.Context, companyID string) (bool, error) {
	return c.exists(ctx, fmt.Sprintf("%s/companies/%s", c.base, url.PathEscape(companyID)))
}

// SecurityClassExists checks GET {base}/security-classes/{id} and relies
// on the companies service scoping the class to its company.
func (c *Client) SecurityClassExists(ctx context.Context, companyID, securityClassID string) (bool, error) {
	ok, err := c.CompanyExists(ctx, companyID)
	if err != nil || !ok {
		return false, err
	}
	return c.exists(ctx, fmt.Sprintf("%s/security-classes/%s", c.base, url.PathEscape(securityClassID)))
}

func (c *Client) exists(ctx context.Context, u string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return false, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("reference-data service returned %d for %s", resp.StatusCode, u)
	}
}
