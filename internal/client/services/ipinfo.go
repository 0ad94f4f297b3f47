package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/dmitrijs2005/ipdash/internal/client/client"
	"github.com/dmitrijs2005/ipdash/internal/client/models"
	"github.com/dmitrijs2005/ipdash/internal/common"
	"github.com/dmitrijs2005/ipdash/internal/logging"
)

// DefaultIPInfoURL is the public ipinfo.io endpoint.
const DefaultIPInfoURL = "https://ipinfo.io"

// IPInfoClient talks to the ipinfo.io geolocation service. It does not go
// through the backend gateway: no bearer credential is attached.
type IPInfoClient struct {
	baseURL string
	token   string
	http    client.Doer
	log     logging.Logger
}

// NewIPInfoClient creates a client for baseURL (DefaultIPInfoURL when empty).
// token may be empty; ipinfo.io then applies anonymous rate limits.
func NewIPInfoClient(baseURL, token string, httpClient client.Doer, log logging.Logger) *IPInfoClient {
	if baseURL == "" {
		baseURL = DefaultIPInfoURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if log == nil {
		log = logging.Discard()
	}
	return &IPInfoClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    httpClient,
		log:     log,
	}
}

// PublicIP returns the caller's public IPv4 address, or common.UnknownIP when
// it cannot be detected. It never fails.
func (c *IPInfoClient) PublicIP(ctx context.Context) string {
	body, err := c.get(ctx, "/ip", true, "text/plain")
	if err != nil {
		c.log.Warn(ctx, "could not detect public IP", "error", err)
		return common.UnknownIP
	}

	ip := strings.TrimSpace(string(body))
	parsed := net.ParseIP(ip)
	if parsed == nil || parsed.To4() == nil || strings.Contains(ip, ":") {
		c.log.Warn(ctx, "public IP has unexpected format", "ip", ip)
		return common.UnknownIP
	}
	return ip
}

// MyLocation geolocates the caller's own address.
func (c *IPInfoClient) MyLocation(ctx context.Context) (models.GeoLocation, error) {
	info, err := c.fetch(ctx, "/geo", false)
	if err != nil {
		return models.GeoLocation{}, err
	}
	return info.Normalize(), nil
}

// Lookup geolocates ip. The result carries ISP and Query as the history
// record expects.
func (c *IPInfoClient) Lookup(ctx context.Context, ip string) (models.GeoLocation, error) {
	info, err := c.fetch(ctx, "/"+url.PathEscape(ip)+"/json", true)
	if err != nil {
		return models.GeoLocation{}, err
	}
	geo := info.Normalize()
	geo.ISP = geo.Org
	geo.Query = info.IP
	return geo, nil
}

func (c *IPInfoClient) fetch(ctx context.Context, path string, withToken bool) (models.IPInfo, error) {
	body, err := c.get(ctx, path, withToken, "application/json")
	if err != nil {
		return models.IPInfo{}, err
	}

	var info models.IPInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return models.IPInfo{}, fmt.Errorf("decode response: %w", err)
	}
	if info.IP == "" {
		return models.IPInfo{}, errors.New("no IP address in response")
	}
	return info, nil
}

func (c *IPInfoClient) get(ctx context.Context, path string, withToken bool, accept string) ([]byte, error) {
	target := c.baseURL + path
	if withToken && c.token != "" {
		target += "?token=" + url.QueryEscape(c.token)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", accept)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("API error: %s", resp.Status)
	}
	return body, nil
}
