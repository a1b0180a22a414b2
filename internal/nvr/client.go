package nvr

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/icholy/digest"

	monitoring "camwatch/internal/monitoring/domain"
)

const channelStatusPath = "/ISAPI/ContentMgmt/InputProxy/channels/status"

// Client queries Hikvision-compatible NVRs for camera channel status and
// returns normalized readings. One client serves all devices; credentials are
// per request.
type Client struct {
	scheme  string
	timeout time.Duration
	names   map[string]string
	client  *http.Client
}

// Option configures the client.
type Option func(*Client)

// WithTimeout overrides the per-query timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithHTTPClient overrides the HTTP client. The digest transport is not
// applied in that case; tests use this with httptest servers.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.client = client
		}
	}
}

// WithScheme overrides the URL scheme (default http).
func WithScheme(scheme string) Option {
	return func(c *Client) {
		if scheme != "" {
			c.scheme = scheme
		}
	}
}

// NewClient constructs a client. names maps camera IPs to friendly names and
// is read-only to the engine.
func NewClient(username, password string, names map[string]string, opts ...Option) (*Client, error) {
	if username == "" {
		return nil, errors.New("nvr client: empty username")
	}
	c := &Client{
		scheme:  "http",
		timeout: 10 * time.Second,
		names:   names,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.client == nil {
		c.client = &http.Client{
			Timeout: c.timeout,
			Transport: &digest.Transport{
				Username: username,
				Password: password,
			},
		}
	}
	return c, nil
}

type channelStatusList struct {
	XMLName  xml.Name        `xml:"InputProxyChannelStatusList"`
	Channels []channelStatus `xml:"InputProxyChannelStatus"`
}

type channelStatus struct {
	ID     string `xml:"id"`
	Online string `xml:"online"`
	Source struct {
		IPAddress string `xml:"ipAddress"`
	} `xml:"sourceInputPortDescriptor"`
}

// Query polls one device and returns a normalized snapshot. Errors are
// classified into the monitoring taxonomy: connection and timeout failures
// are ErrDeviceUnreachable, HTTP 401 is ErrDeviceAuth, and undecodable or
// empty channel lists are ErrMalformedResponse.
func (c *Client) Query(ctx context.Context, device monitoring.Device) (monitoring.Snapshot, error) {
	snapshot := monitoring.Snapshot{NVRIP: device.IP, TakenAt: time.Now().UTC()}
	if err := device.Validate(); err != nil {
		return snapshot, err
	}

	endpoint := url.URL{Scheme: c.scheme, Host: device.IP, Path: channelStatusPath}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return snapshot, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return snapshot, classifyTransportError(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return snapshot, fmt.Errorf("%w: http %d", monitoring.ErrDeviceAuth, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return snapshot, fmt.Errorf("%w: http %d", monitoring.ErrMalformedResponse, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return snapshot, classifyTransportError(err)
	}

	var list channelStatusList
	if err := xml.Unmarshal(body, &list); err != nil {
		return snapshot, fmt.Errorf("%w: %v", monitoring.ErrMalformedResponse, err)
	}
	if len(list.Channels) == 0 {
		return snapshot, fmt.Errorf("%w: device reported zero channels", monitoring.ErrMalformedResponse)
	}

	snapshot.Readings = make([]monitoring.Reading, 0, len(list.Channels))
	for _, channel := range list.Channels {
		ip := channel.Source.IPAddress
		if ip == "" {
			// Analog or misconfigured channels report no source address;
			// the channel id keeps the identity stable.
			ip = "channel-" + channel.ID
		}
		snapshot.Readings = append(snapshot.Readings, monitoring.Reading{
			ChannelID: channel.ID,
			CameraIP:  ip,
			Name:      c.nameFor(ip, channel.ID),
			Online:    channel.Online == "true",
		})
	}
	return snapshot, nil
}

func (c *Client) nameFor(cameraIP, channelID string) string {
	if name, ok := c.names[cameraIP]; ok {
		return name
	}
	return "Channel " + channelID
}

func classifyTransportError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: timeout: %v", monitoring.ErrDeviceUnreachable, err)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", monitoring.ErrDeviceUnreachable, err)
	}
	if strings.Contains(err.Error(), "connection refused") || strings.Contains(err.Error(), "no route to host") {
		return fmt.Errorf("%w: %v", monitoring.ErrDeviceUnreachable, err)
	}
	return fmt.Errorf("%w: %v", monitoring.ErrDeviceUnreachable, err)
}
