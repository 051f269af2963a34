package ocr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// maxImageBytes caps images fetched for inline upload.
const maxImageBytes = 20 << 20

// ErrImageURLBlocked is returned for image URLs the server refuses to fetch.
var ErrImageURLBlocked = errors.New("image url not allowed")

// ImagePolicy controls which document URLs the server downloads itself.
// The zero value allows only https to public addresses.
type ImagePolicy struct {
	AllowHTTP    bool
	AllowPrivate bool
}

// sharedAddressSpace is carrier-grade NAT (RFC 6598).
var sharedAddressSpace = netip.MustParsePrefix("100.64.0.0/10")

func blockedAddr(addr netip.Addr) bool {
	addr = addr.Unmap()
	return addr.IsLoopback() || addr.IsPrivate() || addr.IsUnspecified() ||
		addr.IsLinkLocalUnicast() || addr.IsLinkLocalMulticast() ||
		addr.IsInterfaceLocalMulticast() || addr.IsMulticast() ||
		sharedAddressSpace.Contains(addr)
}

// checkURL rejects URLs by scheme and literal host before any connection.
func (p ImagePolicy) checkURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("%w: malformed", ErrImageURLBlocked)
	}
	switch u.Scheme {
	case "https":
	case "http":
		if !p.AllowHTTP {
			return nil, fmt.Errorf("%w: https required", ErrImageURLBlocked)
		}
	default:
		return nil, fmt.Errorf("%w: scheme %q", ErrImageURLBlocked, u.Scheme)
	}
	if p.AllowPrivate {
		return u, nil
	}
	host := u.Hostname()
	if strings.EqualFold(host, "localhost") || strings.HasSuffix(strings.ToLower(host), ".localhost") {
		return nil, fmt.Errorf("%w: host %s", ErrImageURLBlocked, host)
	}
	if addr, err := netip.ParseAddr(host); err == nil && blockedAddr(addr) {
		return nil, fmt.Errorf("%w: address %s", ErrImageURLBlocked, addr)
	}
	return u, nil
}

// dialControl runs after name resolution, so it also covers hostnames that
// resolve to internal addresses and redirects to them.
func dialControl(_, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrImageURLBlocked, address)
	}
	addr, err := netip.ParseAddr(host)
	if err != nil || blockedAddr(addr) {
		return fmt.Errorf("%w: address %s", ErrImageURLBlocked, host)
	}
	return nil
}

// imageFetcher downloads document images for providers that need the bytes.
type imageFetcher struct {
	policy ImagePolicy
	client *http.Client
}

func newImageFetcher(policy ImagePolicy) *imageFetcher {
	dialer := &net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}
	if !policy.AllowPrivate {
		dialer.Control = dialControl
	}
	base := http.DefaultTransport.(*http.Transport).Clone()
	// A proxy would hide the resolved address from dialControl.
	base.Proxy = nil
	base.DialContext = dialer.DialContext

	return &imageFetcher{
		policy: policy,
		client: &http.Client{
			Timeout:   requestTimeout,
			Transport: otelhttp.NewTransport(base),
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return errors.New("too many redirects")
				}
				_, err := policy.checkURL(req.URL.String())
				return err
			},
		},
	}
}

func (f *imageFetcher) fetch(ctx context.Context, raw string) ([]byte, string, error) {
	u, err := f.policy.checkURL(raw)
	if err != nil {
		return nil, "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, "", fmt.Errorf("build image request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetch image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("fetch image: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("read image: %w", err)
	}
	if len(data) > maxImageBytes {
		return nil, "", fmt.Errorf("image exceeds %d bytes", maxImageBytes)
	}

	mimeType := resp.Header.Get("Content-Type")
	if parsed, _, err := mime.ParseMediaType(mimeType); err == nil {
		mimeType = parsed
	}
	if mimeType == "" || !strings.Contains(mimeType, "/") || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(data)
	}
	if !strings.HasPrefix(mimeType, "image/") && mimeType != "application/pdf" {
		return nil, "", fmt.Errorf("fetch image: unexpected content type %s", mimeType)
	}
	return data, mimeType, nil
}
