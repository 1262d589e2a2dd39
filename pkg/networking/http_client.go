// Package networking provides HTTP client construction and port utilities
// shared by the credential providers and the dev proxy.
package networking

import (
	"errors"
	"net"
	"net/http"
	"net/url"
	"syscall"
	"time"

	"github.com/stacklok/dataverse-devauth/pkg/validation"
)

// HttpTimeout is the timeout for outgoing HTTP requests
const HttpTimeout = 30 * time.Second

// ErrPrivateIpAddress is returned when an address references a private IP
const ErrPrivateIpAddress = "private IP addresses are not allowed"

var privateIPBlocks []*net.IPNet

func init() {
	for _, cidr := range []string{
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		"127.0.0.0/8",
		"169.254.0.0/16",
		"::1/128",
		"fc00::/7",
		"fe80::/10",
	} {
		_, block, err := net.ParseCIDR(cidr)
		if err != nil {
			continue
		}
		privateIPBlocks = append(privateIPBlocks, block)
	}
}

func isPrivateIP(ip net.IP) bool {
	if ip == nil {
		return false
	}
	if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
		return true
	}
	for _, block := range privateIPBlocks {
		if block.Contains(ip) {
			return true
		}
	}
	return false
}

// AddressReferencesPrivateIp returns an error if the address references a private IP address
func AddressReferencesPrivateIp(address string) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	ip := net.ParseIP(host)
	if isPrivateIP(ip) {
		return errors.New(ErrPrivateIpAddress)
	}

	return nil
}

// Dialer control function for validating addresses prior to connection
func protectedDialerControl(_, address string, _ syscall.RawConn) error {
	return AddressReferencesPrivateIp(address)
}

// ValidatingTransport validates request URLs prior to forwarding. It rejects
// malformed URLs, non-HTTPS schemes, and injection-risk patterns using the
// same discipline as the request classifier.
type ValidatingTransport struct {
	Transport http.RoundTripper
}

// RoundTrip validates the request URL prior to forwarding
func (t *ValidatingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := validation.ValidateRequestURL(req.URL.String()); err != nil {
		return nil, err
	}

	parsed, err := url.Parse(req.URL.String())
	if err != nil || parsed.Scheme != "https" {
		return nil, errors.New("request URL must be an absolute https URL")
	}

	return t.Transport.RoundTrip(req)
}

// HttpClientBuilder provides a fluent interface for building HTTP clients
type HttpClientBuilder struct {
	clientTimeout         time.Duration
	tlsHandshakeTimeout   time.Duration
	responseHeaderTimeout time.Duration
	allowPrivate          bool
	skipURLValidation     bool
}

// NewHttpClientBuilder returns a new HttpClientBuilder
func NewHttpClientBuilder() *HttpClientBuilder {
	return &HttpClientBuilder{
		clientTimeout:         HttpTimeout,
		tlsHandshakeTimeout:   10 * time.Second,
		responseHeaderTimeout: 10 * time.Second,
	}
}

// WithTimeout overrides the overall client timeout. Credential providers use
// short timeouts so a hung identity endpoint cannot hang the interceptor.
func (b *HttpClientBuilder) WithTimeout(d time.Duration) *HttpClientBuilder {
	b.clientTimeout = d
	return b
}

// WithPrivateIPs allows connections to private and link-local IP addresses.
// The managed-identity provider needs this: IMDS lives on a link-local address.
func (b *HttpClientBuilder) WithPrivateIPs(allow bool) *HttpClientBuilder {
	b.allowPrivate = allow
	return b
}

// WithoutURLValidation skips the HTTPS-only validating transport. Only the
// managed-identity provider uses this, and only for the fixed IMDS endpoint.
func (b *HttpClientBuilder) WithoutURLValidation() *HttpClientBuilder {
	b.skipURLValidation = true
	return b
}

// Build creates the configured HTTP client
func (b *HttpClientBuilder) Build() (*http.Client, error) {
	transport := &http.Transport{
		TLSHandshakeTimeout:   b.tlsHandshakeTimeout,
		ResponseHeaderTimeout: b.responseHeaderTimeout,
	}

	if !b.allowPrivate {
		transport.DialContext = (&net.Dialer{
			Control: protectedDialerControl,
		}).DialContext
	}

	var clientTransport http.RoundTripper = transport
	if !b.skipURLValidation {
		clientTransport = &ValidatingTransport{Transport: transport}
	}

	return &http.Client{
		Transport: clientTransport,
		Timeout:   b.clientTimeout,
	}, nil
}
