package http

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	nethttp "net/http"
	"net/url"
	"strconv"
	"strings"

	ntlmssp "github.com/Azure/go-ntlmssp"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http/httpproxy"

	"github.com/prowessninja/smsctl/internal/config"
	"github.com/prowessninja/smsctl/internal/constants"
)

// Proxy modes accepted in config.csv.
const (
	ProxyNone   = "no-proxy"
	ProxySystem = "system"
	ProxyBasic  = "basic"
	ProxyNTLM   = "ntlm"
)

// defaultProxyPort is used when a proxy host is configured without a port.
const defaultProxyPort = 8080

// warmupPath is fetched once after an authenticating proxy is configured so
// the handshake is paid before the first directory page.
const warmupPath = "/api/"

// ConfigureHTTPClient builds the client every school API and export call goes
// through. The proxy follows cfg.ProxyMode and the overall timeout comes
// from cfg.RequestTimeout.
func ConfigureHTTPClient(cfg *config.Config) (*nethttp.Client, error) {
	transport := &nethttp.Transport{
		DialContext: (&net.Dialer{
			Timeout:   constants.HTTPDialTimeout,
			KeepAlive: constants.HTTPDialKeepAlive,
		}).DialContext,
		TLSClientConfig:       &tls.Config{MinVersion: tls.VersionTLS12},
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       constants.HTTPIdleConnTimeout,
		TLSHandshakeTimeout:   constants.HTTPTLSHandshakeTimeout,
		ExpectContinueTimeout: constants.HTTPExpectContinueTimeout,
	}
	configureHTTP2(transport, cfg)

	client := &nethttp.Client{Transport: transport, Timeout: cfg.RequestTimeout()}

	mode := strings.ToLower(cfg.ProxyMode)
	switch mode {
	case ProxyNone, "":
		transport.Proxy = nil
		return client, nil
	case ProxySystem:
		transport.Proxy = nethttp.ProxyFromEnvironment
	case ProxyBasic, ProxyNTLM:
		// A saved config can lack the host; keep working so 'config init'
		// can repair it.
		if cfg.ProxyHost == "" {
			log.Warn().Str("mode", mode).Msg("Proxy host missing, connecting directly")
			transport.Proxy = nil
			return client, nil
		}
		transport.Proxy = proxyFuncWithBypass(buildProxyURL(cfg), cfg.NoProxy)
		if mode == ProxyNTLM {
			client.Transport = ntlmssp.Negotiator{RoundTripper: transport}
		}
		if NeedsProxyPassword(cfg) {
			log.Warn().Str("mode", mode).Str("user", cfg.ProxyUser).
				Msg("Proxy password not set, proxy authentication disabled")
			return client, nil
		}
	default:
		return nil, fmt.Errorf("unsupported proxy mode: %s", cfg.ProxyMode)
	}

	if cfg.ProxyWarmup {
		if err := warmupProxy(client, cfg.APIBaseURL); err != nil {
			return nil, fmt.Errorf("proxy warmup failed: %w", err)
		}
	}
	return client, nil
}

// buildProxyURL returns the proxy address with credentials embedded only
// when both user and password are known.
func buildProxyURL(cfg *config.Config) *url.URL {
	port := cfg.ProxyPort
	if port == 0 {
		port = defaultProxyPort
	}
	u := &url.URL{Scheme: "http", Host: net.JoinHostPort(cfg.ProxyHost, strconv.Itoa(port))}
	if cfg.ProxyUser != "" && cfg.ProxyPassword != "" {
		u.User = url.UserPassword(cfg.ProxyUser, cfg.ProxyPassword)
	}
	return u
}

func warmupProxy(client *nethttp.Client, baseURL string) error {
	if baseURL == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), constants.ProxyWarmupTimeout)
	defer cancel()

	req, err := nethttp.NewRequestWithContext(ctx, nethttp.MethodGet, strings.TrimSuffix(baseURL, "/")+warmupPath, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("server returned %d", resp.StatusCode)
	}
	return nil
}

// proxyFuncWithBypass routes requests through proxyURL except for hosts
// matched by the comma-separated noProxy list (domains, wildcards, CIDRs).
func proxyFuncWithBypass(proxyURL *url.URL, noProxy string) func(*nethttp.Request) (*url.URL, error) {
	if noProxy == "" {
		return nethttp.ProxyURL(proxyURL)
	}
	resolve := (&httpproxy.Config{
		HTTPProxy:  proxyURL.String(),
		HTTPSProxy: proxyURL.String(),
		NoProxy:    noProxy,
	}).ProxyFunc()
	return func(req *nethttp.Request) (*url.URL, error) {
		target, err := resolve(req.URL)
		if target == nil {
			log.Debug().Str("host", req.URL.Host).Msg("Proxy bypass")
		}
		return target, err
	}
}

// NeedsProxyPassword reports whether an authenticating proxy has a user but
// no password. The CLI prompts when this is true, since passwords are never
// written to config.csv.
func NeedsProxyPassword(cfg *config.Config) bool {
	switch strings.ToLower(cfg.ProxyMode) {
	case ProxyBasic, ProxyNTLM:
		return cfg.ProxyUser != "" && cfg.ProxyPassword == ""
	}
	return false
}
