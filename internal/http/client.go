package http

import (
	"crypto/tls"
	nethttp "net/http"
	"os"

	"golang.org/x/net/http2"

	"github.com/prowessninja/smsctl/internal/config"
)

// configureHTTP2 enables HTTP/2 on the API transport unless a proxy is in
// the path or it has been switched off.
//
// Runtime toggles:
//   - DISABLE_HTTP2=true forces HTTP/1.1
//   - FORCE_HTTP2=true keeps HTTP/2 even through a proxy
func configureHTTP2(tr *nethttp.Transport, cfg *config.Config) {
	tr.ForceAttemptHTTP2 = true
	_ = http2.ConfigureTransport(tr)

	if os.Getenv("DISABLE_HTTP2") == "true" {
		disableHTTP2(tr)
		return
	}

	// Proxies often have issues with HTTP/2 multiplexing
	if proxyActive(cfg) && os.Getenv("FORCE_HTTP2") != "true" {
		disableHTTP2(tr)
	}
}

func disableHTTP2(tr *nethttp.Transport) {
	tr.ForceAttemptHTTP2 = false
	tr.TLSNextProto = make(map[string]func(string, *tls.Conn) nethttp.RoundTripper)
}

// proxyActive trusts the configured proxy mode first and only consults the
// environment in "system" mode.
func proxyActive(cfg *config.Config) bool {
	envProxy := os.Getenv("HTTP_PROXY") != "" || os.Getenv("HTTPS_PROXY") != "" ||
		os.Getenv("http_proxy") != "" || os.Getenv("https_proxy") != ""
	if cfg == nil {
		return envProxy
	}
	switch cfg.ProxyMode {
	case "no-proxy", "":
		return false
	case "system":
		return envProxy
	default:
		return true
	}
}
