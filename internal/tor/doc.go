// Package tor provides SOCKS5 proxy connectivity for imgcrawl.
//
// A Client wraps an x/net/proxy SOCKS5 dialer and hands out HTTP clients
// that route page fetches and image downloads through the proxy. The proxy
// may be any SOCKS5 server (--proxy) or an embedded Tor daemon started with
// tornago (--tor), which makes .onion sites crawlable.
//
// Create a Client once and inject it where connectivity is needed rather
// than keeping it in global state.
package tor
