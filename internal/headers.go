package internal

import (
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"strings"

	"github.com/sebest/xff"
)

// RemoteXRealIP sets the X-Real-Ip header to the request's real IP if
// the setting is enabled by the user.
func RemoteXRealIP(useRemoteAddress bool, bindNetwork string, next http.Handler) http.Handler {
	if !useRemoteAddress {
		slog.Debug("skipping middleware, useRemoteAddress is empty")
		return next
	}

	if bindNetwork == "unix" {
		// For local sockets there is no real remote address but the localhost
		// address should be sensible.
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Header.Set("X-Real-Ip", "127.0.0.1")
			next.ServeHTTP(w, r)
		})
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		r.Header.Set("X-Real-Ip", host)
		next.ServeHTTP(w, r)
	})
}

// XForwardedForToXRealIP sets the X-Real-Ip header based on the contents
// of the X-Forwarded-For header.
func XForwardedForToXRealIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if xffHeader := r.Header.Get("X-Forwarded-For"); r.Header.Get("X-Real-Ip") == "" && xffHeader != "" {
			ip := xff.Parse(xffHeader)
			slog.Debug("setting x-real-ip", "val", ip)
			r.Header.Set("X-Real-Ip", ip)
		}
		next.ServeHTTP(w, r)
	})
}

// XForwardedForUpdate appends the connecting peer to X-Forwarded-For. When
// stripPrivate is set, private and loopback hops are removed from the list.
func XForwardedForUpdate(stripPrivate bool, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer next.ServeHTTP(w, r)

		remoteAddr := r.RemoteAddr
		if remoteAddr == "@" || remoteAddr == "" {
			// unix socket peers have no address
			remoteAddr = "127.0.0.1:0"
		}

		host, _, err := net.SplitHostPort(remoteAddr)
		if err != nil {
			slog.Debug("can't split remote address", "remote_addr", r.RemoteAddr, "err", err)
			return
		}

		r.Header.Set("X-Forwarded-For", computeXFFHeader(host, r.Header.Get("X-Forwarded-For"), stripPrivate))
	})
}

func computeXFFHeader(remoteAddr, origXFFHeader string, stripPrivate bool) string {
	var hops []string
	for _, hop := range strings.Split(origXFFHeader, ",") {
		hop = strings.TrimSpace(hop)
		if hop == "" {
			continue
		}
		hops = append(hops, hop)
	}
	hops = append(hops, remoteAddr)

	if !stripPrivate {
		return strings.Join(hops, ",")
	}

	result := hops[:0]
	for _, hop := range hops {
		addr, err := netip.ParseAddr(hop)
		if err != nil {
			continue
		}

		if addr.IsPrivate() || addr.IsLoopback() || addr.IsLinkLocalUnicast() || addr.IsUnspecified() {
			continue
		}

		result = append(result, hop)
	}

	return strings.Join(result, ",")
}

// NoStoreCache sets the Cache-Control header to no-store for the response.
func NoStoreCache(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}
