package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/irsalhamdi/traderfolio/api/web"
	"github.com/irsalhamdi/traderfolio/api/weberr"
	"github.com/irsalhamdi/traderfolio/rate"
)

// RateLimit rejects clients, keyed by remote IP, that exceed the limiter.
func RateLimit(lim *rate.Limiter) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			ip, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				ip = r.RemoteAddr
			}

			if !lim.Check(ip) {
				return weberr.TooManyRequests(fmt.Errorf("client %s exceeded the rate limit", ip))
			}

			return handler(ctx, w, r)
		}
		return h
	}
	return m
}
