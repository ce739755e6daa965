package middleware

import (
	"context"
	"net/http"

	"github.com/irsalhamdi/traderfolio/api/web"
	"github.com/irsalhamdi/traderfolio/api/weberr"
	"github.com/sirupsen/logrus"
)

// Errors renders handler errors as JSON. Errors without a response render
// as a generic 500.
func Errors(log logrus.FieldLogger) web.Middleware {
	return func(handler web.Handler) web.Handler {
		return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			err := handler(ctx, w, r)
			if err == nil {
				return nil
			}

			body, status, ok := weberr.Response(err)
			if !ok {
				body = weberr.ErrorResponse{Error: http.StatusText(http.StatusInternalServerError)}
				status = http.StatusInternalServerError
			}

			entry := log.WithFields(logrus.Fields{
				"req_id":     ContextRequestID(ctx),
				"statuscode": status,
				"error":      err.Error(),
			})
			if f, ok := weberr.Fields(err); ok {
				entry = entry.WithFields(logrus.Fields(f))
			}

			if status >= http.StatusInternalServerError {
				entry.Error("request failed")
			} else {
				entry.Warn("request rejected")
			}

			return web.Respond(ctx, w, body, status)
		}
	}
}
