package server

import (
	"net/http"
	"strings"

	"github.com/muurk/photorelay/internal/logging"
	"go.uber.org/zap"
)

// LogHTTPRequestDetails logs the upgrade request at debug level
func LogHTTPRequestDetails(req *http.Request) {
	headers := make(map[string]string, len(req.Header))
	for key, values := range req.Header {
		headers[key] = strings.Join(values, ", ")
	}

	logging.Debug("WebSocket upgrade request details",
		zap.String("remote_addr", req.RemoteAddr),
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.String("host", req.Host),
		zap.String("origin", req.Header.Get("Origin")),
		zap.String("sec_websocket_version", req.Header.Get("Sec-WebSocket-Version")),
		zap.String("user_agent", req.Header.Get("User-Agent")),
		zap.Any("headers", headers),
	)
}

// IsWebSocketUpgrade reports whether req asks for a WebSocket upgrade
func IsWebSocketUpgrade(req *http.Request) bool {
	if req.Method != http.MethodGet {
		return false
	}
	if !strings.EqualFold(req.Header.Get("Upgrade"), "websocket") {
		return false
	}
	return strings.Contains(strings.ToLower(req.Header.Get("Connection")), "upgrade")
}
