package clientinfo

import (
	"net"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mileusna/useragent"
)

// infoCtxKey is the Gin context key used to store the caller's Info.
const infoCtxKey = "client_info"

// Info describes the browser that originated a request.
type Info struct {
	IP        string
	UserAgent string
}

// Device summarizes the user agent for log lines.
type Device struct {
	Browser string
	OS      string
	Type    string
	Bot     bool
}

// Middleware resolves the caller's IP and user agent once per request.
// Missing values are left empty; it never aborts.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(infoCtxKey, FromRequest(c.Request))
		c.Next()
	}
}

// Get returns the Info stored by Middleware, or resolves it from the request
// when the middleware did not run.
func Get(c *gin.Context) Info {
	if v, ok := c.Get(infoCtxKey); ok {
		if info, ok := v.(Info); ok {
			return info
		}
	}
	return FromRequest(c.Request)
}

// FromRequest extracts the client IP and user agent.
//
// IP precedence: first X-Forwarded-For entry, X-Real-IP, then the host part of
// RemoteAddr. Proxies in front of the relay put the browser's address first.
func FromRequest(r *http.Request) Info {
	return Info{
		IP:        clientIP(r),
		UserAgent: strings.TrimSpace(r.Header.Get("User-Agent")),
	}
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		for _, part := range strings.Split(xff, ",") {
			if ip := strings.TrimSpace(part); ip != "" {
				return ip
			}
		}
	}

	if xRealIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); xRealIP != "" {
		return xRealIP
	}

	if r.RemoteAddr == "" {
		return ""
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Device parses the user agent. An empty user agent yields a zero Device.
func (i Info) Device() Device {
	if i.UserAgent == "" {
		return Device{}
	}
	ua := useragent.Parse(i.UserAgent)
	return Device{
		Browser: ua.Name,
		OS:      ua.OS,
		Type:    deviceType(&ua),
		Bot:     ua.Bot,
	}
}

func deviceType(ua *useragent.UserAgent) string {
	switch {
	case ua.Mobile:
		return "mobile"
	case ua.Tablet:
		return "tablet"
	case ua.Desktop:
		return "desktop"
	case ua.Bot:
		return "bot"
	default:
		return "unknown"
	}
}
