package testutil

import "net/http"

// WithSessionCookie attaches a session token the way a browser presents it.
func WithSessionCookie(req *http.Request, cookieName, token string) *http.Request {
	req.AddCookie(&http.Cookie{Name: cookieName, Value: token})
	return req
}

// WithBearerToken attaches a session token the way an API client presents it.
func WithBearerToken(req *http.Request, token string) *http.Request {
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

// WithJSONAccept marks the request as an API client, so gated routes answer
// with coded JSON errors instead of 302 redirects.
func WithJSONAccept(req *http.Request) *http.Request {
	req.Header.Set("Accept", "application/json")
	return req
}

// WithUserAgent sets the client user-agent, feeding the device label on the
// session endpoint and in audit events.
func WithUserAgent(req *http.Request, ua string) *http.Request {
	req.Header.Set("User-Agent", ua)
	return req
}
