package middleware

import (
	"time"

	"github.com/valyala/fasthttp"
)

// SessionCookie reads and writes the browser's session id cookie.
type SessionCookie struct {
	Name   string
	Secure bool
}

func (c SessionCookie) Read(ctx *fasthttp.RequestCtx) string {
	return string(ctx.Request.Header.Cookie(c.Name))
}

// Write stores id in an HttpOnly cookie that expires with the session.
func (c SessionCookie) Write(ctx *fasthttp.RequestCtx, id string, expires time.Time) {
	c.set(ctx, id, expires)
}

// Clear tells the browser to drop the cookie.
func (c SessionCookie) Clear(ctx *fasthttp.RequestCtx) {
	c.set(ctx, "", fasthttp.CookieExpireDelete)
}

func (c SessionCookie) set(ctx *fasthttp.RequestCtx, value string, expires time.Time) {
	cookie := fasthttp.AcquireCookie()
	defer fasthttp.ReleaseCookie(cookie)

	cookie.SetKey(c.Name)
	cookie.SetValue(value)
	cookie.SetPath("/")
	cookie.SetHTTPOnly(true)
	cookie.SetSecure(c.Secure)
	cookie.SetSameSite(fasthttp.CookieSameSiteLaxMode)
	cookie.SetExpire(expires)
	ctx.Response.Header.SetCookie(cookie)
}
