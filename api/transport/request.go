package transport

import (
	"strings"

	"github.com/valyala/fasthttp"
)

// LoginForm is posted by the sign in form.
type LoginForm struct {
	Email    string
	Password string
}

// SignupForm is posted by the registration form.
type SignupForm struct {
	Email    string
	Password string
	Name     string
}

func ParseLoginForm(ctx *fasthttp.RequestCtx) LoginForm {
	return LoginForm{
		Email:    formValue(ctx, "email"),
		Password: string(ctx.FormValue("password")),
	}
}

func ParseSignupForm(ctx *fasthttp.RequestCtx) SignupForm {
	return SignupForm{
		Email:    formValue(ctx, "email"),
		Password: string(ctx.FormValue("password")),
		Name:     formValue(ctx, "name"),
	}
}

type DisplayNameRequest struct {
	DisplayName string `json:"display_name"`
}

func formValue(ctx *fasthttp.RequestCtx, key string) string {
	return strings.TrimSpace(string(ctx.FormValue(key)))
}
