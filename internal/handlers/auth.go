package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/v2t/web/internal/auth"
	"github.com/v2t/web/internal/logging"
)

const (
	msgVerified     = "Email verified successfully! Redirecting to login..."
	msgOTPResent    = "OTP has been resent to your email!"
	msgSignupNotice = "Account created. Check your email for the verification code."
)

var roles = []string{"Student", "Teacher", "Others"}

// AuthHandler serves the signup, verification, login and logout pages.
type AuthHandler struct {
	Flow          AuthFlow
	Sessions      SessionManager
	Limiter       RateLimiter
	RedirectDelay time.Duration
}

type signupPage struct {
	page
	Form  auth.SignupForm
	Roles []string
}

type verifyPage struct {
	page
	Email    string
	Verified bool
}

type loginPage struct {
	page
	Identifier string
	Redirect   string
}

// SignupForm handles GET /auth/signup.
func (h AuthHandler) SignupForm(w http.ResponseWriter, r *http.Request) {
	render(w, r, http.StatusOK, "signup", signupPage{
		page:  page{Title: "Sign up"},
		Form:  auth.SignupForm{Role: roles[0]},
		Roles: roles,
	})
}

// Signup handles POST /auth/signup.
func (h AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	form := auth.SignupForm{
		Name:            r.PostFormValue("name"),
		Username:        r.PostFormValue("username"),
		Email:           r.PostFormValue("email"),
		Password:        r.PostFormValue("password"),
		ConfirmPassword: r.PostFormValue("confirm_password"),
		Role:            r.PostFormValue("role"),
	}
	fail := func(status int, message string) {
		form.Password, form.ConfirmPassword = "", ""
		render(w, r, status, "signup", signupPage{
			page:  page{Title: "Sign up", Error: message},
			Form:  form,
			Roles: roles,
		})
	}

	if !allowRequest(h.Limiter, r, "signup") {
		logger.Warn("signup rate limited", "ip", clientIP(r))
		fail(http.StatusTooManyRequests, msgTooManyAttempts)
		return
	}
	if h.Flow == nil {
		logger.Error("auth flow unavailable")
		fail(http.StatusInternalServerError, auth.ActionSignup.Fallback())
		return
	}

	if err := h.Flow.Signup(ctx, form); err != nil {
		logger.Warn("signup failed", "email", form.Email, "error", err)
		fail(formErrorStatus(err), auth.DisplayMessage(auth.ActionSignup, err))
		return
	}

	logger.Info("signup accepted", "email", form.Email)
	target := "/auth/verify-otp?" + url.Values{"email": {strings.TrimSpace(form.Email)}}.Encode()
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// VerifyForm handles GET /auth/verify-otp.
func (h AuthHandler) VerifyForm(w http.ResponseWriter, r *http.Request) {
	data := verifyPage{page: page{Title: "Verify email"}, Email: r.URL.Query().Get("email")}
	if data.Email != "" {
		data.Notice = msgSignupNotice
	}
	render(w, r, http.StatusOK, "verify_otp", data)
}

// Verify handles POST /auth/verify-otp.
func (h AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)
	email := strings.TrimSpace(r.PostFormValue("email"))
	data := verifyPage{page: page{Title: "Verify email"}, Email: email}

	if !allowRequest(h.Limiter, r, "verify") {
		logger.Warn("otp verification rate limited", "ip", clientIP(r))
		data.Error = msgTooManyAttempts
		render(w, r, http.StatusTooManyRequests, "verify_otp", data)
		return
	}
	if h.Flow == nil {
		logger.Error("auth flow unavailable")
		data.Error = auth.ActionVerify.Fallback()
		render(w, r, http.StatusInternalServerError, "verify_otp", data)
		return
	}

	if err := h.Flow.VerifyOTP(ctx, email, r.PostFormValue("otp")); err != nil {
		logger.Warn("otp verification failed", "email", email, "error", err)
		data.Error = auth.DisplayMessage(auth.ActionVerify, err)
		render(w, r, formErrorStatus(err), "verify_otp", data)
		return
	}

	logger.Info("email verified", "email", email)
	data.Verified = true
	data.Notice = msgVerified
	data.Refresh = refreshAfter(h.RedirectDelay, loginPath)
	render(w, r, http.StatusOK, "verify_otp", data)
}

// ResendOTP handles POST /auth/resend-otp.
func (h AuthHandler) ResendOTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)
	email := strings.TrimSpace(r.PostFormValue("email"))
	data := verifyPage{page: page{Title: "Verify email"}, Email: email}

	if !allowRequest(h.Limiter, r, "resend") {
		logger.Warn("otp resend rate limited", "ip", clientIP(r))
		data.Error = msgTooManyAttempts
		render(w, r, http.StatusTooManyRequests, "verify_otp", data)
		return
	}
	if h.Flow == nil {
		logger.Error("auth flow unavailable")
		data.Error = auth.ActionResend.Fallback()
		render(w, r, http.StatusInternalServerError, "verify_otp", data)
		return
	}

	if err := h.Flow.ResendOTP(ctx, email); err != nil {
		logger.Warn("otp resend failed", "email", email, "error", err)
		data.Error = auth.DisplayMessage(auth.ActionResend, err)
		render(w, r, formErrorStatus(err), "verify_otp", data)
		return
	}

	data.Notice = msgOTPResent
	render(w, r, http.StatusOK, "verify_otp", data)
}

// LoginForm handles GET /auth/login.
func (h AuthHandler) LoginForm(w http.ResponseWriter, r *http.Request) {
	render(w, r, http.StatusOK, "login", loginPage{
		page:     page{Title: "Log in"},
		Redirect: r.URL.Query().Get("redirect"),
	})
}

// Login handles POST /auth/login.
func (h AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	form := auth.LoginForm{
		UsernameOrEmail: r.PostFormValue("username_or_email"),
		Password:        r.PostFormValue("password"),
	}
	redirect := r.PostFormValue("redirect")
	fail := func(status int, message string) {
		render(w, r, status, "login", loginPage{
			page:       page{Title: "Log in", Error: message},
			Identifier: form.UsernameOrEmail,
			Redirect:   redirect,
		})
	}

	if !allowRequest(h.Limiter, r, "login") {
		logger.Warn("login rate limited", "ip", clientIP(r))
		fail(http.StatusTooManyRequests, msgTooManyAttempts)
		return
	}
	if h.Flow == nil || h.Sessions == nil {
		logger.Error("authentication dependencies unavailable", "hasFlow", h.Flow != nil, "hasSessions", h.Sessions != nil)
		fail(http.StatusInternalServerError, auth.ActionLogin.Fallback())
		return
	}

	resp, err := h.Flow.Login(ctx, form)
	if err != nil {
		logger.Warn("login failed", "identifier", form.UsernameOrEmail, "error", err)
		fail(formErrorStatus(err), auth.DisplayMessage(auth.ActionLogin, err))
		return
	}

	if _, err := h.Sessions.Establish(ctx, w, resp.AccessToken, resp.User); err != nil {
		logger.Error("failed to establish session", "userId", resp.User.ID, "error", err)
		fail(http.StatusInternalServerError, auth.ActionLogin.Fallback())
		return
	}

	logger.Info("user logged in", "userId", resp.User.ID)
	http.Redirect(w, r, safeRedirect(redirect), http.StatusSeeOther)
}

// Logout handles POST /auth/logout.
func (h AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if h.Sessions != nil {
		h.Sessions.Clear(r.Context(), w, r)
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func formErrorStatus(err error) int {
	var verr *auth.ValidationError
	if errors.As(err, &verr) {
		return http.StatusBadRequest
	}
	return backendStatus(err)
}
