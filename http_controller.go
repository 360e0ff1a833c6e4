package authcore

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// RouteRegistrar captures the router methods used by the controller.
type RouteRegistrar interface {
	Get(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Post(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Patch(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
}

// AuthController exposes the orchestrator as a JSON API.
type AuthController struct {
	Debug        bool
	Logger       Logger
	Auther       *Auther
	ErrorHandler func(router.Context, error) error
}

type AuthControllerOption func(*AuthController) *AuthController

func WithControllerLogger(logger Logger) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

func WithControllerDebug(debug bool) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Debug = debug
		return c
	}
}

func NewAuthController(auther *Auther, opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger: defLogger{},
		Auther: auther,
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Auther == nil {
		panic("Missing Auther in auth controller...")
	}

	if c.ErrorHandler == nil {
		c.ErrorHandler = c.handleError
	}

	return c
}

// RegisterAuthRoutes mounts the auth endpoints on the given router group.
func RegisterAuthRoutes(group RouteRegistrar, controller *AuthController) {
	group.Post("/signup", controller.Signup)
	group.Post("/signin", controller.SignIn)
	group.Post("/signin/google", controller.GoogleSignIn)
	group.Post("/verify-email", controller.VerifyEmail)
	group.Post("/resend-verification", controller.ResendVerification)
	group.Post("/forgot-password", controller.ForgotPassword)
	group.Post("/reset-password", controller.ResetPassword)
	group.Post("/refresh", controller.Refresh)
	group.Post("/logout", controller.Logout)
	group.Get("/me", controller.Me)
	group.Patch("/profile", controller.UpdateProfile)
}

func (a *AuthController) Signup(ctx router.Context) error {
	payload := new(SignupRequest)
	if err := ctx.Bind(payload); err != nil {
		return a.badRequest(ctx, err)
	}

	if a.Debug {
		fmt.Println("======= AUTH SIGNUP =======")
		fmt.Println(print.MaybePrettyJSON(payload))
		fmt.Println("===========================")
	}

	user, err := a.Auther.Signup(ctx.Context(), *payload, a.requestContext(ctx))
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(fiber.StatusCreated, map[string]any{
		"user":    user,
		"message": "Verification code sent. Please check your email.",
	})
}

func (a *AuthController) SignIn(ctx router.Context) error {
	payload := new(SignInRequest)
	if err := ctx.Bind(payload); err != nil {
		return a.badRequest(ctx, err)
	}

	user, pair, err := a.Auther.SignIn(ctx.Context(), *payload, a.requestContext(ctx))
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, map[string]any{
		"user":   user,
		"tokens": pair,
	})
}

type googleSignInPayload struct {
	IDToken string `json:"id_token"`
}

func (a *AuthController) GoogleSignIn(ctx router.Context) error {
	payload := new(googleSignInPayload)
	if err := ctx.Bind(payload); err != nil {
		return a.badRequest(ctx, err)
	}

	user, pair, err := a.Auther.FederatedLogin(ctx.Context(), payload.IDToken, a.requestContext(ctx))
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, map[string]any{
		"user":   user,
		"tokens": pair,
	})
}

type verifyEmailPayload struct {
	Token string `json:"token"`
	Code  string `json:"code"`
}

func (a *AuthController) VerifyEmail(ctx router.Context) error {
	payload := new(verifyEmailPayload)
	if err := ctx.Bind(payload); err != nil {
		return a.badRequest(ctx, err)
	}

	presented := payload.Token
	if presented == "" {
		presented = payload.Code
	}

	user, pair, err := a.Auther.VerifyEmail(ctx.Context(), presented, a.requestContext(ctx))
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, map[string]any{
		"user":   user,
		"tokens": pair,
	})
}

type emailPayload struct {
	Email string `json:"email"`
}

func (a *AuthController) ResendVerification(ctx router.Context) error {
	payload := new(emailPayload)
	if err := ctx.Bind(payload); err != nil {
		return a.badRequest(ctx, err)
	}

	msg, err := a.Auther.ResendVerification(ctx.Context(), payload.Email, a.requestContext(ctx))
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, map[string]string{"message": msg})
}

func (a *AuthController) ForgotPassword(ctx router.Context) error {
	payload := new(emailPayload)
	if err := ctx.Bind(payload); err != nil {
		return a.badRequest(ctx, err)
	}

	msg, err := a.Auther.ForgotPassword(ctx.Context(), payload.Email, a.requestContext(ctx))
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, map[string]string{"message": msg})
}

func (a *AuthController) ResetPassword(ctx router.Context) error {
	payload := new(ResetPasswordRequest)
	if err := ctx.Bind(payload); err != nil {
		return a.badRequest(ctx, err)
	}

	if err := a.Auther.ResetPassword(ctx.Context(), *payload, a.requestContext(ctx)); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, map[string]string{
		"message": "Password has been reset. Please sign in again.",
	})
}

type refreshPayload struct {
	RefreshToken string `json:"refresh_token"`
}

func (a *AuthController) Refresh(ctx router.Context) error {
	payload := new(refreshPayload)
	if err := ctx.Bind(payload); err != nil {
		return a.badRequest(ctx, err)
	}

	pair, err := a.Auther.Refresh(ctx.Context(), payload.RefreshToken)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, map[string]any{"tokens": pair})
}

func (a *AuthController) Logout(ctx router.Context) error {
	payload := new(refreshPayload)
	if err := ctx.Bind(payload); err != nil {
		return a.badRequest(ctx, err)
	}

	if err := a.Auther.Logout(ctx.Context(), payload.RefreshToken, a.requestContext(ctx)); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, map[string]string{"message": "Signed out."})
}

func (a *AuthController) Me(ctx router.Context) error {
	user, err := a.Auther.CurrentUser(ctx.Context(), bearerToken(ctx))
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, map[string]any{"user": user})
}

func (a *AuthController) UpdateProfile(ctx router.Context) error {
	user, err := a.Auther.CurrentUser(ctx.Context(), bearerToken(ctx))
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	payload := new(UpdateProfileRequest)
	if err := ctx.Bind(payload); err != nil {
		return a.badRequest(ctx, err)
	}

	updated, err := a.Auther.UpdateProfile(ctx.Context(), user.ID, *payload, a.requestContext(ctx))
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, map[string]any{"user": updated})
}

func (a *AuthController) requestContext(ctx router.Context) RequestContext {
	return RequestContext{
		IPAddress: ctx.IP(),
		UserAgent: ctx.GetString("User-Agent", ""),
	}
}

func (a *AuthController) badRequest(ctx router.Context, err error) error {
	a.Logger.Error("failed to parse request payload: %v", err)
	return ctx.JSON(fiber.StatusBadRequest, map[string]string{
		"error": "failed to parse request body",
	})
}

func (a *AuthController) handleError(ctx router.Context, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryInternal, "An unexpected server error occurred").
			WithCode(errors.CodeInternal)
	}

	status := statusFromError(richErr)
	if status >= fiber.StatusInternalServerError {
		a.Logger.Error(
			"auth controller error: %s category=%s details=%s",
			richErr.Message, richErr.Category, print.MaybePrettyJSON(richErr.Metadata),
		)
		return ctx.JSON(status, map[string]string{
			"error": "An unexpected server error occurred",
		})
	}

	return ctx.JSON(status, map[string]string{
		"error": richErr.Message,
		"code":  richErr.TextCode,
	})
}

func statusFromError(richErr *errors.Error) int {
	switch richErr.Category {
	case errors.CategoryAuth, errors.CategoryAuthz:
		return fiber.StatusUnauthorized
	case errors.CategoryConflict:
		return fiber.StatusConflict
	case errors.CategoryNotFound:
		return fiber.StatusNotFound
	case errors.CategoryValidation, errors.CategoryBadInput:
		return fiber.StatusBadRequest
	default:
		if richErr.Code > 0 {
			return richErr.Code
		}
		return fiber.StatusInternalServerError
	}
}

func bearerToken(ctx router.Context) string {
	header := ctx.GetString(router.HeaderAuthorization, "")
	const scheme = "Bearer "
	if len(header) > len(scheme) && header[:len(scheme)] == scheme {
		return header[len(scheme):]
	}
	return ""
}
