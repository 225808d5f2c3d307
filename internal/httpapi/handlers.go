package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/internal/logging"
	"github.com/MrEthical07/goSession/middleware"
	"github.com/labstack/echo/v4"
)

// ----- DTOs -----

type credentialsReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type registerReq struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type resetRequestReq struct {
	Email string `json:"email"`
}

type resetConfirmReq struct {
	Token    string `json:"token"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResp struct {
	AccessToken  string `json:"AccessToken"`
	RefreshToken string `json:"RefreshToken"`
}

type publicUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type privateUser struct {
	ID        string     `json:"id"`
	Username  string     `json:"username"`
	Email     string     `json:"email"`
	FirstName string     `json:"first_name"`
	LastName  string     `json:"last_name"`
	Phone     string     `json:"phone"`
	Country   string     `json:"country"`
	IsStaff   bool       `json:"is_staff"`
	IsActive  bool       `json:"is_active"`
	LastLogin *time.Time `json:"last_login"`
}

func privateView(user goSession.UserRecord) privateUser {
	out := privateUser{
		ID:        user.UserID,
		Username:  user.Username,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Phone:     user.Phone,
		Country:   user.Country,
		IsStaff:   user.IsStaff,
		IsActive:  user.IsActive,
	}
	if !user.LastLogin.IsZero() {
		t := user.LastLogin.UTC()
		out.LastLogin = &t
	}
	return out
}

// profileFields names the JSON keys a PATCH may carry.
func profileFields(upd *goSession.ProfileUpdate) map[string]**string {
	return map[string]**string{
		"username":   &upd.Username,
		"email":      &upd.Email,
		"first_name": &upd.FirstName,
		"last_name":  &upd.LastName,
		"phone":      &upd.Phone,
		"country":    &upd.Country,
	}
}

func bind(c echo.Context, v any) error {
	if err := c.Bind(v); err != nil {
		return unprocessable("invalid body")
	}
	return nil
}

func userLocation(userID string) string {
	return fmt.Sprintf("/user/%s", userID)
}

// ----- sessions -----

func (h *Handler) Login(c echo.Context) error {
	var req credentialsReq
	if err := bind(c, &req); err != nil {
		return err
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		return unprocessable("username and password are required")
	}

	res, err := h.engine.Login(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		return statusFor(err)
	}

	c.Response().Header().Set("Content-Location", userLocation(res.User.UserID))
	return c.JSON(http.StatusCreated, tokenResp{AccessToken: res.AccessToken, RefreshToken: res.RefreshToken})
}

func (h *Handler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := bind(c, &req); err != nil {
		return err
	}

	pair, err := h.engine.Rotate(c.Request().Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, goSession.ErrMissingToken) {
			return unprocessable("refresh_token is required")
		}
		return statusFor(err)
	}
	return c.JSON(http.StatusCreated, tokenResp{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken})
}

func (h *Handler) Logout(c echo.Context) error {
	var req refreshReq
	if err := bind(c, &req); err != nil {
		return err
	}
	if req.RefreshToken == "" {
		return unprocessable("refresh_token is required")
	}

	if err := h.engine.Logout(c.Request().Context(), req.RefreshToken); err != nil {
		return statusFor(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) LogoutAll(c echo.Context) error {
	ctx := c.Request().Context()
	n, err := h.engine.RevokeAllForUser(ctx, middleware.UserIDFromContext(ctx))
	if err != nil {
		return statusFor(err)
	}
	logging.FromContext(ctx).Info("sessions revoked", "families", n)
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) CheckJWT(c echo.Context) error {
	return c.String(http.StatusOK, middleware.UserIDFromContext(c.Request().Context()))
}

func (h *Handler) PublicKey(c echo.Context) error {
	pem, err := h.engine.PublicKeyPEM()
	if err != nil {
		return statusFor(err)
	}
	return c.Blob(http.StatusOK, echo.MIMETextPlainCharsetUTF8, pem)
}

// ----- users -----

func (h *Handler) Register(c echo.Context) error {
	if h.accounts == nil {
		return echo.NewHTTPError(http.StatusNotImplemented)
	}

	var req registerReq
	if err := bind(c, &req); err != nil {
		return err
	}
	if strings.TrimSpace(req.Username) == "" || strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return unprocessable("username, email and password are required")
	}

	user, err := h.accounts.Register(c.Request().Context(), req.Username, req.Email, req.Password)
	if err != nil {
		return statusFor(err)
	}

	c.Response().Header().Set("Content-Location", userLocation(user.UserID))
	return c.NoContent(http.StatusCreated)
}

// UserInfo shows the private view to the account itself and to staff, and
// the public view to everyone else.
func (h *Handler) UserInfo(c echo.Context) error {
	if h.accounts == nil {
		return echo.NewHTTPError(http.StatusNotImplemented)
	}

	ctx := c.Request().Context()
	caller, _ := middleware.AccessFromContext(ctx)

	user, err := h.accounts.UserByID(ctx, c.Param("id"))
	if err != nil {
		return statusFor(err)
	}

	if caller.UserID != user.UserID && !caller.Staff {
		return c.JSON(http.StatusOK, publicUser{ID: user.UserID, Username: user.Username})
	}
	return c.JSON(http.StatusOK, privateView(user))
}

// UpdateProfile changes profile fields of the caller's own account, or of
// any account when the caller is staff. Unknown keys are a 400.
func (h *Handler) UpdateProfile(c echo.Context) error {
	if h.accounts == nil {
		return echo.NewHTTPError(http.StatusNotImplemented)
	}

	ctx := c.Request().Context()
	caller, _ := middleware.AccessFromContext(ctx)
	target := c.Param("id")
	if caller.UserID != target && !caller.Staff {
		return echo.NewHTTPError(http.StatusForbidden, "cannot change another user's profile")
	}

	var raw map[string]json.RawMessage
	if err := json.NewDecoder(c.Request().Body).Decode(&raw); err != nil {
		return unprocessable("invalid body")
	}

	var upd goSession.ProfileUpdate
	fields := profileFields(&upd)
	for key, value := range raw {
		dst, ok := fields[key]
		if !ok {
			return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("field %q does not exist or cannot be modified", key))
		}
		var v string
		if err := json.Unmarshal(value, &v); err != nil {
			return unprocessable(fmt.Sprintf("%s must be a string", key))
		}
		*dst = &v
	}

	user, err := h.accounts.UpdateProfile(ctx, target, upd)
	if err != nil {
		return statusFor(err)
	}
	return c.JSON(http.StatusOK, privateView(user))
}

// DeleteAccount removes the account named by the path after re-checking its
// credentials, and revokes every session it holds.
func (h *Handler) DeleteAccount(c echo.Context) error {
	if h.accounts == nil {
		return echo.NewHTTPError(http.StatusNotImplemented)
	}

	var req credentialsReq
	if err := bind(c, &req); err != nil {
		return err
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		return unprocessable("username and password are required")
	}

	ctx := c.Request().Context()
	user, err := h.accounts.VerifyCredentials(ctx, req.Username, req.Password)
	if err != nil {
		return statusFor(err)
	}
	if user.UserID != c.Param("id") {
		return echo.NewHTTPError(http.StatusForbidden, "credentials do not match this account")
	}

	n, err := h.engine.RevokeAllForUser(ctx, user.UserID)
	if err != nil {
		return statusFor(err)
	}
	if err := h.accounts.Delete(ctx, user.UserID); err != nil {
		return statusFor(err)
	}

	logging.FromContext(ctx).Info("account deleted", "user_id", user.UserID, "families", n)
	return c.NoContent(http.StatusNoContent)
}

// ----- password reset -----

func (h *Handler) RequestReset(c echo.Context) error {
	var req resetRequestReq
	if err := bind(c, &req); err != nil {
		return err
	}
	if strings.TrimSpace(req.Email) == "" {
		return unprocessable("email is required")
	}

	challenge, err := h.engine.RequestPasswordReset(c.Request().Context(), req.Email)
	if err != nil {
		return statusFor(err)
	}

	if challenge.Token != "" {
		return c.JSON(http.StatusCreated, echo.Map{"reset_token": challenge.Token})
	}
	return c.JSON(http.StatusCreated, echo.Map{})
}

func (h *Handler) ConfirmReset(c echo.Context) error {
	var req resetConfirmReq
	if err := bind(c, &req); err != nil {
		return err
	}
	if req.Token == "" || strings.TrimSpace(req.Username) == "" || req.Password == "" {
		return unprocessable("token, username and password are required")
	}

	if err := h.engine.ConfirmPasswordReset(c.Request().Context(), req.Token, req.Username, req.Password); err != nil {
		return statusFor(err)
	}
	return c.NoContent(http.StatusAccepted)
}

// ----- health -----

func (h *Handler) Live(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func (h *Handler) Ready(c echo.Context) error {
	if err := h.engine.Ping(c.Request().Context()); err != nil {
		logging.FromContext(c.Request().Context()).Error("readiness check failed", "error", err)
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "unavailable"})
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}
