package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/microshop/identity-service/internal/api/metrics"
	"github.com/microshop/identity-service/internal/core/domain"
	"github.com/microshop/identity-service/internal/core/ports"
)

// UserHandler serves the administrative user CRUD surface. Every route is
// gated by the Auth and RBAC(Admin) middleware before it reaches here.
type UserHandler struct {
	users ports.UserService
}

func NewUserHandler(users ports.UserService) *UserHandler {
	return &UserHandler{users: users}
}

type userResponse struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	Balance   int64  `json:"balance"`
	CreatedOn string `json:"createdOn"`
}

func toUserResponse(u *domain.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Balance:   u.Balance,
		CreatedOn: u.CreatedOn.UTC().Format(time.RFC3339),
	}
}

type updateUserRequest struct {
	Email   string `json:"email" validate:"required,email"`
	Balance int64  `json:"balance"`
}

// List returns every user.
//
// @Summary      List users
// @Tags         users
// @Produce      json
// @Success      200  {array}   userResponse
// @Failure      403  {object}  map[string]string
// @Router       /users [get]
func (h *UserHandler) List(c echo.Context) error {
	users, err := h.users.List(c.Request().Context())
	if err != nil {
		return err
	}

	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u))
	}
	return c.JSON(http.StatusOK, out)
}

// Get returns a single user by id.
//
// @Summary      Get user
// @Tags         users
// @Produce      json
// @Param        id   path      string  true  "User id"
// @Success      200  {object}  userResponse
// @Failure      404  {object}  map[string]string
// @Router       /users/{id} [get]
func (h *UserHandler) Get(c echo.Context) error {
	user, err := h.users.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toUserResponse(user))
}

// Update applies the new email and balance, then publishes a UserUpdated
// event. Under a transient broker outage this call can block for the full
// retry window before failing.
//
// @Summary      Update user
// @Tags         users
// @Accept       json
// @Param        id    path  string             true  "User id"
// @Param        body  body  updateUserRequest  true  "New email and balance"
// @Success      204
// @Failure      404  {object}  map[string]string
// @Failure      502  {object}  map[string]string
// @Router       /users/{id} [put]
func (h *UserHandler) Update(c echo.Context) error {
	var req updateUserRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := h.users.Update(c.Request().Context(), c.Param("id"), req.Email, req.Balance); err != nil {
		recordPublishOutcome(err)
		return err
	}
	metrics.EventsPublishedTotal.Inc()
	return c.NoContent(http.StatusNoContent)
}

// Delete removes the user and publishes a UserUpdated event with balance 0.
//
// @Summary      Delete user
// @Tags         users
// @Param        id  path  string  true  "User id"
// @Success      204
// @Failure      404  {object}  map[string]string
// @Failure      502  {object}  map[string]string
// @Router       /users/{id} [delete]
func (h *UserHandler) Delete(c echo.Context) error {
	if err := h.users.Delete(c.Request().Context(), c.Param("id")); err != nil {
		recordPublishOutcome(err)
		return err
	}
	metrics.EventsPublishedTotal.Inc()
	return c.NoContent(http.StatusNoContent)
}

func recordPublishOutcome(err error) {
	switch {
	case errors.Is(err, domain.ErrPublishExhausted):
		metrics.EventPublishFailuresTotal.WithLabelValues("exhausted").Inc()
	case errors.Is(err, domain.ErrUnknownUserDownstream), errors.Is(err, domain.ErrInsufficientFunds):
		metrics.EventPublishFailuresTotal.WithLabelValues("permanent").Inc()
	}
}
