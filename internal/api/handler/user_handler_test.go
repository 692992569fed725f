package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/microshop/identity-service/internal/core/domain"
)

type stubUserService struct {
	users   map[string]*domain.User
	updates []string
	deletes []string
	err     error
}

func newStubUserService() *stubUserService {
	return &stubUserService{users: make(map[string]*domain.User)}
}

func (s *stubUserService) List(context.Context) ([]*domain.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([]*domain.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	return out, nil
}

func (s *stubUserService) Get(_ context.Context, id string) (*domain.User, error) {
	if u, ok := s.users[id]; ok {
		return u, nil
	}
	return nil, domain.ErrUserNotFound
}

func (s *stubUserService) Update(_ context.Context, id, email string, balance int64) error {
	if s.err != nil {
		return s.err
	}
	if _, ok := s.users[id]; !ok {
		return domain.ErrUserNotFound
	}
	s.updates = append(s.updates, id)
	return nil
}

func (s *stubUserService) Delete(_ context.Context, id string) error {
	if _, ok := s.users[id]; !ok {
		return domain.ErrUserNotFound
	}
	s.deletes = append(s.deletes, id)
	return nil
}

func newUserContext(method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	e.Validator = NewValidator()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestUserHandler_List(t *testing.T) {
	svc := newStubUserService()
	svc.users["u1"] = &domain.User{ID: "u1", Username: "a@x.com", Email: "a@x.com", Balance: 500, CreatedOn: time.Unix(1700000000, 0)}
	h := NewUserHandler(svc)

	c, rec := newUserContext(http.MethodGet, "/users", "")
	if err := h.List(c); err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var out []userResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(out) != 1 || out[0].ID != "u1" || out[0].Balance != 500 {
		t.Fatalf("unexpected response: %+v", out)
	}
	if out[0].CreatedOn == "" {
		t.Fatalf("createdOn missing")
	}
}

func TestUserHandler_Get_NotFound(t *testing.T) {
	h := NewUserHandler(newStubUserService())
	c, _ := newUserContext(http.MethodGet, "/users/ghost", "")
	c.SetParamNames("id")
	c.SetParamValues("ghost")

	if err := h.Get(c); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestUserHandler_Update_NoContent(t *testing.T) {
	svc := newStubUserService()
	svc.users["u1"] = &domain.User{ID: "u1", Email: "a@x.com"}
	h := NewUserHandler(svc)

	c, rec := newUserContext(http.MethodPut, "/users/u1", `{"email":"a@x.com","balance":750}`)
	c.SetParamNames("id")
	c.SetParamValues("u1")

	if err := h.Update(c); err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if len(svc.updates) != 1 || svc.updates[0] != "u1" {
		t.Fatalf("service not invoked as expected: %+v", svc.updates)
	}
}

func TestUserHandler_Update_InvalidEmail(t *testing.T) {
	h := NewUserHandler(newStubUserService())
	c, _ := newUserContext(http.MethodPut, "/users/u1", `{"email":"not-an-email","balance":1}`)
	c.SetParamNames("id")
	c.SetParamValues("u1")

	err := h.Update(c)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestUserHandler_Update_NotFound(t *testing.T) {
	h := NewUserHandler(newStubUserService())
	c, _ := newUserContext(http.MethodPut, "/users/ghost", `{"email":"a@x.com","balance":1}`)
	c.SetParamNames("id")
	c.SetParamValues("ghost")

	if err := h.Update(c); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestUserHandler_Delete_NoContent(t *testing.T) {
	svc := newStubUserService()
	svc.users["u1"] = &domain.User{ID: "u1"}
	h := NewUserHandler(svc)

	c, rec := newUserContext(http.MethodDelete, "/users/u1", "")
	c.SetParamNames("id")
	c.SetParamValues("u1")

	if err := h.Delete(c); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
}
