package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// GoTrue инкапсулирует HTTP-взаимодействие с внешним провайдером идентификации,
// совместимым с административным API GoTrue.
type GoTrue struct {
	baseURL    string
	serviceKey string
	httpClient *http.Client
}

type gotrueUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type gotrueError struct {
	Code      int    `json:"code"`
	ErrorCode string `json:"error_code"`
	Msg       string `json:"msg"`
}

// NewGoTrue создаёт клиента провайдера по адресу baseURL с сервисным ключом serviceKey.
func NewGoTrue(baseURL, serviceKey string) *GoTrue {
	base := strings.TrimRight(baseURL, "/")
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	return &GoTrue{
		baseURL:    base,
		serviceKey: serviceKey,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

func (g *GoTrue) do(ctx context.Context, method, path string, body any, out any) (int, *gotrueError, error) {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("apikey", g.serviceKey)
	req.Header.Set("Authorization", "Bearer "+g.serviceKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr gotrueError
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return resp.StatusCode, &apiErr, nil
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, nil, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp.StatusCode, nil, nil
}

// CreateAccount создаёт подтверждённого пользователя через административный API.
func (g *GoTrue) CreateAccount(ctx context.Context, acc NewAccount) (uuid.UUID, error) {
	body := map[string]any{
		"email":         acc.Email,
		"password_hash": string(acc.PasswordHash),
		"email_confirm": acc.Verified,
		"user_metadata": acc.Metadata,
	}

	var user gotrueUser
	status, apiErr, err := g.do(ctx, http.MethodPost, "/admin/users", body, &user)
	if err != nil {
		return uuid.Nil, fmt.Errorf("create account: %w", err)
	}
	if apiErr != nil {
		if apiErr.ErrorCode == "email_exists" || strings.Contains(strings.ToLower(apiErr.Msg), "already") {
			return uuid.Nil, ErrEmailTaken
		}
		return uuid.Nil, fmt.Errorf("create account: unexpected status %d: %s", status, apiErr.Msg)
	}

	id, err := uuid.Parse(user.ID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("create account: parse user id: %w", err)
	}
	return id, nil
}

// Authenticate выполняет вход по паролю и возвращает идентификатор пользователя.
func (g *GoTrue) Authenticate(ctx context.Context, email, password string) (uuid.UUID, error) {
	body := map[string]string{
		"email":    email,
		"password": password,
	}

	var session struct {
		User gotrueUser `json:"user"`
	}
	status, apiErr, err := g.do(ctx, http.MethodPost, "/token?grant_type=password", body, &session)
	if err != nil {
		return uuid.Nil, fmt.Errorf("authenticate: %w", err)
	}
	if apiErr != nil {
		if status == http.StatusBadRequest || status == http.StatusUnauthorized {
			return uuid.Nil, ErrInvalidCredentials
		}
		return uuid.Nil, fmt.Errorf("authenticate: unexpected status %d: %s", status, apiErr.Msg)
	}

	id, err := uuid.Parse(session.User.ID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("authenticate: parse user id: %w", err)
	}
	return id, nil
}

// Lookup ищет пользователя по точному совпадению адреса.
func (g *GoTrue) Lookup(ctx context.Context, email string) (uuid.UUID, error) {
	q := url.Values{}
	q.Set("filter", email)
	q.Set("per_page", "50")

	var list struct {
		Users []gotrueUser `json:"users"`
	}
	status, apiErr, err := g.do(ctx, http.MethodGet, "/admin/users?"+q.Encode(), nil, &list)
	if err != nil {
		return uuid.Nil, fmt.Errorf("lookup: %w", err)
	}
	if apiErr != nil {
		return uuid.Nil, fmt.Errorf("lookup: unexpected status %d: %s", status, apiErr.Msg)
	}

	for _, u := range list.Users {
		if strings.EqualFold(u.Email, email) {
			id, err := uuid.Parse(u.ID)
			if err != nil {
				return uuid.Nil, fmt.Errorf("lookup: parse user id: %w", err)
			}
			return id, nil
		}
	}
	return uuid.Nil, ErrNotFound
}
