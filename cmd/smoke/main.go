package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

type client struct {
	base  string
	http  *http.Client
	token string
}

func (c *client) call(ctx context.Context, method, path string, body, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", "smoke-"+uuid.NewString())
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("%s %s: decode: %w", method, path, err)
	}
	if resp.StatusCode >= 300 || !env.Success {
		return fmt.Errorf("%s %s: %d %s", method, path, resp.StatusCode, env.Error)
	}
	if out != nil {
		return json.Unmarshal(env.Data, out)
	}
	return nil
}

func main() {
	var (
		baseURL  = flag.String("base-url", envOr("SMOKE_BASE_URL", "http://localhost:8000"), "API base URL")
		tenant   = flag.String("tenant", envOr("SMOKE_TENANT", "LogisticsCo"), "Tenant id")
		email    = flag.String("email", os.Getenv("SMOKE_EMAIL"), "Account email")
		password = flag.String("password", os.Getenv("SMOKE_PASSWORD"), "Account password")
		timeout  = flag.Duration("timeout", 15*time.Second, "Overall timeout")
	)
	flag.Parse()
	if *email == "" || *password == "" {
		fail("email and password are required (-email/-password or SMOKE_EMAIL/SMOKE_PASSWORD)")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	c := &client{base: *baseURL, http: &http.Client{Timeout: 10 * time.Second}}

	if err := c.call(ctx, http.MethodGet, "/api/health/ready", nil, nil); err != nil {
		fail("readiness: %v", err)
	}

	var login struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	}
	err := c.call(ctx, http.MethodPost, "/api/auth/login", map[string]string{
		"email": *email, "password": *password, "tenantId": *tenant,
	}, &login)
	if err != nil {
		fail("login: %v", err)
	}

	var refreshed struct {
		AccessToken string `json:"accessToken"`
		ExpiresIn   int64  `json:"expiresIn"`
	}
	if err := c.call(ctx, http.MethodPost, "/api/auth/refresh", map[string]string{"refreshToken": login.RefreshToken}, &refreshed); err != nil {
		fail("refresh: %v", err)
	}
	c.token = refreshed.AccessToken

	var created struct {
		ID       string `json:"id"`
		TenantID string `json:"customerId"`
	}
	err = c.call(ctx, http.MethodPost, "/api/tickets", map[string]string{
		"title":       "Smoke test " + time.Now().UTC().Format(time.RFC3339),
		"description": "Created by the smoke test",
		"category":    "Smoke",
		"priority":    "Low",
	}, &created)
	if err != nil {
		fail("create ticket: %v", err)
	}
	if created.TenantID != *tenant {
		fail("ticket created in %q, want %q", created.TenantID, *tenant)
	}

	var fetched struct {
		ID string `json:"id"`
	}
	if err := c.call(ctx, http.MethodGet, "/api/tickets/"+created.ID, nil, &fetched); err != nil {
		fail("get ticket: %v", err)
	}
	var listed []struct {
		ID string `json:"id"`
	}
	if err := c.call(ctx, http.MethodGet, "/api/tickets?limit=100", nil, &listed); err != nil {
		fail("list tickets: %v", err)
	}
	found := false
	for _, t := range listed {
		found = found || t.ID == created.ID
	}
	if !found {
		fail("created ticket %s missing from listing", created.ID)
	}
	if err := c.call(ctx, http.MethodDelete, "/api/tickets/"+created.ID, nil, nil); err != nil {
		fail("delete ticket: %v", err)
	}
	_ = c.call(ctx, http.MethodPost, "/api/auth/logout", nil, nil)

	fmt.Printf("smoke test passed: ticket=%s tenant=%s expiresIn=%ds\n", created.ID, created.TenantID, refreshed.ExpiresIn)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "smoke: "+format+"\n", args...)
	os.Exit(1)
}
