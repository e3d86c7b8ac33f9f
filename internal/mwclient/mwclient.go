// Package mwclient is a minimal MediaWiki Action API client covering what
// the report upload step needs: bot-password login and page edits.
package mwclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/medwiki-tools/editor-stats/internal/config"
	"github.com/medwiki-tools/editor-stats/internal/logging"
)

// Client talks to one MediaWiki installation. Sessions are cookie-based, so
// a client is not safe for concurrent use.
type Client struct {
	apiURL     string
	username   string
	password   string
	httpClient *http.Client

	csrfToken string
}

// New builds a client from upload settings.
func New(cfg config.UploadConfig) (*Client, error) {
	if cfg.APIURL == "" {
		return nil, fmt.Errorf("upload api_url is required")
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	return &Client{
		apiURL:   cfg.APIURL,
		username: cfg.Username,
		password: cfg.Password,
		httpClient: &http.Client{
			Jar:     jar,
			Timeout: 30 * time.Second,
		},
	}, nil
}

type tokenResponse struct {
	Query struct {
		Tokens map[string]string `json:"tokens"`
	} `json:"query"`
}

type loginResponse struct {
	Login struct {
		Result string `json:"result"`
		Reason string `json:"reason"`
	} `json:"login"`
}

type editResponse struct {
	Edit struct {
		Result string `json:"result"`
	} `json:"edit"`
	Error *apiError `json:"error"`
}

type apiError struct {
	Code string `json:"code"`
	Info string `json:"info"`
}

func (e *apiError) Error() string {
	return fmt.Sprintf("api error %s: %s", e.Code, e.Info)
}

// Login authenticates the session. Must be called before EditPage.
func (c *Client) Login(ctx context.Context) error {
	loginToken, err := c.fetchToken(ctx, "login")
	if err != nil {
		return fmt.Errorf("fetching login token: %w", err)
	}

	var resp loginResponse
	err = c.post(ctx, url.Values{
		"action":     {"login"},
		"lgname":     {c.username},
		"lgpassword": {c.password},
		"lgtoken":    {loginToken},
	}, &resp)
	if err != nil {
		return fmt.Errorf("logging in: %w", err)
	}
	if resp.Login.Result != "Success" {
		return fmt.Errorf("login rejected: %s %s", resp.Login.Result, resp.Login.Reason)
	}

	c.csrfToken, err = c.fetchToken(ctx, "csrf")
	if err != nil {
		return fmt.Errorf("fetching csrf token: %w", err)
	}

	logging.Info("logged in to %s as %s", c.apiURL, c.username)
	return nil
}

// EditPage creates or replaces a page with the given WikiText.
func (c *Client) EditPage(ctx context.Context, title, text, summary string) error {
	if c.csrfToken == "" {
		return fmt.Errorf("not logged in")
	}

	var resp editResponse
	err := c.post(ctx, url.Values{
		"action":  {"edit"},
		"title":   {title},
		"text":    {text},
		"summary": {summary},
		"bot":     {"1"},
		"token":   {c.csrfToken},
	}, &resp)
	if err != nil {
		return fmt.Errorf("editing %s: %w", title, err)
	}
	if resp.Error != nil {
		return fmt.Errorf("editing %s: %w", title, resp.Error)
	}
	if resp.Edit.Result != "Success" {
		return fmt.Errorf("editing %s: result %q", title, resp.Edit.Result)
	}

	logging.Info("saved page: %s", title)
	return nil
}

func (c *Client) fetchToken(ctx context.Context, kind string) (string, error) {
	var resp tokenResponse
	err := c.post(ctx, url.Values{
		"action": {"query"},
		"meta":   {"tokens"},
		"type":   {kind},
	}, &resp)
	if err != nil {
		return "", err
	}
	token := resp.Query.Tokens[kind+"token"]
	if token == "" {
		return "", fmt.Errorf("no %s token in response", kind)
	}
	return token, nil
}

func (c *Client) post(ctx context.Context, form url.Values, out any) error {
	form.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("api returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding api response: %w", err)
	}
	return nil
}

// PageTitle builds the wiki page name for a report. The global report lands
// on an "(all)" page, per-language reports on a subpage.
func PageTitle(prefix, lang, year string, global bool) string {
	if global {
		return fmt.Sprintf("%s_%s_(all)", prefix, year)
	}
	return fmt.Sprintf("%s_%s/%s", prefix, year, lang)
}
