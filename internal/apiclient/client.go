// Package apiclient implements session.Backend over the portal's wire
// contract.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dhia123zeiri/crm-app1-sub001/internal/forms"
	"github.com/dhia123zeiri/crm-app1-sub001/internal/session"
)

// Client talks to the form backend. The zero value is not usable; build
// one with New.
type Client struct {
	baseURL string
	httpc   *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: 30 * time.Second},
	}
}

// WithHTTPClient overrides the underlying HTTP client.
func (c *Client) WithHTTPClient(h *http.Client) *Client {
	c.httpc = h
	return c
}

type tokenEnvelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    struct {
		DynamicForm *forms.FormDefinition `json:"dynamicForm"`
		Client      struct {
			Name string `json:"name"`
		} `json:"client"`
		Comptable struct {
			Name string `json:"name"`
		} `json:"comptable"`
		ExpirationDate   time.Time `json:"expirationDate"`
		IsCompleted      bool      `json:"isCompleted"`
		ExistingResponse *struct {
			Responses      forms.ResponseSet `json:"responses"`
			DateCompletion time.Time         `json:"dateCompletion"`
		} `json:"existingResponse"`
	} `json:"data"`
}

// FetchForm resolves a link token. Unknown tokens and success:false
// responses surface as session.ErrFormNotFound; transport failures pass
// through so the session can show its generic load error. The received
// definition is compiled here, so a misconfigured form fails the load, not
// a keystroke.
func (c *Client) FetchForm(ctx context.Context, token string) (*session.Grant, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/dynamic-forms/token/"+url.PathEscape(token), nil)
	if err != nil {
		return nil, err
	}
	res, err := c.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	var env tokenEnvelope
	if err := json.NewDecoder(res.Body).Decode(&env); err != nil {
		if res.StatusCode != http.StatusOK {
			return nil, session.ErrFormNotFound
		}
		return nil, err
	}
	if res.StatusCode != http.StatusOK || !env.Success {
		return nil, session.ErrFormNotFound
	}
	if env.Data.DynamicForm == nil {
		return nil, session.ErrFormNotFound
	}
	if err := forms.CompileForm(env.Data.DynamicForm); err != nil {
		return nil, fmt.Errorf("form definition rejected: %w", err)
	}
	grant := &session.Grant{
		Form:           env.Data.DynamicForm,
		ClientName:     env.Data.Client.Name,
		ComptableName:  env.Data.Comptable.Name,
		ExpirationDate: env.Data.ExpirationDate,
		IsCompleted:    env.Data.IsCompleted,
	}
	if env.Data.ExistingResponse != nil {
		grant.Existing = &forms.ExistingResponse{
			Responses:      env.Data.ExistingResponse.Responses,
			DateCompletion: env.Data.ExistingResponse.DateCompletion,
		}
	}
	return grant, nil
}

// SubmitForm sends the response set, client metadata and file parts as
// multipart form data. Backend rejections come back as plain errors whose
// message the session surfaces.
func (c *Client) SubmitForm(ctx context.Context, token string, sub session.Submission) error {
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)

	encoded, err := json.Marshal(sub.Responses)
	if err != nil {
		return err
	}
	if err := w.WriteField("responses", string(encoded)); err != nil {
		return err
	}
	if err := w.WriteField("ipAddress", sub.IPAddress); err != nil {
		return err
	}
	if err := w.WriteField("userAgent", sub.UserAgent); err != nil {
		return err
	}
	for label, metas := range sub.Files {
		contents := sub.FileContents[label]
		for i, meta := range metas {
			part, err := w.CreateFormFile(fmt.Sprintf("files_%s_%d", label, i), meta.Name)
			if err != nil {
				return err
			}
			if i < len(contents) {
				if _, err := part.Write(contents[i]); err != nil {
					return err
				}
			}
		}
	}
	if err := w.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/dynamic-forms/submit/"+url.PathEscape(token), body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	res, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	var env struct {
		Success bool   `json:"success"`
		Message string `json:"message,omitempty"`
	}
	if err := json.NewDecoder(res.Body).Decode(&env); err != nil {
		return fmt.Errorf("submit failed with status %d", res.StatusCode)
	}
	if res.StatusCode != http.StatusOK || !env.Success {
		if env.Message != "" {
			return errors.New(env.Message)
		}
		return fmt.Errorf("submit failed with status %d", res.StatusCode)
	}
	return nil
}

var _ session.Backend = (*Client)(nil)
