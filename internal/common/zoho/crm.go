package zoho

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
)

const DefaultBaseURL = "https://www.zohoapis.com/crm/v3"

type CRMClient struct {
	apiKey     string
	oauthToken string
	baseURL    string
	httpClient *http.Client
}

// Contact is a travel lead as stored in the Contacts module.
type Contact struct {
	ID          string `json:"id,omitempty"`
	Email       string `json:"Email"`
	FirstName   string `json:"First_Name,omitempty"`
	LastName    string `json:"Last_Name"`
	Phone       string `json:"Phone,omitempty"`
	Source      string `json:"Lead_Source,omitempty"`
	Country     string `json:"Mailing_Country,omitempty"`
	Description string `json:"Description,omitempty"`
}

type writeResponse struct {
	Data []struct {
		Code    string `json:"code"`
		Details struct {
			ID string `json:"id"`
		} `json:"details"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"data"`
}

// NewCRMClient builds a client; an empty baseURL selects the public Zoho endpoint.
func NewCRMClient(baseURL, apiKey, oauthToken string) *CRMClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &CRMClient{
		apiKey:     apiKey,
		oauthToken: oauthToken,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *CRMClient) CreateContact(ctx context.Context, contact *Contact) (string, error) {
	var resp writeResponse
	if err := c.call(ctx, http.MethodPost, "/Contacts", map[string]interface{}{"data": []Contact{*contact}}, &resp); err != nil {
		return "", fmt.Errorf("failed to create contact: %w", err)
	}
	return firstID(resp)
}

func (c *CRMClient) UpdateContact(ctx context.Context, contactID string, contact *Contact) error {
	var resp writeResponse
	path := "/Contacts/" + url.PathEscape(contactID)
	if err := c.call(ctx, http.MethodPut, path, map[string]interface{}{"data": []Contact{*contact}}, &resp); err != nil {
		return fmt.Errorf("failed to update contact: %w", err)
	}
	_, err := firstID(resp)
	return err
}

// SearchContacts finds contacts by email. Zoho answers 204 when nothing matches.
func (c *CRMClient) SearchContacts(ctx context.Context, email string) ([]Contact, error) {
	var result struct {
		Data []Contact `json:"data"`
	}
	path := "/Contacts/search?email=" + url.QueryEscape(email)
	if err := c.call(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, fmt.Errorf("failed to search contacts: %w", err)
	}
	return result.Data, nil
}

// UpsertContact updates the contact with the same email or creates a new one.
// It reports the contact id and whether a new record was created.
func (c *CRMClient) UpsertContact(ctx context.Context, contact *Contact) (string, bool, error) {
	existing, err := c.SearchContacts(ctx, contact.Email)
	if err != nil {
		return "", false, err
	}
	if len(existing) > 0 {
		id := existing[0].ID
		if err := c.UpdateContact(ctx, id, contact); err != nil {
			return "", false, err
		}
		return id, false, nil
	}
	id, err := c.CreateContact(ctx, contact)
	if err != nil {
		return "", false, err
	}
	return id, true, nil
}

func (c *CRMClient) call(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Zoho-oauthtoken "+c.oauthToken)
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("status %d: %s", resp.StatusCode, string(raw))
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

func firstID(resp writeResponse) (string, error) {
	if len(resp.Data) == 0 {
		return "", fmt.Errorf("no data in response")
	}
	if resp.Data[0].Status != "success" {
		return "", fmt.Errorf("zoho rejected record: %s", resp.Data[0].Message)
	}
	return resp.Data[0].Details.ID, nil
}
