package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"grocery-sync/entities"
	"grocery-sync/ws"

	"github.com/gorilla/websocket"
)

// apiClient talks to the grocery-sync HTTP API.
type apiClient struct {
	baseURL string
	token   string
	http    *http.Client
}

func newAPIClient(baseURL string) *apiClient {
	return &apiClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

type apiResponse struct {
	Success bool            `json:"success"`
	Msg     string          `json:"msg"`
	Token   string          `json:"token"`
	User    json.RawMessage `json:"user"`
	List    json.RawMessage `json:"list"`
}

func (c *apiClient) do(method, path string, body interface{}) (*apiResponse, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequest(method, c.baseURL+path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("server not reachable: %w", err)
	}
	defer resp.Body.Close()

	var out apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("unexpected response (%d): %w", resp.StatusCode, err)
	}
	if !out.Success {
		if out.Msg == "" {
			out.Msg = http.StatusText(resp.StatusCode)
		}
		return nil, errors.New(out.Msg)
	}
	return &out, nil
}

// Login authenticates and keeps the token for later calls.
func (c *apiClient) Login(email, password string) (*entities.User, error) {
	out, err := c.do(http.MethodPost, "/v1/user/authenticate", map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return nil, err
	}
	var user entities.User
	if err := json.Unmarshal(out.User, &user); err != nil {
		return nil, err
	}
	c.token = out.Token
	return &user, nil
}

func (c *apiClient) Signup(email, password string) error {
	_, err := c.do(http.MethodPost, "/v1/user/signup", map[string]string{
		"email":    email,
		"password": password,
	})
	return err
}

func (c *apiClient) List() ([]entities.GroceryItem, error) {
	out, err := c.do(http.MethodGet, "/v1/grocery/list", nil)
	if err != nil {
		return nil, err
	}
	var items []entities.GroceryItem
	if err := json.Unmarshal(out.List, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (c *apiClient) Add(name string) (*entities.GroceryItem, error) {
	return c.item(http.MethodPost, "/v1/grocery/add", map[string]interface{}{"name": name})
}

func (c *apiClient) SetCompleted(id string, completed int) (*entities.GroceryItem, error) {
	return c.item(http.MethodPost, "/v1/grocery/update", map[string]interface{}{"id": id, "completed": completed})
}

func (c *apiClient) Delete(id string) (*entities.GroceryItem, error) {
	return c.item(http.MethodPost, "/v1/grocery/delete", map[string]interface{}{"id": id})
}

func (c *apiClient) item(method, path string, body interface{}) (*entities.GroceryItem, error) {
	out, err := c.do(method, path, body)
	if err != nil {
		return nil, err
	}
	var item entities.GroceryItem
	if err := json.Unmarshal(out.List, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// Subscribe opens the realtime socket and forwards every event on the
// returned channel until the socket closes.
func (c *apiClient) Subscribe() (<-chan ws.Envelope, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/ws"
	u.RawQuery = url.Values{"token": {c.token}}.Encode()

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("realtime connection failed: %w", err)
	}

	events := make(chan ws.Envelope, 16)
	go func() {
		defer close(events)
		defer conn.Close()
		for {
			var env ws.Envelope
			if err := conn.ReadJSON(&env); err != nil {
				return
			}
			events <- env
		}
	}()
	return events, nil
}
