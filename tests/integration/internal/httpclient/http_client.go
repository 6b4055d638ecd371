// Package httpclient is a small JSON client for driving a running portal-api.
package httpclient

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/bytedance/sonic"
)

// Client wraps http.Client with helpers for JSON requests.
type Client struct {
	BaseURL string
	Bearer  string
	HTTP    *http.Client
}

// New creates a new Client.
func New(baseURL, bearer string) *Client {
	return &Client{BaseURL: baseURL, Bearer: bearer, HTTP: &http.Client{}}
}

// GetJSON issues a GET request and decodes the JSON response.
func (c *Client) GetJSON(path string, out any) (*http.Response, error) {
	return c.DoJSON(http.MethodGet, path, nil, out)
}

// PostJSON issues a POST request with a JSON body and decodes the response.
func (c *Client) PostJSON(path string, body, out any) (*http.Response, error) {
	return c.DoJSON(http.MethodPost, path, body, out)
}

// PutJSON issues a PUT request with a JSON body and decodes the response.
func (c *Client) PutJSON(path string, body, out any) (*http.Response, error) {
	return c.DoJSON(http.MethodPut, path, body, out)
}

// Delete issues a DELETE request and decodes the response.
func (c *Client) Delete(path string, out any) (*http.Response, error) {
	return c.DoJSON(http.MethodDelete, path, nil, out)
}

// DoJSON sends body as JSON and decodes a successful response into out.
func (c *Client) DoJSON(method, path string, body, out any) (*http.Response, error) {
	var rd io.Reader
	if body != nil {
		data, err := sonic.Marshal(body)
		if err != nil {
			return nil, err
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, c.BaseURL+path, rd)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, out)
}

// Upload posts one file as multipart form field "file".
func (c *Client) Upload(path, filename string, content []byte, headers map[string]string, out any) (*http.Response, error) {
	buf := new(bytes.Buffer)
	mw := multipart.NewWriter(buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, err
	}
	if _, err := fw.Write(content); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}
	req, err := http.NewRequest(http.MethodPost, c.BaseURL+path, buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) (*http.Response, error) {
	if c.Bearer != "" {
		req.Header.Set("Authorization", "Bearer "+c.Bearer)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return resp, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp, err
	}
	if out != nil && resp.StatusCode < 300 && len(data) > 0 {
		if err := sonic.Unmarshal(data, out); err != nil {
			return resp, err
		}
	}
	return resp, nil
}
