// Package linkedinapi submits posts through LinkedIn's ugcPosts endpoint.
//
// There is no maintained Go SDK for LinkedIn's share API; the surface we
// need is exactly one JSON POST, so this is a thin net/http client. What
// matters here is the error mapping: the service layer's retry-safety
// depends on telling "your token is dead" apart from "the network hiccuped".
package linkedinapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.linkedin.com"

// Client talks to the LinkedIn REST API. The zero value is not usable; use
// New or NewWithBaseURL.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// New creates a Client against the production LinkedIn API.
func New() *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    defaultBaseURL,
	}
}

// NewWithBaseURL creates a Client with a custom http.Client and base URL.
// Intended for testing against an httptest server.
func NewWithBaseURL(httpClient *http.Client, baseURL string) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
	}
}

// ugcPost is the request body for the ugcPosts endpoint.
// Shape per https://learn.microsoft.com/linkedin/marketing/community-management/shares/ugc-post-api
type ugcPost struct {
	Author          string          `json:"author"`
	LifecycleState  string          `json:"lifecycleState"`
	SpecificContent specificContent `json:"specificContent"`
	Visibility      visibility      `json:"visibility"`
}

type specificContent struct {
	ShareContent shareContent `json:"com.linkedin.ugc.ShareContent"`
}

type shareContent struct {
	ShareCommentary    commentary `json:"shareCommentary"`
	ShareMediaCategory string     `json:"shareMediaCategory"`
}

type commentary struct {
	Text string `json:"text"`
}

type visibility struct {
	MemberNetworkVisibility string `json:"com.linkedin.ugc.MemberNetworkVisibility"`
}

type ugcPostResponse struct {
	ID string `json:"id"`
}

// SubmitPost publishes text on the member's behalf and returns the platform
// post id. One call, one post — the digest path relies on that for its
// all-or-nothing contract.
//
// Error classification (see publisherError):
//   - 401/403            → apperror.ErrCredential (re-link, do not retry)
//   - network error, 5xx → apperror.ErrTransientPublish (safe to retry)
func (c *Client) SubmitPost(ctx context.Context, accessToken, memberID, text string) (string, error) {
	body, err := json.Marshal(ugcPost{
		Author:         authorURN(memberID),
		LifecycleState: "PUBLISHED",
		SpecificContent: specificContent{
			ShareContent: shareContent{
				ShareCommentary:    commentary{Text: text},
				ShareMediaCategory: "NONE",
			},
		},
		Visibility: visibility{MemberNetworkVisibility: "PUBLIC"},
	})
	if err != nil {
		return "", fmt.Errorf("linkedinapi: encoding post body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/ugcPosts", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("linkedinapi: building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", publisherError(0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// The body is upstream detail for our logs, never for the client.
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", publisherError(resp.StatusCode, fmt.Errorf("response body: %s", detail))
	}

	var posted ugcPostResponse
	if err := json.NewDecoder(resp.Body).Decode(&posted); err != nil {
		// The post went through; a malformed body only costs us the post id.
		return "", nil
	}

	return posted.ID, nil
}

// authorURN normalizes a stored member id into the URN the API expects.
// Stored ids are bare ("abcd1234"); older rows may already carry the prefix.
func authorURN(memberID string) string {
	if strings.HasPrefix(memberID, "urn:li:") {
		return memberID
	}
	return "urn:li:member:" + memberID
}
