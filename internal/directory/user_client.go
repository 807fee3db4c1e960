// Package directory holds the REST clients for the platform API: user
// profile lookups and bearer-token identity resolution.
package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/ahmedit-11/artfolio-chat/internal/models"
)

// UserClient looks up user profiles from the platform user directory.
type UserClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewUserClient constructs the client.
func NewUserClient(baseURL string) *UserClient {
	return &UserClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type userResponse struct {
	ID             json.Number `json:"id"`
	Name           string      `json:"name"`
	ProfilePicture string      `json:"profile_picture"`
	Avatar         string      `json:"avatar"`
}

// GetUser fetches a user profile by id.
func (c *UserClient) GetUser(ctx context.Context, userID string) (models.UserProfile, error) {
	endpoint := fmt.Sprintf("%s/users/%s", c.baseURL, url.PathEscape(userID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return models.UserProfile{}, fmt.Errorf("build user request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return models.UserProfile{}, fmt.Errorf("fetch user %s: %w", userID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.UserProfile{}, fmt.Errorf("fetch user %s: unexpected status %d", userID, resp.StatusCode)
	}

	var body userResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return models.UserProfile{}, fmt.Errorf("decode user %s: %w", userID, err)
	}

	avatar := body.ProfilePicture
	if avatar == "" {
		avatar = body.Avatar
	}
	return models.UserProfile{ID: userID, Name: body.Name, Avatar: avatar}, nil
}

// ResolveProfile never fails: a directory failure degrades to a deterministic
// placeholder so one unreachable profile cannot block a conversation list.
func (c *UserClient) ResolveProfile(ctx context.Context, userID string) models.UserProfile {
	profile, err := c.GetUser(ctx, userID)
	if err != nil {
		log.Printf("warning: user directory lookup failed for %s, using placeholder: %v", userID, err)
		return models.PlaceholderProfile(userID)
	}
	if profile.Name == "" {
		profile.Name = models.PlaceholderProfile(userID).Name
	}
	return profile
}
