package client

import (
	"context"
	"net/http"
)

type AccountService struct {
	client *Client
}

func (c *Client) Accounts() *AccountService {
	return &AccountService{client: c}
}

// Account is a configured upstream account. The gateway never exposes API
// keys, so there is nothing more to carry.
type Account struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (s *AccountService) List(ctx context.Context) ([]Account, error) {
	var accounts []Account
	if err := s.client.do(ctx, http.MethodGet, "api/accounts", nil, &accounts); err != nil {
		return nil, err
	}
	return accounts, nil
}
