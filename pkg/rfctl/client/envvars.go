package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

type EnvVarService struct {
	client *Client
}

func (c *Client) EnvVars() *EnvVarService {
	return &EnvVarService{client: c}
}

type EnvVar struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type setEnvVarRequest struct {
	Value string `json:"value"`
}

func (s *EnvVarService) List(ctx context.Context, accountRef, serviceID string) ([]EnvVar, error) {
	endpoint := fmt.Sprintf("api/env-vars/%s/%s", url.PathEscape(accountRef), url.PathEscape(serviceID))
	var vars []EnvVar
	if err := s.client.do(ctx, http.MethodGet, endpoint, nil, &vars); err != nil {
		return nil, err
	}
	return vars, nil
}

// Replace swaps the whole variable set. An empty vars clears every variable,
// so it is encoded as [] rather than null.
func (s *EnvVarService) Replace(ctx context.Context, accountRef, serviceID string, vars []EnvVar) ([]EnvVar, error) {
	endpoint := fmt.Sprintf("api/env-vars/%s/%s", url.PathEscape(accountRef), url.PathEscape(serviceID))
	if vars == nil {
		vars = []EnvVar{}
	}
	var replaced []EnvVar
	if err := s.client.do(ctx, http.MethodPut, endpoint, vars, &replaced); err != nil {
		return nil, err
	}
	return replaced, nil
}

func (s *EnvVarService) Set(ctx context.Context, accountRef, serviceID, key, value string) (*EnvVar, error) {
	endpoint := fmt.Sprintf("api/env-vars/%s/%s/%s", url.PathEscape(accountRef), url.PathEscape(serviceID), url.PathEscape(key))
	var envVar EnvVar
	if err := s.client.do(ctx, http.MethodPut, endpoint, setEnvVarRequest{Value: value}, &envVar); err != nil {
		return nil, err
	}
	return &envVar, nil
}

func (s *EnvVarService) Unset(ctx context.Context, accountRef, serviceID, key string) error {
	endpoint := fmt.Sprintf("api/env-vars/%s/%s/%s", url.PathEscape(accountRef), url.PathEscape(serviceID), url.PathEscape(key))
	return s.client.do(ctx, http.MethodDelete, endpoint, nil, nil)
}
