/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package githubreconciler

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/bradleyfalzon/ghinstallation/v2"
	"golang.org/x/oauth2"
)

// Credentials selects how the bot authenticates to GitHub: a static token,
// or a GitHub App installation.
type Credentials struct {
	Token string

	AppID          int64
	InstallationID int64
	PrivateKeyPath string
}

// Auth is an authenticated transport for API calls and a token source for
// git operations, both backed by the same credentials.
type Auth struct {
	Transport   http.RoundTripper
	TokenSource oauth2.TokenSource
}

// NewAuth builds Auth from creds. A static token wins when both are set.
func NewAuth(ctx context.Context, creds Credentials, base http.RoundTripper) (*Auth, error) {
	if base == nil {
		base = http.DefaultTransport
	}
	switch {
	case creds.Token != "":
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: creds.Token})
		return &Auth{
			Transport:   &oauth2.Transport{Source: ts, Base: base},
			TokenSource: ts,
		}, nil

	case creds.AppID != 0:
		if creds.InstallationID == 0 || creds.PrivateKeyPath == "" {
			return nil, errors.New("GitHub App auth requires an installation ID and a private key path")
		}
		itr, err := ghinstallation.NewKeyFromFile(base, creds.AppID, creds.InstallationID, creds.PrivateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("creating installation transport: %w", err)
		}
		return &Auth{
			Transport:   itr,
			TokenSource: &installationTokenSource{ctx: ctx, itr: itr},
		}, nil

	default:
		return nil, errors.New("no GitHub credentials configured")
	}
}

// installationTokenSource exposes installation tokens to go-git, which
// authenticates with a token as the basic auth password. The transport
// caches and refreshes the token itself.
type installationTokenSource struct {
	ctx context.Context
	itr *ghinstallation.Transport
}

func (s *installationTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.itr.Token(s.ctx)
	if err != nil {
		return nil, fmt.Errorf("getting installation token: %w", err)
	}
	return &oauth2.Token{AccessToken: tok}, nil
}
