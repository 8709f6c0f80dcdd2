/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package githubreconciler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewAuthStaticToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
	}))
	defer srv.Close()

	auth, err := NewAuth(context.Background(), Credentials{Token: "s3cret"}, nil)
	if err != nil {
		t.Fatalf("NewAuth() = %v", err)
	}
	resp, err := (&http.Client{Transport: auth.Transport}).Get(srv.URL)
	if err != nil {
		t.Fatalf("Get() = %v", err)
	}
	resp.Body.Close()
	if gotAuth != "Bearer s3cret" {
		t.Errorf("Authorization = %q, want %q", gotAuth, "Bearer s3cret")
	}

	tok, err := auth.TokenSource.Token()
	if err != nil {
		t.Fatalf("Token() = %v", err)
	}
	if tok.AccessToken != "s3cret" {
		t.Errorf("AccessToken = %q, want s3cret", tok.AccessToken)
	}
}

func TestNewAuthErrors(t *testing.T) {
	tests := []struct {
		name  string
		creds Credentials
	}{
		{name: "none"},
		{name: "app without installation", creds: Credentials{AppID: 1, PrivateKeyPath: "/key.pem"}},
		{name: "app without key", creds: Credentials{AppID: 1, InstallationID: 2}},
		{name: "unreadable key", creds: Credentials{AppID: 1, InstallationID: 2, PrivateKeyPath: "/does/not/exist.pem"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewAuth(context.Background(), tt.creds, nil); err == nil {
				t.Error("NewAuth() = nil error, want error")
			}
		})
	}
}

func TestResourceValidate(t *testing.T) {
	ok := Resource{Owner: "o", Repo: "r", Number: 1, HeadRef: "feature"}
	if err := ok.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
	if got, want := ok.String(), "o/r#1"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}

	for name, mod := range map[string]func(*Resource){
		"owner":  func(r *Resource) { r.Owner = "" },
		"repo":   func(r *Resource) { r.Repo = "" },
		"number": func(r *Resource) { r.Number = 0 },
		"ref":    func(r *Resource) { r.HeadRef = "" },
	} {
		r := ok
		mod(&r)
		if err := r.Validate(); err == nil {
			t.Errorf("Validate() with empty %s = nil, want error", name)
		}
	}
}
