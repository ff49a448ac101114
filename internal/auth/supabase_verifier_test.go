package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSupabaseVerifier_Verify_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/v1/user" {
			t.Errorf("path = %q, want /auth/v1/user", r.URL.Path)
		}
		if got := r.Header.Get("apikey"); got != "anon-key" {
			t.Errorf("apikey header = %q, want anon-key", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer good-token" {
			t.Errorf("Authorization header = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "ext-001",
			"email": "a@example.org",
			"app_metadata": {"provider": "google"},
			"user_metadata": {"full_name": "Ane Etxeberria"}
		}`))
	}))
	defer srv.Close()

	v := NewSupabaseVerifier(srv.URL+"/", "anon-key", time.Second)
	identity, err := v.Verify(context.Background(), "good-token")
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}

	if identity.Subject != "ext-001" {
		t.Errorf("Subject = %q, want ext-001", identity.Subject)
	}
	if identity.Email != "a@example.org" {
		t.Errorf("Email = %q", identity.Email)
	}
	if identity.Name != "Ane Etxeberria" {
		t.Errorf("Name = %q, want full_name fallback", identity.Name)
	}
	if identity.Provider != "google" {
		t.Errorf("Provider = %q, want google", identity.Provider)
	}
	if len(identity.RawMetadata) == 0 {
		t.Error("expected raw metadata to be kept")
	}
}

func TestSupabaseVerifier_Verify_DefaultsProviderToEmail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id": "ext-002", "user_metadata": {"name": "Jon", "full_name": "Jon Doe"}}`))
	}))
	defer srv.Close()

	identity, err := NewSupabaseVerifier(srv.URL, "k", time.Second).Verify(context.Background(), "t")
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if identity.Provider != "email" {
		t.Errorf("Provider = %q, want email", identity.Provider)
	}
	if identity.Name != "Jon" {
		t.Errorf("Name = %q, want name to take precedence", identity.Name)
	}
}

func TestSupabaseVerifier_Verify_ClassifiesFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"unauthorized", http.StatusUnauthorized, `{"msg":"invalid JWT"}`, ErrInvalidCredential},
		{"forbidden", http.StatusForbidden, `{}`, ErrInvalidCredential},
		{"bad request", http.StatusBadRequest, `{}`, ErrInvalidCredential},
		{"unprocessable", http.StatusUnprocessableEntity, `{}`, ErrInvalidCredential},
		{"missing subject", http.StatusOK, `{"email":"x@example.org"}`, ErrInvalidCredential},
		{"rate limited", http.StatusTooManyRequests, `{}`, ErrProviderUnavailable},
		{"server error", http.StatusInternalServerError, `oops`, ErrProviderUnavailable},
		{"bad gateway", http.StatusBadGateway, ``, ErrProviderUnavailable},
		{"garbage body", http.StatusOK, `not json`, ErrProviderUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewSupabaseVerifier(srv.URL, "k", time.Second).Verify(context.Background(), "t")
			if !errors.Is(err, tt.want) {
				t.Errorf("Verify error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSupabaseVerifier_Verify_NetworkFailureIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewSupabaseVerifier(url, "k", time.Second).Verify(context.Background(), "t")
	if !errors.Is(err, ErrProviderUnavailable) {
		t.Errorf("Verify error = %v, want ErrProviderUnavailable", err)
	}
}

func TestSupabaseVerifier_Verify_TimeoutIsUnavailable(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	_, err := NewSupabaseVerifier(srv.URL, "k", 50*time.Millisecond).Verify(context.Background(), "t")
	if !errors.Is(err, ErrProviderUnavailable) {
		t.Errorf("Verify error = %v, want ErrProviderUnavailable", err)
	}
}
