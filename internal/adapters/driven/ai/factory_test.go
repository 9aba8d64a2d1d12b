package ai

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/custodia-labs/sercha-docqa/internal/core/domain"
	"github.com/custodia-labs/sercha-docqa/internal/core/ports/driven"
)

func TestFactory_Local(t *testing.T) {
	factory := NewFactory(nil)

	for _, backend := range []string{domain.BackendLocal, ""} {
		provider, err := factory.CreateProvider(&driven.ProviderSettings{Backend: backend})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, ok := provider.(*LocalBackend); !ok {
			t.Errorf("backend %q: expected *LocalBackend, got %T", backend, provider)
		}
	}
}

func TestFactory_NilSettings(t *testing.T) {
	provider, err := NewFactory(nil).CreateProvider(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if provider.Name() != "local" {
		t.Errorf("expected local provider, got %s", provider.Name())
	}
}

func TestFactory_RemoteNotConfigured(t *testing.T) {
	_, err := NewFactory(nil).CreateProvider(&driven.ProviderSettings{Backend: domain.BackendRemote})
	if !errors.Is(err, domain.ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}
}

func TestFactory_Remote(t *testing.T) {
	provider, err := NewFactory(nil).CreateProvider(&driven.ProviderSettings{
		Backend:        domain.BackendRemote,
		APIKey:         "sk-test",
		EmbeddingModel: "text-embedding-3-large",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fp, ok := provider.(*FallbackProvider)
	if !ok {
		t.Fatalf("expected *FallbackProvider, got %T", provider)
	}
	if fp.Dimensions() != 3072 {
		t.Errorf("expected primary dimensions 3072, got %d", fp.Dimensions())
	}
	if fp.Name() != "remote:text-embedding-3-large" {
		t.Errorf("unexpected name %s", fp.Name())
	}
}

func TestFactory_AutoNotConfigured(t *testing.T) {
	provider, err := NewFactory(nil).CreateProvider(&driven.ProviderSettings{Backend: domain.BackendAuto})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := provider.(*LocalBackend); !ok {
		t.Errorf("expected *LocalBackend, got %T", provider)
	}
}

func TestFactory_AutoHealthyRemote(t *testing.T) {
	_, srv := newFakeAPI(t)

	provider, err := NewFactory(nil, WithHTTPClient(srv.Client())).CreateProvider(&driven.ProviderSettings{
		Backend: domain.BackendAuto,
		BaseURL: srv.URL,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := provider.(*FallbackProvider); !ok {
		t.Errorf("expected *FallbackProvider, got %T", provider)
	}
}

func TestFactory_AutoUnhealthyRemote(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.configure(func(a *fakeAPI) { a.failEmbeddings = true })

	provider, err := NewFactory(nil, WithHealthTimeout(time.Second)).CreateProvider(&driven.ProviderSettings{
		Backend: domain.BackendAuto,
		BaseURL: srv.URL,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := provider.(*LocalBackend); !ok {
		t.Errorf("expected *LocalBackend after failed health check, got %T", provider)
	}
}

func TestFactory_AutoHealthTimeout(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(block)

	provider, err := NewFactory(nil, WithHealthTimeout(20*time.Millisecond)).CreateProvider(&driven.ProviderSettings{
		Backend: domain.BackendAuto,
		BaseURL: srv.URL,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := provider.(*LocalBackend); !ok {
		t.Errorf("expected *LocalBackend after health check timeout, got %T", provider)
	}
}

func TestFactory_UnknownBackend(t *testing.T) {
	_, err := NewFactory(nil).CreateProvider(&driven.ProviderSettings{Backend: "quantum"})
	if !errors.Is(err, domain.ErrInvalidProvider) {
		t.Errorf("expected ErrInvalidProvider, got %v", err)
	}
}

func TestFactory_CreateExternal(t *testing.T) {
	factory := NewFactory(nil)

	t.Run("not configured", func(t *testing.T) {
		gen, judge, err := factory.CreateExternal(&driven.ExternalSettings{Models: []string{"m"}})
		if err != nil || gen != nil || judge != nil {
			t.Errorf("expected all nil, got %v, %v, %v", gen, judge, err)
		}
	})

	t.Run("nil settings", func(t *testing.T) {
		gen, judge, err := factory.CreateExternal(nil)
		if err != nil || gen != nil || judge != nil {
			t.Errorf("expected all nil, got %v, %v, %v", gen, judge, err)
		}
	})

	t.Run("without judge", func(t *testing.T) {
		gen, judge, err := factory.CreateExternal(&driven.ExternalSettings{APIKey: "k", Models: []string{"m"}})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if gen == nil {
			t.Error("expected generator")
		}
		if judge != nil {
			t.Error("expected no judge")
		}
	})

	t.Run("with judge", func(t *testing.T) {
		gen, judge, err := factory.CreateExternal(&driven.ExternalSettings{APIKey: "k", Models: []string{"m"}, JudgeEnabled: true})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if gen == nil || judge == nil {
			t.Error("expected generator and judge")
		}
	})
}
