package domain

import (
	"sync"
	"testing"
)

func TestNewRuntimeConfig(t *testing.T) {
	config := NewRuntimeConfig(BackendLocal, "memory")

	if config == nil {
		t.Fatal("expected non-nil config")
	}
	if config.ProviderBackend != BackendLocal {
		t.Errorf("expected local, got %s", config.ProviderBackend)
	}
	if config.ExternalAvailable() {
		t.Error("expected external to be unavailable initially")
	}
	if config.JudgeAvailable() {
		t.Error("expected judge to be unavailable initially")
	}
	if config.CanDualAnswer() {
		t.Error("expected dual answer to be unavailable initially")
	}
}

func TestRuntimeConfig_Flags(t *testing.T) {
	config := NewRuntimeConfig(BackendRemote, "postgres")

	config.SetExternalAvailable(true)
	if !config.ExternalAvailable() || !config.CanDualAnswer() {
		t.Error("expected external to be available after setting")
	}
	config.SetJudgeAvailable(true)
	if !config.JudgeAvailable() {
		t.Error("expected judge to be available after setting")
	}

	config.SetExternalAvailable(false)
	if config.CanDualAnswer() {
		t.Error("expected dual answer to be unavailable after clearing")
	}
}

func TestRuntimeConfig_Concurrent(t *testing.T) {
	config := NewRuntimeConfig(BackendLocal, "memory")
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(v bool) {
			defer wg.Done()
			config.SetExternalAvailable(v)
			config.SetJudgeAvailable(!v)
		}(i%2 == 0)
		go func() {
			defer wg.Done()
			_ = config.ExternalAvailable()
			_ = config.JudgeAvailable()
		}()
	}
	wg.Wait()
}
