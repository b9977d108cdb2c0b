package main

import (
	"testing"

	"go.uber.org/fx"

	"github.com/ewilliams-labs/notesynth/internal/core/services"
)

func TestServerGraph(t *testing.T) {
	if err := fx.ValidateApp(serverOptions()); err != nil {
		t.Fatalf("server graph: %v", err)
	}
}

func TestConvertGraph(t *testing.T) {
	if err := fx.ValidateApp(pipeline, fx.Provide(newOfflineConverter), fx.Invoke(func(*services.Converter) {})); err != nil {
		t.Fatalf("convert graph: %v", err)
	}
}
