package service

import (
	"context"
	"runtime"
	"testing"

	"github.com/atinyakov/sharedpasswords/internal/environment"
	"github.com/atinyakov/sharedpasswords/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestStub_GetPlatformSupport(t *testing.T) {
	tests := []struct {
		name string
		host *environment.HostConfig
		want models.PlatformSupport
	}{
		{
			name: "ios",
			host: &environment.HostConfig{Platform: "iOS", OSVersion: "16.2"},
			want: models.PlatformSupport{MinOSVersion: "iOS 12+", CurrentOSVersion: "ios 16.2"},
		},
		{
			name: "android without version",
			host: &environment.HostConfig{Platform: "android"},
			want: models.PlatformSupport{MinOSVersion: "Android 9+", CurrentOSVersion: "android unknown"},
		},
		{
			name: "web",
			host: &environment.HostConfig{Platform: "web", OSVersion: "1"},
			want: models.PlatformSupport{MinOSVersion: "Unknown", CurrentOSVersion: "web 1"},
		},
		{
			name: "no host",
			host: nil,
			want: models.PlatformSupport{MinOSVersion: "Unknown", CurrentOSVersion: runtime.GOOS + " unknown"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewStub(tt.host).GetPlatformSupport(context.Background())
			if tt.host == nil && (runtime.GOOS == "ios" || runtime.GOOS == "android") {
				t.Skip("host OS has its own minimum version")
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStub_Operations(t *testing.T) {
	stub := NewStub(nil)
	ctx := context.Background()

	assert.False(t, stub.HasStoredCredentials(ctx, "example.com"))

	_, err := stub.SavePassword(ctx, models.SavePasswordOptions{Username: "u", Password: "p"})
	assert.ErrorContains(t, err, "Password saving is not available")
	assert.ErrorContains(t, err, "npx expo run:ios")

	_, err = stub.CreatePasskey(ctx, models.CreatePasskeyOptions{})
	assert.ErrorContains(t, err, "Passkey creation is not available")
}
