package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFeedValidate(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{name: "absolute http", url: "http://example.com/feed.xml", wantErr: false},
		{name: "empty", url: "", wantErr: true},
		{name: "relative path", url: "/feed.xml", wantErr: true},
		{name: "bare host, no scheme", url: "example.com/feed.xml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewFeed(tt.url).Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}
