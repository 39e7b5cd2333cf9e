package pubsub

import (
	"context"
	"testing"

	"github.com/angelmondragon/wishlist-backend/pkg/config"
)

func TestResourceName(t *testing.T) {
	cases := []struct {
		project, kind, name, want string
	}{
		{"wish-prod", "topics", "wish-enrichment-jobs", "projects/wish-prod/topics/wish-enrichment-jobs"},
		{"wish-prod", "subscriptions", " worker ", "projects/wish-prod/subscriptions/worker"},
		{"other", "topics", "projects/wish-prod/topics/jobs", "projects/wish-prod/topics/jobs"},
		{"", "topics", "jobs", ""},
		{"wish-prod", "topics", "", ""},
	}
	for _, tc := range cases {
		if got := ResourceName(tc.project, tc.kind, tc.name); got != tc.want {
			t.Fatalf("ResourceName(%q,%q,%q) = %q, want %q", tc.project, tc.kind, tc.name, got, tc.want)
		}
	}
}

func TestNewClientRequiresProject(t *testing.T) {
	if _, err := NewClient(context.Background(), config.GCPConfig{}, config.PubSubConfig{}, nil); err == nil {
		t.Fatal("expected missing project error")
	}
}

func TestNilClientIsSafe(t *testing.T) {
	var c *Client
	if c.EnrichmentPublisher() != nil || c.EnrichmentSubscriber() != nil {
		t.Fatal("nil client should return nil handles")
	}
	if err := c.Ping(context.Background()); err == nil {
		t.Fatal("expected ping error on nil client")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close on nil client: %v", err)
	}
}
