package model

import (
	"encoding/json"
	"testing"
	"time"
)

func TestOperationFor(t *testing.T) {
	tests := []struct {
		class  EndpointClass
		method string
		want   Operation
	}{
		{ClassPublic, "GET", OpNone},
		{ClassRead, "GET", OpRead},
		{ClassWrite, "POST", OpCreate},
		{ClassWrite, "PUT", OpUpdate},
		{ClassWrite, "PATCH", OpUpdate},
		{ClassDelete, "DELETE", OpDelete},
		{ClassAdmin, "POST", OpAdmin},
	}
	for _, tt := range tests {
		if got := OperationFor(tt.class, tt.method); got != tt.want {
			t.Errorf("OperationFor(%s, %s): got %q, want %q", tt.class, tt.method, got, tt.want)
		}
	}
}

func TestIdentityRateKey(t *testing.T) {
	u := &Identity{Kind: IdentityUser, ID: 3}
	if got := u.RateKey(); got != "user:3" {
		t.Errorf("RateKey: got %q, want %q", got, "user:3")
	}
	k := &Identity{Kind: IdentityAPIKey, ID: 9}
	if got := k.RateKey(); got != "api_key:9" {
		t.Errorf("RateKey: got %q, want %q", got, "api_key:9")
	}
}

func TestAPIKeyExpired(t *testing.T) {
	now := time.Now()
	k := &APIKey{}
	if k.Expired(now) {
		t.Error("key without expiry must never expire")
	}
	past := now.Add(-time.Minute)
	k.ExpiresAt = &past
	if !k.Expired(now) {
		t.Error("expected expired")
	}
	future := now.Add(time.Minute)
	k.ExpiresAt = &future
	if k.Expired(now) {
		t.Error("future expiry is not expired")
	}
}

func TestAPIKeyJSONHidesHash(t *testing.T) {
	k := APIKey{Name: "ci", KeyHash: "secret-hash", KeyPrefix: "gk_12345"}
	data, err := json.Marshal(k)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(data) == "" || json.Valid(data) == false {
		t.Fatal("bad JSON")
	}
	var raw map[string]any
	json.Unmarshal(data, &raw)
	if _, ok := raw["key_hash"]; ok {
		t.Error("key_hash must not be serialized")
	}
	if raw["key_prefix"] != "gk_12345" {
		t.Errorf("key_prefix: got %v", raw["key_prefix"])
	}
}

func TestToolViewInlinesSchema(t *testing.T) {
	tool := Tool{Name: "summarize", SchemaJSON: `{"type":"object","required":["text"]}`}
	view := tool.View()
	if view.Schema["type"] != "object" {
		t.Errorf("Schema: got %v", view.Schema)
	}

	// Invalid stored JSON degrades to an empty object, not a panic.
	tool.SchemaJSON = "not json"
	if got := tool.View().Schema; len(got) != 0 {
		t.Errorf("invalid schema: got %v, want empty object", got)
	}
}
