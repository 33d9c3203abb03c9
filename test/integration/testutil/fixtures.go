//go:build integration

package testutil

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"medbook/pkg/client"

	"go.mongodb.org/mongo-driver/bson"
)

// DoctorDoc builds a stored doctor record with the given raw slots.
func DoctorDoc(id, name, specialization string, slots ...any) bson.M {
	return bson.M{
		"_id":             id,
		"name":            name,
		"specialization":  specialization,
		"available_slots": bson.A(slots),
		"bookings":        bson.A{},
		"version":         int64(0),
		"last_updated":    time.Now().UTC(),
	}
}

// LinkedDoctorDoc is DoctorDoc with a linked doctor account.
func LinkedDoctorDoc(id, name, specialization, userID string, slots ...any) bson.M {
	doc := DoctorDoc(id, name, specialization, slots...)
	doc["linked_user_id"] = userID
	return doc
}

// DoctorUserDoc builds a doctor account record with the given raw slots.
func DoctorUserDoc(id, name string, slots ...any) bson.M {
	return bson.M{
		"_id":             id,
		"name":            name,
		"user_type":       "doctor",
		"available_slots": bson.A(slots),
		"bookings":        bson.A{},
		"last_updated":    time.Now().UTC(),
	}
}

func AssertStatusCode(t *testing.T, resp *client.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Fatalf("expected status %d, got %d: %s", expected, resp.StatusCode, string(resp.Body))
	}
}

func AssertContains(t *testing.T, resp *client.Response, substr string) {
	t.Helper()
	if !strings.Contains(string(resp.Body), substr) {
		t.Errorf("expected response to contain %q, got: %s", substr, string(resp.Body))
	}
}

func MustOK(t *testing.T, resp *client.Response, err error) *client.Response {
	t.Helper()
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		t.Fatalf("unexpected status %d: %s", resp.StatusCode, string(resp.Body))
	}
	return resp
}
