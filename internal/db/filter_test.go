package db

import (
	"reflect"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestFilterBuilder(t *testing.T) {
	filter := NewFilter().
		Eq("status", "sent").
		In("sender_id", []string{"a", "b"}).
		Build()

	want := bson.M{
		"status":    "sent",
		"sender_id": bson.M{"$in": []string{"a", "b"}},
	}
	if !reflect.DeepEqual(filter, want) {
		t.Errorf("filter = %v, want %v", filter, want)
	}
}

func TestFilterBetweenHalfOpen(t *testing.T) {
	from := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)

	filter := NewFilter().Between("date", from, to).Build()
	want := bson.M{"date": bson.M{"$gte": from, "$lt": to}}
	if !reflect.DeepEqual(filter, want) {
		t.Errorf("filter = %v, want %v", filter, want)
	}
}

func TestFilterOr(t *testing.T) {
	filter := NewFilter().Or(
		bson.M{"sender_id": "a", "recipient_id": "b"},
		bson.M{"sender_id": "b", "recipient_id": "a"},
	).Build()

	or, ok := filter["$or"].([]bson.M)
	if !ok || len(or) != 2 {
		t.Fatalf("$or = %v, want two branches", filter["$or"])
	}

	// Empty input adds no operator at all.
	if f := NewFilter().Or().Build(); len(f) != 0 {
		t.Errorf("Or() with no branches produced %v", f)
	}
}

func TestFilterObjectID(t *testing.T) {
	id := primitive.NewObjectID()
	filter := NewFilter().ObjectID("_id", id.Hex()).Build()
	if got := filter["_id"]; got != id {
		t.Errorf("_id = %v, want %v", got, id)
	}

	// An invalid hex id is skipped rather than matching nothing by accident.
	if f := NewFilter().ObjectID("_id", "zz").Build(); len(f) != 0 {
		t.Errorf("invalid id produced filter %v", f)
	}
}
